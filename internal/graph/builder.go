package graph

import (
	"fmt"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

// Build creates the scene's nodes in declaration order and applies its bindings.
// Views must already exist in the manager's view layer.
func Build(m *Manager, cfg *config.SceneConfig) error {
	for i := range cfg.Nodes {
		if err := m.CreateNode(&cfg.Nodes[i]); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
	}
	for _, b := range cfg.Bindings {
		if err := m.ConnectProps(b.Node, view.Handle(b.View), b.ViewType); err != nil {
			return fmt.Errorf("scene binding %d -> view %d: %w", b.Node, b.View, err)
		}
	}
	return nil
}
