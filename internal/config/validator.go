package config

import (
	"fmt"
	"strings"
)

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate checks the config for:
//   - Required fields and sane engine settings
//   - Duplicate node ids and view handles
//   - References to undeclared or later-declared nodes (the ordering rule also rules out cycles)
//   - Bindings that do not target a props node and a declared view
func Validate(cfg *SceneConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	e := cfg.Engine
	if e.FrameRate < 0 {
		errs = append(errs, fmt.Sprintf("engine.frame_rate must not be negative, got %d", e.FrameRate))
	}
	if e.QueueDepth < 0 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth must not be negative, got %d", e.QueueDepth))
	}
	if e.CommandTimeoutMs < 0 {
		errs = append(errs, fmt.Sprintf("engine.command_timeout_ms must not be negative, got %d", e.CommandTimeoutMs))
	}
	if _, ok := logLevels[strings.ToLower(e.LogLevel)]; e.LogLevel != "" && !ok {
		errs = append(errs, fmt.Sprintf("engine.log_level %q is not one of debug, info, warn, error", e.LogLevel))
	}

	views := make(map[int64]struct{}, len(cfg.Views))
	for i, v := range cfg.Views {
		if _, dup := views[v.Handle]; dup {
			errs = append(errs, fmt.Sprintf("views[%d]: duplicate handle %d", i, v.Handle))
		}
		views[v.Handle] = struct{}{}
		if v.Type == "" {
			errs = append(errs, fmt.Sprintf("views[%d]: type is required", i))
		}
	}

	types := make(map[int64]string, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		loc := fmt.Sprintf("nodes[%d]", i)
		if n.ID <= 0 {
			errs = append(errs, fmt.Sprintf("%s: id must be positive", loc))
			continue
		}
		loc = fmt.Sprintf("node %d", n.ID)
		if _, dup := types[n.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate node id %d", n.ID))
			continue
		}
		if n.Type == "" {
			errs = append(errs, fmt.Sprintf("%s: type is required", loc))
		}
		for _, ref := range n.References() {
			if ref == n.ID {
				errs = append(errs, fmt.Sprintf("%s: references itself", loc))
			} else if _, ok := types[ref]; !ok {
				errs = append(errs, fmt.Sprintf("%s: references node %d which is not declared before it", loc, ref))
			}
		}
		types[n.ID] = n.Type
	}

	for i, b := range cfg.Bindings {
		loc := fmt.Sprintf("bindings[%d]", i)
		typ, ok := types[b.Node]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("%s: unknown node %d", loc, b.Node))
		case typ != "props":
			errs = append(errs, fmt.Sprintf("%s: node %d is a %s node, not props", loc, b.Node, typ))
		}
		if _, ok := views[b.View]; !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown view %d", loc, b.View))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
