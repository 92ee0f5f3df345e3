package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

// Manager owns every node by id, tracks the implicit edges between them and
// runs evaluation passes. It is not safe for concurrent use: all calls must come
// from one goroutine, which Bind can enforce.
type Manager struct {
	layer    view.Layer
	registry *Registry
	logger   *slog.Logger

	nodes map[NodeID]Node
	// dependents[x] holds every node that reads x. Entries survive x's
	// destruction so a node recreated under the same id is picked up again.
	dependents map[NodeID]map[NodeID]struct{}
	dirty      map[NodeID]struct{}

	owner atomic.Int64 // goroutine id, 0 when unbound
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for per-node failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRegistry replaces the default node registry.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// NewManager creates an empty graph committing to layer.
func NewManager(layer view.Layer, opts ...Option) *Manager {
	m := &Manager{
		layer:      layer,
		registry:   DefaultRegistry(),
		logger:     slog.Default(),
		nodes:      make(map[NodeID]Node),
		dependents: make(map[NodeID]map[NodeID]struct{}),
		dirty:      make(map[NodeID]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind makes the calling goroutine the only one allowed to mutate or evaluate the graph.
func (m *Manager) Bind() { m.owner.Store(goid.Get()) }

// Unbind lifts the goroutine restriction.
func (m *Manager) Unbind() { m.owner.Store(0) }

func (m *Manager) checkOwner() error {
	if owner := m.owner.Load(); owner != 0 && owner != goid.Get() {
		return ErrWrongGoroutine
	}
	return nil
}

// Node returns a node by id.
func (m *Manager) Node(id NodeID) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// NodeCount returns the number of live nodes.
func (m *Manager) NodeCount() int { return len(m.nodes) }

// IDs returns the live node ids in ascending order.
func (m *Manager) IDs() []NodeID {
	ids := make([]NodeID, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dependents returns the live nodes that read id, in ascending order.
func (m *Manager) Dependents(id NodeID) []NodeID {
	var out []NodeID
	for dep := range m.dependents[id] {
		if _, ok := m.nodes[dep]; ok {
			out = append(out, dep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CreateNode builds a node from def and adds it to the graph. The id must not be
// live, every referenced node must exist and the new edges must not close a
// cycle; on any error the graph is unchanged.
func (m *Manager) CreateNode(def *config.NodeDef) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	id := def.ID
	if _, exists := m.nodes[id]; exists {
		return fmt.Errorf("create node %d: %w", id, ErrDuplicateNode)
	}
	factory, err := m.registry.Get(Kind(def.Type))
	if err != nil {
		return fmt.Errorf("create node %d: %w", id, err)
	}
	n, err := factory(id, def)
	if err != nil {
		return fmt.Errorf("create node %d: %w", id, err)
	}
	inputs := n.Inputs()
	for _, in := range inputs {
		if in == id {
			return fmt.Errorf("create node %d: reads itself: %w", id, ErrCycle)
		}
		if _, ok := m.nodes[in]; !ok {
			return fmt.Errorf("create node %d: input %d: %w", id, in, ErrUnknownNode)
		}
	}
	if in, ok := m.reachesAny(id, inputs); ok {
		return fmt.Errorf("create node %d: input %d already depends on it: %w", id, in, ErrCycle)
	}

	if p, ok := n.(*PropsNode); ok {
		p.layer = m.layer
	}
	m.nodes[id] = n
	for _, in := range inputs {
		if m.dependents[in] == nil {
			m.dependents[in] = make(map[NodeID]struct{})
		}
		m.dependents[in][id] = struct{}{}
	}
	m.dirty[id] = struct{}{}
	metrics.Nodes.Set(float64(len(m.nodes)))
	return nil
}

// reachesAny reports whether any of targets is downstream of from, following
// recorded dependents (including those of destroyed nodes).
func (m *Manager) reachesAny(from NodeID, targets []NodeID) (NodeID, bool) {
	if len(targets) == 0 {
		return 0, false
	}
	want := make(map[NodeID]struct{}, len(targets))
	for _, t := range targets {
		want[t] = struct{}{}
	}
	seen := map[NodeID]struct{}{from: {}}
	stack := []NodeID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range m.dependents[cur] {
			if _, ok := want[dep]; ok {
				return dep, true
			}
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				stack = append(stack, dep)
			}
		}
	}
	return 0, false
}

// DestroyNode removes a node. Nodes still reading it are marked dirty so the
// next pass reports them instead of silently keeping stale values.
func (m *Manager) DestroyNode(id NodeID) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("destroy node %d: %w", id, ErrUnknownNode)
	}
	for _, in := range n.Inputs() {
		if deps := m.dependents[in]; deps != nil {
			delete(deps, id)
			if len(deps) == 0 {
				delete(m.dependents, in)
			}
		}
	}
	delete(m.nodes, id)
	delete(m.dirty, id)
	for dep := range m.dependents[id] {
		if _, live := m.nodes[dep]; live {
			m.dirty[dep] = struct{}{}
		}
	}
	metrics.Nodes.Set(float64(len(m.nodes)))
	return nil
}

// MarkDirty schedules id (and everything downstream) for the next pass.
func (m *Manager) MarkDirty(id NodeID) {
	if _, ok := m.nodes[id]; ok {
		m.dirty[id] = struct{}{}
	}
}

// Props returns the props node with the given id.
func (m *Manager) Props(id NodeID) (*PropsNode, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	p, ok := n.(*PropsNode)
	if !ok {
		return nil, fmt.Errorf("node %d is %s: %w", id, n.Kind(), ErrNotProps)
	}
	return p, nil
}

// Value returns the value node with the given id.
func (m *Manager) Value(id NodeID) (*ValueNode, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	v, ok := n.(*ValueNode)
	if !ok {
		return nil, fmt.Errorf("node %d is %s: %w", id, n.Kind(), ErrNotValue)
	}
	return v, nil
}

// ConnectProps binds props node id to a view and schedules its first commit.
func (m *Manager) ConnectProps(id NodeID, h view.Handle, viewType string) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	p, err := m.Props(id)
	if err != nil {
		return err
	}
	if err := p.connect(m, h, viewType); err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}
	m.dirty[id] = struct{}{}
	return nil
}

// DisconnectProps unbinds props node id from h. A handle that does not match
// the current connection is ignored.
func (m *Manager) DisconnectProps(id NodeID, h view.Handle) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	p, err := m.Props(id)
	if err != nil {
		return err
	}
	if !p.disconnect(h) {
		m.logger.Debug("ignoring disconnect for a view the node is not connected to", "node", id, "view", h)
	}
	return nil
}

// RestoreDefaults writes props node id's baseline back to its view.
func (m *Manager) RestoreDefaults(id NodeID) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	p, err := m.Props(id)
	if err != nil {
		return err
	}
	if err := p.restoreDefaultValues(m); err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}
	return nil
}

// SetValue sets a value node's value and marks it dirty.
func (m *Manager) SetValue(id NodeID, v float64) error {
	return m.updateValue(id, func(n *ValueNode) { n.setValue(v) })
}

// SetOffset sets a value node's offset and marks it dirty.
func (m *Manager) SetOffset(id NodeID, v float64) error {
	return m.updateValue(id, func(n *ValueNode) { n.setOffset(v) })
}

// FlattenOffset merges a value node's offset into its value.
func (m *Manager) FlattenOffset(id NodeID) error {
	return m.updateValue(id, (*ValueNode).flattenOffset)
}

// ExtractOffset moves a value node's value into its offset.
func (m *Manager) ExtractOffset(id NodeID) error {
	return m.updateValue(id, (*ValueNode).extractOffset)
}

func (m *Manager) updateValue(id NodeID, fn func(*ValueNode)) error {
	if err := m.checkOwner(); err != nil {
		return err
	}
	v, err := m.Value(id)
	if err != nil {
		return err
	}
	fn(v)
	m.dirty[id] = struct{}{}
	return nil
}

// output implements reader for nodes evaluated by this manager.
func (m *Manager) output(id NodeID) (any, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("input %d: %w", id, ErrUnknownNode)
	}
	return n.Output(), nil
}
