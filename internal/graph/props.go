package graph

import (
	"fmt"
	"reflect"

	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

// PropsNode is the sink of the graph: it composes upstream outputs into a
// property map and commits it to the view it is connected to.
//
// State machine:
//
//	Unconnected --connect(v)--> Connected(v)
//	Connected(v) --disconnect(v)--> Unconnected (baseline for v kept for restore)
//	Connected(a) --connect(b)--> Connected(b)  (baseline for a discarded)
//
// A disconnect naming any other view is ignored.
type PropsNode struct {
	id    NodeID
	props map[string]NodeID
	layer view.Layer

	connected bool
	bound     bool // a view has been connected at least once
	handle    view.Handle
	viewType  string

	baseline        view.Props
	baselinePending bool

	out           view.Props
	lastCommitted view.Props
	forceCommit   bool
	commits       int
}

func (n *PropsNode) ID() NodeID       { return n.id }
func (n *PropsNode) Kind() Kind       { return KindProps }
func (n *PropsNode) Inputs() []NodeID { return sortedIDs(n.props) }
func (n *PropsNode) Output() any      { return n.out }

// Connected reports the current view, if any.
func (n *PropsNode) Connected() (view.Handle, string, bool) {
	return n.handle, n.viewType, n.connected
}

// Baseline returns a copy of the captured restoration baseline.
func (n *PropsNode) Baseline() view.Props { return n.baseline.Clone() }

// Commits counts successful writes of animated values to a view.
func (n *PropsNode) Commits() int { return n.commits }

// PropertyNames returns the property names this node maps, sorted.
func (n *PropsNode) PropertyNames() []string { return sortedKeys(n.props) }

// connect binds the node to h. The view must exist. Connecting to the view it
// is already bound to keeps the baseline; any other view replaces it.
func (n *PropsNode) connect(r reader, h view.Handle, viewType string) error {
	if n.connected && n.handle == h {
		n.viewType = viewType
		n.forceCommit = true
		return nil
	}
	if !n.layer.ViewExists(h) {
		return fmt.Errorf("connect to view %s: %w", h, view.ErrViewNotFound)
	}
	n.connected = true
	n.bound = true
	n.handle = h
	n.viewType = viewType
	n.baseline = nil
	n.lastCommitted = nil
	n.forceCommit = true
	n.baselinePending = n.captureBaseline(r) != nil
	return nil
}

// disconnect unbinds the node when h names the connected view; otherwise it
// does nothing, so a stale detach after a rebind cannot undo the rebind.
func (n *PropsNode) disconnect(h view.Handle) bool {
	if !n.connected || n.handle != h {
		return false
	}
	n.connected = false
	n.lastCommitted = nil
	return true
}

// restoreDefaultValues writes the baseline back to the connected view, or to
// the last connected one when the node has since been disconnected.
func (n *PropsNode) restoreDefaultValues(r reader) error {
	if !n.bound {
		return nil
	}
	if n.baselinePending {
		n.baselinePending = n.captureBaseline(r) != nil
	}
	if len(n.baseline) == 0 {
		return nil
	}
	if err := n.layer.SetPropertyValues(n.handle, n.baseline.Clone()); err != nil {
		return fmt.Errorf("restore view %s: %w", n.handle, err)
	}
	n.lastCommitted = nil
	return nil
}

// captureBaseline records the view's current values for every property the
// node drives. Properties the view does not report are left out.
func (n *PropsNode) captureBaseline(r reader) error {
	vals, err := n.layer.GetPropertyValues(n.handle, n.drivenProperties(r))
	if err != nil {
		return err
	}
	n.baseline = vals
	return nil
}

// drivenProperties lists the view properties the node writes. Style inputs
// contribute their declared keys, so the list is complete before any pass.
func (n *PropsNode) drivenProperties(r reader) []string {
	set := make(map[string]struct{}, len(n.props))
	for name, id := range n.props {
		if up, ok := r.Node(id); ok {
			if st, ok := up.(*StyleNode); ok {
				for _, k := range st.Keys() {
					set[k] = struct{}{}
				}
				continue
			}
		}
		set[name] = struct{}{}
	}
	return sortedKeys(set)
}

// compose reads every upstream output. Map outputs (style nodes) are
// flattened into the result.
func (n *PropsNode) compose(r reader) (view.Props, error) {
	out := make(view.Props, len(n.props))
	for _, name := range sortedKeys(n.props) {
		v, err := r.output(n.props[name])
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", name, err)
		}
		if m, ok := v.(map[string]any); ok {
			for k, mv := range m {
				out[k] = mv
			}
			continue
		}
		out[name] = v
	}
	return out, nil
}

func (n *PropsNode) evaluate(r reader) error {
	props, err := n.compose(r)
	if err != nil {
		return err
	}
	n.out = props
	if !n.connected {
		return nil
	}
	if n.baselinePending {
		n.baselinePending = n.captureBaseline(r) != nil
	}
	if !n.forceCommit && reflect.DeepEqual(props, n.lastCommitted) {
		return nil
	}
	if err := n.layer.SetPropertyValues(n.handle, props.Clone()); err != nil {
		return fmt.Errorf("commit to view %s: %w", n.handle, err)
	}
	n.lastCommitted = props
	n.forceCommit = false
	n.commits++
	return nil
}
