package driver

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
	"github.com/gyaneshwarpardhi/animgraph/internal/metrics"
)

// Event reports that an animation ended. Finished is false when it was stopped,
// replaced or lost its node before completing.
type Event struct {
	AnimationID string       `json:"animation_id"`
	NodeID      graph.NodeID `json:"node_id"`
	Finished    bool         `json:"finished"`
	Value       float64      `json:"value"`
}

type run struct {
	id      string
	node    graph.NodeID
	anim    Animation
	started bool
	start   time.Duration // frame time of the first tick
	value   float64
}

// Driver advances animations once per frame and then evaluates the graph.
// Like the graph it drives, it belongs to a single goroutine.
type Driver struct {
	graph  *graph.Manager
	logger *slog.Logger

	active map[string]*run
	byNode map[graph.NodeID]string
	events []Event
}

// NewDriver creates a Driver for m. A nil logger means slog.Default().
func NewDriver(m *graph.Manager, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		graph:  m,
		logger: logger,
		active: make(map[string]*run),
		byNode: make(map[graph.NodeID]string),
	}
}

// Start attaches an animation to value node nodeID, starting from its current
// value. An animation already driving that node, or already using id, ends
// unfinished. An empty id is replaced by a generated one, which is returned.
func (d *Driver) Start(id string, nodeID graph.NodeID, def *config.AnimationDef) (string, error) {
	if def == nil {
		return "", fmt.Errorf("start animation on node %d: missing definition", nodeID)
	}
	v, err := d.graph.Value(nodeID)
	if err != nil {
		return "", fmt.Errorf("start animation: %w", err)
	}
	anim, err := New(def, v.Value())
	if err != nil {
		return "", fmt.Errorf("start animation on node %d: %w", nodeID, err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if prev, ok := d.byNode[nodeID]; ok {
		d.finish(prev, false)
	}
	if _, ok := d.active[id]; ok {
		d.finish(id, false)
	}
	d.active[id] = &run{id: id, node: nodeID, anim: anim, value: v.Value()}
	d.byNode[nodeID] = id
	metrics.ActiveAnimations.Set(float64(len(d.active)))
	d.logger.Debug("animation started", "animation", id, "node", nodeID, "type", def.Type)
	return id, nil
}

// Stop ends an animation, leaving its node at the last value it wrote.
func (d *Driver) Stop(id string) error {
	if _, ok := d.active[id]; !ok {
		return fmt.Errorf("animation %q: %w", id, ErrUnknownAnimation)
	}
	d.finish(id, false)
	return nil
}

// StopNode ends whatever animation drives nodeID, if any.
func (d *Driver) StopNode(nodeID graph.NodeID) {
	if id, ok := d.byNode[nodeID]; ok {
		d.finish(id, false)
	}
}

// Active returns the ids of running animations, sorted.
func (d *Driver) Active() []string {
	ids := make([]string, 0, len(d.active))
	for id := range d.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tick steps every animation to frameTime, writes all resulting values and
// then runs exactly one evaluation pass, so no view sees a partial frame.
// Pending graph edits are committed by the same pass even when nothing animates.
func (d *Driver) Tick(frameTime time.Duration) *graph.Report {
	for _, id := range d.Active() {
		r := d.active[id]
		if _, err := d.graph.Value(r.node); err != nil {
			d.logger.Info("animation lost its node", "animation", id, "node", r.node, "err", err)
			d.finish(id, false)
			continue
		}
		if !r.started {
			r.started = true
			r.start = frameTime
		}
		elapsed := max(frameTime-r.start, 0)
		v, done := r.anim.Step(elapsed)
		if err := d.graph.SetValue(r.node, v); err != nil {
			d.logger.Warn("animation update failed", "animation", id, "node", r.node, "err", err)
			d.finish(id, false)
			continue
		}
		r.value = v
		if done {
			d.finish(id, true)
		}
	}
	metrics.Frames.Inc()
	return d.graph.Evaluate()
}

// DrainEvents returns the events recorded since the last call.
func (d *Driver) DrainEvents() []Event {
	out := d.events
	d.events = nil
	return out
}

func (d *Driver) finish(id string, finished bool) {
	r := d.active[id]
	delete(d.active, id)
	if d.byNode[r.node] == id {
		delete(d.byNode, r.node)
	}
	d.events = append(d.events, Event{AnimationID: id, NodeID: r.node, Finished: finished, Value: r.value})
	outcome := "stopped"
	if finished {
		outcome = "finished"
	}
	metrics.AnimationsFinished.WithLabelValues(outcome).Inc()
	metrics.ActiveAnimations.Set(float64(len(d.active)))
}
