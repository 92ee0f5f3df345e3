package graph

import (
	"errors"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/gyaneshwarpardhi/animgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

// Report summarises one evaluation pass.
type Report struct {
	Evaluated int // nodes recomputed
	Committed int // props nodes that wrote to a view
	Skipped   int // nodes not recomputed because an input failed this pass
	Duration  time.Duration
	errs      *multierror.Error
}

// Err returns every node failure of the pass combined, or nil.
func (r *Report) Err() error { return r.errs.ErrorOrNil() }

// Errors returns the individual failures (each a *NodeError).
func (r *Report) Errors() []error {
	if r.errs == nil {
		return nil
	}
	return r.errs.Errors
}

func (r *Report) add(err error) { r.errs = multierror.Append(r.errs, err) }

// Evaluate runs one pass. The roots are merged with everything marked dirty
// since the last pass; every node downstream of them is recomputed exactly once,
// after all of its inputs. A failing node is reported and its dependents are
// skipped for this pass, but unrelated nodes still evaluate and commit.
func (m *Manager) Evaluate(roots ...NodeID) *Report {
	start := time.Now()
	rep := &Report{}
	if err := m.checkOwner(); err != nil {
		rep.add(err)
		return rep
	}
	for _, id := range roots {
		m.MarkDirty(id)
	}
	if len(m.dirty) == 0 {
		return rep
	}

	affected := m.collectAffected()
	for id := range m.dirty {
		delete(m.dirty, id)
	}

	// Kahn's algorithm restricted to the affected subgraph. Dependents is a
	// set, so an input read under several names counts once.
	indegree := make(map[NodeID]int, len(affected))
	for id := range affected {
		seen := make(map[NodeID]struct{})
		for _, in := range m.nodes[id].Inputs() {
			if _, dup := seen[in]; dup {
				continue
			}
			seen[in] = struct{}{}
			if _, ok := affected[in]; ok {
				indegree[id]++
			}
		}
	}
	var ready []NodeID
	for id := range affected {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	failed := make(map[NodeID]struct{})
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		n := m.nodes[id]

		if upstreamFailed(n, failed) {
			failed[id] = struct{}{}
			rep.Skipped++
		} else {
			m.evaluateNode(n, rep, failed)
		}

		for _, dep := range m.Dependents(id) {
			if _, ok := affected[dep]; !ok {
				continue
			}
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	rep.Duration = time.Since(start)
	metrics.EvaluationDuration.Observe(float64(rep.Duration.Microseconds()) / 1000)
	return rep
}

func (m *Manager) evaluateNode(n Node, rep *Report, failed map[NodeID]struct{}) {
	var before int
	p, isProps := n.(*PropsNode)
	if isProps {
		before = p.commits
	}
	rep.Evaluated++
	if err := n.evaluate(m); err != nil {
		failed[n.ID()] = struct{}{}
		rep.add(&NodeError{ID: n.ID(), Err: err})
		class := classify(err)
		metrics.EvaluationErrors.WithLabelValues(class).Inc()
		m.logger.Warn("node evaluation failed", "node", n.ID(), "kind", n.Kind(), "class", class, "err", err)
		return
	}
	if isProps && p.commits > before {
		rep.Committed++
		metrics.Commits.Inc()
	}
}

// collectAffected returns the live dirty nodes and everything downstream of them.
func (m *Manager) collectAffected() map[NodeID]struct{} {
	affected := make(map[NodeID]struct{})
	queue := make([]NodeID, 0, len(m.dirty))
	for id := range m.dirty {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := affected[id]; seen {
			continue
		}
		if _, live := m.nodes[id]; !live {
			continue
		}
		affected[id] = struct{}{}
		for dep := range m.dependents[id] {
			queue = append(queue, dep)
		}
	}
	return affected
}

func upstreamFailed(n Node, failed map[NodeID]struct{}) bool {
	for _, in := range n.Inputs() {
		if _, ok := failed[in]; ok {
			return true
		}
	}
	return false
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrUnknownNode):
		return "structural"
	case errors.Is(err, view.ErrViewNotFound):
		return "view"
	default:
		return "compute"
	}
}
