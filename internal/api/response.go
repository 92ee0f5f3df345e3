package api

import (
	"encoding/json"
	"net/http"

	"github.com/gyaneshwarpardhi/animgraph/internal/command"
	"github.com/gyaneshwarpardhi/animgraph/internal/driver"
	"github.com/gyaneshwarpardhi/animgraph/internal/engine"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type commandResponse struct {
	CommandID   string         `json:"command_id"`
	Kind        command.Kind   `json:"kind"`
	AnimationID string         `json:"animation_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Pass        *passResponse  `json:"pass,omitempty"`
	Events      []driver.Event `json:"events,omitempty"`
}

// passResponse summarises the evaluation pass run by a tick.
type passResponse struct {
	Evaluated  int      `json:"evaluated"`
	Committed  int      `json:"committed"`
	Skipped    int      `json:"skipped"`
	DurationMs float64  `json:"duration_ms"`
	NodeErrors []string `json:"node_errors,omitempty"`
}

func newCommandResponse(res *engine.Result) *commandResponse {
	out := &commandResponse{
		CommandID:   res.CommandID,
		Kind:        res.Kind,
		AnimationID: res.AnimationID,
		Events:      res.Events,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if rep := res.Report; rep != nil {
		p := &passResponse{
			Evaluated:  rep.Evaluated,
			Committed:  rep.Committed,
			Skipped:    rep.Skipped,
			DurationMs: float64(rep.Duration.Microseconds()) / 1000,
		}
		for _, err := range rep.Errors() {
			p.NodeErrors = append(p.NodeErrors, err.Error())
		}
		out.Pass = p
	}
	return out
}

type batchRejection struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchResponse struct {
	JobID      string           `json:"job_id"`
	Total      int              `json:"total"`
	Queued     int              `json:"queued"`
	CommandIDs []string         `json:"command_ids,omitempty"`
	Rejected   []batchRejection `json:"rejected,omitempty"`
}

type nodeResponse struct {
	ID         graph.NodeID   `json:"id"`
	Kind       graph.Kind     `json:"kind"`
	Inputs     []graph.NodeID `json:"inputs"`
	Dependents []graph.NodeID `json:"dependents"`
	Output     interface{}    `json:"output"`
	Props      *propsState    `json:"props,omitempty"`
}

// propsState is the binding state of a props node.
type propsState struct {
	Connected bool                   `json:"connected"`
	View      int64                  `json:"view,omitempty"`
	ViewType  string                 `json:"view_type,omitempty"`
	Baseline  map[string]interface{} `json:"baseline,omitempty"`
	Commits   int                    `json:"commits"`
}

func newNodeResponse(n graph.Node, dependents []graph.NodeID) *nodeResponse {
	out := &nodeResponse{
		ID:         n.ID(),
		Kind:       n.Kind(),
		Inputs:     n.Inputs(),
		Dependents: dependents,
		Output:     n.Output(),
	}
	if out.Inputs == nil {
		out.Inputs = []graph.NodeID{}
	}
	if out.Dependents == nil {
		out.Dependents = []graph.NodeID{}
	}
	if p, ok := n.(*graph.PropsNode); ok {
		h, viewType, connected := p.Connected()
		st := &propsState{Connected: connected, Baseline: p.Baseline(), Commits: p.Commits()}
		if connected {
			st.View, st.ViewType = int64(h), viewType
		}
		out.Props = st
	}
	return out
}
