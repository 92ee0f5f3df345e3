package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/animgraph/internal/command"
	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/driver"
	"github.com/gyaneshwarpardhi/animgraph/internal/engine"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
	"github.com/gyaneshwarpardhi/animgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

const maxBatchSize = 100

// Views is the read side of the view layer exposed for introspection.
type Views interface {
	Snapshot(h view.Handle) (viewType string, props view.Props, ok bool)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	views  Views
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. loader may be nil, in
// which case the reload route is not served.
func New(eng *engine.Engine, views Views, loader *config.Loader, logger *slog.Logger) http.Handler {
	h := &Handler{eng: eng, views: views, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/commands", h.applyCommand)
	h.mux.HandleFunc("POST /v1/commands/batch", h.submitBatch)
	h.mux.HandleFunc("GET /v1/nodes", h.listNodes)
	h.mux.HandleFunc("GET /v1/nodes/{id}", h.getNode)
	h.mux.HandleFunc("GET /v1/views/{handle}", h.getView)
	if loader != nil {
		h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

// POST /v1/commands: apply one command and wait for its result.
func (h *Handler) applyCommand(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	res, err := h.eng.Do(r.Context(), &cmd)
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if res.Err != nil {
		status = commandStatus(res.Err)
	}
	writeJSON(w, status, newCommandResponse(res))
}

// POST /v1/commands/batch: async batch submission (up to 100 commands), applied in order.
func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request) {
	var cmds []*command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(cmds) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one command")
		return
	}
	if len(cmds) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(cmds), maxBatchSize))
		return
	}

	resp := batchResponse{JobID: uuid.NewString(), Total: len(cmds)}
	for i, cmd := range cmds {
		if cmd == nil {
			resp.Rejected = append(resp.Rejected, batchRejection{Index: i, Error: "null command"})
			continue
		}
		if err := h.eng.Submit(cmd); err != nil {
			resp.Rejected = append(resp.Rejected, batchRejection{Index: i, Error: err.Error()})
			continue
		}
		resp.CommandIDs = append(resp.CommandIDs, cmd.ID)
		resp.Queued++
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// GET /v1/nodes: list live node ids.
func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	var ids []graph.NodeID
	err := h.eng.Inspect(r.Context(), func(m *graph.Manager, _ *driver.Driver) {
		ids = m.IDs()
	})
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": ids, "count": len(ids)})
}

// GET /v1/nodes/{id}: one node's kind, edges and last output.
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "node id must be an integer")
		return
	}
	var resp *nodeResponse
	err = h.eng.Inspect(r.Context(), func(m *graph.Manager, _ *driver.Driver) {
		if n, ok := m.Node(id); ok {
			resp = newNodeResponse(n, m.Dependents(id))
		}
	})
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("node %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/views/{handle}: current properties of a view.
func (h *Handler) getView(w http.ResponseWriter, r *http.Request) {
	handle, err := strconv.ParseInt(r.PathValue("handle"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "view handle must be an integer")
		return
	}
	viewType, props, ok := h.views.Snapshot(view.Handle(handle))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("view %d not found", handle))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"handle": handle,
		"type":   viewType,
		"props":  props,
	})
}

// POST /v1/config/reload: re-read the scene file; engine settings apply through
// the loader's change callbacks.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"engine":   cfg.Engine,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the engine is not running or the command queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if !h.eng.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "stopped",
			"queue_utilization": util,
		})
		return
	}
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// submitStatus maps errors from getting a command to the engine.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// commandStatus maps a failed command's error.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, graph.ErrUnknownNode),
		errors.Is(err, view.ErrViewNotFound),
		errors.Is(err, driver.ErrUnknownAnimation):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrDuplicateNode), errors.Is(err, graph.ErrCycle):
		return http.StatusConflict
	case errors.Is(err, graph.ErrWrongGoroutine):
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
