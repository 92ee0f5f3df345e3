package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animgraph_commands_enqueued_total",
		Help: "Total number of commands placed on the engine queue.",
	})

	CommandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animgraph_commands_dropped_total",
		Help: "Total number of commands rejected due to a full queue.",
	})

	CommandsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animgraph_commands_applied_total",
		Help: "Total number of commands applied on the graph goroutine, labelled by kind and status.",
	}, []string{"kind", "status"})

	Frames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animgraph_frames_total",
		Help: "Total number of frame ticks processed.",
	})

	Commits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animgraph_props_commits_total",
		Help: "Total number of property maps committed to views.",
	})

	EvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animgraph_evaluation_errors_total",
		Help: "Total number of per-node evaluation failures, labelled by class (structural, view, compute).",
	}, []string{"class"})

	AnimationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animgraph_animations_finished_total",
		Help: "Total number of animations that ended, labelled by outcome (finished, stopped).",
	}, []string{"outcome"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "animgraph_evaluation_duration_ms",
		Help:    "Duration of one evaluation pass in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	Nodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animgraph_nodes",
		Help: "Number of live nodes in the graph.",
	})

	ActiveAnimations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animgraph_active_animations",
		Help: "Number of animations currently driving value nodes.",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animgraph_queue_utilization_ratio",
		Help: "Current command queue utilization (0–1).",
	})
)
