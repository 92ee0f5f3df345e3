package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/animgraph/internal/command"
	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/driver"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
	"github.com/gyaneshwarpardhi/animgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

var (
	ErrQueueFull = errors.New("command queue full")
	ErrStopped   = errors.New("engine stopped")
)

// Result is the outcome of applying a single command.
type Result struct {
	CommandID   string
	Kind        command.Kind
	AnimationID string         // start_animation
	Err         error          // nil on success
	Report      *graph.Report  // tick
	Events      []driver.Event // tick
}

// Engine owns the graph and its driver and applies every command on one
// goroutine (the one calling Run). Other goroutines reach the graph only
// through Submit, Do and Inspect.
type Engine struct {
	graph  *graph.Manager
	driver *driver.Driver
	logger *slog.Logger

	queue   *queue[*work]
	conf    atomic.Pointer[config.EngineConf]
	reconf  chan struct{}
	running atomic.Bool
}

type work struct {
	cmd     *command.Command
	inspect func(*graph.Manager, *driver.Driver)
	resultC chan *Result
}

// New creates an Engine. The queue depth is fixed for the engine's lifetime.
func New(m *graph.Manager, d *driver.Driver, conf config.EngineConf, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	config.ApplyDefaults(&conf)
	e := &Engine{
		graph:  m,
		driver: d,
		logger: logger,
		queue:  newQueue[*work](conf.QueueDepth),
		reconf: make(chan struct{}, 1),
	}
	e.conf.Store(&conf)
	return e
}

// Reconfigure swaps the clock and timeout settings (used on hot-reload).
// QueueDepth changes take effect only on restart.
func (e *Engine) Reconfigure(conf config.EngineConf) {
	config.ApplyDefaults(&conf)
	e.conf.Store(&conf)
	select {
	case e.reconf <- struct{}{}:
	default:
	}
}

// Submit enqueues a command for background application.
func (e *Engine) Submit(cmd *command.Command) error {
	if err := cmd.Prepare(); err != nil {
		return err
	}
	return e.enqueue(&work{cmd: cmd})
}

// Do enqueues a command and waits for its result.
func (e *Engine) Do(ctx context.Context, cmd *command.Command) (*Result, error) {
	if err := cmd.Prepare(); err != nil {
		return nil, err
	}
	w := &work{cmd: cmd, resultC: make(chan *Result, 1)}
	if err := e.enqueue(w); err != nil {
		return nil, err
	}
	timeout := time.Duration(e.conf.Load().CommandTimeoutMs) * time.Millisecond
	select {
	case res := <-w.resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("command %s: timeout after %v", cmd.ID, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inspect runs fn on the engine goroutine, between commands, and waits for it.
func (e *Engine) Inspect(ctx context.Context, fn func(*graph.Manager, *driver.Driver)) error {
	w := &work{inspect: fn, resultC: make(chan *Result, 1)}
	if err := e.enqueue(w); err != nil {
		return err
	}
	timeout := time.Duration(e.conf.Load().CommandTimeoutMs) * time.Millisecond
	select {
	case res := <-w.resultC:
		return res.Err
	case <-time.After(timeout):
		return fmt.Errorf("inspect: timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueue(w *work) error {
	if !e.queue.Submit(w) {
		metrics.CommandsDropped.Inc()
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.queue.Cap())
	}
	if w.cmd != nil {
		metrics.CommandsEnqueued.Inc()
	}
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return nil
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.queue.Cap() == 0 {
		return 0
	}
	return float64(e.queue.Len()) / float64(e.queue.Cap())
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run applies commands and drives the frame clock until ctx is cancelled.
// With a frame clock, queued commands are drained before every tick; with
// manual_clock they are applied as they arrive and only tick commands advance
// animations. Commands still queued on exit fail with ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	if e.conf.Load().StrictOwnership {
		e.graph.Bind()
		defer e.graph.Unbind()
	}
	e.running.Store(true)
	defer e.running.Store(false)

	start := time.Now()
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	var tickC <-chan time.Time
	var cmdC <-chan *work
	reset := func() {
		conf := e.conf.Load()
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
		if conf.ManualClock || conf.FrameRate <= 0 {
			cmdC = e.queue.C()
			return
		}
		cmdC = nil
		ticker = time.NewTicker(time.Second / time.Duration(conf.FrameRate))
		tickC = ticker.C
	}
	reset()
	e.logger.Info("engine started", "frame_rate", e.conf.Load().FrameRate, "manual_clock", e.conf.Load().ManualClock)

	for {
		select {
		case <-ctx.Done():
			n := e.queue.Drain(e.reject)
			e.logger.Info("engine stopped", "rejected", n)
			return nil
		case <-e.reconf:
			reset()
			e.logger.Info("engine reconfigured", "frame_rate", e.conf.Load().FrameRate, "manual_clock", e.conf.Load().ManualClock)
		case w := <-cmdC:
			e.apply(w)
			e.queue.Drain(e.apply)
		case now := <-tickC:
			e.queue.Drain(e.apply)
			e.frame(now.Sub(start))
		}
		metrics.QueueUtilization.Set(e.QueueUtilization())
	}
}

func (e *Engine) frame(t time.Duration) {
	rep := e.driver.Tick(t)
	if err := rep.Err(); err != nil {
		e.logger.Debug("frame finished with node errors", "errors", len(rep.Errors()))
	}
	for _, ev := range e.driver.DrainEvents() {
		e.logger.Debug("animation ended", "animation", ev.AnimationID, "node", ev.NodeID, "finished", ev.Finished)
	}
}

func (e *Engine) reject(w *work) {
	if w.resultC == nil {
		return
	}
	res := &Result{Err: ErrStopped}
	if w.cmd != nil {
		res.CommandID, res.Kind = w.cmd.ID, w.cmd.Kind
	}
	w.resultC <- res
}

func (e *Engine) apply(w *work) {
	if w.inspect != nil {
		w.inspect(e.graph, e.driver)
		w.resultC <- &Result{}
		return
	}
	res := e.execute(w.cmd)
	status := "success"
	if res.Err != nil {
		status = "error"
		e.logger.Info("command failed", "command", w.cmd.ID, "kind", w.cmd.Kind, "node", w.cmd.NodeID, "err", res.Err)
	}
	metrics.CommandsApplied.WithLabelValues(string(w.cmd.Kind), status).Inc()
	if w.resultC != nil {
		w.resultC <- res
	}
}

func (e *Engine) execute(cmd *command.Command) *Result {
	res := &Result{CommandID: cmd.ID, Kind: cmd.Kind}
	m, d := e.graph, e.driver
	switch cmd.Kind {
	case command.KindCreateNode:
		res.Err = m.CreateNode(cmd.Node)
	case command.KindDestroyNode:
		d.StopNode(cmd.NodeID)
		res.Err = m.DestroyNode(cmd.NodeID)
	case command.KindConnectProps:
		res.Err = m.ConnectProps(cmd.NodeID, view.Handle(cmd.View), cmd.ViewType)
	case command.KindDisconnectProps:
		res.Err = m.DisconnectProps(cmd.NodeID, view.Handle(cmd.View))
	case command.KindRestoreDefaults:
		res.Err = m.RestoreDefaults(cmd.NodeID)
	case command.KindTick:
		res.Report = d.Tick(cmd.FrameTime())
		res.Events = d.DrainEvents()
	case command.KindSetValue:
		// An explicit value overrides whatever animation drives the node.
		d.StopNode(cmd.NodeID)
		res.Err = m.SetValue(cmd.NodeID, cmd.Value)
	case command.KindSetOffset:
		res.Err = m.SetOffset(cmd.NodeID, cmd.Value)
	case command.KindFlattenOffset:
		res.Err = m.FlattenOffset(cmd.NodeID)
	case command.KindExtractOffset:
		res.Err = m.ExtractOffset(cmd.NodeID)
	case command.KindStartAnimation:
		res.AnimationID, res.Err = d.Start(cmd.AnimationID, cmd.NodeID, cmd.Animation)
	case command.KindStopAnimation:
		res.Err = d.Stop(cmd.AnimationID)
	default:
		res.Err = fmt.Errorf("%w: unknown kind %q", command.ErrInvalidCommand, cmd.Kind)
	}
	return res
}
