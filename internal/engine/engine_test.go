package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/animgraph/internal/command"
	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/driver"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

const viewA = 42

func newEngine(conf config.EngineConf) (*Engine, *graph.Manager, *view.Memory) {
	layer := view.NewMemory()
	layer.Mount(viewA, "RCTView", view.Props{"opacity": 1.0})
	m := graph.NewManager(layer)
	return New(m, driver.NewDriver(m, nil), conf, nil), m, layer
}

// start runs e until the test ends.
func start(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, e.Running, time.Second, time.Millisecond)
}

func do(t *testing.T, e *Engine, cmd *command.Command) *Result {
	t.Helper()
	res, err := e.Do(context.Background(), cmd)
	require.NoError(t, err)
	return res
}

func opacity(t *testing.T, layer *view.Memory) any {
	t.Helper()
	_, p, ok := layer.Snapshot(viewA)
	require.True(t, ok)
	return p["opacity"]
}

func setup(t *testing.T, e *Engine) {
	t.Helper()
	for _, cmd := range []*command.Command{
		command.CreateNode(&config.NodeDef{ID: 1, Type: "value"}),
		command.CreateNode(&config.NodeDef{ID: 2, Type: "props", Props: map[string]int64{"opacity": 1}}),
		command.ConnectProps(2, viewA, "RCTView"),
	} {
		require.NoError(t, do(t, e, cmd).Err)
	}
}

func TestEngine_ManualClockLifecycle(t *testing.T) {
	e, _, layer := newEngine(config.EngineConf{ManualClock: true, StrictOwnership: true})
	start(t, e)
	setup(t, e)

	require.NoError(t, do(t, e, &command.Command{Kind: command.KindSetValue, NodeID: 1, Value: 0.5}).Err)
	assert.Equal(t, 1.0, opacity(t, layer), "nothing commits before a tick")

	res := do(t, e, command.Tick(16*time.Millisecond))
	require.NoError(t, res.Err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, res.Report.Committed)
	assert.Equal(t, 0.5, opacity(t, layer))

	require.NoError(t, do(t, e, command.RestoreDefaults(2)).Err)
	assert.Equal(t, 1.0, opacity(t, layer))

	require.NoError(t, do(t, e, command.DisconnectProps(2, viewA)).Err)
	require.NoError(t, do(t, e, &command.Command{Kind: command.KindSetValue, NodeID: 1, Value: 0.1}).Err)
	do(t, e, command.Tick(32*time.Millisecond))
	assert.Equal(t, 1.0, opacity(t, layer))
}

func TestEngine_AnimationThroughTicks(t *testing.T) {
	e, _, layer := newEngine(config.EngineConf{ManualClock: true})
	start(t, e)
	setup(t, e)

	res := do(t, e, &command.Command{
		Kind:      command.KindStartAnimation,
		NodeID:    1,
		Animation: &config.AnimationDef{Type: "timing", ToValue: 1, DurationMs: 100, Easing: "linear"},
	})
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.AnimationID)

	do(t, e, command.Tick(0))
	do(t, e, command.Tick(50*time.Millisecond))
	assert.InDelta(t, 0.5, opacity(t, layer), 1e-6)

	res = do(t, e, command.Tick(100*time.Millisecond))
	assert.Equal(t, 1.0, opacity(t, layer))
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].Finished)
}

func TestEngine_CommandErrorsAreReported(t *testing.T) {
	e, m, _ := newEngine(config.EngineConf{ManualClock: true, StrictOwnership: true})
	start(t, e)
	setup(t, e)

	res := do(t, e, command.CreateNode(&config.NodeDef{ID: 3, Type: "addition", Input: []int64{9}}))
	assert.True(t, errors.Is(res.Err, graph.ErrUnknownNode))

	res = do(t, e, command.ConnectProps(2, 77, "RCTView"))
	assert.True(t, errors.Is(res.Err, view.ErrViewNotFound))

	res = do(t, e, &command.Command{Kind: command.KindStopAnimation, AnimationID: "nope"})
	assert.True(t, errors.Is(res.Err, driver.ErrUnknownAnimation))

	// The graph belongs to the engine goroutine.
	err := m.CreateNode(&config.NodeDef{ID: 5, Type: "value"})
	assert.True(t, errors.Is(err, graph.ErrWrongGoroutine))

	var ids []graph.NodeID
	require.NoError(t, e.Inspect(context.Background(), func(m *graph.Manager, _ *driver.Driver) {
		ids = m.IDs()
	}))
	assert.Equal(t, []graph.NodeID{1, 2}, ids)
}

func TestEngine_SetValueStopsAnimation(t *testing.T) {
	e, _, layer := newEngine(config.EngineConf{ManualClock: true})
	start(t, e)
	setup(t, e)

	do(t, e, &command.Command{
		Kind:        command.KindStartAnimation,
		NodeID:      1,
		AnimationID: "fade",
		Animation:   &config.AnimationDef{Type: "timing", ToValue: 1, DurationMs: 100},
	})
	require.NoError(t, do(t, e, &command.Command{Kind: command.KindSetValue, NodeID: 1, Value: 0.3}).Err)
	res := do(t, e, command.Tick(0))
	assert.Equal(t, 0.3, opacity(t, layer))
	require.Len(t, res.Events, 1)
	assert.Equal(t, "fade", res.Events[0].AnimationID)
	assert.False(t, res.Events[0].Finished)
}

func TestEngine_FrameClock(t *testing.T) {
	e, _, layer := newEngine(config.EngineConf{FrameRate: 100})
	start(t, e)
	setup(t, e)

	res := do(t, e, &command.Command{
		Kind:      command.KindStartAnimation,
		NodeID:    1,
		Animation: &config.AnimationDef{Type: "timing", ToValue: 0.75, DurationMs: 30},
	})
	require.NoError(t, res.Err)
	assert.Eventually(t, func() bool {
		_, p, _ := layer.Snapshot(viewA)
		return p["opacity"] == 0.75
	}, 2*time.Second, 5*time.Millisecond)

	var active []string
	require.NoError(t, e.Inspect(context.Background(), func(_ *graph.Manager, d *driver.Driver) {
		active = d.Active()
	}))
	assert.Empty(t, active)
}

func TestEngine_Reconfigure(t *testing.T) {
	e, _, _ := newEngine(config.EngineConf{FrameRate: 1})
	start(t, e)

	e.Reconfigure(config.EngineConf{ManualClock: true, CommandTimeoutMs: 500})
	res, err := e.Do(context.Background(), command.CreateNode(&config.NodeDef{ID: 1, Type: "value"}))
	require.NoError(t, err, "manual clock applies commands without waiting for a frame")
	assert.NoError(t, res.Err)
}

func TestEngine_QueueFull(t *testing.T) {
	e, _, _ := newEngine(config.EngineConf{QueueDepth: 2})
	require.NoError(t, e.Submit(command.DestroyNode(1)))
	require.NoError(t, e.Submit(command.DestroyNode(2)))
	err := e.Submit(command.DestroyNode(3))
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 1.0, e.QueueUtilization())
}

func TestEngine_InvalidCommand(t *testing.T) {
	e, _, _ := newEngine(config.EngineConf{})
	err := e.Submit(&command.Command{Kind: command.KindConnectProps, NodeID: 1})
	assert.True(t, errors.Is(err, command.ErrInvalidCommand))
	assert.Equal(t, 0.0, e.QueueUtilization())
}

func TestEngine_PendingCommandsFailOnStop(t *testing.T) {
	e, _, _ := newEngine(config.EngineConf{FrameRate: 1})
	errc := make(chan error, 1)
	go func() {
		res, err := e.Do(context.Background(), command.DestroyNode(1))
		if err == nil {
			err = res.Err
		}
		errc <- err
	}()
	require.Eventually(t, func() bool { return e.QueueUtilization() > 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.True(t, errors.Is(<-errc, ErrStopped))
}
