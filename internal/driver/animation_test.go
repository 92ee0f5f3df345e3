package driver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
)

func TestTiming(t *testing.T) {
	cases := []struct {
		name     string
		def      config.AnimationDef
		elapsed  time.Duration
		want     float64
		wantDone bool
	}{
		{"start", config.AnimationDef{ToValue: 100, DurationMs: 1000, Easing: "linear"}, 0, 0, false},
		{"halfway", config.AnimationDef{ToValue: 100, DurationMs: 1000, Easing: "linear"}, 500 * time.Millisecond, 50, false},
		{"end", config.AnimationDef{ToValue: 100, DurationMs: 1000, Easing: "linear"}, time.Second, 100, true},
		{"past end", config.AnimationDef{ToValue: 100, DurationMs: 1000, Easing: "linear"}, 3 * time.Second, 100, true},
		{"in delay", config.AnimationDef{ToValue: 100, DurationMs: 1000, DelayMs: 200, Easing: "linear"}, 100 * time.Millisecond, 0, false},
		{"after delay", config.AnimationDef{ToValue: 100, DurationMs: 1000, DelayMs: 200, Easing: "linear"}, 700 * time.Millisecond, 50, false},
		{"second iteration", config.AnimationDef{ToValue: 100, DurationMs: 1000, Iterations: 2, Easing: "linear"}, 1500 * time.Millisecond, 50, false},
		{"iterations exhausted", config.AnimationDef{ToValue: 100, DurationMs: 1000, Iterations: 2, Easing: "linear"}, 2 * time.Second, 100, true},
		{"forever", config.AnimationDef{ToValue: 100, DurationMs: 1000, Iterations: -1, Easing: "linear"}, 10250 * time.Millisecond, 25, false},
		{"zero duration", config.AnimationDef{ToValue: 7}, 0, 7, true},
		{"default easing is symmetric", config.AnimationDef{ToValue: 100, DurationMs: 1000}, 500 * time.Millisecond, 50, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.def.Type = "timing"
			a, err := New(&tc.def, 0)
			require.NoError(t, err)
			got, done := a.Step(tc.elapsed)
			assert.InDelta(t, tc.want, got, 1e-3)
			assert.Equal(t, tc.wantDone, done)
		})
	}
}

func TestTiming_EasedCurveStaysInBounds(t *testing.T) {
	a, err := New(&config.AnimationDef{Type: "timing", ToValue: 1, DurationMs: 300, Easing: "cubic_out"}, 0)
	require.NoError(t, err)
	prev := 0.0
	for ms := 0; ms < 300; ms += 16 {
		v, done := a.Step(time.Duration(ms) * time.Millisecond)
		require.False(t, done)
		assert.GreaterOrEqual(t, v, prev)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
}

func TestDecay(t *testing.T) {
	a, err := New(&config.AnimationDef{Type: "decay", Velocity: 1, Deceleration: 0.998}, 10)
	require.NoError(t, err)

	v, done := a.Step(0)
	assert.Equal(t, 10.0, v)
	assert.False(t, done)

	v, done = a.Step(100 * time.Millisecond)
	assert.Greater(t, v, 10.0)
	assert.False(t, done)

	v, _ = a.Step(20 * time.Second)
	assert.InDelta(t, 510, v, 0.1)
	_, done = a.Step(20*time.Second + 16*time.Millisecond)
	assert.True(t, done)
}

func TestSpring(t *testing.T) {
	t.Run("settles on target", func(t *testing.T) {
		a, err := New(&config.AnimationDef{Type: "spring", ToValue: 1}, 0)
		require.NoError(t, err)
		v, done := a.Step(0)
		assert.InDelta(t, 0, v, 1e-9)
		assert.False(t, done)

		v, done = a.Step(10 * time.Second)
		assert.True(t, done)
		assert.Equal(t, 1.0, v)
	})

	t.Run("underdamped overshoots", func(t *testing.T) {
		a, err := New(&config.AnimationDef{Type: "spring", ToValue: 1, Stiffness: 100, Damping: 10}, 0)
		require.NoError(t, err)
		peak := 0.0
		for ms := 0; ms < 1000; ms += 16 {
			v, _ := a.Step(time.Duration(ms) * time.Millisecond)
			peak = max(peak, v)
		}
		assert.Greater(t, peak, 1.0)
	})

	t.Run("overshoot clamping stops at target", func(t *testing.T) {
		a, err := New(&config.AnimationDef{Type: "spring", ToValue: 1, OvershootClamping: true}, 0)
		require.NoError(t, err)
		var v float64
		done := false
		for ms := 0; ms < 2000 && !done; ms += 16 {
			v, done = a.Step(time.Duration(ms) * time.Millisecond)
			if !done {
				assert.LessOrEqual(t, v, 1.0)
			}
		}
		assert.True(t, done)
		assert.Equal(t, 1.0, v)
	})

	t.Run("critically damped", func(t *testing.T) {
		a, err := New(&config.AnimationDef{Type: "spring", ToValue: 1, Stiffness: 100, Damping: 20}, 0)
		require.NoError(t, err)
		for ms := 0; ms < 1000; ms += 16 {
			v, _ := a.Step(time.Duration(ms) * time.Millisecond)
			assert.LessOrEqual(t, v, 1.0+1e-9)
		}
	})

	t.Run("overdamped follows its equation of motion", func(t *testing.T) {
		// omega0 = 10, zeta = 2.
		const k, c = 100.0, 40.0
		a, err := New(&config.AnimationDef{Type: "spring", ToValue: 1, Stiffness: k, Damping: c}, 0)
		require.NoError(t, err)

		disp := func(ms float64) float64 {
			v, done := a.Step(time.Duration(ms * float64(time.Millisecond)))
			require.False(t, done)
			return 1 - v
		}
		const h = 1.0 // ms
		for _, ms := range []float64{50, 100, 300} {
			x := disp(ms)
			dx := (disp(ms+h) - disp(ms-h)) / (2 * h / 1000)
			ddx := (disp(ms+h) - 2*x + disp(ms-h)) / ((h / 1000) * (h / 1000))
			assert.InDelta(t, 0, ddx+c*dx+k*x, 0.05*k*x, "t=%vms", ms)
		}

		prev := 0.0
		for ms := 0; ms < 3000; ms += 16 {
			v, done := a.Step(time.Duration(ms) * time.Millisecond)
			if done {
				break
			}
			assert.GreaterOrEqual(t, v, prev, "monotonic approach")
			assert.LessOrEqual(t, v, 1.0)
			prev = v
		}
	})
}

func TestFrames(t *testing.T) {
	a, err := New(&config.AnimationDef{Type: "frames", ToValue: 10, Frames: []float64{0, 0.5, 1}}, 0)
	require.NoError(t, err)

	v, done := a.Step(0)
	assert.Equal(t, 0.0, v)
	assert.False(t, done)

	v, _ = a.Step(frameDuration)
	assert.InDelta(t, 5, v, 1e-6)

	v, _ = a.Step(frameDuration + frameDuration/2)
	assert.InDelta(t, 7.5, v, 1e-6)

	v, done = a.Step(3 * frameDuration)
	assert.Equal(t, 10.0, v)
	assert.True(t, done)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&config.AnimationDef{Type: "gravity"}, 0)
	assert.True(t, errors.Is(err, ErrUnknownAnimation))

	bad := []config.AnimationDef{
		{Type: "timing", Easing: "wobble"},
		{Type: "timing", DurationMs: -1},
		{Type: "decay", Deceleration: 1.5},
		{Type: "spring", Mass: -1},
		{Type: "frames"},
	}
	for _, def := range bad {
		_, err := New(&def, 0)
		assert.Error(t, err, "%+v", def)
	}
}
