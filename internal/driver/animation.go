package driver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
)

var ErrUnknownAnimation = errors.New("unknown animation")

// Animation computes a value node's value from the time elapsed since its first
// frame. done reports that value is final.
type Animation interface {
	Step(elapsed time.Duration) (value float64, done bool)
}

// frameDuration is the sampling interval of frames animations.
const frameDuration = time.Second / 60

var easings = map[string]ease.TweenFunc{
	"":            ease.InOutQuad,
	"linear":      ease.Linear,
	"ease_in":     ease.InQuad,
	"ease_out":    ease.OutQuad,
	"ease_in_out": ease.InOutQuad,
	"cubic_in":    ease.InCubic,
	"cubic_out":   ease.OutCubic,
	"cubic_inout": ease.InOutCubic,
	"sine_in":     ease.InSine,
	"sine_out":    ease.OutSine,
	"sine_inout":  ease.InOutSine,
	"bounce":      ease.OutBounce,
	"elastic":     ease.OutElastic,
}

// New builds an animation that starts at from.
func New(def *config.AnimationDef, from float64) (Animation, error) {
	switch def.Type {
	case "timing":
		return newTiming(def, from)
	case "decay":
		return newDecay(def, from)
	case "spring":
		return newSpring(def, from)
	case "frames":
		return newFrames(def, from)
	}
	return nil, fmt.Errorf("animation type %q: %w", def.Type, ErrUnknownAnimation)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("invalid animation: "+format, args...)
}

// -----------------------------------------------------------------------
// timing
// -----------------------------------------------------------------------

type timing struct {
	from, to   float64
	duration   time.Duration
	delay      time.Duration
	iterations int
	tween      *gween.Tween // eases progress from 0 to 1
}

func newTiming(def *config.AnimationDef, from float64) (*timing, error) {
	fn, ok := easings[def.Easing]
	if !ok {
		return nil, invalid("unknown easing %q", def.Easing)
	}
	if def.DurationMs < 0 || def.DelayMs < 0 {
		return nil, invalid("duration_ms and delay_ms must be non-negative")
	}
	t := &timing{
		from:       from,
		to:         def.ToValue,
		duration:   msToDuration(def.DurationMs),
		delay:      msToDuration(def.DelayMs),
		iterations: normalizeIterations(def.Iterations),
	}
	t.tween = gween.New(0, 1, float32(t.duration.Seconds()), fn)
	return t, nil
}

func (t *timing) Step(elapsed time.Duration) (float64, bool) {
	elapsed -= t.delay
	if elapsed < 0 {
		return t.from, false
	}
	if t.duration == 0 {
		return t.to, true
	}
	iter := int(elapsed / t.duration)
	if t.iterations > 0 && iter >= t.iterations {
		return t.to, true
	}
	local := elapsed - time.Duration(iter)*t.duration
	progress, _ := t.tween.Set(float32(local.Seconds()))
	return t.from + float64(progress)*(t.to-t.from), false
}

// -----------------------------------------------------------------------
// decay
// -----------------------------------------------------------------------

// decay slows an initial velocity (units per ms) down exponentially.
type decay struct {
	from         float64
	velocity     float64
	deceleration float64
	last         float64
}

func newDecay(def *config.AnimationDef, from float64) (*decay, error) {
	d := def.Deceleration
	if d == 0 {
		d = 0.998
	}
	if d <= 0 || d >= 1 {
		return nil, invalid("deceleration must be in (0, 1), got %v", d)
	}
	return &decay{from: from, velocity: def.Velocity, deceleration: d, last: from}, nil
}

func (d *decay) Step(elapsed time.Duration) (float64, bool) {
	ms := float64(elapsed) / float64(time.Millisecond)
	k := 1 - d.deceleration
	v := d.from + d.velocity/k*(1-math.Exp(-k*ms))
	done := elapsed > 0 && math.Abs(v-d.last) < 0.1
	d.last = v
	return v, done
}

// -----------------------------------------------------------------------
// spring
// -----------------------------------------------------------------------

// spring is a damped harmonic oscillator solved in closed form.
type spring struct {
	from, to          float64
	velocity          float64 // initial, units per second
	stiffness         float64
	damping           float64
	mass              float64
	overshootClamping bool
	restDisplacement  float64
	restSpeed         float64
}

func newSpring(def *config.AnimationDef, from float64) (*spring, error) {
	s := &spring{
		from:              from,
		to:                def.ToValue,
		velocity:          def.Velocity,
		stiffness:         orDefault(def.Stiffness, 100),
		damping:           orDefault(def.Damping, 10),
		mass:              orDefault(def.Mass, 1),
		overshootClamping: def.OvershootClamping,
		restDisplacement:  orDefault(def.RestDisplacementThreshold, 0.001),
		restSpeed:         orDefault(def.RestSpeedThreshold, 0.001),
	}
	if s.stiffness < 0 || s.damping < 0 || s.mass <= 0 {
		return nil, invalid("stiffness and damping must be non-negative and mass positive")
	}
	return s, nil
}

func (s *spring) Step(elapsed time.Duration) (float64, bool) {
	if s.stiffness == 0 {
		return s.to, true
	}
	t := elapsed.Seconds()
	x0 := s.to - s.from
	v0 := -s.velocity
	omega0 := math.Sqrt(s.stiffness / s.mass)
	zeta := s.damping / (2 * math.Sqrt(s.stiffness*s.mass))

	var pos, vel float64
	if zeta < 1 {
		omega1 := omega0 * math.Sqrt(1-zeta*zeta)
		env := math.Exp(-zeta * omega0 * t)
		a := (v0 + zeta*omega0*x0) / omega1
		sin, cos := math.Sin(omega1*t), math.Cos(omega1*t)
		pos = s.to - env*(a*sin+x0*cos)
		vel = zeta*omega0*env*(a*sin+x0*cos) - env*(a*omega1*cos-omega1*x0*sin)
	} else if zeta == 1 {
		env := math.Exp(-omega0 * t)
		pos = s.to - env*(x0+(v0+omega0*x0)*t)
		vel = env * (v0*(t*omega0-1) + t*x0*omega0*omega0)
	} else {
		// Overdamped: two real decay rates, no oscillation.
		root := omega0 * math.Sqrt(zeta*zeta-1)
		r1, r2 := -zeta*omega0+root, -zeta*omega0-root
		c1 := (v0 - r2*x0) / (r1 - r2)
		c2 := x0 - c1
		e1, e2 := math.Exp(r1*t), math.Exp(r2*t)
		pos = s.to - (c1*e1 + c2*e2)
		vel = c1*r1*e1 + c2*r2*e2
	}

	overshoot := s.overshootClamping &&
		((s.from < s.to && pos > s.to) || (s.from > s.to && pos < s.to))
	resting := math.Abs(vel) <= s.restSpeed && math.Abs(s.to-pos) <= s.restDisplacement
	if overshoot || (elapsed > 0 && resting) {
		return s.to, true
	}
	return pos, false
}

// -----------------------------------------------------------------------
// frames
// -----------------------------------------------------------------------

// frames plays back progress samples taken at 60 fps, mapped onto from..to.
type frames struct {
	from, to   float64
	samples    []float64
	iterations int
}

func newFrames(def *config.AnimationDef, from float64) (*frames, error) {
	if len(def.Frames) == 0 {
		return nil, invalid("frames must not be empty")
	}
	return &frames{
		from:       from,
		to:         def.ToValue,
		samples:    append([]float64(nil), def.Frames...),
		iterations: normalizeIterations(def.Iterations),
	}, nil
}

func (f *frames) Step(elapsed time.Duration) (float64, bool) {
	length := time.Duration(len(f.samples)) * frameDuration
	iter := int(elapsed / length)
	if f.iterations > 0 && iter >= f.iterations {
		return f.to, true
	}
	local := elapsed - time.Duration(iter)*length
	i := int(local / frameDuration)
	frac := float64(local-time.Duration(i)*frameDuration) / float64(frameDuration)
	p := f.samples[i]
	if i+1 < len(f.samples) {
		p += (f.samples[i+1] - p) * frac
	}
	return f.from + p*(f.to-f.from), false
}

func normalizeIterations(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
