package config

import "sort"

// SceneConfig is the top-level YAML structure.
type SceneConfig struct {
	Version  string       `yaml:"version"`
	Engine   EngineConf   `yaml:"engine"`
	Views    []ViewDef    `yaml:"views"`
	Nodes    []NodeDef    `yaml:"nodes"`
	Bindings []BindingDef `yaml:"bindings"`
}

// EngineConf holds the engine's tunables.
type EngineConf struct {
	FrameRate        int    `yaml:"frame_rate"`   // clock ticks per second
	ManualClock      bool   `yaml:"manual_clock"` // only explicit tick commands advance time
	QueueDepth       int    `yaml:"queue_depth"`
	CommandTimeoutMs int    `yaml:"command_timeout_ms"`
	StrictOwnership  bool   `yaml:"strict_ownership"`
	LogLevel         string `yaml:"log_level"`
}

// ViewDef seeds a view in the in-memory view layer.
type ViewDef struct {
	Handle int64          `yaml:"handle"`
	Type   string         `yaml:"type"`
	Props  map[string]any `yaml:"props"`
}

// NodeDef describes one animated node. Which fields apply depends on Type.
// It doubles as the create_node command payload.
type NodeDef struct {
	ID   int64  `yaml:"id" json:"id"`
	Type string `yaml:"type" json:"type"`

	// value
	Value  float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Offset float64 `yaml:"offset,omitempty" json:"offset,omitempty"`

	// addition, subtraction, multiplication, division, modulus, diffclamp, interpolation
	Input   []int64 `yaml:"input,omitempty" json:"input,omitempty"`
	Modulus float64 `yaml:"modulus,omitempty" json:"modulus,omitempty"`
	Min     float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// interpolation
	InputRange       []float64 `yaml:"input_range,omitempty" json:"input_range,omitempty"`
	OutputRange      []float64 `yaml:"output_range,omitempty" json:"output_range,omitempty"`
	ExtrapolateLeft  string    `yaml:"extrapolate_left,omitempty" json:"extrapolate_left,omitempty"`
	ExtrapolateRight string    `yaml:"extrapolate_right,omitempty" json:"extrapolate_right,omitempty"`

	// formula
	Expression string           `yaml:"expression,omitempty" json:"expression,omitempty"`
	Bindings   map[string]int64 `yaml:"bindings,omitempty" json:"bindings,omitempty"`

	// style, transform, props
	Style      map[string]int64 `yaml:"style,omitempty" json:"style,omitempty"`
	Transforms []TransformDef   `yaml:"transforms,omitempty" json:"transforms,omitempty"`
	Props      map[string]int64 `yaml:"props,omitempty" json:"props,omitempty"`
}

// TransformDef is one entry of a transform node: either animated (NodeID) or static (Value).
type TransformDef struct {
	Property string   `yaml:"property" json:"property"`
	NodeID   *int64   `yaml:"node_id,omitempty" json:"node_id,omitempty"`
	Value    *float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// BindingDef connects a props node to a view at startup.
type BindingDef struct {
	Node     int64  `yaml:"node"`
	View     int64  `yaml:"view"`
	ViewType string `yaml:"view_type"`
}

// AnimationDef configures one animation run on a value node.
type AnimationDef struct {
	Type       string  `yaml:"type" json:"type"` // timing | decay | spring | frames
	ToValue    float64 `yaml:"to_value,omitempty" json:"to_value,omitempty"`
	Iterations int     `yaml:"iterations,omitempty" json:"iterations,omitempty"` // 0 or 1 = once, -1 = forever

	// timing
	DurationMs float64 `yaml:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	DelayMs    float64 `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	Easing     string  `yaml:"easing,omitempty" json:"easing,omitempty"`

	// decay, spring
	Velocity     float64 `yaml:"velocity,omitempty" json:"velocity,omitempty"`
	Deceleration float64 `yaml:"deceleration,omitempty" json:"deceleration,omitempty"`

	// spring
	Stiffness                 float64 `yaml:"stiffness,omitempty" json:"stiffness,omitempty"`
	Damping                   float64 `yaml:"damping,omitempty" json:"damping,omitempty"`
	Mass                      float64 `yaml:"mass,omitempty" json:"mass,omitempty"`
	OvershootClamping         bool    `yaml:"overshoot_clamping,omitempty" json:"overshoot_clamping,omitempty"`
	RestDisplacementThreshold float64 `yaml:"rest_displacement_threshold,omitempty" json:"rest_displacement_threshold,omitempty"`
	RestSpeedThreshold        float64 `yaml:"rest_speed_threshold,omitempty" json:"rest_speed_threshold,omitempty"`

	// frames
	Frames []float64 `yaml:"frames,omitempty" json:"frames,omitempty"`
}

// References returns every node id this definition reads from.
// Map-held references come out in key order so the result is stable.
func (d *NodeDef) References() []int64 {
	refs := append([]int64(nil), d.Input...)
	refs = append(refs, sortedValues(d.Bindings)...)
	refs = append(refs, sortedValues(d.Style)...)
	for _, tr := range d.Transforms {
		if tr.NodeID != nil {
			refs = append(refs, *tr.NodeID)
		}
	}
	refs = append(refs, sortedValues(d.Props)...)
	return refs
}

func sortedValues(m map[string]int64) []int64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
