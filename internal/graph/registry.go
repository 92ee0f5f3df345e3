package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/expr"
)

// Factory builds a node of one kind from its definition. It validates the
// definition's shape; reference checks are the Manager's job.
type Factory func(id NodeID, def *config.NodeDef) (Node, error)

// Registry maps node kinds to their factories.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// DefaultRegistry returns a Registry with every built-in node kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindValue, newValue)
	for _, k := range []Kind{KindAddition, KindSubtraction, KindMultiplication, KindDivision} {
		r.Register(k, newArithmetic(k))
	}
	r.Register(KindModulus, newModulus)
	r.Register(KindDiffClamp, newDiffClamp)
	r.Register(KindInterpolation, newInterpolation)
	r.Register(KindFormula, newFormula)
	r.Register(KindStyle, newStyle)
	r.Register(KindTransform, newTransform)
	r.Register(KindProps, newProps)
	return r
}

// Register adds a factory. Panics on duplicate kind to surface misconfiguration early.
func (r *Registry) Register(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("node registry: duplicate kind %q", kind))
	}
	r.factories[kind] = f
}

// Get returns the factory for the given kind.
func (r *Registry) Get(kind Kind) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, invalidf("no factory registered for node type %q", kind)
	}
	return f, nil
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// -----------------------------------------------------------------------
// Built-in factories
// -----------------------------------------------------------------------

func newValue(id NodeID, def *config.NodeDef) (Node, error) {
	return NewValueNode(id, def.Value, def.Offset), nil
}

func newArithmetic(kind Kind) Factory {
	return func(id NodeID, def *config.NodeDef) (Node, error) {
		if len(def.Input) == 0 {
			return nil, invalidf("%s node needs at least one input", kind)
		}
		return NewArithmeticNode(id, kind, def.Input), nil
	}
}

func newModulus(id NodeID, def *config.NodeDef) (Node, error) {
	if len(def.Input) != 1 {
		return nil, invalidf("modulus node needs exactly one input, got %d", len(def.Input))
	}
	if def.Modulus == 0 {
		return nil, invalidf("modulus must not be zero")
	}
	return &ModulusNode{id: id, input: def.Input[0], modulus: def.Modulus}, nil
}

func newDiffClamp(id NodeID, def *config.NodeDef) (Node, error) {
	if len(def.Input) != 1 {
		return nil, invalidf("diffclamp node needs exactly one input, got %d", len(def.Input))
	}
	if def.Min > def.Max {
		return nil, invalidf("diffclamp min %v exceeds max %v", def.Min, def.Max)
	}
	return &DiffClampNode{id: id, input: def.Input[0], min: def.Min, max: def.Max}, nil
}

func newInterpolation(id NodeID, def *config.NodeDef) (Node, error) {
	if len(def.Input) != 1 {
		return nil, invalidf("interpolation node needs exactly one input, got %d", len(def.Input))
	}
	in, out := def.InputRange, def.OutputRange
	if len(in) < 2 || len(in) != len(out) {
		return nil, invalidf("input_range and output_range must have the same length >= 2 (got %d and %d)", len(in), len(out))
	}
	for i := 1; i < len(in); i++ {
		if in[i] < in[i-1] {
			return nil, invalidf("input_range must be non-decreasing, %v follows %v", in[i], in[i-1])
		}
	}
	left, err := extrapolation(def.ExtrapolateLeft)
	if err != nil {
		return nil, err
	}
	right, err := extrapolation(def.ExtrapolateRight)
	if err != nil {
		return nil, err
	}
	return &InterpolationNode{
		id:               id,
		input:            def.Input[0],
		inputRange:       append([]float64(nil), in...),
		outputRange:      append([]float64(nil), out...),
		extrapolateLeft:  left,
		extrapolateRight: right,
	}, nil
}

func extrapolation(mode string) (string, error) {
	switch mode {
	case "":
		return ExtrapolateExtend, nil
	case ExtrapolateExtend, ExtrapolateClamp, ExtrapolateIdentity:
		return mode, nil
	}
	return "", invalidf("unknown extrapolation %q", mode)
}

func newFormula(id NodeID, def *config.NodeDef) (Node, error) {
	ast, err := expr.Parse(def.Expression)
	if err != nil {
		return nil, invalidf("expression %q: %v", def.Expression, err)
	}
	for _, name := range expr.Refs(ast) {
		if _, ok := def.Bindings[name]; !ok {
			return nil, invalidf("expression %q reads unbound name %q", def.Expression, name)
		}
	}
	bindings := make(map[string]NodeID, len(def.Bindings))
	for k, v := range def.Bindings {
		bindings[k] = v
	}
	return &FormulaNode{id: id, source: def.Expression, ast: ast, bindings: bindings}, nil
}

func newStyle(id NodeID, def *config.NodeDef) (Node, error) {
	style := make(map[string]NodeID, len(def.Style))
	for k, v := range def.Style {
		style[k] = v
	}
	return &StyleNode{id: id, style: style}, nil
}

func newTransform(id NodeID, def *config.NodeDef) (Node, error) {
	entries := make([]transformEntry, 0, len(def.Transforms))
	for i, tr := range def.Transforms {
		if tr.Property == "" {
			return nil, invalidf("transforms[%d]: property is required", i)
		}
		switch {
		case tr.NodeID != nil && tr.Value != nil:
			return nil, invalidf("transforms[%d]: only one of node_id/value may be set", i)
		case tr.NodeID != nil:
			entries = append(entries, transformEntry{property: tr.Property, node: *tr.NodeID, animated: true})
		case tr.Value != nil:
			entries = append(entries, transformEntry{property: tr.Property, value: *tr.Value})
		default:
			return nil, invalidf("transforms[%d]: one of node_id/value must be set", i)
		}
	}
	return &TransformNode{id: id, entries: entries}, nil
}

func newProps(id NodeID, def *config.NodeDef) (Node, error) {
	props := make(map[string]NodeID, len(def.Props))
	for k, v := range def.Props {
		if k == "" {
			return nil, invalidf("props: empty property name")
		}
		props[k] = v
	}
	return &PropsNode{id: id, props: props}, nil
}
