package graph

import (
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/animgraph/internal/expr"
)

// NodeID is the caller-assigned handle of a node, unique among live nodes.
type NodeID = int64

// Kind discriminates the node variants.
type Kind string

const (
	KindValue          Kind = "value"
	KindAddition       Kind = "addition"
	KindSubtraction    Kind = "subtraction"
	KindMultiplication Kind = "multiplication"
	KindDivision       Kind = "division"
	KindModulus        Kind = "modulus"
	KindDiffClamp      Kind = "diffclamp"
	KindInterpolation  Kind = "interpolation"
	KindFormula        Kind = "formula"
	KindStyle          Kind = "style"
	KindTransform      Kind = "transform"
	KindProps          Kind = "props"
)

// Node is the common interface for all graph nodes. The set of variants is closed:
// evaluate is unexported, so only this package can implement it.
type Node interface {
	ID() NodeID
	Kind() Kind
	// Inputs lists the nodes this node reads, in a stable order.
	Inputs() []NodeID
	// Output is the value computed by the last evaluation: float64 for scalar
	// nodes, map[string]any for style, []map[string]any for transform.
	Output() any
	evaluate(r reader) error
}

// reader gives a node access to upstream outputs during a pass.
type reader interface {
	output(id NodeID) (any, error)
	Node(id NodeID) (Node, bool)
}

func scalar(r reader, id NodeID) (float64, error) {
	out, err := r.output(id)
	if err != nil {
		return 0, err
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("node %d output is %T, not a number", id, out)
	}
	return f, nil
}

func sortedIDs(m map[string]NodeID) []NodeID {
	keys := sortedKeys(m)
	out := make([]NodeID, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------
// ValueNode
// -----------------------------------------------------------------------

// ValueNode is a source node holding a scalar and an offset. Animations write
// its value; its output is value + offset.
type ValueNode struct {
	id     NodeID
	value  float64
	offset float64
}

func NewValueNode(id NodeID, value, offset float64) *ValueNode {
	return &ValueNode{id: id, value: value, offset: offset}
}

func (n *ValueNode) ID() NodeID       { return n.id }
func (n *ValueNode) Kind() Kind       { return KindValue }
func (n *ValueNode) Inputs() []NodeID { return nil }
func (n *ValueNode) Output() any      { return n.value + n.offset }
func (n *ValueNode) Value() float64   { return n.value }
func (n *ValueNode) Offset() float64  { return n.offset }

func (n *ValueNode) evaluate(reader) error { return nil }

func (n *ValueNode) setValue(v float64)  { n.value = v }
func (n *ValueNode) setOffset(v float64) { n.offset = v }

// flattenOffset merges the offset into the value.
func (n *ValueNode) flattenOffset() {
	n.value += n.offset
	n.offset = 0
}

// extractOffset moves the value into the offset, leaving the output unchanged.
func (n *ValueNode) extractOffset() {
	n.offset += n.value
	n.value = 0
}

// -----------------------------------------------------------------------
// Arithmetic nodes
// -----------------------------------------------------------------------

// ArithmeticNode folds its inputs with one of + - * /.
type ArithmeticNode struct {
	id    NodeID
	kind  Kind
	input []NodeID
	out   float64
}

func NewArithmeticNode(id NodeID, kind Kind, input []NodeID) *ArithmeticNode {
	return &ArithmeticNode{id: id, kind: kind, input: append([]NodeID(nil), input...)}
}

func (n *ArithmeticNode) ID() NodeID       { return n.id }
func (n *ArithmeticNode) Kind() Kind       { return n.kind }
func (n *ArithmeticNode) Inputs() []NodeID { return n.input }
func (n *ArithmeticNode) Output() any      { return n.out }

func (n *ArithmeticNode) evaluate(r reader) error {
	acc, err := scalar(r, n.input[0])
	if err != nil {
		return err
	}
	for _, id := range n.input[1:] {
		v, err := scalar(r, id)
		if err != nil {
			return err
		}
		switch n.kind {
		case KindAddition:
			acc += v
		case KindSubtraction:
			acc -= v
		case KindMultiplication:
			acc *= v
		case KindDivision:
			if v == 0 {
				return fmt.Errorf("division by zero (input %d)", id)
			}
			acc /= v
		}
	}
	n.out = acc
	return nil
}

// -----------------------------------------------------------------------
// ModulusNode
// -----------------------------------------------------------------------

// ModulusNode wraps its input into [0, modulus).
type ModulusNode struct {
	id      NodeID
	input   NodeID
	modulus float64
	out     float64
}

func (n *ModulusNode) ID() NodeID       { return n.id }
func (n *ModulusNode) Kind() Kind       { return KindModulus }
func (n *ModulusNode) Inputs() []NodeID { return []NodeID{n.input} }
func (n *ModulusNode) Output() any      { return n.out }

func (n *ModulusNode) evaluate(r reader) error {
	v, err := scalar(r, n.input)
	if err != nil {
		return err
	}
	n.out = expr.FloorMod(v, n.modulus)
	return nil
}

// -----------------------------------------------------------------------
// DiffClampNode
// -----------------------------------------------------------------------

// DiffClampNode accumulates the change of its input and clamps the running
// total to [min, max]. Used for collapsible headers driven by scroll offsets.
type DiffClampNode struct {
	id       NodeID
	input    NodeID
	min, max float64
	last     float64
	out      float64
}

func (n *DiffClampNode) ID() NodeID       { return n.id }
func (n *DiffClampNode) Kind() Kind       { return KindDiffClamp }
func (n *DiffClampNode) Inputs() []NodeID { return []NodeID{n.input} }
func (n *DiffClampNode) Output() any      { return n.out }

func (n *DiffClampNode) evaluate(r reader) error {
	v, err := scalar(r, n.input)
	if err != nil {
		return err
	}
	diff := v - n.last
	n.last = v
	n.out = min(max(n.out+diff, n.min), n.max)
	return nil
}

// -----------------------------------------------------------------------
// InterpolationNode
// -----------------------------------------------------------------------

// Extrapolation modes for values outside the input range.
const (
	ExtrapolateExtend   = "extend"
	ExtrapolateClamp    = "clamp"
	ExtrapolateIdentity = "identity"
)

// InterpolationNode maps its input through a piecewise-linear range.
type InterpolationNode struct {
	id               NodeID
	input            NodeID
	inputRange       []float64
	outputRange      []float64
	extrapolateLeft  string
	extrapolateRight string
	out              float64
}

func (n *InterpolationNode) ID() NodeID       { return n.id }
func (n *InterpolationNode) Kind() Kind       { return KindInterpolation }
func (n *InterpolationNode) Inputs() []NodeID { return []NodeID{n.input} }
func (n *InterpolationNode) Output() any      { return n.out }

func (n *InterpolationNode) evaluate(r reader) error {
	v, err := scalar(r, n.input)
	if err != nil {
		return err
	}
	n.out = Interpolate(v, n.inputRange, n.outputRange, n.extrapolateLeft, n.extrapolateRight)
	return nil
}

// Interpolate maps v through the segment of inputRange that contains it.
// Ranges must have equal length >= 2 with inputRange non-decreasing.
func Interpolate(v float64, inputRange, outputRange []float64, left, right string) float64 {
	i := findRange(v, inputRange)
	return interpolateSegment(v, inputRange[i], inputRange[i+1], outputRange[i], outputRange[i+1], left, right)
}

func findRange(v float64, inputRange []float64) int {
	i := 1
	for ; i < len(inputRange)-1; i++ {
		if inputRange[i] >= v {
			break
		}
	}
	return i - 1
}

func interpolateSegment(v, inMin, inMax, outMin, outMax float64, left, right string) float64 {
	if v < inMin {
		switch left {
		case ExtrapolateIdentity:
			return v
		case ExtrapolateClamp:
			v = inMin
		}
	}
	if v > inMax {
		switch right {
		case ExtrapolateIdentity:
			return v
		case ExtrapolateClamp:
			v = inMax
		}
	}
	if outMin == outMax {
		return outMin
	}
	if inMin == inMax {
		if v <= inMin {
			return outMin
		}
		return outMax
	}
	return outMin + (outMax-outMin)*(v-inMin)/(inMax-inMin)
}

// -----------------------------------------------------------------------
// FormulaNode
// -----------------------------------------------------------------------

// FormulaNode evaluates an arithmetic expression over named upstream outputs.
type FormulaNode struct {
	id       NodeID
	source   string
	ast      expr.Expr // compiled once at creation
	bindings map[string]NodeID
	out      float64
}

func (n *FormulaNode) ID() NodeID         { return n.id }
func (n *FormulaNode) Kind() Kind         { return KindFormula }
func (n *FormulaNode) Inputs() []NodeID   { return sortedIDs(n.bindings) }
func (n *FormulaNode) Output() any        { return n.out }
func (n *FormulaNode) Expression() string { return n.source }

func (n *FormulaNode) evaluate(r reader) error {
	res := &bindingResolver{r: r, bindings: n.bindings}
	v, err := expr.Evaluate(n.ast, res)
	if res.err != nil {
		return res.err
	}
	if err != nil {
		return fmt.Errorf("formula %q: %w", n.source, err)
	}
	n.out = v
	return nil
}

// bindingResolver adapts graph outputs to expr.Resolver and keeps the first
// structural error, which expr would otherwise flatten into "not found".
type bindingResolver struct {
	r        reader
	bindings map[string]NodeID
	err      error
}

func (b *bindingResolver) Resolve(name string) (float64, bool) {
	id, ok := b.bindings[name]
	if !ok {
		return 0, false
	}
	v, err := scalar(b.r, id)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return 0, false
	}
	return v, true
}

// -----------------------------------------------------------------------
// StyleNode
// -----------------------------------------------------------------------

// StyleNode groups several upstream outputs into one property map.
type StyleNode struct {
	id    NodeID
	style map[string]NodeID
	out   map[string]any
}

func (n *StyleNode) ID() NodeID       { return n.id }
func (n *StyleNode) Kind() Kind       { return KindStyle }
func (n *StyleNode) Inputs() []NodeID { return sortedIDs(n.style) }
func (n *StyleNode) Output() any      { return n.out }

// Keys returns the property names the style produces, sorted.
func (n *StyleNode) Keys() []string { return sortedKeys(n.style) }

func (n *StyleNode) evaluate(r reader) error {
	out := make(map[string]any, len(n.style))
	for _, name := range sortedKeys(n.style) {
		v, err := r.output(n.style[name])
		if err != nil {
			return fmt.Errorf("style %q: %w", name, err)
		}
		out[name] = v
	}
	n.out = out
	return nil
}

// -----------------------------------------------------------------------
// TransformNode
// -----------------------------------------------------------------------

type transformEntry struct {
	property string
	node     NodeID
	animated bool
	value    float64
}

// TransformNode produces an ordered transform list such as
// [{"translateX": 10}, {"scale": 1.5}]; entries are animated or static.
type TransformNode struct {
	id      NodeID
	entries []transformEntry
	out     []map[string]any
}

func (n *TransformNode) ID() NodeID  { return n.id }
func (n *TransformNode) Kind() Kind  { return KindTransform }
func (n *TransformNode) Output() any { return n.out }

func (n *TransformNode) Inputs() []NodeID {
	var ids []NodeID
	for _, e := range n.entries {
		if e.animated {
			ids = append(ids, e.node)
		}
	}
	return ids
}

func (n *TransformNode) evaluate(r reader) error {
	out := make([]map[string]any, 0, len(n.entries))
	for _, e := range n.entries {
		v := e.value
		if e.animated {
			var err error
			if v, err = scalar(r, e.node); err != nil {
				return fmt.Errorf("transform %q: %w", e.property, err)
			}
		}
		out = append(out, map[string]any{e.property: v})
	}
	n.out = out
	return nil
}
