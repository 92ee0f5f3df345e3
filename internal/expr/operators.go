package expr

import (
	"fmt"
	"math"
)

// Operator represents an arithmetic operator.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
	OpDiv Operator = "/"
	OpMod Operator = "%"
)

// arithmetic applies a binary operator to two operands.
func arithmetic(op Operator, left, right float64) (float64, error) {
	switch op {
	case OpAdd:
		return left + right, nil
	case OpSub:
		return left - right, nil
	case OpMul:
		return left * right, nil
	case OpDiv:
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return left / right, nil
	case OpMod:
		if right == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return FloorMod(left, right), nil
	default:
		return 0, fmt.Errorf("unknown operator: %s", op)
	}
}

// FloorMod returns a modulo whose sign follows the divisor, so negative inputs wrap.
func FloorMod(a, b float64) float64 {
	return math.Mod(math.Mod(a, b)+b, b)
}

type function struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	fn               func(args []float64) float64
}

var functions = map[string]function{
	"min":   {1, -1, func(a []float64) float64 { return fold(a, math.Min) }},
	"max":   {1, -1, func(a []float64) float64 { return fold(a, math.Max) }},
	"abs":   {1, 1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {1, 1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, 1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, 1, func(a []float64) float64 { return math.Round(a[0]) }},
	"clamp": {3, 3, func(a []float64) float64 { return math.Min(math.Max(a[0], a[1]), a[2]) }},
}

func fold(a []float64, f func(x, y float64) float64) float64 {
	acc := a[0]
	for _, v := range a[1:] {
		acc = f(acc, v)
	}
	return acc
}

func call(name string, args []float64) (float64, error) {
	f, ok := functions[name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name)
	}
	if len(args) < f.minArgs || (f.maxArgs >= 0 && len(args) > f.maxArgs) {
		return 0, fmt.Errorf("%s: wrong number of arguments (%d)", name, len(args))
	}
	return f.fn(args), nil
}
