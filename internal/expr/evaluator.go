package expr

import (
	"fmt"
)

// Resolver supplies the current value of a named binding.
type Resolver interface {
	Resolve(name string) (float64, bool)
}

// MapResolver resolves bindings from a plain map.
type MapResolver map[string]float64

func (m MapResolver) Resolve(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Evaluate walks the AST and returns its numeric value.
func Evaluate(e Expr, r Resolver) (float64, error) {
	switch n := e.(type) {
	case *NumberExpr:
		return n.Value, nil
	case *RefExpr:
		v, ok := r.Resolve(n.Name)
		if !ok {
			return 0, fmt.Errorf("binding %q not found", n.Name)
		}
		return v, nil
	case *UnaryExpr:
		v, err := Evaluate(n.X, r)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case *BinaryExpr:
		left, err := Evaluate(n.Left, r)
		if err != nil {
			return 0, err
		}
		right, err := Evaluate(n.Right, r)
		if err != nil {
			return 0, err
		}
		return arithmetic(n.Op, left, right)
	case *CallExpr:
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			v, err := Evaluate(a, r)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return call(n.Fn, args)
	default:
		return 0, fmt.Errorf("unknown expr type %T", e)
	}
}
