package expr

import (
	"math"
	"testing"
)

type evalCase struct {
	name    string
	expr    string
	vars    MapResolver
	want    float64
	wantErr bool
}

func TestEvaluate(t *testing.T) {
	cases := []evalCase{
		{name: "literal", expr: "42", want: 42},
		{name: "decimal", expr: ".5", want: 0.5},
		{name: "binding", expr: "x", vars: MapResolver{"x": 3}, want: 3},
		{name: "precedence", expr: "1 + 2 * 3", want: 7},
		{name: "parens", expr: "(1 + 2) * 3", want: 9},
		{name: "left assoc", expr: "10 - 4 - 3", want: 3},
		{name: "unary minus", expr: "-x * 2", vars: MapResolver{"x": 3}, want: -6},
		{name: "no space minus", expr: "x-1", vars: MapResolver{"x": 3}, want: 2},
		{name: "floored modulo", expr: "-1 % 3", want: 2},
		{name: "scale and offset", expr: "scroll * 0.5 + base", vars: MapResolver{"scroll": 100, "base": 10}, want: 60},
		{name: "min", expr: "min(a, b, 1)", vars: MapResolver{"a": 3, "b": 2}, want: 1},
		{name: "max", expr: "MAX(a, b)", vars: MapResolver{"a": 3, "b": 2}, want: 3},
		{name: "clamp high", expr: "clamp(x, 0, 1)", vars: MapResolver{"x": 4}, want: 1},
		{name: "clamp low", expr: "clamp(x, 0, 1)", vars: MapResolver{"x": -4}, want: 0},
		{name: "abs", expr: "abs(x)", vars: MapResolver{"x": -4}, want: 4},
		{name: "round", expr: "round(2.6)", want: 3},
		// Error cases
		{name: "missing binding", expr: "y + 1", vars: MapResolver{"x": 1}, wantErr: true},
		{name: "division by zero", expr: "1 / x", vars: MapResolver{"x": 0}, wantErr: true},
		{name: "modulo by zero", expr: "1 % 0", wantErr: true},
		{name: "arity", expr: "clamp(1, 2)", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ast, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.expr, err)
			}
			vars := tc.vars
			if vars == nil {
				vars = MapResolver{}
			}
			got, err := Evaluate(ast, vars)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil (result=%v)", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		`a b`,        // missing operator
		``,           // empty
		`(1 + 2`,     // unbalanced
		`1 +`,        // dangling operator
		`sqrt(4)`,    // unknown function
		`a $ b`,      // bad character
		`min(1, 2`,   // unterminated call
		`1.2.3 + 1`,  // malformed number
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			if err == nil {
				t.Errorf("expected parse error for %q, got nil", src)
			}
		})
	}
}

func TestRefs(t *testing.T) {
	ast, err := Parse("a * b + clamp(a, c, 1)")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	got := Refs(ast)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Refs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Refs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
