package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is the common interface for all AST nodes.
type Expr interface {
	exprNode()
}

// NumberExpr is a numeric literal.
type NumberExpr struct {
	Value float64
}

func (*NumberExpr) exprNode() {}

// RefExpr names a binding resolved at evaluation time.
type RefExpr struct {
	Name string
}

func (*RefExpr) exprNode() {}

// UnaryExpr represents -<expr>.
type UnaryExpr struct {
	Op Operator
	X  Expr
}

func (*UnaryExpr) exprNode() {}

// BinaryExpr represents <expr> <op> <expr> for + - * / %.
type BinaryExpr struct {
	Op    Operator
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// CallExpr represents fn(arg, ...).
type CallExpr struct {
	Fn   string
	Args []Expr
}

func (*CallExpr) exprNode() {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokIdent  tokenKind = iota // binding or function name
	tokOp                      // + - * / %
	tokNumber                  // 42 | 3.14 | .5
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		switch ch {
		case '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
			continue
		case '+', '-', '*', '/', '%':
			tokens = append(tokens, token{tokOp, string(ch), i})
			i++
			continue
		}
		if unicode.IsDigit(rune(ch)) || ch == '.' {
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, src[i:j], i})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokIdent, src[i:j], i})
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, "", len(src)})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, val string) error {
	t := p.peek()
	if t.kind != kind {
		return fmt.Errorf("expected %q at position %d but got %q", val, t.pos, t.val)
	}
	p.consume()
	return nil
}

// Parse parses a formula string into an AST.
func Parse(src string) (Expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return node, nil
}

// sum = product ( ("+" | "-") product )*
func (p *parser) parseSum() (Expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().val == "+" || p.peek().val == "-") {
		op := Operator(p.consume().val)
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// product = unary ( ("*" | "/" | "%") unary )*
func (p *parser) parseProduct() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && strings.Contains("*/%", p.peek().val) {
		op := Operator(p.consume().val)
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// unary = "-" unary | primary
func (p *parser) parseUnary() (Expr, error) {
	if t := p.peek(); t.kind == tokOp && t.val == "-" {
		p.consume()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpSub, X: inner}, nil
	}
	return p.parsePrimary()
}

// primary = number | ident | ident "(" args ")" | "(" sum ")"
func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &NumberExpr{Value: f}, nil
	case tokIdent:
		p.consume()
		if p.peek().kind != tokLParen {
			return &RefExpr{Name: t.val}, nil
		}
		p.consume()
		args, err := p.parseArgs()
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", t.val, err)
		}
		if _, ok := functions[strings.ToLower(t.val)]; !ok {
			return nil, fmt.Errorf("unknown function %q", t.val)
		}
		return &CallExpr{Fn: strings.ToLower(t.val), Args: args}, nil
	case tokLParen:
		p.consume()
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
	}
}

func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().kind == tokRParen {
		p.consume()
		return args, nil
	}
	for {
		arg, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind == tokComma {
			p.consume()
			continue
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

// Refs returns the distinct binding names an expression reads, in first-use order.
func Refs(e Expr) []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *RefExpr:
			if _, ok := seen[n.Name]; !ok {
				seen[n.Name] = struct{}{}
				out = append(out, n.Name)
			}
		case *UnaryExpr:
			walk(n.X)
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
