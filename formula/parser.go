package formula

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	precAdditive       = 1
	precMultiplicative = 2
	precPower          = 3
)

// Parse parses formula text into an expression tree.
func Parse(text string) (*Tree, error) {
	p := &parser{text: text, input: []rune(text)}

	if p.isAtEnd() {
		return nil, p.errorf("empty formula")
	}

	root, err := p.parseExpr(precAdditive)
	if err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		if p.peek() == ')' {
			return nil, p.errorf("unbalanced parenthesis: unexpected ')'")
		}
		return nil, p.errorf("unexpected character %q", p.peek())
	}

	return &Tree{Root: root, Text: text}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level formulas known to be valid.
func MustParse(text string) *Tree {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	text  string
	input []rune
	pos   int
}

func (p *parser) errorf(msg string, args ...interface{}) *ParseError {
	return &ParseError{Text: p.text, Pos: p.pos, Message: fmt.Sprintf(msg, args...)}
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) isAtEnd() bool {
	p.skipWhitespace()
	return p.pos >= len(p.input)
}

func (p *parser) peek() rune {
	p.skipWhitespace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) advance() rune {
	r := p.peek()
	if r != 0 {
		p.pos++
	}
	return r
}

// parseExpr is the precedence-climbing core. It folds every binary
// operator whose precedence is at least minPrec into the left operand.
func (p *parser) parseExpr(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if !isBinaryOperator(op) {
			break
		}

		prec := precedence(op)
		if prec < minPrec {
			break
		}
		p.advance()

		// '^' recurses at its own level so runs group to the right.
		next := prec + 1
		if op == '^' {
			next = prec
		}

		right, err := p.parseExpr(next)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	switch p.peek() {
	case '-', '+':
		op := p.advance()
		operand, err := p.parseExpr(precPower)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	r := p.peek()

	switch {
	case r == 0:
		return nil, p.errorf("unexpected end of formula")

	case r == '(':
		p.advance()
		inner, err := p.parseExpr(precAdditive)
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("unbalanced parenthesis: expected ')'")
		}
		p.advance()
		return inner, nil

	case r == '[':
		return p.parseBracketed()

	case isDigit(r) || r == '.':
		return p.parseNumber()

	case isIdentStart(r):
		name := p.parseIdentifier()
		if p.peek() == '(' {
			return p.parseCall(name)
		}
		return &Variable{Name: name}, nil

	default:
		return nil, p.errorf("unexpected character %q", r)
	}
}

func (p *parser) parseNumber() (Node, error) {
	p.skipWhitespace()
	start := p.pos
	foundDigit := false
	foundDot := false

	for p.pos < len(p.input) {
		r := p.input[p.pos]
		if isDigit(r) {
			foundDigit = true
		} else if r == '.' && !foundDot {
			foundDot = true
		} else {
			break
		}
		p.pos++
	}

	if !foundDigit {
		p.pos = start
		return nil, p.errorf("malformed number")
	}

	raw := string(p.input[start:p.pos])
	value, err := decimal.NewFromString(raw)
	if err != nil {
		p.pos = start
		return nil, p.errorf("malformed number %q", raw)
	}
	return &Number{Value: value}, nil
}

// parseBracketed reads "[name]". Anything but ']' may appear inside the
// brackets, so names with spaces or symbols can be referenced.
func (p *parser) parseBracketed() (Node, error) {
	open := p.pos
	p.advance()

	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ']' {
		p.pos++
	}
	if p.pos >= len(p.input) {
		p.pos = open
		return nil, p.errorf("unterminated '['")
	}

	name := strings.TrimSpace(string(p.input[start:p.pos]))
	p.pos++ // ']'
	if name == "" {
		p.pos = open
		return nil, p.errorf("empty variable reference")
	}
	return &Variable{Name: name}, nil
}

func (p *parser) parseIdentifier() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	return string(p.input[start:p.pos])
}

func (p *parser) parseCall(name string) (Node, error) {
	p.advance() // '('
	call := &Call{Name: name}

	if p.peek() == ')' {
		p.advance()
		return call, nil
	}

	for {
		arg, err := p.parseExpr(precAdditive)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.peek() {
		case ',':
			p.advance()
		case ')':
			p.advance()
			return call, nil
		case 0:
			return nil, p.errorf("malformed call to %s: missing ')'", name)
		default:
			return nil, p.errorf("malformed call to %s: expected ',' or ')'", name)
		}
	}
}

func isBinaryOperator(r rune) bool {
	return r == '+' || r == '-' || r == '*' || r == '/' || r == '^'
}

func precedence(op rune) int {
	switch op {
	case '+', '-':
		return precAdditive
	case '*', '/':
		return precMultiplicative
	case '^':
		return precPower
	default:
		return 0
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
