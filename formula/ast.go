// Package formula implements the free-form account formula language: a
// precedence-climbing parser producing an expression tree, an evaluator
// working on decimal values, and dependency extraction.
//
// Grammar, lowest precedence first:
//
//	expr    := term (('+' | '-') term)*
//	term    := power (('*' | '/') power)*
//	power   := unary ('^' power)?
//	unary   := ('+' | '-') power | primary
//	primary := number | '[' name ']' | name | name '(' args ')' | '(' expr ')'
//
// Exponentiation is right-associative, so 2^3^2 is 2^(3^2). Unary minus
// binds looser than '^': -2^2 is -(2^2).
package formula

import "github.com/shopspring/decimal"

// Node is a node of the expression tree.
type Node interface {
	node()
}

// Number is a numeric literal.
type Number struct {
	Value decimal.Decimal
}

// Variable is a reference to a named value, written bare or in brackets.
type Variable struct {
	Name string
}

// Unary applies '+' or '-' to its operand.
type Unary struct {
	Op      rune
	Operand Node
}

// Binary applies one of + - * / ^ to two operands.
type Binary struct {
	Op    rune
	Left  Node
	Right Node
}

// Call invokes a built-in function.
type Call struct {
	Name string
	Args []Node
}

func (*Number) node()   {}
func (*Variable) node() {}
func (*Unary) node()    {}
func (*Binary) node()   {}
func (*Call) node()     {}

// Tree is a parsed formula.
type Tree struct {
	Root Node
	Text string
}

// Variables binds identifier names to values during evaluation.
type Variables map[string]decimal.Decimal
