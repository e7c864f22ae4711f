package formula

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// powPrecision bounds the digits kept for fractional and negative exponents.
const powPrecision = 16

// Limits on the magnitude of exponents and ROUND places.
var (
	maxExponent    = decimal.NewFromInt(1000)
	maxRoundPlaces = decimal.NewFromInt(100)
)

// Evaluate computes the value of a parsed tree with the given variables.
func Evaluate(tree *Tree, vars Variables) (decimal.Decimal, error) {
	if tree == nil || tree.Root == nil {
		return decimal.Zero, &EvaluationError{Kind: InvalidArgument, Message: "empty expression"}
	}
	return eval(tree.Root, vars)
}

// Eval parses and evaluates text in one step.
func Eval(text string, vars Variables) (decimal.Decimal, error) {
	tree, err := Parse(text)
	if err != nil {
		return decimal.Zero, err
	}
	return Evaluate(tree, vars)
}

func eval(n Node, vars Variables) (decimal.Decimal, error) {
	switch n := n.(type) {
	case *Number:
		return n.Value, nil

	case *Variable:
		v, ok := vars[n.Name]
		if !ok {
			return decimal.Zero, &EvaluationError{Kind: UndefinedVariable, Name: n.Name}
		}
		return v, nil

	case *Unary:
		v, err := eval(n.Operand, vars)
		if err != nil {
			return decimal.Zero, err
		}
		if n.Op == '-' {
			return v.Neg(), nil
		}
		return v, nil

	case *Binary:
		left, err := eval(n.Left, vars)
		if err != nil {
			return decimal.Zero, err
		}
		right, err := eval(n.Right, vars)
		if err != nil {
			return decimal.Zero, err
		}
		return applyOp(left, n.Op, right)

	case *Call:
		return call(n, vars)

	default:
		return decimal.Zero, &EvaluationError{Kind: InvalidArgument, Message: fmt.Sprintf("unsupported node %T", n)}
	}
}

func applyOp(left decimal.Decimal, op rune, right decimal.Decimal) (decimal.Decimal, error) {
	switch op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	case '/':
		if right.IsZero() {
			return decimal.Zero, &EvaluationError{Kind: DivisionByZero}
		}
		return left.Div(right), nil
	case '^':
		if right.Abs().GreaterThan(maxExponent) {
			return decimal.Zero, &EvaluationError{
				Kind:    InvalidArgument,
				Name:    "^",
				Message: fmt.Sprintf("exponent %s exceeds %s", right, maxExponent),
			}
		}
		v, err := left.PowWithPrecision(right, powPrecision)
		if err != nil {
			return decimal.Zero, &EvaluationError{Kind: InvalidArgument, Name: "^", Message: err.Error()}
		}
		return v, nil
	default:
		return decimal.Zero, &EvaluationError{Kind: InvalidArgument, Message: fmt.Sprintf("unknown operator %q", op)}
	}
}

// call evaluates a built-in. IF evaluates only the selected branch.
func call(c *Call, vars Variables) (decimal.Decimal, error) {
	name := strings.ToUpper(c.Name)

	if name == "IF" {
		if len(c.Args) != 3 {
			return decimal.Zero, arityError(name, "exactly 3", len(c.Args))
		}
		cond, err := eval(c.Args[0], vars)
		if err != nil {
			return decimal.Zero, err
		}
		if !cond.IsZero() {
			return eval(c.Args[1], vars)
		}
		return eval(c.Args[2], vars)
	}

	fn, ok := builtins[name]
	if !ok {
		return decimal.Zero, &EvaluationError{Kind: UnknownFunction, Name: c.Name}
	}

	args := make([]decimal.Decimal, len(c.Args))
	for i, arg := range c.Args {
		v, err := eval(arg, vars)
		if err != nil {
			return decimal.Zero, err
		}
		args[i] = v
	}
	return fn(args)
}

type builtin func(args []decimal.Decimal) (decimal.Decimal, error)

var builtins = map[string]builtin{
	"SUM": func(args []decimal.Decimal) (decimal.Decimal, error) {
		return sum(args), nil
	},
	"AVG": func(args []decimal.Decimal) (decimal.Decimal, error) {
		if len(args) == 0 {
			return decimal.Zero, nil
		}
		return sum(args).Div(decimal.NewFromInt(int64(len(args)))), nil
	},
	"MIN": func(args []decimal.Decimal) (decimal.Decimal, error) {
		if len(args) == 0 {
			return decimal.Zero, nil
		}
		return decimal.Min(args[0], args[1:]...), nil
	},
	"MAX": func(args []decimal.Decimal) (decimal.Decimal, error) {
		if len(args) == 0 {
			return decimal.Zero, nil
		}
		return decimal.Max(args[0], args[1:]...), nil
	},
	"ABS": func(args []decimal.Decimal) (decimal.Decimal, error) {
		if len(args) != 1 {
			return decimal.Zero, arityError("ABS", "exactly 1", len(args))
		}
		return args[0].Abs(), nil
	},
	"ROUND": func(args []decimal.Decimal) (decimal.Decimal, error) {
		switch len(args) {
		case 1:
			return args[0].Round(0), nil
		case 2:
			if args[1].Abs().GreaterThan(maxRoundPlaces) {
				return decimal.Zero, &EvaluationError{
					Kind:    InvalidArgument,
					Name:    "ROUND",
					Message: fmt.Sprintf("decimals %s out of range", args[1]),
				}
			}
			return args[0].Round(int32(args[1].IntPart())), nil
		default:
			return decimal.Zero, arityError("ROUND", "1 or 2", len(args))
		}
	},
}

// Functions returns the names of the built-in functions.
func Functions() []string {
	names := []string{"IF"}
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sum(args []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range args {
		total = total.Add(a)
	}
	return total
}

func arityError(name, want string, got int) error {
	return &EvaluationError{
		Kind:    InvalidArgument,
		Name:    name,
		Message: fmt.Sprintf("expects %s argument(s), got %d", want, got),
	}
}

// Dependencies returns the distinct variable names referenced by the
// tree, sorted. Function names are not included.
func Dependencies(tree *Tree) []string {
	if tree == nil {
		return nil
	}
	seen := make(map[string]bool)
	collect(tree.Root, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collect(n Node, seen map[string]bool) {
	switch n := n.(type) {
	case *Variable:
		seen[n.Name] = true
	case *Unary:
		collect(n.Operand, seen)
	case *Binary:
		collect(n.Left, seen)
		collect(n.Right, seen)
	case *Call:
		for _, arg := range n.Args {
			collect(arg, seen)
		}
	}
}
