package formula

import "fmt"

// ParseError is returned for malformed formula text.
type ParseError struct {
	Text    string
	Pos     int // rune offset into Text
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos+1, e.Message)
}

// ErrorKind classifies evaluation failures.
type ErrorKind int

const (
	DivisionByZero ErrorKind = iota + 1
	UndefinedVariable
	UnknownFunction
	InvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case DivisionByZero:
		return "DivisionByZero"
	case UndefinedVariable:
		return "UndefinedVariable"
	case UnknownFunction:
		return "UnknownFunction"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// EvaluationError is returned when a well-formed tree cannot be evaluated.
type EvaluationError struct {
	Kind    ErrorKind
	Name    string // variable or function name, when relevant
	Message string
}

func (e *EvaluationError) Error() string {
	switch e.Kind {
	case DivisionByZero:
		return "division by zero"
	case UndefinedVariable:
		return fmt.Sprintf("undefined variable %q", e.Name)
	case UnknownFunction:
		return fmt.Sprintf("unknown function %q", e.Name)
	default:
		if e.Name != "" {
			return fmt.Sprintf("%s: %s", e.Name, e.Message)
		}
		return e.Message
	}
}

// Is matches another *EvaluationError of the same kind, so callers can
// write errors.Is(err, formula.ErrDivisionByZero).
func (e *EvaluationError) Is(target error) bool {
	t, ok := target.(*EvaluationError)
	return ok && t.Kind == e.Kind && t.Name == ""
}

// Sentinels for errors.Is.
var (
	ErrDivisionByZero    = &EvaluationError{Kind: DivisionByZero}
	ErrUndefinedVariable = &EvaluationError{Kind: UndefinedVariable}
	ErrUnknownFunction   = &EvaluationError{Kind: UnknownFunction}
)
