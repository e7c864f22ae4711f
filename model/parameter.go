package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Operation is an arithmetic operation used by proportionate parameters,
// calculation references and cash-flow adjustments.
type Operation int

const (
	OpAdd Operation = iota
	OpSubtract
	OpMultiply
	OpDivide
)

// String returns the name used in model files.
func (o Operation) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	default:
		return "unknown"
	}
}

// Symbol returns the arithmetic symbol of the operation.
func (o Operation) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "×"
	case OpDivide:
		return "÷"
	default:
		return "?"
	}
}

// ParseOperation accepts both names and symbols. The empty string is add.
func ParseOperation(s string) (Operation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "add", "+":
		return OpAdd, true
	case "subtract", "sub", "-":
		return OpSubtract, true
	case "multiply", "mul", "*", "×":
		return OpMultiply, true
	case "divide", "div", "/", "÷":
		return OpDivide, true
	default:
		return OpAdd, false
	}
}

// Kind identifies a parameter variant.
type Kind int

const (
	KindNull Kind = iota
	KindConstant
	KindPercentage
	KindPercentageOfRevenue
	KindGrowthRate
	KindProportionate
	KindDaysBased
	KindManualInput
	KindChildrenSum
	KindCalculation
	KindFormula
)

var kindNames = map[Kind]string{
	KindNull:                "null",
	KindConstant:            "constant",
	KindPercentage:          "percentage",
	KindPercentageOfRevenue: "percentageOfRevenue",
	KindGrowthRate:          "growthRate",
	KindProportionate:       "proportionate",
	KindDaysBased:           "daysBased",
	KindManualInput:         "manualInput",
	KindChildrenSum:         "childrenSum",
	KindCalculation:         "calculation",
	KindFormula:             "formula",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind parses a parameter type name (case-insensitive).
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSpace(s)
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, true
		}
	}
	return KindNull, false
}

// Parameter is the rule describing how an account's value is derived.
// The set of implementations is closed; a nil Parameter is the null rule.
type Parameter interface {
	Kind() Kind
	isParameter()
}

// KindOf returns the kind of p, treating nil as KindNull.
func KindOf(p Parameter) Kind {
	if p == nil {
		return KindNull
	}
	return p.Kind()
}

// Constant returns Value unconditionally.
type Constant struct {
	Value decimal.Decimal
}

// Percentage is Value times the base account, optionally lagged.
type Percentage struct {
	Value  decimal.Decimal
	BaseID string
	Lag    int
}

// PercentageOfRevenue is Value times the canonical revenue account.
type PercentageOfRevenue struct {
	Value decimal.Decimal
}

// GrowthRate grows the account's previous value by Value.
type GrowthRate struct {
	Value decimal.Decimal
}

// Proportionate takes the base account's value, negated for subtract.
type Proportionate struct {
	BaseID    string
	Operation Operation
	Lag       int
}

// DaysBased prorates an annualized monthly base figure by Days.
type DaysBased struct {
	Days   decimal.Decimal
	BaseID string
}

// ManualInput uses the externally supplied value, falling back to Default.
type ManualInput struct {
	Default *decimal.Decimal
}

// ChildrenSum sums the direct children of the account.
type ChildrenSum struct{}

// Reference is a single step of a Calculation fold.
type Reference struct {
	AccountID string
	Operation Operation
	Lag       int
}

// Calculation folds References left to right.
type Calculation struct {
	References []Reference
}

// Formula evaluates Text with DependencyIDs bound as variables.
type Formula struct {
	Text          string
	DependencyIDs []string
}

func (Constant) Kind() Kind            { return KindConstant }
func (Percentage) Kind() Kind          { return KindPercentage }
func (PercentageOfRevenue) Kind() Kind { return KindPercentageOfRevenue }
func (GrowthRate) Kind() Kind          { return KindGrowthRate }
func (Proportionate) Kind() Kind       { return KindProportionate }
func (DaysBased) Kind() Kind           { return KindDaysBased }
func (ManualInput) Kind() Kind         { return KindManualInput }
func (ChildrenSum) Kind() Kind         { return KindChildrenSum }
func (Calculation) Kind() Kind         { return KindCalculation }
func (Formula) Kind() Kind             { return KindFormula }

func (Constant) isParameter()            {}
func (Percentage) isParameter()          {}
func (PercentageOfRevenue) isParameter() {}
func (GrowthRate) isParameter()          {}
func (Proportionate) isParameter()       {}
func (DaysBased) isParameter()           {}
func (ManualInput) isParameter()         {}
func (ChildrenSum) isParameter()         {}
func (Calculation) isParameter()         {}
func (Formula) isParameter()             {}

// DeclaredReferences returns the account ids a parameter names explicitly,
// in declaration order. Formula identifiers that are only present in the
// formula text are not included.
func DeclaredReferences(p Parameter) []string {
	switch p := p.(type) {
	case Percentage:
		return []string{p.BaseID}
	case Proportionate:
		return []string{p.BaseID}
	case DaysBased:
		return []string{p.BaseID}
	case Calculation:
		ids := make([]string, 0, len(p.References))
		for _, ref := range p.References {
			ids = append(ids, ref.AccountID)
		}
		return ids
	case Formula:
		return append([]string(nil), p.DependencyIDs...)
	default:
		return nil
	}
}
