package strategy

import (
	"fmt"
	"strings"

	"github.com/finmodel/finmodel/model"
)

// ParameterError describes a malformed parameter. Numeric fields are not
// range checked; percentages above 100% are legal.
type ParameterError struct {
	Kind    model.Kind
	Field   string
	Message string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s parameter: %s %s", e.Kind, e.Field, e.Message)
}

// ValidateParameter checks the required fields of p. known reports whether
// an account id exists; references to unknown accounts are errors.
// All problems are returned, not just the first.
func ValidateParameter(p model.Parameter, known func(string) bool) []error {
	var errs []error
	kind := model.KindOf(p)

	fail := func(field, format string, args ...interface{}) {
		errs = append(errs, &ParameterError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	ref := func(field, id string) {
		switch {
		case strings.TrimSpace(id) == "":
			fail(field, "is required")
		case !known(id):
			fail(field, "references unknown account %q", id)
		}
	}
	lag := func(field string, n int) {
		if n < 0 {
			fail(field, "must not be negative")
		}
	}

	switch p := p.(type) {
	case nil, model.Constant, model.PercentageOfRevenue, model.GrowthRate,
		model.ManualInput, model.ChildrenSum:
		// no references

	case model.Percentage:
		ref("baseAccountId", p.BaseID)
		lag("lag", p.Lag)

	case model.Proportionate:
		ref("baseAccountId", p.BaseID)
		lag("lag", p.Lag)
		if p.Operation != model.OpAdd && p.Operation != model.OpSubtract {
			fail("operation", "must be add or subtract, got %s", p.Operation)
		}

	case model.DaysBased:
		ref("baseAccountId", p.BaseID)

	case model.Calculation:
		if len(p.References) == 0 {
			fail("references", "must not be empty")
		}
		for i, r := range p.References {
			field := fmt.Sprintf("references[%d]", i)
			ref(field+".accountId", r.AccountID)
			lag(field+".lag", r.Lag)
			if r.Operation < model.OpAdd || r.Operation > model.OpDivide {
				fail(field+".operation", "is not a valid operation")
			}
		}

	case model.Formula:
		if strings.TrimSpace(p.Text) == "" {
			fail("text", "is required")
		}
		for _, id := range p.DependencyIDs {
			ref("dependencyIds", id)
		}

	default:
		fail("type", "is not supported")
	}

	return errs
}
