package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/strategy"
)

// validator checks the structure of a model without calculating it.
// Every rule runs; errors are collected rather than returned early.
type validator struct {
	accounts []model.Account
	periods  []model.Period
	params   map[string]model.Parameter

	byID     map[string]model.Account
	children map[string][]string
	errs     []error
}

// Validate checks accounts, periods and parameters. It returns a
// *ValidationErrors holding every problem, or nil.
func Validate(accounts []model.Account, periods []model.Period, params map[string]model.Parameter) error {
	v := &validator{
		accounts: accounts,
		periods:  periods,
		params:   params,
		byID:     model.AccountIndex(accounts),
		children: model.ChildIndex(accounts),
	}

	v.validateAccountIDs()
	v.validatePeriods()
	for _, a := range accounts {
		v.validateParent(a)
		v.validateParameter(a)
		v.validateImpact(a)
		v.validateSummary(a)
	}

	if len(v.errs) > 0 {
		return &ValidationErrors{Errors: v.errs}
	}
	return nil
}

func (v *validator) fail(accountID, field, format string, args ...interface{}) {
	v.errs = append(v.errs, &ValidationError{
		AccountID: accountID,
		Field:     field,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (v *validator) validateAccountIDs() {
	seen := make(map[string]bool, len(v.accounts))
	for i, a := range v.accounts {
		if strings.TrimSpace(a.ID) == "" {
			v.fail("", "", "account #%d has no id", i+1)
			continue
		}
		if seen[a.ID] {
			v.fail(a.ID, "id", "is duplicated")
		}
		seen[a.ID] = true
	}
}

func (v *validator) validatePeriods() {
	ids := make(map[string]bool, len(v.periods))
	sequences := make(map[int]string, len(v.periods))
	for _, p := range v.periods {
		if strings.TrimSpace(p.ID) == "" {
			v.errs = append(v.errs, &ValidationError{Message: fmt.Sprintf("period with sequence %d has no id", p.Sequence)})
			continue
		}
		if ids[p.ID] {
			v.errs = append(v.errs, &ValidationError{PeriodID: p.ID, Field: "id", Message: "is duplicated"})
		}
		ids[p.ID] = true
		if other, ok := sequences[p.Sequence]; ok {
			v.errs = append(v.errs, &ValidationError{
				PeriodID: p.ID,
				Field:    "sequence",
				Message:  fmt.Sprintf("%d is already used by period %q", p.Sequence, other),
			})
			continue
		}
		sequences[p.Sequence] = p.ID
	}
}

func (v *validator) validateParent(a model.Account) {
	if a.ParentID == "" {
		return
	}
	if a.ParentID == a.ID {
		v.fail(a.ID, "parentId", "must not reference the account itself")
		return
	}
	if _, ok := v.byID[a.ParentID]; !ok {
		v.fail(a.ID, "parentId", "references unknown account %q", a.ParentID)
	}
}

func (v *validator) validateParameter(a model.Account) {
	known := func(id string) bool {
		_, ok := v.byID[id]
		return ok
	}
	for _, err := range strategy.ValidateParameter(model.EffectiveParameter(a, v.params), known) {
		var paramErr *strategy.ParameterError
		if errors.As(err, &paramErr) {
			v.errs = append(v.errs, &ValidationError{
				AccountID: a.ID,
				Field:     "parameter." + paramErr.Field,
				Message:   paramErr.Message,
				Err:       err,
			})
			continue
		}
		v.errs = append(v.errs, &ValidationError{AccountID: a.ID, Field: "parameter", Message: err.Error(), Err: err})
	}
}

func (v *validator) validateImpact(a model.Account) {
	if a.Impact == nil {
		return
	}
	if !a.Sheet.IsFlow() {
		v.fail(a.ID, "impact", "is only allowed on flow accounts, not on %s", a.Sheet)
		return
	}

	switch impact := a.Impact.(type) {
	case model.Adjustment:
		target, ok := v.byID[impact.TargetID]
		switch {
		case impact.TargetID == "":
			v.fail(a.ID, "impact.targetAccountId", "is required")
		case !ok:
			v.fail(a.ID, "impact.targetAccountId", "references unknown account %q", impact.TargetID)
		case target.Sheet != model.SheetBS:
			v.fail(a.ID, "impact.targetAccountId", "must be a balance-sheet account, %q is %s", impact.TargetID, target.Sheet)
		}
		if impact.Operation != model.OpAdd && impact.Operation != model.OpSubtract {
			v.fail(a.ID, "impact.operation", "must be add or subtract, got %s", impact.Operation)
		}
	case model.Reclassification:
		if _, ok := v.byID[impact.FromID]; !ok {
			v.fail(a.ID, "impact.from", "references unknown account %q", impact.FromID)
		}
		if _, ok := v.byID[impact.ToID]; !ok {
			v.fail(a.ID, "impact.to", "references unknown account %q", impact.ToID)
		}
	}
}

// validateSummary requires accounts with children to aggregate rather
// than carry a value rule of their own.
func (v *validator) validateSummary(a model.Account) {
	if len(v.children[a.ID]) == 0 {
		return
	}
	switch kind := model.KindOf(model.EffectiveParameter(a, v.params)); kind {
	case model.KindNull, model.KindChildrenSum, model.KindCalculation, model.KindFormula:
	default:
		v.fail(a.ID, "", "summary account must use childrenSum, calculation or formula, not %s", kind)
	}
}
