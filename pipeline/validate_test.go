package pipeline

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/strategy"
)

func TestValidate(t *testing.T) {
	constant := model.Constant{Value: d("1")}
	periods := []model.Period{model.NewPeriod("p1", 1)}

	tests := []struct {
		name     string
		accounts []model.Account
		periods  []model.Period
		params   map[string]model.Parameter
		want     []string
	}{
		{
			name: "valid",
			accounts: []model.Account{
				model.NewAccount("sales", model.SheetPL, model.WithParameter(constant)),
				model.NewAccount("cash", model.SheetBS),
			},
		},
		{
			name: "missing and duplicate ids",
			accounts: []model.Account{
				model.NewAccount("", model.SheetPL),
				model.NewAccount("a", model.SheetPL),
				model.NewAccount("a", model.SheetPL),
			},
			want: []string{
				`account #1 has no id`,
				`account "a": id is duplicated`,
			},
		},
		{
			name: "parents",
			accounts: []model.Account{
				model.NewAccount("a", model.SheetPL, model.WithParent("a")),
				model.NewAccount("b", model.SheetPL, model.WithParent("ghost")),
			},
			want: []string{
				`account "a": parentId must not reference the account itself`,
				`account "b": parentId references unknown account "ghost"`,
			},
		},
		{
			name:     "periods",
			accounts: []model.Account{model.NewAccount("a", model.SheetPL)},
			periods: []model.Period{
				model.NewPeriod("p1", 1),
				model.NewPeriod("p1", 2),
				model.NewPeriod("p3", 2),
				model.NewPeriod("", 4),
			},
			want: []string{
				`period "p1": id is duplicated`,
				`period "p3": sequence 2 is already used by period "p1"`,
				`period with sequence 4 has no id`,
			},
		},
		{
			name: "parameters",
			accounts: []model.Account{
				model.NewAccount("a", model.SheetPL, model.WithParameter(model.Percentage{Value: d("0.1")})),
				model.NewAccount("b", model.SheetPL),
			},
			params: map[string]model.Parameter{
				"b": model.Proportionate{BaseID: "a", Operation: model.OpDivide},
			},
			want: []string{
				`account "a": parameter.baseAccountId is required`,
				`account "b": parameter.operation must be add or subtract, got divide`,
			},
		},
		{
			name: "impacts",
			accounts: []model.Account{
				model.NewAccount("cash", model.SheetBS, model.WithImpact(model.BaseProfit{})),
				model.NewAccount("sales", model.SheetPL, model.WithImpact(model.Adjustment{TargetID: "cogs"})),
				model.NewAccount("cogs", model.SheetPL, model.WithImpact(model.Adjustment{TargetID: "ghost", Operation: model.OpMultiply})),
				model.NewAccount("move", model.SheetPL, model.WithImpact(model.Reclassification{FromID: "cash", ToID: "nowhere"})),
				model.NewAccount("capex", model.SheetPPE, model.WithImpact(model.Adjustment{})),
			},
			want: []string{
				`account "cash": impact is only allowed on flow accounts, not on bs`,
				`account "sales": impact.targetAccountId must be a balance-sheet account, "cogs" is pl`,
				`account "cogs": impact.targetAccountId references unknown account "ghost"`,
				`account "cogs": impact.operation must be add or subtract, got multiply`,
				`account "move": impact.to references unknown account "nowhere"`,
				`account "capex": impact.targetAccountId is required`,
			},
		},
		{
			name: "summary accounts",
			accounts: []model.Account{
				model.NewAccount("opex", model.SheetPL, model.WithParameter(constant)),
				model.NewAccount("rent", model.SheetPL, model.WithParent("opex")),
				model.NewAccount("assets", model.SheetBS, model.WithParameter(model.ChildrenSum{})),
				model.NewAccount("cash", model.SheetBS, model.WithParent("assets")),
			},
			want: []string{
				`account "opex": summary account must use childrenSum, calculation or formula, not constant`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := tt.periods
			if ps == nil {
				ps = periods
			}
			err := Validate(tt.accounts, ps, tt.params)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			var validationErrs *ValidationErrors
			assert.True(t, errors.As(err, &validationErrs), "got %v", err)
			var got []string
			for _, e := range validationErrs.Errors {
				got = append(got, e.Error())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrorUnwrapsParameterError(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("a", model.SheetPL, model.WithParameter(model.Calculation{})),
	}
	err := Validate(accounts, nil, nil)

	var paramErr *strategy.ParameterError
	assert.True(t, errors.As(err, &paramErr))
	assert.Equal(t, "references", paramErr.Field)
	assert.Equal(t, model.KindCalculation, paramErr.Kind)
}

func TestValidationErrorsMessage(t *testing.T) {
	single := &ValidationErrors{Errors: []error{&ValidationError{AccountID: "a", Message: "broken"}}}
	assert.Equal(t, `account "a": broken`, single.Error())

	multi := &ValidationErrors{Errors: []error{errors.New("x"), errors.New("y")}}
	assert.Equal(t, "2 validation errors occurred", multi.Error())
}
