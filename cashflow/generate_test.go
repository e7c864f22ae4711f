package cashflow

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/model"
)

var constant = model.Constant{Value: decimal.NewFromInt(1)}

func sampleAccounts() []model.Account {
	return []model.Account{
		model.NewAccount("sales", model.SheetPL, model.WithParameter(constant)),
		model.NewAccount("net_income", model.SheetPL, model.WithParameter(constant), model.WithImpact(model.BaseProfit{})),
		model.NewAccount("depreciation", model.SheetPL, model.WithParameter(constant),
			model.WithImpact(model.Adjustment{TargetID: "ppe", Operation: model.OpSubtract})),
		model.NewAccount("capex", model.SheetPPE, model.WithParameter(constant),
			model.WithImpact(model.Adjustment{TargetID: "ppe", Operation: model.OpAdd})),
		model.NewAccount("new_loans", model.SheetFinancing, model.WithParameter(constant),
			model.WithImpact(model.Adjustment{TargetID: "loans", Operation: model.OpAdd})),
		model.NewAccount("assets", model.SheetBS, model.WithParameter(model.ChildrenSum{})),
		model.NewAccount("cash", model.SheetBS, model.WithParent("assets"), model.WithParameter(constant)),
		model.NewAccount("receivables", model.SheetBS, model.WithParent("assets"), model.WithParameter(constant)),
		model.NewAccount("ppe", model.SheetBS, model.WithParent("assets"), model.WithParameter(constant)),
		model.NewAccount("securities", model.SheetBS, model.WithParent("assets"), model.WithParameter(constant)),
		model.NewAccount("goodwill", model.SheetBS, model.WithParent("assets")),
		model.NewAccount("loans", model.SheetBS, model.WithParameter(constant)),
		model.NewAccount("shareholder", model.SheetBS, model.WithName("資本金"), model.WithParameter(constant)),
		model.NewAccount("retained_earnings", model.SheetBS, model.WithParameter(constant)),
	}
}

func TestGenerate(t *testing.T) {
	generated := NewGenerator(DefaultSettings()).Generate(sampleAccounts(), nil)

	type line struct {
		id     string
		parent string
		kind   model.CfSourceKind
	}
	var got []line
	for _, a := range generated {
		assert.True(t, a.Generated)
		assert.Equal(t, model.SheetCF, a.Sheet)
		var kind model.CfSourceKind
		if a.Source != nil {
			kind = a.Source.Kind
		}
		got = append(got, line{a.ID, a.ParentID, kind})
	}

	assert.Equal(t, []line{
		{"cf_net_change", "", 0},
		{"cf_operating", "cf_net_change", 0},
		{"cf_investing", "cf_net_change", 0},
		{"cf_financing", "cf_net_change", 0},
		{"cf_net_income", "cf_operating", model.CfFlowMirror},
		{"cf_depreciation", "cf_operating", model.CfFlowMirror},
		{"cf_capex", "cf_investing", model.CfFlowMirror},
		{"cf_new_loans", "cf_financing", model.CfFlowMirror},
		{"cf_receivables", "cf_operating", model.CfBalanceChange},
		{"cf_securities", "cf_investing", model.CfBalanceChange},
		{"cf_shareholder", "cf_financing", model.CfBalanceChange},
	}, got)

	for _, a := range generated[4:] {
		assert.Equal(t, model.Parameter(model.Proportionate{BaseID: a.Source.AccountID, Operation: model.OpAdd}), a.Parameter)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := NewGenerator(DefaultSettings())
	accounts := sampleAccounts()

	first := g.Generate(accounts, nil)
	assert.Equal(t, first, g.Generate(accounts, nil))

	// Feeding the output back in generates nothing new.
	combined := append(append([]model.Account(nil), accounts...), first...)
	assert.Equal(t, 0, len(g.Generate(combined, nil)))
}

func TestGenerateKeepsExistingRoots(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("cf_operating", model.SheetCF, model.WithName("Operating"), model.WithParameter(model.ChildrenSum{})),
		model.NewAccount("receivables", model.SheetBS, model.WithParameter(constant)),
	}
	generated := NewGenerator(DefaultSettings()).Generate(accounts, nil)

	var ids []string
	for _, a := range generated {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"cf_net_change", "cf_investing", "cf_financing", "cf_receivables"}, ids)
}

func TestGenerateUsesParameterOverrides(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("receivables", model.SheetBS),
		model.NewAccount("inventory", model.SheetBS, model.WithParameter(constant)),
	}

	t.Run("NullParameterSkipped", func(t *testing.T) {
		generated := NewGenerator(DefaultSettings()).Generate(accounts, map[string]model.Parameter{"inventory": nil})
		assert.Equal(t, 0, len(generated))
	})

	t.Run("OverrideEnablesLine", func(t *testing.T) {
		generated := NewGenerator(DefaultSettings()).Generate(accounts, map[string]model.Parameter{"receivables": constant})
		assert.Equal(t, 6, len(generated))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		account model.Account
		want    Section
	}{
		{model.NewAccount("sales", model.SheetPL), Operating},
		{model.NewAccount("capex", model.SheetPPE), Investing},
		{model.NewAccount("dividends", model.SheetFinancing), Financing},
		{model.NewAccount("inventory", model.SheetBS), Operating},
		{model.NewAccount("bank_loan", model.SheetBS), Financing},
		{model.NewAccount("x1", model.SheetBS, model.WithName("Corporate Bonds")), Financing},
		{model.NewAccount("x2", model.SheetBS, model.WithName("短期借入金")), Financing},
		{model.NewAccount("x3", model.SheetBS, model.WithName("投資有価証券")), Investing},
		{model.NewAccount("property_plant", model.SheetBS), Investing},
	}

	for _, tt := range tests {
		t.Run(tt.account.ID, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.account))
		})
	}
}
