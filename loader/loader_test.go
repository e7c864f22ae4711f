package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func accountIDs(accounts []model.Account) []string {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestLoadSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "model.yaml", `
periods:
  - {id: p1, sequence: 1}
accounts:
  - {id: sales, sheet: pl, parameter: {type: constant, value: 100}}
`)
	absMainFile, err := filepath.Abs(mainFile)
	assert.NoError(t, err)

	for _, ldr := range []*Loader{New(), New(WithFollowIncludes())} {
		result, err := ldr.Load(context.Background(), mainFile)
		assert.NoError(t, err)
		assert.Equal(t, []string{"sales"}, accountIDs(result.Input.Accounts))
		assert.Equal(t, absMainFile, result.Root)
		assert.Equal(t, 0, len(result.Includes))
		assert.Equal(t, []string{absMainFile}, result.Files())
	}
}

func TestLoadDecodesModel(t *testing.T) {
	src := `
periods:
  - {id: "2023", sequence: 1, year: 2023, historical: true}
  - {id: "2024", sequence: 2, year: 2024, month: 6}
  - {id: "2025", sequence: 3, historical: true, forecast: true}
accounts:
  - id: sales
    name: Sales
    sheet: pl
    polarity: credit
    order: [1, 2, 3]
    parameter: {type: growthRate, value: "0.05"}
  - {id: cogs, sheet: pl, parameter: {type: percentage, value: 0.6, base: sales, lag: 1}}
  - {id: share, sheet: pl, parameter: {type: percentageOfRevenue, value: 0.1}}
  - {id: mirror, sheet: pl, parameter: {type: proportionate, base: sales, operation: subtract}}
  - {id: payables, sheet: bs, parameter: {type: daysBased, days: 30, base: cogs}}
  - {id: manual, sheet: pl, parameter: {type: manualInput, default: 7}}
  - {id: bare, sheet: pl, parameter: {type: manualInput}}
  - {id: total, sheet: pl, parameter: {type: childrenSum}}
  - id: gross
    sheet: pl
    parameter:
      type: calculation
      references:
        - {account: sales}
        - {account: cogs, operation: "-", lag: 1}
  - {id: ratio, sheet: pl, parameter: {type: formula, text: "gross / sales", dependencies: [gross]}}
  - {id: none, sheet: pl, parameter: {type: "null"}}
  - {id: dep, sheet: pl, impact: {type: adjustment, target: ppe, operation: subtract}}
  - {id: ni, sheet: pl, impact: {type: baseProfit}}
  - {id: move, sheet: financing, impact: {type: reclassification, from: a, to: b}}
`
	result, err := New().LoadBytes(context.Background(), "model.yaml", []byte(src))
	assert.NoError(t, err)

	assert.Equal(t, []model.Period{
		{ID: "2023", Sequence: 1, Year: 2023, Historical: true},
		{ID: "2024", Sequence: 2, Year: 2024, Month: 6, Forecast: true},
		{ID: "2025", Sequence: 3, Historical: true, Forecast: true},
	}, result.Input.Periods)

	byID := model.AccountIndex(result.Input.Accounts)
	sales := byID["sales"]
	assert.Equal(t, "Sales", sales.Name)
	assert.Equal(t, model.PolarityCredit, sales.Polarity)
	assert.Equal(t, model.DisplayOrder{Sheet: 1, Section: 2, Item: 3}, sales.Order)

	seven := decimal.NewFromInt(7)
	tests := []struct {
		id   string
		want model.Parameter
	}{
		{"sales", model.GrowthRate{Value: decimal.RequireFromString("0.05")}},
		{"cogs", model.Percentage{Value: decimal.RequireFromString("0.6"), BaseID: "sales", Lag: 1}},
		{"share", model.PercentageOfRevenue{Value: decimal.RequireFromString("0.1")}},
		{"mirror", model.Proportionate{BaseID: "sales", Operation: model.OpSubtract}},
		{"payables", model.DaysBased{Days: decimal.NewFromInt(30), BaseID: "cogs"}},
		{"manual", model.ManualInput{Default: &seven}},
		{"bare", model.ManualInput{}},
		{"total", model.ChildrenSum{}},
		{"gross", model.Calculation{References: []model.Reference{
			{AccountID: "sales", Operation: model.OpAdd},
			{AccountID: "cogs", Operation: model.OpSubtract, Lag: 1},
		}}},
		{"ratio", model.Formula{Text: "gross / sales", DependencyIDs: []string{"gross"}}},
		{"none", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := byID[tt.id].Parameter
			assert.Equal(t, model.KindOf(tt.want), model.KindOf(got))
			assert.Equal(t, model.DeclaredReferences(tt.want), model.DeclaredReferences(got))
			switch want := tt.want.(type) {
			case model.GrowthRate:
				assert.True(t, want.Value.Equal(got.(model.GrowthRate).Value))
			case model.Percentage:
				g := got.(model.Percentage)
				assert.True(t, want.Value.Equal(g.Value))
				assert.Equal(t, want.Lag, g.Lag)
			case model.DaysBased:
				assert.True(t, want.Days.Equal(got.(model.DaysBased).Days))
			case model.ManualInput:
				g := got.(model.ManualInput)
				assert.Equal(t, want.Default == nil, g.Default == nil)
				if want.Default != nil {
					assert.True(t, want.Default.Equal(*g.Default))
				}
			case model.Calculation, model.Proportionate:
				assert.Equal(t, tt.want, got)
			}
		})
	}

	assert.Equal(t, model.CfImpact(model.Adjustment{TargetID: "ppe", Operation: model.OpSubtract}), byID["dep"].Impact)
	assert.Equal(t, model.CfImpact(model.BaseProfit{}), byID["ni"].Impact)
	assert.Equal(t, model.CfImpact(model.Reclassification{FromID: "a", ToID: "b"}), byID["move"].Impact)
	assert.Equal(t, model.SheetFinancing, byID["move"].Sheet)
}

func TestLoadValuesAndSettings(t *testing.T) {
	src := `
settings:
  revenueAccountId: revenue
  preserveActuals: false
values:
  revenue: {"2023": 100.50, "2024": "-3"}
parameters:
  revenue: {type: constant, value: 1}
`
	result, err := New().LoadBytes(context.Background(), "model.yaml", []byte(src))
	assert.NoError(t, err)

	assert.Equal(t, pipeline.Settings{
		RevenueAccountID:          "revenue",
		RetainedEarningsAccountID: "retained_earnings",
		CashAccountID:             "cash",
		PreserveActuals:           false,
	}, result.Settings)

	v, ok := result.Input.Values.Get("revenue", "2023")
	assert.True(t, ok)
	assert.False(t, v.IsCalculated)
	assert.True(t, v.Value.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, result.Input.Values.Amount("revenue", "2024").Equal(decimal.NewFromInt(-3)))

	p, ok := result.Input.Parameters["revenue"]
	assert.True(t, ok)
	assert.Equal(t, model.KindConstant, p.Kind())
}

func TestLoadDefaults(t *testing.T) {
	result, err := New().LoadBytes(context.Background(), "empty.yaml", []byte(""))
	assert.NoError(t, err)
	assert.Equal(t, pipeline.DefaultSettings(), result.Settings)
	assert.Equal(t, 0, len(result.Input.Accounts))
	assert.Equal(t, 0, len(result.Input.Values))
	assert.Zero(t, result.Input.Parameters)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "UnknownSheet",
			src:  "accounts:\n  - {id: a, sheet: galaxy}\n",
			want: `model.yaml:2: account "a": unknown sheet "galaxy"`,
		},
		{
			name: "UnknownPolarity",
			src:  "accounts:\n  - {id: a, sheet: pl, polarity: sideways}\n",
			want: `model.yaml:2: account "a": unknown polarity "sideways"`,
		},
		{
			name: "BadOrder",
			src:  "accounts:\n  - {id: a, sheet: pl, order: [1, 2]}\n",
			want: `model.yaml:2: account "a": order must be [sheet, section, item]`,
		},
		{
			name: "UnknownParameterType",
			src:  "accounts:\n  - id: a\n    sheet: pl\n    parameter: {type: magic}\n",
			want: `model.yaml:4: unknown parameter type "magic"`,
		},
		{
			name: "MissingValue",
			src:  "accounts:\n  - {id: a, sheet: pl, parameter: {type: constant}}\n",
			want: `model.yaml:2: constant parameter requires a value`,
		},
		{
			name: "MissingDays",
			src:  "accounts:\n  - {id: a, sheet: bs, parameter: {type: daysBased, base: b}}\n",
			want: `model.yaml:2: daysBased parameter requires days`,
		},
		{
			name: "UnknownOperation",
			src:  "accounts:\n  - {id: a, sheet: pl, parameter: {type: proportionate, base: b, operation: modulo}}\n",
			want: `model.yaml:2: unknown operation "modulo"`,
		},
		{
			name: "UnknownImpact",
			src:  "accounts:\n  - {id: a, sheet: pl, impact: {type: teleport}}\n",
			want: `model.yaml:2: unknown impact type "teleport"`,
		},
		{
			name: "UnknownOverride",
			src:  "parameters:\n  a: {type: magic}\n",
			want: `model.yaml:2: unknown parameter type "magic"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().LoadBytes(context.Background(), "model.yaml", []byte(tt.src))
			assert.EqualError(t, err, tt.want)

			var loadErr *Error
			assert.True(t, errors.As(err, &loadErr))
			assert.Equal(t, "model.yaml", loadErr.Filename)
		})
	}

	t.Run("InvalidNumber", func(t *testing.T) {
		_, err := New().LoadBytes(context.Background(), "model.yaml", []byte("values:\n  a: {p1: twelve}\n"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `invalid number "twelve"`)
	})

	t.Run("UnknownTopLevelField", func(t *testing.T) {
		_, err := New().LoadBytes(context.Background(), "model.yaml", []byte("acounts: []\n"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "acounts")
	})
}

func TestLoadWithInclude_NoFollow(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "periods.yaml", "periods:\n  - {id: p1, sequence: 1}\n")
	mainFile := writeFile(t, tmpDir, "main.yaml", `
include: [periods.yaml]
accounts:
  - {id: sales, sheet: pl}
`)

	result, err := New().Load(context.Background(), mainFile)
	assert.NoError(t, err)
	assert.Equal(t, []string{"periods.yaml"}, result.Includes)
	assert.Equal(t, 0, len(result.Input.Periods))
	assert.Equal(t, 1, len(result.Input.Accounts))
}

func TestLoadWithInclude_WithFollow(t *testing.T) {
	tmpDir := t.TempDir()
	periods := writeFile(t, tmpDir, "periods.yaml", "periods:\n  - {id: p1, sequence: 1}\n")
	accounts := writeFile(t, tmpDir, "sub/accounts.yaml", `
include: [more.yaml]
accounts:
  - {id: cogs, sheet: pl}
`)
	more := writeFile(t, tmpDir, "sub/more.yaml", "accounts:\n  - {id: opex, sheet: pl}\n")
	mainFile := writeFile(t, tmpDir, "main.yaml", `
include: [periods.yaml, sub/accounts.yaml]
accounts:
  - {id: sales, sheet: pl}
`)

	result, err := New(WithFollowIncludes()).Load(context.Background(), mainFile)
	assert.NoError(t, err)

	assert.Equal(t, []string{"sales", "cogs", "opex"}, accountIDs(result.Input.Accounts))
	assert.Equal(t, 1, len(result.Input.Periods))
	assert.Equal(t, []string{periods, accounts, more}, result.Includes)
}

func TestLoadCircularInclude(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "a.yaml", "include: [b.yaml]\naccounts:\n  - {id: a, sheet: pl}\n")
	writeFile(t, tmpDir, "b.yaml", "include: [a.yaml]\naccounts:\n  - {id: b, sheet: pl}\n")

	result, err := New(WithFollowIncludes()).Load(context.Background(), filepath.Join(tmpDir, "a.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, accountIDs(result.Input.Accounts))
}

func TestLoadMainFilePrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "base.yaml", `
settings:
  revenueAccountId: turnover
  cashAccountId: bank
  preserveActuals: false
values:
  sales: {p1: 1, p2: 2}
parameters:
  sales: {type: constant, value: 1}
  cogs: {type: constant, value: 2}
`)
	mainFile := writeFile(t, tmpDir, "main.yaml", `
include: [base.yaml]
settings:
  revenueAccountId: sales
values:
  sales: {p1: 10}
parameters:
  sales: {type: growthRate, value: 0.1}
`)

	result, err := New(WithFollowIncludes()).Load(context.Background(), mainFile)
	assert.NoError(t, err)

	assert.Equal(t, "sales", result.Settings.RevenueAccountID)
	assert.Equal(t, "bank", result.Settings.CashAccountID)
	assert.False(t, result.Settings.PreserveActuals)

	assert.True(t, result.Input.Values.Amount("sales", "p1").Equal(decimal.NewFromInt(10)))
	assert.True(t, result.Input.Values.Amount("sales", "p2").Equal(decimal.NewFromInt(2)))

	assert.Equal(t, model.KindGrowthRate, result.Input.Parameters["sales"].Kind())
	assert.Equal(t, model.KindConstant, result.Input.Parameters["cogs"].Kind())
}

func TestLoadNonExistentFile(t *testing.T) {
	for _, ldr := range []*Loader{New(), New(WithFollowIncludes())} {
		_, err := ldr.Load(context.Background(), "/nonexistent/model.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	}

	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.yaml", "include: [missing.yaml]\n")
	_, err := New(WithFollowIncludes()).Load(context.Background(), mainFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "in file "+mainFile)
}

func TestLoadCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "other.yaml", "")
	mainFile := writeFile(t, tmpDir, "main.yaml", "include: [other.yaml]\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithFollowIncludes()).Load(ctx, mainFile)
	assert.IsError(t, err, context.Canceled)
}

func TestLoadBytesIncludes(t *testing.T) {
	src := []byte("include: [accounts.yaml]\n")

	result, err := New().LoadBytes(context.Background(), "main.yaml", src)
	assert.NoError(t, err)
	assert.Equal(t, []string{"accounts.yaml"}, result.Includes)
	assert.Equal(t, "", result.Root)

	_, err = New(WithFollowIncludes()).LoadBytes(context.Background(), StdinFilename, src)
	assert.EqualError(t, err, "include directives are not supported when reading from stdin")

	_, err = New(WithFollowIncludes()).LoadBytes(context.Background(), "/path/to/main.yaml", src)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "use Load() instead of LoadBytes()")
}

func TestMustLoad(t *testing.T) {
	ctx := context.Background()
	ldr := New()

	assert.Panics(t, func() {
		ldr.MustLoad(ctx, "/nonexistent/model.yaml")
	})
	assert.Panics(t, func() {
		ldr.MustLoadBytes(ctx, "bad.yaml", []byte("accounts: {"))
	})

	path := writeFile(t, t.TempDir(), "model.yaml", SampleModel)
	assert.NotZero(t, ldr.MustLoad(ctx, path))
}

func TestSampleModelRuns(t *testing.T) {
	ctx := context.Background()
	result := New().MustLoadBytes(ctx, "sample.yaml", []byte(SampleModel))
	assert.Equal(t, pipeline.DefaultSettings(), result.Settings)

	out, err := pipeline.New(pipeline.WithSettings(result.Settings)).Run(ctx, result.Input, pipeline.DefaultOptions())
	assert.NoError(t, err)
	assert.Equal(t, 0, len(out.CalculationErrors))

	want := map[string]string{
		"sales":             "110",
		"cogs":              "66",
		"opex":              "16",
		"net_income":        "18",
		"gross_margin":      "0.4",
		"ppe":               "220",
		"receivables":       "55",
		"retained_earnings": "318",
		"cf_operating":      "23",
		"cf_investing":      "-30",
		"cf_net_change":     "-7",
	}
	for id, v := range want {
		got := out.FinancialValues.Amount(id, "2025")
		assert.True(t, got.Equal(decimal.RequireFromString(v)), "%s: got %s, want %s", id, got, v)
	}
	assert.True(t, out.FinancialValues.Amount("sales", "2024").Equal(decimal.NewFromInt(100)))
}
