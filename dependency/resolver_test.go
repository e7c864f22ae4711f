package dependency

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/model"
)

func pct(base string) model.Parameter {
	return model.Percentage{Value: decimal.RequireFromString("0.5"), BaseID: base}
}

// assertTopological checks that order is a permutation of the graph's
// nodes in which every edge source precedes its target.
func assertTopological(t *testing.T, g *Graph, order []string) {
	t.Helper()
	assert.Equal(t, len(g.Nodes()), len(order))

	pos := make(map[string]int, len(order))
	for i, id := range order {
		_, dup := pos[id]
		assert.False(t, dup, "duplicate id %s", id)
		pos[id] = i
	}
	for _, id := range g.Nodes() {
		for _, e := range g.OutgoingEdges(id) {
			assert.True(t, pos[e.From] < pos[e.To], "edge %s violated", e)
		}
	}
}

func TestResolveOrdersAllStrategies(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("gross_profit", model.SheetPL, model.WithParameter(model.ChildrenSum{})),
		model.NewAccount("cogs", model.SheetPL, model.WithParent("gross_profit"), model.WithParameter(pct("sales")),
			model.WithImpact(model.BaseProfit{})),
		model.NewAccount("sales", model.SheetPL, model.WithParent("gross_profit"),
			model.WithParameter(model.GrowthRate{Value: decimal.RequireFromString("0.1")}),
			model.WithImpact(model.BaseProfit{})),
		model.NewAccount("retained_earnings", model.SheetBS),
		model.NewAccount("ppe", model.SheetBS),
		model.NewAccount("depreciation", model.SheetPL,
			model.WithParameter(model.Formula{Text: "[ppe_gross] * 0.1"}),
			model.WithImpact(model.Adjustment{TargetID: "ppe", Operation: model.OpSubtract})),
		model.NewAccount("ppe_gross", model.SheetPPE, model.WithParameter(model.Constant{Value: decimal.NewFromInt(100)})),
		model.NewAccount("ratio", model.SheetPL, model.WithParameter(model.Calculation{References: []model.Reference{
			{AccountID: "gross_profit", Operation: model.OpAdd},
			{AccountID: "sales", Operation: model.OpDivide},
		}})),
	}

	r := NewResolver()
	g := r.Build(accounts, nil)
	order, err := g.Sort()
	assert.NoError(t, err)
	assertTopological(t, g, order)

	stats := g.GetStats()
	assert.Equal(t, 8, stats.NodeCount)
	// cogs<-sales, depreciation<-ppe_gross, ratio<-gross_profit, ratio<-sales
	assert.Equal(t, 4, stats.ByKind[EdgeParameter])
	assert.Equal(t, 2, stats.ByKind[EdgeSubtotal])
	// cogs, sales -> retained_earnings; depreciation -> ppe
	assert.Equal(t, 3, stats.ByKind[EdgeCashFlow])

	assert.Equal(t, []string{
		"sales", "cogs", "gross_profit", "retained_earnings", "ppe_gross", "depreciation", "ppe", "ratio",
	}, order)
}

func TestResolveIsDeterministic(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("c", model.SheetPL),
		model.NewAccount("a", model.SheetPL),
		model.NewAccount("b", model.SheetPL, model.WithParameter(pct("c"))),
	}

	first, err := NewResolver().Resolve(accounts, nil)
	assert.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := NewResolver().Resolve(accounts, nil)
		assert.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"c", "a", "b"}, first)
}

func TestResolveParameterOverrides(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("a", model.SheetPL, model.WithParameter(pct("b"))),
		model.NewAccount("b", model.SheetPL),
	}

	order, err := NewResolver().Resolve(accounts, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, order)

	// The override map replaces a's parameter and so removes its edge.
	order, err = NewResolver().Resolve(accounts, map[string]model.Parameter{
		"a": model.Constant{Value: decimal.NewFromInt(1)},
		"b": pct("a"),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestResolveRevenueEdge(t *testing.T) {
	accounts := []model.Account{
		model.NewAccount("marketing", model.SheetPL,
			model.WithParameter(model.PercentageOfRevenue{Value: decimal.RequireFromString("0.1")})),
		model.NewAccount("sales", model.SheetPL, model.WithParameter(model.Constant{Value: decimal.NewFromInt(1000)})),
	}

	order, err := NewResolver().Resolve(accounts, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"sales", "marketing"}, order)

	accounts = append(accounts, model.NewAccount("revenue", model.SheetPL))
	order, err = NewResolver(WithRevenueID("revenue")).Resolve(accounts, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"sales", "revenue", "marketing"}, order)

	// Without a revenue account there is nothing to order against.
	order, err = NewResolver(WithRevenueID("missing")).Resolve(accounts[:1], nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"marketing"}, order)
}

func TestResolveLaggedReferences(t *testing.T) {
	t.Run("SelfRollForward", func(t *testing.T) {
		accounts := []model.Account{
			model.NewAccount("headcount", model.SheetPL, model.WithParameter(model.Calculation{References: []model.Reference{
				{AccountID: "headcount", Operation: model.OpAdd, Lag: 1},
				{AccountID: "hires", Operation: model.OpAdd},
			}})),
			model.NewAccount("hires", model.SheetPL),
		}
		order, err := NewResolver().Resolve(accounts, nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"hires", "headcount"}, order)
	})

	t.Run("LaggedCrossReferencesDoNotCycle", func(t *testing.T) {
		accounts := []model.Account{
			model.NewAccount("a", model.SheetPL, model.WithParameter(model.Percentage{
				Value: decimal.RequireFromString("0.5"), BaseID: "b", Lag: 1,
			})),
			model.NewAccount("b", model.SheetPL, model.WithParameter(model.Proportionate{BaseID: "a"})),
		}
		order, err := NewResolver().Resolve(accounts, nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, order)
	})
}

func TestResolveCycles(t *testing.T) {
	t.Run("ReportsEveryNodeOnCycle", func(t *testing.T) {
		accounts := []model.Account{
			model.NewAccount("free", model.SheetPL),
			model.NewAccount("a", model.SheetPL, model.WithParameter(pct("c"))),
			model.NewAccount("b", model.SheetPL, model.WithParameter(pct("a"))),
			model.NewAccount("c", model.SheetPL, model.WithParameter(pct("b"))),
		}

		_, err := NewResolver().Resolve(accounts, nil)
		var cycleErr *CircularDependencyError
		assert.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "b", "c"}, cycleErr.AccountIDs)
		assert.Contains(t, err.Error(), "a, b, c")
	})

	t.Run("SelfReference", func(t *testing.T) {
		accounts := []model.Account{
			model.NewAccount("a", model.SheetPL, model.WithParameter(pct("a"))),
		}
		_, err := NewResolver().Resolve(accounts, nil)
		var cycleErr *CircularDependencyError
		assert.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a"}, cycleErr.AccountIDs)
	})

	t.Run("TwoIndependentCycles", func(t *testing.T) {
		accounts := []model.Account{
			model.NewAccount("a", model.SheetPL, model.WithParameter(pct("b"))),
			model.NewAccount("b", model.SheetPL, model.WithParameter(pct("a"))),
			model.NewAccount("x", model.SheetPL, model.WithParameter(pct("y"))),
			model.NewAccount("y", model.SheetPL, model.WithParameter(pct("x"))),
		}
		_, err := NewResolver().Resolve(accounts, nil)
		var cycleErr *CircularDependencyError
		assert.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "b", "x", "y"}, cycleErr.AccountIDs)
	})

	t.Run("CycleThroughSubtotal", func(t *testing.T) {
		// total sums part while part is a percentage of total.
		accounts := []model.Account{
			model.NewAccount("total", model.SheetBS, model.WithParameter(model.ChildrenSum{})),
			model.NewAccount("part", model.SheetPL, model.WithParent("total"), model.WithParameter(pct("total"))),
		}
		_, err := NewResolver().Resolve(accounts, nil)
		var cycleErr *CircularDependencyError
		assert.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"total", "part"}, cycleErr.AccountIDs)
	})
}

func TestReferences(t *testing.T) {
	known := func(id string) bool { return id == "sales" || id == "cogs" || id == "opex" }

	tests := []struct {
		name  string
		param model.Parameter
		want  []string
	}{
		{name: "null", param: nil, want: nil},
		{name: "constant", param: model.Constant{}, want: nil},
		{name: "percentage", param: pct("sales"), want: []string{"sales"}},
		{name: "proportionate", param: model.Proportionate{BaseID: "cogs"}, want: []string{"cogs"}},
		{name: "days based", param: model.DaysBased{BaseID: "sales"}, want: []string{"sales"}},
		{name: "lagged percentage", param: model.Percentage{BaseID: "sales", Lag: 1}, want: nil},
		{name: "lagged proportionate", param: model.Proportionate{BaseID: "cogs", Lag: 2}, want: nil},
		{
			name: "calculation skips lagged steps",
			param: model.Calculation{References: []model.Reference{
				{AccountID: "opex", Lag: 1}, {AccountID: "sales"},
			}},
			want: []string{"sales"},
		},
		{
			name: "calculation",
			param: model.Calculation{References: []model.Reference{
				{AccountID: "sales"}, {AccountID: "cogs", Operation: model.OpSubtract},
			}},
			want: []string{"sales", "cogs"},
		},
		{
			name:  "formula merges declared and extracted",
			param: model.Formula{Text: "sales - [cogs] - rate", DependencyIDs: []string{"opex"}},
			want:  []string{"opex", "cogs", "sales"},
		},
		{
			name:  "unparsable formula keeps declared ids",
			param: model.Formula{Text: "sales +", DependencyIDs: []string{"opex"}},
			want:  []string{"opex"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, References(tt.param, known))
		})
	}
}

func TestGraphIgnoresUnknownEndpoints(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	assert.False(t, g.AddEdge(Edge{From: "ghost", To: "a", Kind: EdgeParameter}))
	assert.False(t, g.HasNode("ghost"))

	g.AddNode("b")
	assert.True(t, g.AddEdge(Edge{From: "a", To: "b", Kind: EdgeParameter}))
	assert.True(t, g.AddEdge(Edge{From: "a", To: "b", Kind: EdgeSubtotal}))
	assert.Equal(t, 1, len(g.OutgoingEdges("a")))
	assert.Equal(t, EdgeParameter, g.OutgoingEdges("a")[0].Kind)
	assert.Equal(t, 1, len(g.IncomingEdges("b")))
	assert.Equal(t, 0, len(g.OutgoingEdges("b")))
}
