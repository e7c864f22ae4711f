package dependency

import (
	"golang.org/x/exp/slices"

	"github.com/finmodel/finmodel/formula"
	"github.com/finmodel/finmodel/model"
)

// Default ids of the accounts some edges point at or start from.
const (
	DefaultRetainedEarningsID = "retained_earnings"
	DefaultRevenueID          = "sales"
)

// Input is the read-only view strategies extract edges from.
type Input struct {
	Accounts   []model.Account
	Parameters map[string]model.Parameter

	// RetainedEarningsID is the target of base-profit edges.
	RetainedEarningsID string
	// RevenueID is the source of percentageOfRevenue edges.
	RevenueID string

	byID     map[string]model.Account
	children map[string][]string
}

// Parameter returns the effective parameter of an account.
func (in *Input) Parameter(a model.Account) model.Parameter {
	return model.EffectiveParameter(a, in.Parameters)
}

// Has reports whether id names an account.
func (in *Input) Has(id string) bool {
	_, ok := in.byID[id]
	return ok
}

// Children returns the direct children of parentID.
func (in *Input) Children(parentID string) []string {
	return in.children[parentID]
}

// Strategy extracts one family of edges.
type Strategy interface {
	Name() string
	Edges(in *Input) []Edge
}

// ParameterStrategy links referenced accounts to the account whose
// parameter references them. percentageOfRevenue accounts depend on the
// revenue account.
type ParameterStrategy struct{}

func (ParameterStrategy) Name() string { return "parameter" }

func (ParameterStrategy) Edges(in *Input) []Edge {
	var edges []Edge
	for _, a := range in.Accounts {
		param := in.Parameter(a)
		for _, ref := range References(param, in.Has) {
			edges = append(edges, Edge{From: ref, To: a.ID, Kind: EdgeParameter})
		}
		if _, ok := param.(model.PercentageOfRevenue); ok && in.Has(in.RevenueID) {
			edges = append(edges, Edge{From: in.RevenueID, To: a.ID, Kind: EdgeParameter})
		}
	}
	return edges
}

// SubtotalStrategy links each child of a childrenSum account to it.
type SubtotalStrategy struct{}

func (SubtotalStrategy) Name() string { return "subtotal" }

func (SubtotalStrategy) Edges(in *Input) []Edge {
	var edges []Edge
	for _, a := range in.Accounts {
		if model.KindOf(in.Parameter(a)) != model.KindChildrenSum {
			continue
		}
		for _, child := range in.Children(a.ID) {
			edges = append(edges, Edge{From: child, To: a.ID, Kind: EdgeSubtotal})
		}
	}
	return edges
}

// CashFlowStrategy links flow accounts to the balances they move.
// Reclassifications contribute no edge.
type CashFlowStrategy struct{}

func (CashFlowStrategy) Name() string { return "cashflow" }

func (CashFlowStrategy) Edges(in *Input) []Edge {
	var edges []Edge
	for _, a := range in.Accounts {
		switch impact := a.Impact.(type) {
		case model.Adjustment:
			edges = append(edges, Edge{From: a.ID, To: impact.TargetID, Kind: EdgeCashFlow})
		case model.BaseProfit:
			if in.RetainedEarningsID != "" {
				edges = append(edges, Edge{From: a.ID, To: in.RetainedEarningsID, Kind: EdgeCashFlow})
			}
		}
	}
	return edges
}

// DefaultStrategies is the fixed strategy list used by NewResolver.
func DefaultStrategies() []Strategy {
	return []Strategy{ParameterStrategy{}, SubtotalStrategy{}, CashFlowStrategy{}}
}

// References returns the account ids a parameter reads in the period being
// calculated. Lagged references read an earlier period and are left out.
// For formulas this is the declared dependency ids plus every identifier in
// the text that names a known account; unparsable text contributes declared
// ids only.
func References(p model.Parameter, known func(string) bool) []string {
	var refs []string
	switch p := p.(type) {
	case model.Percentage:
		if p.Lag > 0 {
			return nil
		}
	case model.Proportionate:
		if p.Lag > 0 {
			return nil
		}
	case model.Calculation:
		for _, ref := range p.References {
			if ref.Lag == 0 && !slices.Contains(refs, ref.AccountID) {
				refs = append(refs, ref.AccountID)
			}
		}
		return refs
	}
	refs = model.DeclaredReferences(p)

	if f, ok := p.(model.Formula); ok {
		if tree, err := formula.Parse(f.Text); err == nil {
			for _, name := range formula.Dependencies(tree) {
				if known(name) && !slices.Contains(refs, name) {
					refs = append(refs, name)
				}
			}
		}
	}

	return refs
}

// Resolver computes a global calculation order.
type Resolver struct {
	strategies         []Strategy
	retainedEarningsID string
	revenueID          string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetainedEarningsID overrides the retained earnings account id.
func WithRetainedEarningsID(id string) Option {
	return func(r *Resolver) {
		r.retainedEarningsID = id
	}
}

// WithRevenueID overrides the revenue account id.
func WithRevenueID(id string) Option {
	return func(r *Resolver) {
		r.revenueID = id
	}
}

// WithStrategies replaces the strategy list.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = strategies
	}
}

// NewResolver creates a resolver with the default strategies.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		strategies:         DefaultStrategies(),
		retainedEarningsID: DefaultRetainedEarningsID,
		revenueID:          DefaultRevenueID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build constructs the dependency graph. Nodes are added in account order;
// edges pointing at unknown accounts are dropped.
func (r *Resolver) Build(accounts []model.Account, params map[string]model.Parameter) *Graph {
	in := &Input{
		Accounts:           accounts,
		Parameters:         params,
		RetainedEarningsID: r.retainedEarningsID,
		RevenueID:          r.revenueID,
		byID:               model.AccountIndex(accounts),
		children:           model.ChildIndex(accounts),
	}

	g := NewGraph()
	for _, a := range accounts {
		g.AddNode(a.ID)
	}
	for _, s := range r.strategies {
		for _, e := range s.Edges(in) {
			g.AddEdge(e)
		}
	}
	return g
}

// Resolve returns every account id exactly once such that each
// prerequisite precedes its dependents, or a *CircularDependencyError.
func (r *Resolver) Resolve(accounts []model.Account, params map[string]model.Parameter) ([]string, error) {
	return r.Build(accounts, params).Sort()
}
