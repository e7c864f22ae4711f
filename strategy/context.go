package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/model"
)

// Context is the read-only view of the value store a rule evaluates against.
// All lookups refer to the current period unless stated otherwise and
// return zero for missing values.
type Context interface {
	// Account returns the account with the given id.
	Account(id string) (model.Account, bool)

	// Value returns an account's value in the current period.
	Value(accountID string) decimal.Decimal
	// Previous returns an account's value in the preceding period.
	Previous(accountID string) decimal.Decimal
	// HasPrevious reports whether a preceding period exists.
	HasPrevious() bool
	// Relative returns an account's value offset periods away from the
	// current one; negative offsets look back.
	Relative(accountID string, offset int) decimal.Decimal
	// Values returns the current values of ids in order.
	Values(ids []string) []decimal.Decimal

	// ChildrenSum sums the direct children of parentID.
	ChildrenSum(parentID string) decimal.Decimal
	// FlowAdjustmentSum sums the signed values of all flow accounts adjusting targetID.
	FlowAdjustmentSum(targetID string) decimal.Decimal
	// HasFlowAdjustments reports whether any flow account adjusts targetID.
	HasFlowAdjustments(targetID string) bool
	// BaseProfit sums all base-profit accounts.
	BaseProfit() decimal.Decimal

	// Supplied returns the externally supplied value of an account, if any.
	Supplied(accountID string) (decimal.Decimal, bool)
}

// Book indexes an account set for context lookups. It is built once per
// run and shared by every period.
type Book struct {
	accounts    map[string]model.Account
	children    map[string][]string
	adjustments map[string][]model.Account
	baseProfit  []string
}

// NewBook indexes accounts.
func NewBook(accounts []model.Account) *Book {
	b := &Book{
		accounts:    model.AccountIndex(accounts),
		children:    model.ChildIndex(accounts),
		adjustments: make(map[string][]model.Account),
	}
	for _, a := range accounts {
		switch impact := a.Impact.(type) {
		case model.Adjustment:
			b.adjustments[impact.TargetID] = append(b.adjustments[impact.TargetID], a)
		case model.BaseProfit:
			b.baseProfit = append(b.baseProfit, a.ID)
		}
	}
	return b
}

// Account returns the account with the given id.
func (b *Book) Account(id string) (model.Account, bool) {
	a, ok := b.accounts[id]
	return a, ok
}

// IsAdjustmentTarget reports whether any account adjusts id.
func (b *Book) IsAdjustmentTarget(id string) bool {
	return len(b.adjustments[id]) > 0
}

// PeriodContext is the Context for one period of a run. It reads straight
// from the store, so values published earlier in the same period are visible.
type PeriodContext struct {
	book    *Book
	store   model.ValueStore
	periods []model.Period
	index   int
}

var _ Context = (*PeriodContext)(nil)

// NewPeriodContext creates a context for periods[index]. periods must be in
// sequence order.
func NewPeriodContext(book *Book, store model.ValueStore, periods []model.Period, index int) *PeriodContext {
	return &PeriodContext{book: book, store: store, periods: periods, index: index}
}

// Period returns the current period.
func (c *PeriodContext) Period() model.Period {
	return c.periods[c.index]
}

func (c *PeriodContext) Account(id string) (model.Account, bool) {
	return c.book.Account(id)
}

func (c *PeriodContext) Value(accountID string) decimal.Decimal {
	return c.Relative(accountID, 0)
}

func (c *PeriodContext) Previous(accountID string) decimal.Decimal {
	return c.Relative(accountID, -1)
}

func (c *PeriodContext) HasPrevious() bool {
	return c.index > 0
}

func (c *PeriodContext) Relative(accountID string, offset int) decimal.Decimal {
	i := c.index + offset
	if i < 0 || i >= len(c.periods) {
		return decimal.Zero
	}
	return c.store.Amount(accountID, c.periods[i].ID)
}

func (c *PeriodContext) Values(ids []string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ids))
	for i, id := range ids {
		out[i] = c.Value(id)
	}
	return out
}

func (c *PeriodContext) ChildrenSum(parentID string) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range c.Values(c.book.children[parentID]) {
		sum = sum.Add(v)
	}
	return sum
}

func (c *PeriodContext) FlowAdjustmentSum(targetID string) decimal.Decimal {
	sum := decimal.Zero
	for _, flow := range c.book.adjustments[targetID] {
		adj := flow.Impact.(model.Adjustment)
		sum = sum.Add(c.Value(flow.ID).Mul(decimal.NewFromInt(adj.Sign())))
	}
	return sum
}

func (c *PeriodContext) HasFlowAdjustments(targetID string) bool {
	return c.book.IsAdjustmentTarget(targetID)
}

func (c *PeriodContext) BaseProfit() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range c.Values(c.book.baseProfit) {
		sum = sum.Add(v)
	}
	return sum
}

func (c *PeriodContext) Supplied(accountID string) (decimal.Decimal, bool) {
	v, ok := c.store.Get(accountID, c.Period().ID)
	if !ok || v.IsCalculated {
		return decimal.Zero, false
	}
	return v.Value, true
}
