package model

import "github.com/shopspring/decimal"

// AccountOption configures an Account built with NewAccount.
type AccountOption func(*Account)

// NewAccount creates an account on the given sheet. The display name
// defaults to the id.
//
// Example:
//
//	cogs := model.NewAccount("cogs", model.SheetPL,
//	    model.WithParameter(model.Percentage{Value: decimal.RequireFromString("0.6"), BaseID: "sales"}),
//	    model.WithImpact(model.BaseProfit{}))
func NewAccount(id string, sheet SheetType, opts ...AccountOption) Account {
	a := Account{ID: id, Name: id, Sheet: sheet}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithName sets the display name.
func WithName(name string) AccountOption {
	return func(a *Account) {
		a.Name = name
	}
}

// WithParent sets the parent account id.
func WithParent(parentID string) AccountOption {
	return func(a *Account) {
		a.ParentID = parentID
	}
}

// WithParameter sets the value rule.
func WithParameter(p Parameter) AccountOption {
	return func(a *Account) {
		a.Parameter = p
	}
}

// WithImpact sets the cash-flow impact.
func WithImpact(i CfImpact) AccountOption {
	return func(a *Account) {
		a.Impact = i
	}
}

// WithPolarity sets the credit/debit polarity.
func WithPolarity(p Polarity) AccountOption {
	return func(a *Account) {
		a.Polarity = p
	}
}

// WithOrder sets the display order.
func WithOrder(sheet, section, item int) AccountOption {
	return func(a *Account) {
		a.Order = DisplayOrder{Sheet: sheet, Section: section, Item: item}
	}
}

// NewPeriod creates a forecast period.
func NewPeriod(id string, sequence int) Period {
	return Period{ID: id, Sequence: sequence, Forecast: true}
}

// NewActualPeriod creates a historical period.
func NewActualPeriod(id string, sequence int) Period {
	return Period{ID: id, Sequence: sequence, Historical: true}
}

// Supplied creates an externally supplied value.
func Supplied(accountID, periodID string, value decimal.Decimal) FinancialValue {
	return FinancialValue{AccountID: accountID, PeriodID: periodID, Value: value}
}
