// Package strategy computes a single account's value for a single period.
//
// Every parameter kind maps to one rule in an exhaustive type switch. A
// small set of accounting identities takes priority over the declared
// parameter:
//
//   - retained earnings: previous balance plus the base-profit aggregate
//   - adjustment targets: previous balance plus the signed flow adjustments
//   - generated cash-flow lines: mirrored flows and balance changes
//
// Rules are pure: they read the Context and return a Result, and the caller
// decides where the value is stored.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/formula"
	"github.com/finmodel/finmodel/model"
)

var (
	daysPerYear   = decimal.NewFromInt(365)
	monthsPerYear = decimal.NewFromInt(12)
	one           = decimal.NewFromInt(1)
	minusOne      = decimal.NewFromInt(-1)
)

// Rule names reported in Result.Rule for the accounting overrides.
const (
	RuleRetainedEarnings = "retainedEarnings"
	RuleFlowAdjustments  = "flowAdjustments"
	RuleFlowMirror       = "flowMirror"
	RuleBalanceChange    = "balanceChange"
)

// Result is the outcome of evaluating one account in one period.
type Result struct {
	Value decimal.Decimal
	// Defined is false when the rule produced no value, in which case the
	// account keeps whatever is stored.
	Defined bool
	// Supplied is true when Value is the externally supplied input.
	Supplied bool
	// Rule names the override or parameter kind that produced Value.
	Rule string
	// References lists the accounts the rule read.
	References []string
}

func defined(rule string, v decimal.Decimal, refs ...string) Result {
	return Result{Value: v, Defined: true, Rule: rule, References: refs}
}

// Settings carries the well-known account ids the rules depend on.
type Settings struct {
	RevenueAccountID          string
	RetainedEarningsAccountID string
}

// DefaultSettings returns the conventional account ids.
func DefaultSettings() Settings {
	return Settings{
		RevenueAccountID:          "sales",
		RetainedEarningsAccountID: "retained_earnings",
	}
}

// Dispatcher selects and runs the rule for an account.
type Dispatcher struct {
	settings Settings
}

// NewDispatcher creates a dispatcher. Empty settings fall back to the defaults.
func NewDispatcher(settings Settings) *Dispatcher {
	defaults := DefaultSettings()
	if settings.RevenueAccountID == "" {
		settings.RevenueAccountID = defaults.RevenueAccountID
	}
	if settings.RetainedEarningsAccountID == "" {
		settings.RetainedEarningsAccountID = defaults.RetainedEarningsAccountID
	}
	return &Dispatcher{settings: settings}
}

// Settings returns the effective settings.
func (d *Dispatcher) Settings() Settings {
	return d.settings
}

// Calculate evaluates account under param. Overrides are tried first and,
// when one applies, replace the parameter rule entirely.
func (d *Dispatcher) Calculate(account model.Account, param model.Parameter, ctx Context) (Result, error) {
	if r, ok := d.override(account, ctx); ok {
		return r, nil
	}
	return d.evaluate(account, param, ctx)
}

func (d *Dispatcher) override(account model.Account, ctx Context) (Result, bool) {
	id := account.ID

	if id == d.settings.RetainedEarningsAccountID {
		return defined(RuleRetainedEarnings, ctx.Previous(id).Add(ctx.BaseProfit()), id), true
	}

	if account.Sheet == model.SheetBS && ctx.HasFlowAdjustments(id) {
		return defined(RuleFlowAdjustments, ctx.Previous(id).Add(ctx.FlowAdjustmentSum(id)), id), true
	}

	if account.Source == nil {
		return Result{}, false
	}
	source, ok := ctx.Account(account.Source.AccountID)
	if !ok {
		return Result{}, false
	}

	switch account.Source.Kind {
	case model.CfFlowMirror:
		adj, ok := source.Impact.(model.Adjustment)
		if !ok {
			return Result{}, false
		}
		return defined(RuleFlowMirror, ctx.Value(source.ID).Mul(mirrorSign(adj, ctx)), source.ID), true

	case model.CfBalanceChange:
		// An opening balance is not a cash movement.
		if !ctx.HasPrevious() {
			return defined(RuleBalanceChange, decimal.Zero, source.ID), true
		}
		change := ctx.Value(source.ID).Sub(ctx.Previous(source.ID))
		if !source.IsCredit() {
			change = change.Neg()
		}
		return defined(RuleBalanceChange, change, source.ID), true
	}

	return Result{}, false
}

// mirrorSign is +1 when the adjustment target is a credit account and -1
// otherwise, flipped again for subtracting adjustments.
func mirrorSign(adj model.Adjustment, ctx Context) decimal.Decimal {
	sign := minusOne
	if target, ok := ctx.Account(adj.TargetID); ok && target.IsCredit() {
		sign = one
	}
	if adj.Operation == model.OpSubtract {
		sign = sign.Neg()
	}
	return sign
}

func (d *Dispatcher) evaluate(account model.Account, param model.Parameter, ctx Context) (Result, error) {
	switch p := param.(type) {
	case nil:
		return Result{Rule: model.KindNull.String()}, nil

	case model.Constant:
		return defined(p.Kind().String(), p.Value), nil

	case model.Percentage:
		base := ctx.Relative(p.BaseID, -p.Lag)
		return defined(p.Kind().String(), base.Mul(p.Value), p.BaseID), nil

	case model.PercentageOfRevenue:
		rev := d.settings.RevenueAccountID
		return defined(p.Kind().String(), ctx.Value(rev).Mul(p.Value), rev), nil

	case model.GrowthRate:
		if !ctx.HasPrevious() {
			return defined(p.Kind().String(), decimal.Zero), nil
		}
		prev := ctx.Previous(account.ID)
		return defined(p.Kind().String(), prev.Mul(one.Add(p.Value)), account.ID), nil

	case model.Proportionate:
		base := ctx.Relative(p.BaseID, -p.Lag)
		if p.Operation == model.OpSubtract {
			base = base.Neg()
		}
		return defined(p.Kind().String(), base, p.BaseID), nil

	case model.DaysBased:
		base := ctx.Value(p.BaseID)
		v := base.Mul(monthsPerYear).Mul(p.Days).Div(daysPerYear)
		return defined(p.Kind().String(), v, p.BaseID), nil

	case model.ManualInput:
		if v, ok := ctx.Supplied(account.ID); ok {
			r := defined(p.Kind().String(), v)
			r.Supplied = true
			return r, nil
		}
		if p.Default != nil {
			return defined(p.Kind().String(), *p.Default), nil
		}
		return defined(p.Kind().String(), decimal.Zero), nil

	case model.ChildrenSum:
		return defined(p.Kind().String(), ctx.ChildrenSum(account.ID)), nil

	case model.Calculation:
		return fold(p, ctx)

	case model.Formula:
		return evalFormula(p, ctx)

	default:
		return Result{}, fmt.Errorf("unsupported parameter kind %s", model.KindOf(param))
	}
}

// fold applies each reference to an accumulator starting at zero. Division
// by zero fails the whole fold, matching the formula evaluator.
func fold(p model.Calculation, ctx Context) (Result, error) {
	acc := decimal.Zero
	refs := make([]string, 0, len(p.References))

	for _, ref := range p.References {
		v := ctx.Relative(ref.AccountID, -ref.Lag)
		refs = append(refs, ref.AccountID)

		switch ref.Operation {
		case model.OpAdd:
			acc = acc.Add(v)
		case model.OpSubtract:
			acc = acc.Sub(v)
		case model.OpMultiply:
			acc = acc.Mul(v)
		case model.OpDivide:
			if v.IsZero() {
				return Result{}, &formula.EvaluationError{
					Kind:    formula.DivisionByZero,
					Name:    ref.AccountID,
					Message: "division by zero",
				}
			}
			acc = acc.Div(v)
		default:
			return Result{}, fmt.Errorf("unsupported operation %s on %s", ref.Operation, ref.AccountID)
		}
	}

	return defined(p.Kind().String(), acc, refs...), nil
}

// evalFormula binds every declared dependency and every identifier that
// names a known account to its current value.
func evalFormula(p model.Formula, ctx Context) (Result, error) {
	tree, err := formula.Parse(p.Text)
	if err != nil {
		return Result{}, err
	}

	vars := make(formula.Variables)
	var refs []string
	bind := func(id string) {
		if _, done := vars[id]; done {
			return
		}
		vars[id] = ctx.Value(id)
		refs = append(refs, id)
	}

	for _, id := range p.DependencyIDs {
		bind(id)
	}
	for _, name := range formula.Dependencies(tree) {
		if _, ok := ctx.Account(name); ok {
			bind(name)
		}
	}

	v, err := formula.Evaluate(tree, vars)
	if err != nil {
		return Result{}, err
	}
	return defined(p.Kind().String(), v, refs...), nil
}
