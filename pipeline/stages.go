package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/cashflow"
	"github.com/finmodel/finmodel/dependency"
	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/strategy"
	"github.com/finmodel/finmodel/telemetry"
)

// Stage names, as reported in StageExecutionError and telemetry.
const (
	StageValidate            = "validate"
	StageInitializeValues    = "initialize-values"
	StageGenerateCfAccounts  = "generate-cf-accounts"
	StageResolveDependencies = "resolve-dependencies"
	StageCalculate           = "calculate"
)

// Stage transforms one State into the next.
type Stage interface {
	Name() string
	Execute(ctx context.Context, s *State) (*State, error)
}

type validateStage struct{}

func (validateStage) Name() string { return StageValidate }

func (validateStage) Execute(ctx context.Context, s *State) (*State, error) {
	if err := Validate(s.Accounts, s.Periods, s.Parameters); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeValuesStage gives every (account, period) pair a stored value
// so lookups during calculation never hit a hole.
type initializeValuesStage struct{}

func (initializeValuesStage) Name() string { return StageInitializeValues }

func (initializeValuesStage) Execute(ctx context.Context, s *State) (*State, error) {
	values := s.Values.Clone()
	for _, a := range s.Accounts {
		for _, p := range s.Periods {
			if _, ok := values.Get(a.ID, p.ID); ok {
				continue
			}
			values.Set(model.FinancialValue{
				AccountID:    a.ID,
				PeriodID:     p.ID,
				Value:        decimal.Zero,
				IsCalculated: true,
			})
		}
	}

	next := s.clone()
	next.Values = values
	return next, nil
}

type generateCfStage struct {
	generator *cashflow.Generator
}

func (generateCfStage) Name() string { return StageGenerateCfAccounts }

func (st generateCfStage) Execute(ctx context.Context, s *State) (*State, error) {
	generated := st.generator.Generate(s.Accounts, s.Parameters)

	next := s.clone()
	next.Generated = generated
	next.Accounts = append(append(make([]model.Account, 0, len(s.Accounts)+len(generated)), s.Accounts...), generated...)
	return next, nil
}

// resolveStage orders accounts for calculation. With resolution disabled
// the account list order is used as is.
type resolveStage struct {
	resolver *dependency.Resolver
	enabled  bool
}

func (resolveStage) Name() string { return StageResolveDependencies }

func (st resolveStage) Execute(ctx context.Context, s *State) (*State, error) {
	next := s.clone()
	if !st.enabled {
		next.SortedAccountIDs = make([]string, len(s.Accounts))
		for i, a := range s.Accounts {
			next.SortedAccountIDs[i] = a.ID
		}
		return next, nil
	}

	sorted, err := st.resolver.Resolve(s.Accounts, s.Parameters)
	if err != nil {
		return nil, err
	}
	next.SortedAccountIDs = sorted
	return next, nil
}

// calculateStage evaluates every account of every target period in the
// resolved order, publishing each value before the next account runs.
type calculateStage struct {
	dispatcher      *strategy.Dispatcher
	preserveActuals bool
	logger          zerolog.Logger
}

func (calculateStage) Name() string { return StageCalculate }

func (st calculateStage) Execute(ctx context.Context, s *State) (*State, error) {
	indexes, err := targetIndexes(s.Periods, s.Options.TargetPeriods)
	if err != nil {
		return nil, err
	}

	book := strategy.NewBook(s.Accounts)
	values := s.Values.Clone()
	var calcErrors []*CalculationError
	calculated := make([]string, 0, len(indexes))

	for _, i := range indexes {
		// Periods are the only safe point to stop; a half-calculated
		// period would leave dependents reading stale values.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled before period %s: %w", s.Periods[i].ID, err)
		}

		period := s.Periods[i]
		periodTimer := telemetry.StartTimer(ctx, "period")
		pctx := strategy.NewPeriodContext(book, values, s.Periods, i)

		for _, id := range s.SortedAccountIDs {
			account, ok := book.Account(id)
			if !ok {
				continue
			}
			if st.preserveActuals && period.IsActual() {
				if _, supplied := pctx.Supplied(id); supplied {
					continue
				}
			}

			param := model.EffectiveParameter(account, s.Parameters)
			result, err := st.dispatcher.Calculate(account, param, pctx)
			if err != nil {
				calcErrors = append(calcErrors, &CalculationError{
					AccountID: id,
					PeriodID:  period.ID,
					Message:   err.Error(),
					Err:       err,
				})
				st.logger.Warn().Err(err).Str("account", id).Str("period", period.ID).Msg("calculation failed")
				values.Set(model.FinancialValue{AccountID: id, PeriodID: period.ID, Value: decimal.Zero, IsCalculated: true})
				continue
			}
			if !result.Defined || result.Supplied {
				continue
			}
			values.Set(model.FinancialValue{AccountID: id, PeriodID: period.ID, Value: result.Value, IsCalculated: true})
		}

		periodTimer.End()
		calculated = append(calculated, period.ID)
	}

	next := s.clone()
	next.Values = values
	next.Errors = calcErrors
	next.CalculatedPeriods = calculated
	return next, nil
}

// targetIndexes maps target period ids to indexes into periods. No
// targets means every period.
func targetIndexes(periods []model.Period, targets []string) ([]int, error) {
	if len(targets) == 0 {
		indexes := make([]int, len(periods))
		for i := range periods {
			indexes[i] = i
		}
		return indexes, nil
	}

	byID := make(map[string]int, len(periods))
	for i, p := range periods {
		byID[p.ID] = i
	}
	indexes := make([]int, 0, len(targets))
	for _, id := range targets {
		i, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown target period %q", id)
		}
		indexes = append(indexes, i)
	}
	return indexes, nil
}
