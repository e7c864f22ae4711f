// Package pipeline runs the calculation engine end to end.
//
// A full run executes five stages strictly in order:
//
//	validate → initialize-values → generate-cf-accounts → resolve-dependencies → calculate
//
// A values-only run executes initialize-values and calculate only, reusing
// the cash-flow accounts and calculation order of the last full run. In
// ModeAuto the pipeline fingerprints the account structure and picks
// values-only whenever it is unchanged.
//
// Each stage receives an immutable State and returns a new one. A stage
// error aborts the run and is returned wrapped in a *StageExecutionError.
// Individual account failures during calculate do not abort the run: they
// are reported in Output.CalculationErrors and the account is set to zero.
//
// Example:
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//	out, err := p.Run(ctx, pipeline.Input{
//	    Accounts: accounts,
//	    Periods:  periods,
//	    Values:   values,
//	}, pipeline.DefaultOptions())
//	if err != nil {
//	    var verr *pipeline.ValidationErrors
//	    if errors.As(err, &verr) {
//	        for _, e := range verr.Errors {
//	            fmt.Println(e)
//	        }
//	    }
//	}
//
// A Pipeline is not safe for concurrent runs; callers serialize them.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/cashflow"
	"github.com/finmodel/finmodel/dependency"
	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/strategy"
	"github.com/finmodel/finmodel/telemetry"
)

// Settings are the model-level conventions the engine relies on.
type Settings struct {
	RevenueAccountID          string
	RetainedEarningsAccountID string
	CashAccountID             string
	// PreserveActuals keeps supplied values in historical periods.
	PreserveActuals bool
}

// DefaultSettings returns the conventional account ids with actuals preserved.
func DefaultSettings() Settings {
	return Settings{
		RevenueAccountID:          "sales",
		RetainedEarningsAccountID: "retained_earnings",
		CashAccountID:             "cash",
		PreserveActuals:           true,
	}
}

// Pipeline runs calculations and remembers the structure of its last full run.
type Pipeline struct {
	settings Settings
	logger   zerolog.Logger

	mu    sync.Mutex
	cache *structureCache
}

type structureCache struct {
	fingerprint uint64
	generated   []model.Account
	sorted      []string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSettings overrides the default settings.
func WithSettings(settings Settings) Option {
	return func(p *Pipeline) {
		p.settings = settings
	}
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		settings: DefaultSettings(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the pipeline's settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Reset drops the cached structure so the next run is a full run.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = nil
}

// Run calculates in. Accounts flagged as generated are dropped from the
// input and regenerated, so feeding an Output's accounts back in does not
// duplicate cash-flow lines.
func (p *Pipeline) Run(ctx context.Context, in Input, opts Options) (*Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runID := uuid.New()
	logger := p.logger.With().Str("run", runID.String()).Logger()

	accounts := withoutGenerated(in.Accounts)
	values := in.Values
	if values == nil {
		values = model.NewValueStore()
	}

	fp, err := fingerprint(accounts, in.Parameters, opts, p.settings)
	if err != nil {
		return nil, err
	}
	mode := p.selectMode(opts.Mode, fp)

	state := &State{
		Options:    opts,
		Accounts:   accounts,
		Periods:    model.SortPeriods(in.Periods),
		Parameters: in.Parameters,
		Values:     values,
	}

	var stages []Stage
	if mode == ModeValuesOnly {
		state.Generated = p.cache.generated
		state.Accounts = append(append([]model.Account(nil), accounts...), p.cache.generated...)
		state.SortedAccountIDs = p.cache.sorted
		stages = []Stage{initializeValuesStage{}, p.calculateStage(logger)}
	} else {
		stages = p.fullStages(opts, logger)
	}

	logger.Debug().Str("mode", mode.String()).Int("accounts", len(state.Accounts)).
		Int("periods", len(state.Periods)).Msg("run started")

	runTimer := telemetry.StartTimer(ctx, "pipeline."+mode.String())
	defer runTimer.End()
	runCtx := telemetry.WithRootTimer(ctx, runTimer)

	for _, stage := range stages {
		state, err = p.execute(runCtx, stage, state, logger)
		if err != nil {
			return nil, err
		}
	}

	if mode == ModeFull {
		p.cache = &structureCache{
			fingerprint: fp,
			generated:   state.Generated,
			sorted:      state.SortedAccountIDs,
		}
	}

	out := &Output{
		RunID:               runID,
		Mode:                mode,
		SortedAccountIDs:    state.SortedAccountIDs,
		CalculationResults:  lastPeriodResults(state),
		FinancialValues:     state.Values,
		CalculationErrors:   state.Errors,
		CfGeneratedAccounts: state.Generated,
		Accounts:            state.Accounts,
		Periods:             state.Periods,
		CalculatedPeriods:   state.CalculatedPeriods,
	}

	logger.Debug().Int("errors", len(out.CalculationErrors)).Msg("run finished")
	return out, nil
}

// Check runs the structural stages of a full run (validation, cash-flow
// generation and dependency resolution) without calculating anything.
// The cached structure is left untouched.
func (p *Pipeline) Check(ctx context.Context, in Input, opts Options) (*Output, error) {
	runID := uuid.New()
	logger := p.logger.With().Str("run", runID.String()).Logger()

	values := in.Values
	if values == nil {
		values = model.NewValueStore()
	}
	state := &State{
		Options:    opts,
		Accounts:   withoutGenerated(in.Accounts),
		Periods:    model.SortPeriods(in.Periods),
		Parameters: in.Parameters,
		Values:     values,
	}

	timer := telemetry.StartTimer(ctx, "pipeline.check")
	defer timer.End()
	checkCtx := telemetry.WithRootTimer(ctx, timer)

	var err error
	for _, stage := range p.fullStages(opts, logger) {
		if stage.Name() == StageInitializeValues || stage.Name() == StageCalculate {
			continue
		}
		state, err = p.execute(checkCtx, stage, state, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Output{
		RunID:               runID,
		Mode:                ModeFull,
		SortedAccountIDs:    state.SortedAccountIDs,
		CalculationResults:  map[string]decimal.Decimal{},
		FinancialValues:     state.Values,
		CfGeneratedAccounts: state.Generated,
		Accounts:            state.Accounts,
		Periods:             state.Periods,
	}, nil
}

func withoutGenerated(accounts []model.Account) []model.Account {
	out := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		if !a.Generated {
			out = append(out, a)
		}
	}
	return out
}

// selectMode resolves ModeAuto and falls back to a full run when nothing
// is cached.
func (p *Pipeline) selectMode(requested Mode, fp uint64) Mode {
	if p.cache == nil {
		return ModeFull
	}
	switch requested {
	case ModeFull:
		return ModeFull
	case ModeValuesOnly:
		return ModeValuesOnly
	default:
		if p.cache.fingerprint == fp {
			return ModeValuesOnly
		}
		return ModeFull
	}
}

func (p *Pipeline) fullStages(opts Options, logger zerolog.Logger) []Stage {
	var stages []Stage
	if opts.EnableValidation {
		stages = append(stages, validateStage{})
	}
	stages = append(stages, initializeValuesStage{})
	if opts.EnableCfGeneration {
		stages = append(stages, generateCfStage{generator: cashflow.NewGenerator(cashflow.Settings{
			CashAccountID:             p.settings.CashAccountID,
			RetainedEarningsAccountID: p.settings.RetainedEarningsAccountID,
		})})
	}
	stages = append(stages,
		resolveStage{
			resolver: dependency.NewResolver(
				dependency.WithRetainedEarningsID(p.settings.RetainedEarningsAccountID),
				dependency.WithRevenueID(p.settings.RevenueAccountID),
			),
			enabled: opts.EnableDependencyResolution,
		},
		p.calculateStage(logger),
	)
	return stages
}

func (p *Pipeline) calculateStage(logger zerolog.Logger) Stage {
	return calculateStage{
		dispatcher: strategy.NewDispatcher(strategy.Settings{
			RevenueAccountID:          p.settings.RevenueAccountID,
			RetainedEarningsAccountID: p.settings.RetainedEarningsAccountID,
		}),
		preserveActuals: p.settings.PreserveActuals,
		logger:          logger,
	}
}

func (p *Pipeline) execute(ctx context.Context, stage Stage, state *State, logger zerolog.Logger) (*State, error) {
	timer := telemetry.StartTimer(ctx, stage.Name())
	defer timer.End()

	logger.Debug().Str("stage", stage.Name()).Msg("stage started")
	next, err := stage.Execute(telemetry.WithRootTimer(ctx, timer), state)
	if err != nil {
		logger.Debug().Err(err).Str("stage", stage.Name()).Msg("stage failed")
		return nil, &StageExecutionError{Stage: stage.Name(), Err: err}
	}
	logger.Debug().Str("stage", stage.Name()).Msg("stage finished")
	return next, nil
}

func lastPeriodResults(s *State) map[string]decimal.Decimal {
	results := make(map[string]decimal.Decimal, len(s.SortedAccountIDs))
	if len(s.CalculatedPeriods) == 0 {
		return results
	}
	last := s.CalculatedPeriods[len(s.CalculatedPeriods)-1]
	for _, id := range s.SortedAccountIDs {
		results[id] = s.Values.Amount(id, last)
	}
	return results
}
