package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/model"
)

// Mode selects between a structural run and a values-only run.
type Mode int

const (
	// ModeAuto runs values-only when the account structure is unchanged
	// since the last full run, and a full run otherwise.
	ModeAuto Mode = iota
	// ModeFull always validates, regenerates cash-flow accounts and
	// resolves the calculation order.
	ModeFull
	// ModeValuesOnly reuses the cached structure. Without a cache it
	// falls back to a full run.
	ModeValuesOnly
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeValuesOnly:
		return "values"
	default:
		return "auto"
	}
}

// ParseMode parses a mode name as accepted on the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "full":
		return ModeFull, nil
	case "values", "values-only":
		return ModeValuesOnly, nil
	default:
		return ModeAuto, fmt.Errorf("unknown mode %q (want auto, full or values)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Input is the model a run calculates. Values holds externally supplied
// figures and is never modified.
type Input struct {
	Accounts   []model.Account
	Periods    []model.Period
	Values     model.ValueStore
	Parameters map[string]model.Parameter
}

// Options control a single run.
type Options struct {
	EnableValidation           bool
	EnableCfGeneration         bool
	EnableDependencyResolution bool

	// TargetPeriods restricts calculation to these period ids, in the
	// given order. Empty means every period in sequence order.
	TargetPeriods []string

	Mode Mode
}

// DefaultOptions enables every stage and picks the mode automatically.
func DefaultOptions() Options {
	return Options{
		EnableValidation:           true,
		EnableCfGeneration:         true,
		EnableDependencyResolution: true,
		Mode:                       ModeAuto,
	}
}

// Output is the result of a run.
type Output struct {
	RunID uuid.UUID
	// Mode is the mode actually used, never ModeAuto.
	Mode Mode

	SortedAccountIDs []string
	// CalculationResults holds each account's value in the last calculated period.
	CalculationResults  map[string]decimal.Decimal
	FinancialValues     model.ValueStore
	CalculationErrors   []*CalculationError
	CfGeneratedAccounts []model.Account

	// Accounts is the full account list including generated accounts.
	Accounts []model.Account
	// Periods are all periods in sequence order.
	Periods []model.Period
	// CalculatedPeriods are the ids of the periods calculated, in calculation order.
	CalculatedPeriods []string
}

// State is the context passed from stage to stage. Stages never modify
// the State they receive; they return an updated copy.
type State struct {
	Options Options

	Accounts   []model.Account
	Periods    []model.Period // sequence order
	Parameters map[string]model.Parameter
	Values     model.ValueStore

	Generated         []model.Account
	SortedAccountIDs  []string
	CalculatedPeriods []string
	Errors            []*CalculationError
}

// clone returns a shallow copy. Stages that change a slice or map must
// replace it rather than write through it.
func (s *State) clone() *State {
	c := *s
	return &c
}
