package model

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Period is a discrete time bucket. Sequence is the only ordering key;
// Year and Month are display metadata.
type Period struct {
	ID         string
	Sequence   int
	Year       int
	Month      int
	Forecast   bool
	Historical bool
}

// IsActual reports whether the period holds actuals rather than forecasts.
func (p Period) IsActual() bool {
	return p.Historical && !p.Forecast
}

// Label returns a human readable period label.
func (p Period) Label() string {
	if p.Year == 0 {
		return p.ID
	}
	if p.Month == 0 {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

// SortPeriods returns a copy of periods ordered by Sequence.
func SortPeriods(periods []Period) []Period {
	sorted := append([]Period(nil), periods...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})
	return sorted
}

// ValueKey identifies a value by account and period.
type ValueKey struct {
	AccountID string
	PeriodID  string
}

// FinancialValue is a scalar for one account in one period. IsCalculated
// separates engine-derived values from externally supplied ones.
type FinancialValue struct {
	AccountID    string
	PeriodID     string
	Value        decimal.Decimal
	IsCalculated bool
}

// ValueStore holds financial values keyed by account and period.
type ValueStore map[ValueKey]FinancialValue

// NewValueStore builds a store from a list of values. Later entries win.
func NewValueStore(values ...FinancialValue) ValueStore {
	s := make(ValueStore, len(values))
	for _, v := range values {
		s.Set(v)
	}
	return s
}

// Get returns the value stored for an account and period.
func (s ValueStore) Get(accountID, periodID string) (FinancialValue, bool) {
	v, ok := s[ValueKey{AccountID: accountID, PeriodID: periodID}]
	return v, ok
}

// Amount returns the stored amount, or zero when absent.
func (s ValueStore) Amount(accountID, periodID string) decimal.Decimal {
	if v, ok := s.Get(accountID, periodID); ok {
		return v.Value
	}
	return decimal.Zero
}

// Set stores v, replacing any existing value for the same key.
func (s ValueStore) Set(v FinancialValue) {
	s[ValueKey{AccountID: v.AccountID, PeriodID: v.PeriodID}] = v
}

// Clone returns a shallow copy. FinancialValue is a value type, so the
// copy can be mutated without touching the original.
func (s ValueStore) Clone() ValueStore {
	c := make(ValueStore, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Sorted returns all values ordered by account id, then period id.
func (s ValueStore) Sorted() []FinancialValue {
	out := make([]FinancialValue, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].PeriodID < out[j].PeriodID
	})
	return out
}
