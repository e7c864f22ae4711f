// Package model defines the data the calculation engine works on: accounts
// and their parameters, periods, and the financial value store.
//
// The types here are plain values. They carry no behaviour beyond small
// lookups so that every stage of the pipeline can copy them freely.
package model

import "strings"

// SheetType classifies the statement an account belongs to.
type SheetType int

const (
	SheetUnknown SheetType = iota
	SheetPL
	SheetBS
	SheetCF
	SheetPPE
	SheetFinancing
)

// String returns the short name used in model files.
func (t SheetType) String() string {
	switch t {
	case SheetPL:
		return "pl"
	case SheetBS:
		return "bs"
	case SheetCF:
		return "cf"
	case SheetPPE:
		return "ppe"
	case SheetFinancing:
		return "financing"
	default:
		return "unknown"
	}
}

// IsFlow reports whether accounts on this sheet record period flows
// rather than balances.
func (t SheetType) IsFlow() bool {
	return t == SheetPL || t == SheetPPE || t == SheetFinancing
}

// ParseSheetType parses a sheet name as written in model files.
func ParseSheetType(s string) (SheetType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pl", "profit-and-loss":
		return SheetPL, true
	case "bs", "balance-sheet":
		return SheetBS, true
	case "cf", "cash-flow":
		return SheetCF, true
	case "ppe", "property-equipment":
		return SheetPPE, true
	case "financing":
		return SheetFinancing, true
	default:
		return SheetUnknown, false
	}
}

// Polarity is the credit/debit nature of an account.
type Polarity int

const (
	PolarityNone Polarity = iota
	PolarityDebit
	PolarityCredit
)

// String returns the short name used in model files.
func (p Polarity) String() string {
	switch p {
	case PolarityDebit:
		return "debit"
	case PolarityCredit:
		return "credit"
	default:
		return "none"
	}
}

// ParsePolarity parses a polarity name. The empty string means none.
func ParsePolarity(s string) (Polarity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PolarityNone, true
	case "debit":
		return PolarityDebit, true
	case "credit":
		return PolarityCredit, true
	default:
		return PolarityNone, false
	}
}

// DisplayOrder places an account in presentation order. It has no
// influence on calculation order.
type DisplayOrder struct {
	Sheet   int
	Section int
	Item    int
}

// Less orders by sheet, then section, then item.
func (o DisplayOrder) Less(other DisplayOrder) bool {
	if o.Sheet != other.Sheet {
		return o.Sheet < other.Sheet
	}
	if o.Section != other.Section {
		return o.Section < other.Section
	}
	return o.Item < other.Item
}

// CfSourceKind describes how a generated cash-flow account derives its value.
type CfSourceKind int

const (
	// CfBalanceChange mirrors the period-over-period change of a balance-sheet account.
	CfBalanceChange CfSourceKind = iota + 1
	// CfFlowMirror mirrors the value of a flow account with a cash-flow impact.
	CfFlowMirror
)

// String returns the name of the derivation.
func (k CfSourceKind) String() string {
	switch k {
	case CfBalanceChange:
		return "balanceChange"
	case CfFlowMirror:
		return "flowMirror"
	default:
		return "unknown"
	}
}

// CfSource links a generated cash-flow account to the account it was derived from.
type CfSource struct {
	AccountID string
	Kind      CfSourceKind
}

// Account is a financial line item with a declared computation rule.
type Account struct {
	ID       string
	Name     string
	ParentID string // empty for root accounts
	Sheet    SheetType
	Polarity Polarity
	Order    DisplayOrder

	// Parameter is nil for accounts without a value rule.
	Parameter Parameter
	// Impact is nil when the account has no cash-flow impact.
	Impact CfImpact

	// Source is set only on cash-flow lines derived from another account.
	Source *CfSource
	// Generated marks accounts synthesized by the engine (CF lines and CF section roots).
	Generated bool
}

// IsCredit reports whether the account has credit polarity.
func (a Account) IsCredit() bool {
	return a.Polarity == PolarityCredit
}

// EffectiveParameter returns the parameter that governs an account: the
// entry in params when present, otherwise the account's own parameter.
func EffectiveParameter(a Account, params map[string]Parameter) Parameter {
	if p, ok := params[a.ID]; ok {
		return p
	}
	return a.Parameter
}

// ChildIndex maps parent ids to the ids of their direct children, in
// account order.
func ChildIndex(accounts []Account) map[string][]string {
	children := make(map[string][]string)
	for _, a := range accounts {
		if a.ParentID != "" {
			children[a.ParentID] = append(children[a.ParentID], a.ID)
		}
	}
	return children
}

// AccountIndex maps ids to accounts.
func AccountIndex(accounts []Account) map[string]Account {
	idx := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = a
	}
	return idx
}
