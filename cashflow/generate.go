// Package cashflow derives cash-flow statement lines from balance-sheet
// and flow accounts.
//
// A balance-sheet detail account with a value rule yields a balance-change
// line; a flow account with a cash-flow impact yields a mirror line. Lines
// are filed under one of three section roots, which roll up into a single
// net change total.
package cashflow

import (
	"strings"

	"github.com/finmodel/finmodel/model"
)

// IDPrefix is prepended to the source account id of every generated line.
const IDPrefix = "cf_"

// NetChangeID is the id of the generated cash-flow total.
const NetChangeID = "cf_net_change"

// ID returns the deterministic id of the line generated for sourceID.
func ID(sourceID string) string {
	return IDPrefix + sourceID
}

// Section is a cash-flow statement section.
type Section int

const (
	Operating Section = iota
	Investing
	Financing
)

// Sections lists all sections in statement order.
var Sections = []Section{Operating, Investing, Financing}

func (s Section) String() string {
	switch s {
	case Investing:
		return "investing"
	case Financing:
		return "financing"
	default:
		return "operating"
	}
}

// RootID is the id of the section's root account.
func (s Section) RootID() string {
	return IDPrefix + s.String()
}

// Title is the display name of the section root.
func (s Section) Title() string {
	switch s {
	case Investing:
		return "Cash flows from investing activities"
	case Financing:
		return "Cash flows from financing activities"
	default:
		return "Cash flows from operating activities"
	}
}

var (
	financingPatterns = []string{"borrow", "loan", "debt", "bond", "capital", "借入", "社債", "資本"}
	investingPatterns = []string{"investment", "securities", "property", "equipment", "投資", "有価証券", "固定資産"}
)

// Classify files an account into a section. Flow sheets map directly;
// balance-sheet accounts are matched by name and id.
func Classify(a model.Account) Section {
	switch a.Sheet {
	case model.SheetFinancing:
		return Financing
	case model.SheetPPE:
		return Investing
	case model.SheetBS:
		text := strings.ToLower(a.ID + " " + a.Name)
		if containsAny(text, financingPatterns) {
			return Financing
		}
		if containsAny(text, investingPatterns) {
			return Investing
		}
	}
	return Operating
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Settings names the balance-sheet accounts that never get a balance-change line.
type Settings struct {
	CashAccountID             string
	RetainedEarningsAccountID string
}

// DefaultSettings returns the conventional account ids.
func DefaultSettings() Settings {
	return Settings{
		CashAccountID:             "cash",
		RetainedEarningsAccountID: "retained_earnings",
	}
}

// Generator synthesizes cash-flow accounts.
type Generator struct {
	settings Settings
}

// NewGenerator creates a generator.
func NewGenerator(settings Settings) *Generator {
	return &Generator{settings: settings}
}

// Generate returns the cash-flow accounts derived from accounts, with
// parameters taken from params when present. Ids already present in
// accounts are never generated again, so the result can be appended
// without creating duplicates.
//
// Section roots and the net change total come first, followed by the
// lines in source account order.
func (g *Generator) Generate(accounts []model.Account, params map[string]model.Parameter) []model.Account {
	existing := make(map[string]bool, len(accounts))
	children := model.ChildIndex(accounts)
	targets := make(map[string]bool)
	for _, a := range accounts {
		existing[a.ID] = true
		if adj, ok := a.Impact.(model.Adjustment); ok {
			targets[adj.TargetID] = true
		}
	}

	var lines []model.Account
	item := make(map[Section]int)

	for _, a := range accounts {
		if a.Generated || a.Sheet == model.SheetCF || len(children[a.ID]) > 0 {
			continue
		}
		param := model.EffectiveParameter(a, params)
		if model.KindOf(param) == model.KindChildrenSum {
			continue
		}

		var kind model.CfSourceKind
		switch {
		case a.Sheet == model.SheetBS:
			if param == nil || a.ID == g.settings.CashAccountID ||
				a.ID == g.settings.RetainedEarningsAccountID || targets[a.ID] {
				continue
			}
			kind = model.CfBalanceChange
		case a.Sheet.IsFlow():
			if a.Impact == nil {
				continue
			}
			kind = model.CfFlowMirror
		default:
			continue
		}

		id := ID(a.ID)
		if existing[id] {
			continue
		}
		existing[id] = true

		section := Classify(a)
		item[section]++
		lines = append(lines, model.Account{
			ID:        id,
			Name:      a.Name,
			ParentID:  section.RootID(),
			Sheet:     model.SheetCF,
			Order:     model.DisplayOrder{Sheet: int(model.SheetCF), Section: int(section) + 1, Item: item[section]},
			Parameter: model.Proportionate{BaseID: a.ID, Operation: model.OpAdd},
			Source:    &model.CfSource{AccountID: a.ID, Kind: kind},
			Generated: true,
		})
	}

	if len(lines) == 0 {
		return nil
	}

	var out []model.Account
	if !existing[NetChangeID] {
		out = append(out, model.Account{
			ID:        NetChangeID,
			Name:      "Net change in cash",
			Sheet:     model.SheetCF,
			Order:     model.DisplayOrder{Sheet: int(model.SheetCF), Section: len(Sections) + 1},
			Parameter: model.ChildrenSum{},
			Generated: true,
		})
	}
	for _, s := range Sections {
		if existing[s.RootID()] {
			continue
		}
		out = append(out, model.Account{
			ID:        s.RootID(),
			Name:      s.Title(),
			ParentID:  NetChangeID,
			Sheet:     model.SheetCF,
			Order:     model.DisplayOrder{Sheet: int(model.SheetCF), Section: int(s) + 1},
			Parameter: model.ChildrenSum{},
			Generated: true,
		})
	}

	return append(out, lines...)
}
