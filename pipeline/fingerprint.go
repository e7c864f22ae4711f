package pipeline

import (
	"github.com/mitchellh/hashstructure/v2"

	"github.com/finmodel/finmodel/model"
)

// structureKey captures everything that decides cash-flow generation and
// calculation order. Numeric parameter values are left out on purpose:
// changing a rate does not change the structure.
type structureKey struct {
	Accounts           []accountKey
	CfGeneration       bool
	Resolution         bool
	CashAccountID      string
	RetainedEarningsID string
	RevenueID          string
}

type accountKey struct {
	ID        string
	Name      string
	ParentID  string
	Sheet     string
	Kind      string
	Refs      []string
	Ops       []string
	Lags      []int
	Text      string
	Impact    string
	ImpactIDs []string
}

// fingerprint hashes the structure of a model.
func fingerprint(accounts []model.Account, params map[string]model.Parameter, opts Options, settings Settings) (uint64, error) {
	key := structureKey{
		Accounts:           make([]accountKey, 0, len(accounts)),
		CfGeneration:       opts.EnableCfGeneration,
		Resolution:         opts.EnableDependencyResolution,
		CashAccountID:      settings.CashAccountID,
		RetainedEarningsID: settings.RetainedEarningsAccountID,
		RevenueID:          settings.RevenueAccountID,
	}

	for _, a := range accounts {
		param := model.EffectiveParameter(a, params)
		k := accountKey{
			ID:       a.ID,
			Name:     a.Name,
			ParentID: a.ParentID,
			Sheet:    a.Sheet.String(),
			Kind:     model.KindOf(param).String(),
			Refs:     model.DeclaredReferences(param),
			Impact:   model.ImpactName(a.Impact),
		}
		switch p := param.(type) {
		case model.Percentage:
			k.Lags = []int{p.Lag}
		case model.Proportionate:
			k.Ops = []string{p.Operation.String()}
			k.Lags = []int{p.Lag}
		case model.Calculation:
			for _, ref := range p.References {
				k.Ops = append(k.Ops, ref.Operation.String())
				k.Lags = append(k.Lags, ref.Lag)
			}
		case model.Formula:
			k.Text = p.Text
		}
		switch impact := a.Impact.(type) {
		case model.Adjustment:
			k.ImpactIDs = []string{impact.TargetID, impact.Operation.String()}
		case model.Reclassification:
			k.ImpactIDs = []string{impact.FromID, impact.ToID}
		}
		key.Accounts = append(key.Accounts, k)
	}

	return hashstructure.Hash(key, hashstructure.FormatV2, nil)
}
