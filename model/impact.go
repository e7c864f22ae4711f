package model

// CfImpact describes how a flow account is translated into a cash-flow line.
// A nil CfImpact means no impact.
type CfImpact interface {
	impact() string
}

// BaseProfit marks the account as part of the profit figure that rolls
// into retained earnings.
type BaseProfit struct{}

// Adjustment moves a balance-sheet target by the flow account's value.
type Adjustment struct {
	TargetID  string
	Operation Operation // add or subtract
}

// Reclassification moves value between two balance-sheet accounts.
type Reclassification struct {
	FromID string
	ToID   string
}

func (BaseProfit) impact() string       { return "baseProfit" }
func (Adjustment) impact() string       { return "adjustment" }
func (Reclassification) impact() string { return "reclassification" }

// ImpactName returns the model-file name of the impact, or "none".
func ImpactName(i CfImpact) string {
	if i == nil {
		return "none"
	}
	return i.impact()
}

// Sign returns +1 for add and -1 for subtract.
func (a Adjustment) Sign() int64 {
	if a.Operation == OpSubtract {
		return -1
	}
	return 1
}
