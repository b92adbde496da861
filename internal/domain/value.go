package domain

import "github.com/shopspring/decimal"

// ValueResult is the outcome of evaluating a two-sided market. It is
// ephemeral: recomputed on every quote, never persisted as-is.
type ValueResult struct {
	// ValuePct is (target/reference - 1) * 100 in decimal odds. Kept as a
	// decimal so threshold comparisons near zero cannot flip sign from
	// float rounding.
	ValuePct decimal.Decimal

	// Reference is the sharp price, Target the soft price the bet would be
	// placed at.
	Reference decimal.Decimal
	Target    decimal.Decimal

	// Direction is the selection the value sits on (the soft side's
	// selection; both sides share one key so this equals Key.Selection).
	Direction Selection
}

// ValueFloat returns the value percentage rounded to 2dp for audit records
// and log output. Eligibility thresholds must compare ValuePct directly.
func (v ValueResult) ValueFloat() float64 {
	f, _ := v.ValuePct.Round(2).Float64()
	return f
}
