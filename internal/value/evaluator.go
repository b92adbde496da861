// Package value computes the edge between the reference and target prices of
// a two-sided market.
package value

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sharpline/valuebot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluate computes the value percentage for a market quoted by both sources.
// Prices are decimal odds; a positive result means the soft book pays more
// than the sharp reference for the same proposition. Markets missing either
// side return domain.ErrNotTwoSided.
func Evaluate(st domain.MarketState) (domain.ValueResult, error) {
	if st.Sharp == nil || st.Soft == nil {
		return domain.ValueResult{}, fmt.Errorf("value: %s: %w", st.Key, domain.ErrNotTwoSided)
	}
	return Compute(st.Sharp.Price, st.Soft.Price, st.Key.Selection)
}

// Compute is the pure form of Evaluate for callers that already hold both
// prices. Reference must be a valid decimal price (> 1.0).
func Compute(reference, target float64, dir domain.Selection) (domain.ValueResult, error) {
	ref := decimal.NewFromFloat(reference)
	tgt := decimal.NewFromFloat(target)
	if ref.LessThanOrEqual(decimal.New(1, 0)) {
		return domain.ValueResult{}, fmt.Errorf("value: reference price %s out of range: %w", ref, domain.ErrDispatchRejected)
	}
	return domain.ValueResult{
		ValuePct:  tgt.Div(ref).Sub(decimal.New(1, 0)).Mul(hundred),
		Reference: ref,
		Target:    tgt,
		Direction: dir,
	}, nil
}
