// Package filter decides whether an evaluated market is eligible for
// dispatch. Rules run in a fixed cheap-to-expensive order and the first
// failing rule names the rejection reason recorded in the audit trail.
package filter

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sharpline/valuebot/internal/domain"
)

// Rejection reasons, stable strings for audit queries.
const (
	ReasonExcluded     = "market_excluded"
	ReasonSport        = "sport_not_allowed"
	ReasonMarket       = "market_not_allowed"
	ReasonValueLow     = "value_below_min"
	ReasonValueHigh    = "value_above_max"
	ReasonOddsLow      = "odds_below_min"
	ReasonOddsHigh     = "odds_above_max"
	ReasonStartTooSoon = "start_too_soon"
	ReasonStartTooFar  = "start_too_far"
	ReasonNoStart      = "start_unknown"
)

// Config carries the eligibility bounds. Value bounds are percentages in
// decimal form so comparisons match the evaluator exactly.
type Config struct {
	Sports  map[domain.Sport]bool
	Markets map[domain.MarketType]bool

	MinValuePct decimal.Decimal
	MaxValuePct decimal.Decimal

	MinOdds float64
	MaxOdds float64

	// MinToStart is the closest-to-start a bet may be placed. Tennis gets
	// its own, longer bound because lines move violently near first serve.
	MinToStart       time.Duration
	MinToStartTennis time.Duration
	MaxToStart       time.Duration
}

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible bool
	Reason   string
}

// Engine applies a Config to evaluated markets.
type Engine struct {
	cfg Config
}

// New returns an Engine for the given bounds.
func New(cfg Config) *Engine { return &Engine{cfg: cfg} }

// Check runs all rules against one evaluated market. It never mutates its
// inputs and is safe for concurrent use.
func (e *Engine) Check(st domain.MarketState, res domain.ValueResult, now time.Time) Decision {
	key := st.Key

	if key.Excluded {
		return Decision{Reason: ReasonExcluded}
	}
	if len(e.cfg.Sports) > 0 && !e.cfg.Sports[key.Sport] {
		return Decision{Reason: ReasonSport}
	}
	if len(e.cfg.Markets) > 0 && !e.cfg.Markets[key.Market] {
		return Decision{Reason: ReasonMarket}
	}

	if res.ValuePct.LessThan(e.cfg.MinValuePct) {
		return Decision{Reason: ReasonValueLow}
	}
	// A huge edge is a trap: the sharp line moved or a feed glitched.
	if !e.cfg.MaxValuePct.IsZero() && res.ValuePct.GreaterThan(e.cfg.MaxValuePct) {
		return Decision{Reason: ReasonValueHigh}
	}

	target, _ := res.Target.Float64()
	if e.cfg.MinOdds > 0 && target < e.cfg.MinOdds {
		return Decision{Reason: ReasonOddsLow}
	}
	if e.cfg.MaxOdds > 0 && target > e.cfg.MaxOdds {
		return Decision{Reason: ReasonOddsHigh}
	}

	if st.Event.StartTime.IsZero() {
		return Decision{Reason: ReasonNoStart}
	}
	until := st.Event.StartTime.Sub(now)
	minToStart := e.cfg.MinToStart
	if key.Sport == domain.SportTennis && e.cfg.MinToStartTennis > 0 {
		minToStart = e.cfg.MinToStartTennis
	}
	if until < minToStart {
		return Decision{Reason: ReasonStartTooSoon}
	}
	if e.cfg.MaxToStart > 0 && until > e.cfg.MaxToStart {
		return Decision{Reason: ReasonStartTooFar}
	}

	return Decision{Eligible: true}
}
