package value

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

func TestComputeValuePct(t *testing.T) {
	cases := []struct {
		name      string
		reference float64
		target    float64
		want      string
	}{
		{"ten percent edge", 2.00, 2.20, "10"},
		{"no edge", 1.85, 1.85, "0"},
		{"negative edge", 2.00, 1.90, "-5"},
		// 1.97/1.95 is non-terminating; the quotient carries decimal's
		// 16-digit division precision.
		{"small edge survives", 1.95, 1.97, "1.02564102564103"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.reference, tc.target, domain.SelectionOver)
			require.NoError(t, err)
			assert.True(t, res.ValuePct.Equal(decimal.RequireFromString(tc.want)),
				"got %s want %s", res.ValuePct, tc.want)
		})
	}
}

func TestComputeRejectsBadReference(t *testing.T) {
	_, err := Compute(1.0, 2.0, domain.SelectionHome)
	assert.Error(t, err)
}

func TestEvaluateRequiresBothSides(t *testing.T) {
	now := time.Now()
	st := domain.MarketState{
		Key:   domain.MarketKey{Sport: domain.SportFootball, EventID: "ev", Market: domain.MarketMoneyline, Period: domain.PeriodFullTime, Selection: domain.SelectionHome},
		Sharp: &domain.Quote{Source: domain.SourceSharp, Price: 2.00, UpdatedAt: now},
	}
	_, err := Evaluate(st)
	assert.ErrorIs(t, err, domain.ErrNotTwoSided)

	st.Soft = &domain.Quote{Source: domain.SourceSoft, Price: 2.20, UpdatedAt: now}
	res, err := Evaluate(st)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.ValueFloat())
	assert.Equal(t, domain.SelectionHome, res.Direction)
}

func TestValueFloatRounding(t *testing.T) {
	res, err := Compute(1.87, 2.01, domain.SelectionUnder)
	require.NoError(t, err)
	assert.InDelta(t, 7.49, res.ValueFloat(), 0.001)
}
