package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

func fptr(f float64) *float64 { return &f }

func TestNormalizeMarketVocabulary(t *testing.T) {
	cases := []struct {
		name string
		raw  domain.RawMarket
		want domain.MarketKey
	}{
		{
			name: "soft moneyline",
			raw:  domain.RawMarket{Sport: "football", EventID: "ev1", Name: "ML", Selection: "home"},
			want: domain.MarketKey{Sport: domain.SportFootball, EventID: "ev1", Market: domain.MarketMoneyline, Period: domain.PeriodFullTime, Selection: domain.SelectionHome},
		},
		{
			name: "sharp three way draw",
			raw:  domain.RawMarket{Sport: "Soccer", EventID: "ev1", Name: "3 Way", Selection: "X"},
			want: domain.MarketKey{Sport: domain.SportFootball, EventID: "ev1", Market: domain.MarketMoneyline, Period: domain.PeriodFullTime, Selection: domain.SelectionDraw},
		},
		{
			name: "half time total goals",
			raw:  domain.RawMarket{Sport: "football", EventID: "ev2", Name: "1st Half Total Goals", Selection: "O", Line: fptr(1.25)},
			want: domain.MarketKey{Sport: domain.SportFootball, EventID: "ev2", Market: domain.MarketTotal, Period: domain.PeriodFirstHalf, Selection: domain.SelectionOver, Line: 1.25, HasLine: true},
		},
		{
			name: "team total away",
			raw:  domain.RawMarket{Sport: "basketball", EventID: "ev3", Name: "Team Total Away", Selection: "under", Line: fptr(108.5)},
			want: domain.MarketKey{Sport: domain.SportBasketball, EventID: "ev3", Market: domain.MarketTeamTotal, Period: domain.PeriodFullTime, Team: domain.TeamAway, Selection: domain.SelectionUnder, Line: 108.5, HasLine: true},
		},
		{
			name: "tennis first set games",
			raw:  domain.RawMarket{Sport: "tennis", EventID: "ev4", Name: "Totals 1st Set (Games)", Selection: "over", Line: fptr(9.5)},
			want: domain.MarketKey{Sport: domain.SportTennis, EventID: "ev4", Market: domain.MarketTotalGames, Period: domain.PeriodFirstSet, Selection: domain.SelectionOver, Line: 9.5, HasLine: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeSpreadPerspective(t *testing.T) {
	// The same market quoted from each team's perspective must produce one key.
	homeSide, err := Normalize(domain.RawMarket{
		Sport: "football", EventID: "ev9", Name: "Asian Handicap",
		Selection: "home", Line: fptr(-3.5),
	})
	require.NoError(t, err)

	awayPerspective, err := Normalize(domain.RawMarket{
		Sport: "soccer", EventID: "ev9", Name: "Asian Spread",
		Selection: "home", Line: fptr(3.5), LineTeam: "away",
	})
	require.NoError(t, err)

	assert.Equal(t, homeSide, awayPerspective)
	assert.Equal(t, -3.5, homeSide.Line)
}

func TestNormalizeTeamNameSelection(t *testing.T) {
	key, err := Normalize(domain.RawMarket{
		Sport: "tennis", EventID: "ev5", Name: "Spread (Games)",
		Selection: "Alcaraz C.", Line: fptr(-4.5),
		HomeTeam: "Alcaraz C.", AwayTeam: "Sinner J.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SelectionHome, key.Selection)

	// The feeds do not agree on name order, so an exact comparison is not
	// enough.
	key, err = Normalize(domain.RawMarket{
		Sport: "tennis", EventID: "ev5", Name: "Spread (Games)",
		Selection: "J. Sinner", Line: fptr(4.5),
		HomeTeam: "Alcaraz C.", AwayTeam: "Sinner J.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SelectionAway, key.Selection)
}

func TestNormalizeHandballMoneylineExcluded(t *testing.T) {
	key, err := Normalize(domain.RawMarket{Sport: "handball", EventID: "ev6", Name: "Moneyline", Selection: "home"})
	require.NoError(t, err)
	assert.True(t, key.Excluded)

	// Handball spreads stay biddable.
	key, err = Normalize(domain.RawMarket{Sport: "handball", EventID: "ev6", Name: "Spread", Selection: "home", Line: fptr(-2.5)})
	require.NoError(t, err)
	assert.False(t, key.Excluded)
}

func TestNormalizeRejectsUnknown(t *testing.T) {
	_, err := Normalize(domain.RawMarket{Sport: "football", EventID: "e", Name: "Corners", Selection: "over", Line: fptr(9.5)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)

	_, err = Normalize(domain.RawMarket{Sport: "football", EventID: "e", Name: "Totals", Selection: "draw", Line: fptr(2.5)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)

	// Line markets without a line are dropped, not guessed.
	_, err = Normalize(domain.RawMarket{Sport: "football", EventID: "e", Name: "Spread", Selection: "home"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)
}

func TestNormalizeIsPure(t *testing.T) {
	raw := domain.RawMarket{Sport: "football", EventID: "ev7", Name: "Totals", Selection: "over", Line: fptr(2.5)}
	a, err := Normalize(raw)
	require.NoError(t, err)
	b, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestEventKeyConvergence(t *testing.T) {
	sharp := EventKey("Soccer", "Manchester United FC", "Wolverhampton Wanderers", time.Date(2026, 1, 17, 20, 0, 0, 0, time.UTC))
	soft := EventKey("football", "Man Utd", "Wolves", time.Date(2026, 1, 17, 20, 4, 0, 0, time.UTC))
	assert.Equal(t, sharp, soft)

	// Start times straddling an hour boundary still converge.
	early := EventKey("football", "Man Utd", "Wolves", time.Date(2026, 1, 17, 19, 59, 0, 0, time.UTC))
	late := EventKey("football", "Man Utd", "Wolves", time.Date(2026, 1, 17, 20, 1, 0, 0, time.UTC))
	assert.Equal(t, early, late)
	assert.Equal(t, sharp, early)
}

func TestTeamsMatch(t *testing.T) {
	assert.True(t, TeamsMatch("FC Bayern Munchen", "Bayern Munchen", 80))
	assert.True(t, TeamsMatch("Inter", "Inter Milan", 80))
	assert.False(t, TeamsMatch("Real Madrid", "Real Sociedad", 80))
}
