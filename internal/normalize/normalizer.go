// Package normalize is the single translation boundary between the two odds
// feeds' raw market vocabularies and the engine's canonical market identity.
// Everything downstream of this package deals only in domain.MarketKey.
package normalize

import (
	"fmt"
	"strings"

	"github.com/sharpline/valuebot/internal/domain"
)

// marketEntry is the canonical mapping target for one raw market name.
type marketEntry struct {
	market domain.MarketType
	period domain.Period
	team   domain.TeamSide
}

// marketVocab maps lowercase raw market names from both feeds onto canonical
// (market, period, team) tuples. The sharp feed says "Asian Spread" and
// "3 Way" where the soft feed says "Asian Handicap" and "ML"; both land on
// the same entry.
var marketVocab = map[string]marketEntry{
	"ml":                 {domain.MarketMoneyline, domain.PeriodFullTime, domain.TeamNone},
	"moneyline":          {domain.MarketMoneyline, domain.PeriodFullTime, domain.TeamNone},
	"3 way":              {domain.MarketMoneyline, domain.PeriodFullTime, domain.TeamNone},
	"1x2":                {domain.MarketMoneyline, domain.PeriodFullTime, domain.TeamNone},
	"ml ht":              {domain.MarketMoneyline, domain.PeriodFirstHalf, domain.TeamNone},
	"1st half moneyline": {domain.MarketMoneyline, domain.PeriodFirstHalf, domain.TeamNone},
	"ml 1st set":         {domain.MarketMoneyline, domain.PeriodFirstSet, domain.TeamNone},

	"spread":                {domain.MarketSpread, domain.PeriodFullTime, domain.TeamNone},
	"handicap":              {domain.MarketSpread, domain.PeriodFullTime, domain.TeamNone},
	"asian handicap":        {domain.MarketSpread, domain.PeriodFullTime, domain.TeamNone},
	"asian spread":          {domain.MarketSpread, domain.PeriodFullTime, domain.TeamNone},
	"spread ht":             {domain.MarketSpread, domain.PeriodFirstHalf, domain.TeamNone},
	"asian handicap ht":     {domain.MarketSpread, domain.PeriodFirstHalf, domain.TeamNone},
	"1st half spread":       {domain.MarketSpread, domain.PeriodFirstHalf, domain.TeamNone},
	"1st half asian spread": {domain.MarketSpread, domain.PeriodFirstHalf, domain.TeamNone},

	"totals":               {domain.MarketTotal, domain.PeriodFullTime, domain.TeamNone},
	"total":                {domain.MarketTotal, domain.PeriodFullTime, domain.TeamNone},
	"total goals":          {domain.MarketTotal, domain.PeriodFullTime, domain.TeamNone},
	"totals ht":            {domain.MarketTotal, domain.PeriodFirstHalf, domain.TeamNone},
	"1st half total":       {domain.MarketTotal, domain.PeriodFirstHalf, domain.TeamNone},
	"1st half total goals": {domain.MarketTotal, domain.PeriodFirstHalf, domain.TeamNone},

	"team total home":    {domain.MarketTeamTotal, domain.PeriodFullTime, domain.TeamHome},
	"team total away":    {domain.MarketTeamTotal, domain.PeriodFullTime, domain.TeamAway},
	"team total home ht": {domain.MarketTeamTotal, domain.PeriodFirstHalf, domain.TeamHome},
	"team total away ht": {domain.MarketTeamTotal, domain.PeriodFirstHalf, domain.TeamAway},

	"totals (games)":         {domain.MarketTotalGames, domain.PeriodFullTime, domain.TeamNone},
	"spread (games)":         {domain.MarketSpreadGames, domain.PeriodFullTime, domain.TeamNone},
	"totals 1st set (games)": {domain.MarketTotalGames, domain.PeriodFirstSet, domain.TeamNone},
	"spread 1st set (games)": {domain.MarketSpreadGames, domain.PeriodFirstSet, domain.TeamNone},
	"total sets":             {domain.MarketTotalSets, domain.PeriodFullTime, domain.TeamNone},
}

// sportAliases folds the feeds' sport spellings onto canonical values.
var sportAliases = map[string]domain.Sport{
	"football":          domain.SportFootball,
	"soccer":            domain.SportFootball,
	"basketball":        domain.SportBasketball,
	"tennis":            domain.SportTennis,
	"baseball":          domain.SportBaseball,
	"american football": domain.SportAmFootball,
	"american-football": domain.SportAmFootball,
	"ice hockey":        domain.SportIceHockey,
	"ice-hockey":        domain.SportIceHockey,
	"hockey":            domain.SportIceHockey,
	"handball":          domain.SportHandball,
	"volleyball":        domain.SportVolleyball,
	"esports":           domain.SportEsports,
}

// ParseSport maps a raw sport name to its canonical form. Unknown sports are
// passed through lowercased so the eligibility filter's allow-list, not the
// normalizer, decides their fate.
func ParseSport(raw string) domain.Sport {
	s := strings.ToLower(strings.TrimSpace(raw))
	if sp, ok := sportAliases[s]; ok {
		return sp
	}
	return domain.Sport(s)
}

// Normalize maps one raw market descriptor to its canonical key. It is pure:
// identical input always yields the identical key. Raw markets with no
// canonical mapping return domain.ErrUnsupportedMarket and the caller drops
// the update.
func Normalize(raw domain.RawMarket) (domain.MarketKey, error) {
	entry, ok := marketVocab[strings.ToLower(strings.TrimSpace(raw.Name))]
	if !ok {
		return domain.MarketKey{}, fmt.Errorf("normalize: market %q: %w", raw.Name, domain.ErrUnsupportedMarket)
	}

	sel, err := parseSelection(raw, entry.market)
	if err != nil {
		return domain.MarketKey{}, err
	}

	key := domain.MarketKey{
		Sport:     ParseSport(raw.Sport),
		EventID:   raw.EventID,
		Market:    entry.market,
		Period:    entry.period,
		Team:      entry.team,
		Selection: sel,
	}

	if needsLine(entry.market) {
		if raw.Line == nil {
			return domain.MarketKey{}, fmt.Errorf("normalize: %s without line: %w", entry.market, domain.ErrUnsupportedMarket)
		}
		key.Line = *raw.Line
		key.HasLine = true
		// Spreads are stored in the home-team signed convention: a line
		// quoted from the away team's perspective is negated so that
		// "Team A -3.5" and the away-perspective "+3.5" encoding of the
		// same market produce one key.
		if isSpread(entry.market) && strings.EqualFold(raw.LineTeam, "away") {
			key.Line = -key.Line
		}
	}

	// Handball moneyline is recognized but never biddable.
	if key.Sport == domain.SportHandball && key.Market == domain.MarketMoneyline {
		key.Excluded = true
	}

	return key, nil
}

func needsLine(m domain.MarketType) bool {
	return m != domain.MarketMoneyline
}

func isSpread(m domain.MarketType) bool {
	return m == domain.MarketSpread || m == domain.MarketSpreadGames
}

// parseSelection resolves the raw selection string, which the soft feed sends
// as home/away/draw/over/under and the sharp feed sends as "O"/"U" or a team
// name, into a canonical Selection valid for the market type.
func parseSelection(raw domain.RawMarket, market domain.MarketType) (domain.Selection, error) {
	s := strings.ToLower(strings.TrimSpace(raw.Selection))

	var sel domain.Selection
	switch s {
	case "home", "1":
		sel = domain.SelectionHome
	case "away", "2":
		sel = domain.SelectionAway
	case "draw", "x":
		sel = domain.SelectionDraw
	case "over", "o":
		sel = domain.SelectionOver
	case "under", "u":
		sel = domain.SelectionUnder
	default:
		// The sharp feed names the team instead of a side, and its spelling
		// does not always match the fixture's.
		switch {
		case raw.HomeTeam != "" && TeamsMatch(raw.Selection, raw.HomeTeam, DefaultTeamThreshold):
			sel = domain.SelectionHome
		case raw.AwayTeam != "" && TeamsMatch(raw.Selection, raw.AwayTeam, DefaultTeamThreshold):
			sel = domain.SelectionAway
		default:
			return "", fmt.Errorf("normalize: selection %q: %w", raw.Selection, domain.ErrUnsupportedMarket)
		}
	}

	if !selectionValid(market, sel) {
		return "", fmt.Errorf("normalize: selection %s invalid for %s: %w", sel, market, domain.ErrUnsupportedMarket)
	}
	return sel, nil
}

func selectionValid(market domain.MarketType, sel domain.Selection) bool {
	switch market {
	case domain.MarketMoneyline:
		return sel == domain.SelectionHome || sel == domain.SelectionAway || sel == domain.SelectionDraw
	case domain.MarketSpread, domain.MarketSpreadGames:
		return sel == domain.SelectionHome || sel == domain.SelectionAway
	case domain.MarketTotal, domain.MarketTeamTotal, domain.MarketTotalGames, domain.MarketTotalSets:
		return sel == domain.SelectionOver || sel == domain.SelectionUnder
	}
	return false
}
