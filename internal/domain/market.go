package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Sport identifies a sport in canonical (lowercase) form.
type Sport string

const (
	SportFootball   Sport = "football" // association football / soccer
	SportBasketball Sport = "basketball"
	SportTennis     Sport = "tennis"
	SportBaseball   Sport = "baseball"
	SportAmFootball Sport = "american-football"
	SportIceHockey  Sport = "ice-hockey"
	SportHandball   Sport = "handball"
	SportVolleyball Sport = "volleyball"
	SportEsports    Sport = "esports"
)

// MarketType enumerates the canonical market types the engine understands.
// Every raw market name from either feed maps onto one of these or is
// rejected as unsupported.
type MarketType string

const (
	MarketMoneyline   MarketType = "moneyline"
	MarketSpread      MarketType = "spread"
	MarketTotal       MarketType = "total"
	MarketTeamTotal   MarketType = "team_total"
	MarketSpreadGames MarketType = "spread_games" // tennis, counted in games
	MarketTotalGames  MarketType = "total_games"  // tennis, counted in games
	MarketTotalSets   MarketType = "total_sets"   // tennis, counted in sets
)

// Period is the portion of the event a market settles on.
type Period string

const (
	PeriodFullTime  Period = "ft"
	PeriodFirstHalf Period = "1h"
	PeriodFirstSet  Period = "1set"
)

// Selection is the side of a market a bet is placed on.
type Selection string

const (
	SelectionHome  Selection = "home"
	SelectionAway  Selection = "away"
	SelectionDraw  Selection = "draw"
	SelectionOver  Selection = "over"
	SelectionUnder Selection = "under"
)

// TeamSide distinguishes home/away team-total markets. It is part of market
// identity (a home team total and an away team total at the same line are
// different propositions); Selection stays over/under for both.
type TeamSide string

const (
	TeamNone TeamSide = ""
	TeamHome TeamSide = "home"
	TeamAway TeamSide = "away"
)

// MarketKey is the canonical identity of a bettable proposition, independent
// of either feed's naming. It is immutable and comparable; two raw market
// descriptions that are economically equivalent normalize to the same key.
type MarketKey struct {
	Sport     Sport
	EventID   string
	Market    MarketType
	Period    Period
	Team      TeamSide
	Selection Selection

	// Line is the handicap or total line in the home-team signed convention
	// for spreads. HasLine is false for moneyline markets.
	Line    float64
	HasLine bool

	// Excluded marks markets that are recognized but never biddable
	// (handball moneyline). The dispatch path must honor this tag.
	Excluded bool
}

// DedupKey returns the string identity used for at-most-once dispatch and
// cross-process persistence. It encodes every identity field except Excluded.
func (k MarketKey) DedupKey() string {
	line := "-"
	if k.HasLine {
		line = strconv.FormatFloat(k.Line, 'f', -1, 64)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		k.Sport, k.EventID, k.Market, k.Period, k.Team, k.Selection, line)
}

// String implements fmt.Stringer for log output.
func (k MarketKey) String() string { return k.DedupKey() }

// RawMarket is a market descriptor as it arrives from a feed, before
// normalization. Name and period vocabulary differ per source.
type RawMarket struct {
	Sport     string
	EventID   string
	Name      string // e.g. "Asian Handicap HT", "1st Half Total Goals"
	Selection string // e.g. "home", "O", "Draw", team name
	Line      *float64
	LineTeam  string // team whose perspective a spread line is quoted from ("home" when empty)
	HomeTeam  string
	AwayTeam  string
}

// EventRecord holds the metadata shared by all markets of one event. Created
// on first sighting from either feed; the start time may be corrected later,
// nothing else changes.
type EventRecord struct {
	ID        string
	Sport     Sport
	League    string
	Home      string
	Away      string
	StartTime time.Time
	FirstSeen time.Time
}
