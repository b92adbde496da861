package domain

import "time"

// Source identifies which of the two feeds a quote came from. The sharp feed
// is the reference price; the soft feed is the book bets are placed against.
type Source string

const (
	SourceSharp Source = "sharp"
	SourceSoft  Source = "soft"
)

// Quote is the latest price one source holds for a market. Only the latest
// quote per source is retained; updates overwrite in place.
type Quote struct {
	Source    Source
	Price     float64 // decimal odds, > 1.0
	UpdatedAt time.Time
}

// Fresh reports whether the quote was updated within staleAfter of now.
func (q Quote) Fresh(now time.Time, staleAfter time.Duration) bool {
	return !q.UpdatedAt.IsZero() && now.Sub(q.UpdatedAt) <= staleAfter
}

// MarketState is a snapshot of everything known about one market: its
// canonical key, the owning event, and up to one quote per source. Values
// returned by the odds store are copies; mutating them has no effect on
// stored state.
type MarketState struct {
	Key   MarketKey
	Event EventRecord
	Sharp *Quote
	Soft  *Quote
}

// TwoSided reports whether both sources hold a quote no older than
// staleAfter. Only two-sided markets are evaluated for value.
func (s MarketState) TwoSided(now time.Time, staleAfter time.Duration) bool {
	return s.Sharp != nil && s.Soft != nil &&
		s.Sharp.Fresh(now, staleAfter) && s.Soft.Fresh(now, staleAfter)
}
