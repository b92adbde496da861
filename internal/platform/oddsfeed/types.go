// Package oddsfeed is the WebSocket client for the odds aggregator feeds.
// Both the sharp and the soft feed speak the same wire protocol; one Client
// is run per feed, tagged with the quote source it supplies.
package oddsfeed

// Message is the outer envelope of every feed frame.
type Message struct {
	Type string `json:"type"` // "odds", "removed", "pong", "error"

	EventID   string `json:"id"`
	Bookie    string `json:"bookie"`
	Sport     string `json:"sport"`
	League    string `json:"league"`
	Home      string `json:"home"`
	Away      string `json:"away"`
	StartTS   int64  `json:"start_ts"` // unix seconds
	UpdatedMS int64  `json:"ts"`       // unix milliseconds

	Markets []MarketEntry `json:"markets"`

	Error string `json:"message,omitempty"`
}

// MarketEntry is one market block inside an odds frame. Selections the
// bookie does not quote are null.
type MarketEntry struct {
	Name    string   `json:"name"`
	Line    *float64 `json:"hdp,omitempty"`
	HdpTeam string   `json:"hdp_team,omitempty"` // team a spread line is quoted for
	Odds    OddsSet  `json:"odds"`
}

// OddsSet carries decimal prices per selection plus the bookie's max stake.
type OddsSet struct {
	Home  *float64 `json:"home,omitempty"`
	Away  *float64 `json:"away,omitempty"`
	Draw  *float64 `json:"draw,omitempty"`
	Over  *float64 `json:"over,omitempty"`
	Under *float64 `json:"under,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// subscribeCommand is sent after connect and on every reconnect.
type subscribeCommand struct {
	Type   string   `json:"type"` // "subscribe"
	APIKey string   `json:"api_key,omitempty"`
	Sports []string `json:"sports,omitempty"`
	Bookie string   `json:"bookie,omitempty"`
}
