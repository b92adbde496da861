package oddsfeed

import (
	"time"

	"github.com/sharpline/valuebot/internal/domain"
	"github.com/sharpline/valuebot/internal/normalize"
)

// QuoteUpdate pairs a raw market descriptor with the price quoted for it.
// Downstream normalization turns Raw into a canonical key.
type QuoteUpdate struct {
	Raw   domain.RawMarket
	Price float64
}

// ToUpdates flattens one odds frame into the event record and the per
// selection quote updates it carries. Selections without a price produce no
// update.
func ToUpdates(msg *Message) (domain.EventRecord, []QuoteUpdate) {
	var start time.Time
	if msg.StartTS > 0 {
		start = time.Unix(msg.StartTS, 0).UTC()
	}
	ev := domain.EventRecord{
		ID:        normalize.EventKey(msg.Sport, msg.Home, msg.Away, start),
		Sport:     normalize.ParseSport(msg.Sport),
		League:    msg.League,
		Home:      msg.Home,
		Away:      msg.Away,
		StartTime: start,
	}

	var updates []QuoteUpdate
	for _, m := range msg.Markets {
		base := domain.RawMarket{
			Sport:    msg.Sport,
			EventID:  ev.ID,
			Name:     m.Name,
			Line:     m.Line,
			LineTeam: lineTeam(m, msg),
			HomeTeam: msg.Home,
			AwayTeam: msg.Away,
		}
		for sel, price := range selections(m.Odds) {
			raw := base
			raw.Selection = sel
			updates = append(updates, QuoteUpdate{Raw: raw, Price: price})
		}
	}
	return ev, updates
}

// lineTeam resolves the hdp_team field, which some bookies send as a team
// name rather than a side, not always spelled the way the fixture spells it.
func lineTeam(m MarketEntry, msg *Message) string {
	switch m.HdpTeam {
	case "", "home", "away":
		return m.HdpTeam
	}
	switch {
	case normalize.TeamsMatch(m.HdpTeam, msg.Home, normalize.DefaultTeamThreshold):
		return "home"
	case normalize.TeamsMatch(m.HdpTeam, msg.Away, normalize.DefaultTeamThreshold):
		return "away"
	}
	return ""
}

func selections(o OddsSet) map[string]float64 {
	out := make(map[string]float64, 3)
	put := func(sel string, p *float64) {
		if p != nil && *p > 1.0 {
			out[sel] = *p
		}
	}
	put("home", o.Home)
	put("away", o.Away)
	put("draw", o.Draw)
	put("over", o.Over)
	put("under", o.Under)
	return out
}

// QuoteTime converts the frame's millisecond timestamp, falling back to now
// for bookies that omit it.
func (m *Message) QuoteTime(now time.Time) time.Time {
	if m.UpdatedMS > 0 {
		return time.UnixMilli(m.UpdatedMS).UTC()
	}
	return now
}
