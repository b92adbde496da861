// Package oddstore holds the live two-feed odds book. It is the only mutable
// shared state between the ingest loops and the dispatch pipeline, so access
// is sharded by market key hash to keep feed bursts from serializing.
package oddstore

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/sharpline/valuebot/internal/domain"
)

const defaultShards = 32

type shard struct {
	mu     sync.RWMutex
	states map[string]*domain.MarketState
}

// Store is the in-memory odds book keyed by canonical market identity.
// Event metadata lives in one map of its own: markets hash by dedup key,
// events by event id, and the two rarely land in the same shard.
type Store struct {
	shards []*shard

	evMu   sync.RWMutex
	events map[string]domain.EventRecord

	staleAfter time.Duration
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithStaleAfter overrides how long a quote counts as fresh.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) { s.staleAfter = d }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		shards:     make([]*shard, defaultShards),
		events:     make(map[string]domain.EventRecord),
		staleAfter: 30 * time.Second,
		now:        time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			states: make(map[string]*domain.MarketState),
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) shardFor(dedup string) *shard {
	h := fnv.New32a()
	h.Write([]byte(dedup))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// UpsertEvent records event metadata on first sighting. Later sightings may
// only correct the start time; all other fields keep their first value.
func (s *Store) UpsertEvent(ev domain.EventRecord) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if prev, ok := s.events[ev.ID]; ok {
		if !ev.StartTime.IsZero() && !ev.StartTime.Equal(prev.StartTime) {
			prev.StartTime = ev.StartTime
			s.events[ev.ID] = prev
		}
		return
	}
	if ev.FirstSeen.IsZero() {
		ev.FirstSeen = s.now()
	}
	s.events[ev.ID] = ev
}

// Event returns the stored metadata for an event.
func (s *Store) Event(id string) (domain.EventRecord, bool) {
	s.evMu.RLock()
	defer s.evMu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// ApplyQuote merges one quote into the market's state and returns the updated
// state. Quotes older than the one already held for the same source are
// rejected with domain.ErrStaleQuote so out-of-order delivery can never roll
// the book backwards.
func (s *Store) ApplyQuote(key domain.MarketKey, q domain.Quote) (domain.MarketState, error) {
	ev, haveEv := s.Event(key.EventID)

	dedup := key.DedupKey()
	sh := s.shardFor(dedup)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[dedup]
	if !ok {
		st = &domain.MarketState{Key: key}
		sh.states[dedup] = st
	}
	// Refresh on every quote so start-time corrections reach live states.
	if haveEv {
		st.Event = ev
	}

	slot := &st.Sharp
	if q.Source == domain.SourceSoft {
		slot = &st.Soft
	}
	if *slot != nil && !q.UpdatedAt.After((*slot).UpdatedAt) {
		return *st, domain.ErrStaleQuote
	}
	cp := q
	*slot = &cp
	return *st, nil
}

// Get returns the current state for a key.
func (s *Store) Get(key domain.MarketKey) (domain.MarketState, bool) {
	sh := s.shardFor(key.DedupKey())
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.states[key.DedupKey()]
	if !ok {
		return domain.MarketState{}, false
	}
	return *st, true
}

// TwoSided returns every market currently quoted fresh by both sources.
func (s *Store) TwoSided() []domain.MarketState {
	now := s.now()
	var out []domain.MarketState
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, st := range sh.states {
			if st.TwoSided(now, s.staleAfter) {
				out = append(out, *st)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// MarkStale ages out one source's quotes across the whole book, used when a
// feed disconnects so its last prices cannot keep driving dispatch.
func (s *Store) MarkStale(source domain.Source) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, st := range sh.states {
			switch source {
			case domain.SourceSharp:
				st.Sharp = nil
			case domain.SourceSoft:
				st.Soft = nil
			}
		}
		sh.mu.Unlock()
	}
}

// Sweep drops markets whose event started more than maxAge ago, plus markets
// with no fresh quote on either side, and returns how many were removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for dedup, st := range sh.states {
			expired := !st.Event.StartTime.IsZero() && now.Sub(st.Event.StartTime) > maxAge
			dead := (st.Sharp == nil || !st.Sharp.Fresh(now, maxAge)) &&
				(st.Soft == nil || !st.Soft.Fresh(now, maxAge))
			if expired || dead {
				delete(sh.states, dedup)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.evMu.Lock()
	for id, ev := range s.events {
		if !ev.StartTime.IsZero() && now.Sub(ev.StartTime) > maxAge {
			delete(s.events, id)
		}
	}
	s.evMu.Unlock()
	return removed
}

// Len reports how many market states are held.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.states)
		sh.mu.RUnlock()
	}
	return n
}
