// Package feed binds the two odds feed connections to the engine: every
// incoming quote is normalized, merged into the odds book, and the touched
// market alone is re-evaluated for value.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sharpline/valuebot/internal/dispatch"
	"github.com/sharpline/valuebot/internal/domain"
	"github.com/sharpline/valuebot/internal/filter"
	"github.com/sharpline/valuebot/internal/normalize"
	"github.com/sharpline/valuebot/internal/oddstore"
	"github.com/sharpline/valuebot/internal/platform/oddsfeed"
	"github.com/sharpline/valuebot/internal/value"
)

// Ingestor is the per-quote pipeline. Shared engine state lives in the odds
// store and the dispatch ledger; the ingestor only tracks the last rejection
// reason per key so a flapping candidate is not audited on every tick.
type Ingestor struct {
	store      *oddstore.Store
	filter     *filter.Engine
	coord      *dispatch.Coordinator
	quoteCache domain.QuoteCache
	audits     domain.AuditStore
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time

	reasonMu   sync.Mutex
	lastReason map[string]string
}

// NewIngestor wires the pipeline. quoteCache and audits may be nil; the cache
// mirror and the found-bet audit trail are then skipped.
func NewIngestor(store *oddstore.Store, flt *filter.Engine, coord *dispatch.Coordinator,
	quoteCache domain.QuoteCache, audits domain.AuditStore,
	staleAfter time.Duration, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:      store,
		filter:     flt,
		coord:      coord,
		quoteCache: quoteCache,
		audits:     audits,
		logger:     logger.With(slog.String("component", "ingest")),
		staleAfter: staleAfter,
		now:        time.Now,
		lastReason: make(map[string]string),
	}
}

// Bind registers the ingestor on a feed client.
func (i *Ingestor) Bind(client *oddsfeed.Client) {
	client.OnUpdate(i.HandleUpdate)
	client.OnDisconnect(i.HandleDisconnect)
}

// HandleUpdate processes one odds frame. Unsupported markets and stale
// quotes are dropped quietly; they are normal feed noise.
func (i *Ingestor) HandleUpdate(source domain.Source, ev domain.EventRecord, updates []oddsfeed.QuoteUpdate, quotedAt time.Time) {
	ctx := context.Background()
	i.store.UpsertEvent(ev)

	for _, u := range updates {
		key, err := normalize.Normalize(u.Raw)
		if err != nil {
			continue
		}

		st, err := i.store.ApplyQuote(key, domain.Quote{
			Source:    source,
			Price:     u.Price,
			UpdatedAt: quotedAt,
		})
		if err != nil {
			if !errors.Is(err, domain.ErrStaleQuote) {
				i.logger.Warn("apply quote failed", slog.String("key", key.String()), slog.Any("error", err))
			}
			continue
		}

		if i.quoteCache != nil {
			if err := i.quoteCache.SetQuote(ctx, key.DedupKey(), source, u.Price, quotedAt); err != nil {
				i.logger.Debug("quote cache write failed", slog.Any("error", err))
			}
		}

		i.evaluate(ctx, st)
	}
}

// evaluate runs the value pipeline for the one market a quote touched.
func (i *Ingestor) evaluate(ctx context.Context, st domain.MarketState) {
	now := i.now()
	if !st.TwoSided(now, i.staleAfter) {
		return
	}

	res, err := value.Evaluate(st)
	if err != nil {
		return
	}

	decision := i.filter.Check(st, res, now)
	if !decision.Eligible {
		i.recordIneligible(ctx, st, res, decision.Reason)
		return
	}
	i.clearReason(st.Key.DedupKey())

	i.recordFound(ctx, st, res)

	if err := i.coord.Trigger(ctx, st, res); err != nil {
		// Repeat triggers on a claimed key are the common case when odds
		// flap around the threshold.
		if !errors.Is(err, domain.ErrAlreadyDispatched) {
			i.logger.Warn("dispatch trigger failed", slog.String("key", st.Key.String()), slog.Any("error", err))
		}
	}
}

func (i *Ingestor) recordFound(ctx context.Context, st domain.MarketState, res domain.ValueResult) {
	i.logger.Info("value bet found",
		slog.String("key", st.Key.String()),
		slog.Float64("sharp", st.Sharp.Price),
		slog.Float64("soft", st.Soft.Price),
		slog.Float64("value_pct", res.ValueFloat()))

	if i.audits == nil {
		return
	}
	rec := domain.AuditRecord{
		ID:         uuid.NewString(),
		At:         i.now(),
		Event:      domain.AuditValueBetFound,
		Key:        st.Key.DedupKey(),
		Sport:      string(st.Key.Sport),
		Market:     string(st.Key.Market),
		SharpPrice: st.Sharp.Price,
		SoftPrice:  st.Soft.Price,
		ValuePct:   res.ValueFloat(),
	}
	if err := i.audits.Record(ctx, rec); err != nil {
		i.logger.Error("audit persist failed", slog.Any("error", err))
	}
}

// recordIneligible audits a candidate with an edge that a filter rule turned
// away, once per distinct reason. Negative-value markets are book noise and
// stay out of the trail.
func (i *Ingestor) recordIneligible(ctx context.Context, st domain.MarketState, res domain.ValueResult, reason string) {
	if res.ValuePct.Sign() <= 0 {
		return
	}

	dedup := st.Key.DedupKey()
	i.reasonMu.Lock()
	repeat := i.lastReason[dedup] == reason
	i.lastReason[dedup] = reason
	i.reasonMu.Unlock()
	if repeat {
		return
	}

	i.logger.Debug("candidate ineligible",
		slog.String("key", st.Key.String()),
		slog.String("reason", reason),
		slog.Float64("value_pct", res.ValueFloat()))

	if i.audits == nil {
		return
	}
	rec := domain.AuditRecord{
		ID:         uuid.NewString(),
		At:         i.now(),
		Event:      domain.AuditIneligible,
		Key:        dedup,
		Sport:      string(st.Key.Sport),
		Market:     string(st.Key.Market),
		SharpPrice: st.Sharp.Price,
		SoftPrice:  st.Soft.Price,
		ValuePct:   res.ValueFloat(),
		Reason:     reason,
	}
	if err := i.audits.Record(ctx, rec); err != nil {
		i.logger.Error("audit persist failed", slog.Any("error", err))
	}
}

func (i *Ingestor) clearReason(dedup string) {
	i.reasonMu.Lock()
	delete(i.lastReason, dedup)
	i.reasonMu.Unlock()
}

// HandleDisconnect ages out the lost feed's quotes so its last prices cannot
// keep driving dispatch while the client reconnects.
func (i *Ingestor) HandleDisconnect(source domain.Source, cause error) {
	i.logger.Warn("feed lost, marking quotes stale",
		slog.String("feed", string(source)), slog.Any("error", cause))
	i.store.MarkStale(source)

	if i.audits != nil {
		rec := domain.AuditRecord{
			ID:     uuid.NewString(),
			At:     i.now(),
			Event:  domain.AuditFeedDisconnect,
			Reason: cause.Error(),
			Detail: map[string]any{"feed": string(source)},
		}
		if err := i.audits.Record(context.Background(), rec); err != nil {
			i.logger.Error("audit persist failed", slog.Any("error", err))
		}
	}
}

// SweepLoop evicts finished events from the odds book on a fixed cadence,
// then rescans the surviving two-sided markets. The rescan catches markets
// whose time-to-start window opened since their last quote; without it a
// quiet market could sit on an edge and never dispatch.
func (i *Ingestor) SweepLoop(ctx context.Context, every, maxAge time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := i.store.Sweep(maxAge); n > 0 {
				i.logger.Info("odds book swept", slog.Int("removed", n))
			}
			for _, st := range i.store.TwoSided() {
				i.evaluate(ctx, st)
			}
		}
	}
}
