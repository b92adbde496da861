// Package dispatch turns eligible value markets into at-most-once bet
// placements against the soft book.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sharpline/valuebot/internal/domain"
)

// Placer is the bookmaker side of dispatch, implemented by platform/duel.
type Placer interface {
	PlaceBet(ctx context.Context, cred domain.Credential, intent domain.BetIntent) (domain.BetOutcome, error)
}

// CredentialSource supplies session tokens, implemented by
// credential.Refresher.
type CredentialSource interface {
	Current(now time.Time) (domain.Credential, error)
	ForceRefresh(ctx context.Context) (domain.Credential, error)
}

// Announcer receives dispatch lifecycle events for operator channels.
// Implementations must not block.
type Announcer interface {
	Announce(ctx context.Context, event string, detail map[string]any)
}

// Config bounds the coordinator's side effects.
type Config struct {
	PlaceTimeout time.Duration
	// DedupTTL bounds how long the cross-process dispatch marker lives.
	// It must outlast the maximum time-to-start window.
	DedupTTL time.Duration
	DryRun   bool
}

// Coordinator serializes dispatch claims and runs one placement goroutine
// per claimed key. It guarantees at most one placement attempt chain per
// canonical market key per session.
type Coordinator struct {
	cfg    Config
	ledger *Ledger
	placer Placer
	creds  CredentialSource
	dedup  domain.DedupStore
	audits domain.AuditStore
	events domain.IntentStore
	notify Announcer
	logger *slog.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewCoordinator wires a Coordinator. dedup, audits, events and notify may be
// nil in monitor-only setups; the at-most-once guarantee then holds per
// process rather than per fleet.
func NewCoordinator(cfg Config, ledger *Ledger, placer Placer, creds CredentialSource,
	dedup domain.DedupStore, audits domain.AuditStore, events domain.IntentStore,
	notify Announcer, logger *slog.Logger) *Coordinator {
	if cfg.PlaceTimeout <= 0 {
		cfg.PlaceTimeout = 20 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 72 * time.Hour
	}
	return &Coordinator{
		cfg:    cfg,
		ledger: ledger,
		placer: placer,
		creds:  creds,
		dedup:  dedup,
		audits: audits,
		events: events,
		notify: notify,
		logger: logger.With(slog.String("component", "dispatch")),
		now:    time.Now,
	}
}

// Trigger attempts to claim and dispatch one eligible market. The claim is
// synchronous and serialized; the placement runs on its own goroutine so a
// slow bookmaker round-trip never stalls feed ingestion. Repeat triggers for
// a claimed key return domain.ErrAlreadyDispatched.
func (c *Coordinator) Trigger(ctx context.Context, st domain.MarketState, res domain.ValueResult) error {
	key := st.Key
	if key.Excluded {
		return fmt.Errorf("dispatch: %s excluded: %w", key, domain.ErrDispatchRejected)
	}
	dedupKey := key.DedupKey()

	stake, err := c.ledger.Claim(dedupKey)
	if err != nil {
		return err
	}

	// Cross-process claim. The marker goes down before placement so a crash
	// between mark and place loses a bet rather than doubling one.
	if c.dedup != nil {
		fresh, derr := c.dedup.MarkDispatched(ctx, dedupKey, c.cfg.DedupTTL)
		if derr != nil {
			c.ledger.Settle(dedupKey, domain.IntentFailed, stake)
			return fmt.Errorf("dispatch: dedup mark: %w", derr)
		}
		if !fresh {
			c.ledger.Settle(dedupKey, domain.IntentDispatched, 0)
			return fmt.Errorf("dispatch: %s placed elsewhere: %w", key, domain.ErrAlreadyDispatched)
		}
	}

	target, _ := res.Target.Float64()
	intent := domain.BetIntent{
		ID:        uuid.NewString(),
		Key:       key,
		Selection: key.Selection,
		Stake:     stake,
		Price:     target,
		ValuePct:  res.ValueFloat(),
		CreatedAt: c.now(),
	}

	if c.events != nil {
		if err := c.events.Create(ctx, intent); err != nil {
			c.logger.Error("intent persist failed", slog.String("key", dedupKey), slog.Any("error", err))
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.place(context.WithoutCancel(ctx), st, res, intent)
	}()
	return nil
}

// place runs the placement attempt chain for one claimed intent: at most one
// bookmaker call, plus one retry only for a stale-credential rejection after
// a forced refresh.
func (c *Coordinator) place(ctx context.Context, st domain.MarketState, res domain.ValueResult, intent domain.BetIntent) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PlaceTimeout)
	defer cancel()

	dedupKey := intent.Key.DedupKey()
	log := c.logger.With(slog.String("key", dedupKey), slog.String("intent_id", intent.ID))

	if c.cfg.DryRun {
		log.Info("dry run, bet not sent",
			slog.Float64("stake", intent.Stake), slog.Float64("price", intent.Price))
		c.ledger.Settle(dedupKey, domain.IntentDispatched, 0)
		c.record(ctx, st, res, intent, domain.BetOutcome{Status: domain.OutcomeConfirmed, Reason: "dry_run"})
		return
	}

	outcome, sent, err := c.attempt(ctx, intent)
	if err != nil && errors.Is(err, domain.ErrStaleCredential) {
		// One retry after a forced refresh. Any failure past this point is
		// terminal for the key.
		if _, rerr := c.creds.ForceRefresh(ctx); rerr != nil {
			err = rerr
		} else {
			var retried bool
			outcome, retried, err = c.attempt(ctx, intent)
			sent = sent || retried
		}
	}

	switch {
	case err != nil && !sent:
		// The chain died before anything left the process, so the book
		// cannot hold this bet. The stake returns; the key stays claimed.
		log.Warn("placement aborted before send", slog.Any("error", err))
		c.ledger.Settle(dedupKey, domain.IntentFailed, intent.Stake)
		c.record(ctx, st, res, intent, domain.BetOutcome{Status: domain.OutcomeError, Reason: err.Error()})

	case err != nil:
		// Transport-level failure: the bet may or may not have reached the
		// book. Treat as unknown and keep the stake reserved; the key is
		// never retried.
		log.Error("placement outcome unknown", slog.Any("error", err))
		c.ledger.Settle(dedupKey, domain.IntentDispatched, 0)
		c.record(ctx, st, res, intent, domain.BetOutcome{Status: domain.OutcomeUnknown, Reason: err.Error()})

	case outcome.Status == domain.OutcomeConfirmed:
		log.Info("bet dispatched",
			slog.Float64("stake", intent.Stake),
			slog.Float64("price", intent.Price),
			slog.Float64("value_pct", intent.ValuePct),
			slog.String("bet_id", outcome.BetID))
		c.ledger.Settle(dedupKey, domain.IntentDispatched, 0)
		c.record(ctx, st, res, intent, outcome)

	default:
		// The book said no. Stake returns to the balance; the key stays
		// claimed so flapping odds cannot re-trigger it.
		log.Warn("bet rejected", slog.String("reason", outcome.Reason))
		c.ledger.Settle(dedupKey, domain.IntentFailed, intent.Stake)
		c.record(ctx, st, res, intent, outcome)
	}
}

// attempt makes at most one bookmaker call. The bool reports whether the
// call actually went out; a credential failure stops the chain before any
// network traffic.
func (c *Coordinator) attempt(ctx context.Context, intent domain.BetIntent) (domain.BetOutcome, bool, error) {
	cred, err := c.creds.Current(c.now())
	if err != nil {
		return domain.BetOutcome{}, false, err
	}
	outcome, err := c.placer.PlaceBet(ctx, cred, intent)
	return outcome, true, err
}

// record persists the audit row, updates the intent outcome, and announces
// the event. Persistence failures are logged, never bubbled: the bet already
// happened.
func (c *Coordinator) record(ctx context.Context, st domain.MarketState, res domain.ValueResult, intent domain.BetIntent, outcome domain.BetOutcome) {
	event := domain.AuditBetDispatched
	switch outcome.Status {
	case domain.OutcomeRejected:
		event = domain.AuditBetRejected
	case domain.OutcomeError:
		event = domain.AuditBetFailed
	case domain.OutcomeUnknown:
		event = domain.AuditBetUnknown
	}

	if c.events != nil {
		if err := c.events.SetOutcome(ctx, intent.ID, outcome); err != nil {
			c.logger.Error("intent outcome persist failed", slog.String("intent_id", intent.ID), slog.Any("error", err))
		}
	}

	if c.audits != nil {
		rec := domain.AuditRecord{
			ID:       uuid.NewString(),
			At:       c.now(),
			Event:    event,
			Key:      intent.Key.DedupKey(),
			Sport:    string(intent.Key.Sport),
			Market:   string(intent.Key.Market),
			ValuePct: intent.ValuePct,
			Stake:    intent.Stake,
			Outcome:  string(outcome.Status),
			Reason:   outcome.Reason,
		}
		if st.Sharp != nil {
			rec.SharpPrice = st.Sharp.Price
		}
		if st.Soft != nil {
			rec.SoftPrice = st.Soft.Price
		}
		if err := c.audits.Record(ctx, rec); err != nil {
			c.logger.Error("audit persist failed", slog.Any("error", err))
		}
	}

	if c.notify != nil {
		c.notify.Announce(ctx, event, map[string]any{
			"key":     intent.Key.String(),
			"stake":   intent.Stake,
			"price":   intent.Price,
			"value":   intent.ValuePct,
			"outcome": string(outcome.Status),
			"reason":  outcome.Reason,
		})
	}
}

// Wait blocks until all in-flight placements settle. Called on shutdown
// after ingestion stops.
func (c *Coordinator) Wait() { c.wg.Wait() }
