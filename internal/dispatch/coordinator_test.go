package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
	"github.com/sharpline/valuebot/internal/value"
)

type fakePlacer struct {
	mu       sync.Mutex
	calls    int32
	outcomes []domain.BetOutcome
	errs     []error
	placed   []domain.BetIntent
}

func (f *fakePlacer) PlaceBet(ctx context.Context, cred domain.Credential, intent domain.BetIntent) (domain.BetOutcome, error) {
	n := int(atomic.AddInt32(&f.calls, 1)) - 1
	f.mu.Lock()
	f.placed = append(f.placed, intent)
	f.mu.Unlock()
	if n < len(f.errs) && f.errs[n] != nil {
		return domain.BetOutcome{}, f.errs[n]
	}
	if n < len(f.outcomes) {
		return f.outcomes[n], nil
	}
	return domain.BetOutcome{Status: domain.OutcomeConfirmed, BetID: "b1"}, nil
}

type fakeCreds struct {
	refreshes  int32
	stale      atomic.Bool
	refreshErr error
}

func (f *fakeCreds) Current(now time.Time) (domain.Credential, error) {
	if f.stale.Load() {
		return domain.Credential{}, domain.ErrStaleCredential
	}
	return domain.Credential{Token: "tok", ExpiresAt: now.Add(time.Hour)}, nil
}

func (f *fakeCreds) ForceRefresh(ctx context.Context) (domain.Credential, error) {
	atomic.AddInt32(&f.refreshes, 1)
	if f.refreshErr != nil {
		return domain.Credential{}, f.refreshErr
	}
	f.stale.Store(false)
	return domain.Credential{Token: "tok2", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memDedup) MarkDispatched(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memDedup) IsDispatched(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

type memAudit struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (m *memAudit) Record(ctx context.Context, rec domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditRecord, error) {
	return nil, nil
}

func (m *memAudit) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditRecord, error) {
	return nil, nil
}

func (m *memAudit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *memAudit) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.recs))
	for i, r := range m.recs {
		out[i] = r.Event
	}
	return out
}

func twoSidedState(t *testing.T) (domain.MarketState, domain.ValueResult) {
	t.Helper()
	now := time.Now()
	st := domain.MarketState{
		Key: domain.MarketKey{
			Sport: domain.SportFootball, EventID: "ev1", Market: domain.MarketTotal,
			Period: domain.PeriodFullTime, Selection: domain.SelectionOver, Line: 2.5, HasLine: true,
		},
		Event: domain.EventRecord{ID: "ev1", StartTime: now.Add(3 * time.Hour)},
		Sharp: &domain.Quote{Source: domain.SourceSharp, Price: 2.00, UpdatedAt: now},
		Soft:  &domain.Quote{Source: domain.SourceSoft, Price: 2.20, UpdatedAt: now},
	}
	res, err := value.Evaluate(st)
	require.NoError(t, err)
	return st, res
}

func newTestCoordinator(placer Placer, creds CredentialSource, dedup domain.DedupStore, audit domain.AuditStore) (*Coordinator, *Ledger) {
	ledger := NewLedger(1000, 1.5)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCoordinator(Config{PlaceTimeout: time.Second}, ledger, placer, creds, dedup, audit, nil, nil, logger)
	return c, ledger
}

func TestTriggerDispatchesOnce(t *testing.T) {
	placer := &fakePlacer{}
	c, ledger := newTestCoordinator(placer, &fakeCreds{}, &memDedup{}, &memAudit{})
	st, res := twoSidedState(t)

	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&placer.calls))
	assert.Equal(t, domain.IntentDispatched, ledger.State(st.Key.DedupKey()))
	assert.Equal(t, 985.00, ledger.Balance())
	require.Len(t, placer.placed, 1)
	assert.Equal(t, 15.00, placer.placed[0].Stake)
	assert.Equal(t, 2.20, placer.placed[0].Price)
}

func TestConcurrentTriggersPlaceExactlyOne(t *testing.T) {
	placer := &fakePlacer{}
	c, _ := newTestCoordinator(placer, &fakeCreds{}, &memDedup{}, &memAudit{})
	st, res := twoSidedState(t)

	const n = 32
	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Trigger(context.Background(), st, res); err == nil {
				atomic.AddInt32(&accepted, 1)
			} else {
				assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)
			}
		}()
	}
	wg.Wait()
	c.Wait()

	assert.Equal(t, int32(1), accepted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&placer.calls))
}

func TestTriggerHonorsCrossProcessDedup(t *testing.T) {
	placer := &fakePlacer{}
	dedup := &memDedup{}
	c, ledger := newTestCoordinator(placer, &fakeCreds{}, dedup, &memAudit{})
	st, res := twoSidedState(t)
	_, err := dedup.MarkDispatched(context.Background(), st.Key.DedupKey(), time.Hour)
	require.NoError(t, err)

	err = c.Trigger(context.Background(), st, res)
	assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)
	c.Wait()

	assert.Zero(t, atomic.LoadInt32(&placer.calls))
	assert.Equal(t, domain.IntentDispatched, ledger.State(st.Key.DedupKey()))
}

func TestTriggerRejectsExcludedKey(t *testing.T) {
	placer := &fakePlacer{}
	c, _ := newTestCoordinator(placer, &fakeCreds{}, &memDedup{}, &memAudit{})
	st, res := twoSidedState(t)
	st.Key.Excluded = true

	err := c.Trigger(context.Background(), st, res)
	assert.ErrorIs(t, err, domain.ErrDispatchRejected)
	c.Wait()
	assert.Zero(t, atomic.LoadInt32(&placer.calls))
}

func TestStaleCredentialRetriesOnce(t *testing.T) {
	creds := &fakeCreds{}
	creds.stale.Store(true)
	placer := &fakePlacer{}
	audit := &memAudit{}
	c, ledger := newTestCoordinator(placer, creds, &memDedup{}, audit)
	st, res := twoSidedState(t)

	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&creds.refreshes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&placer.calls))
	assert.Equal(t, domain.IntentDispatched, ledger.State(st.Key.DedupKey()))
	assert.Equal(t, []string{domain.AuditBetDispatched}, audit.events())
}

func TestAuthOutageRefundsUnsentStake(t *testing.T) {
	creds := &fakeCreds{refreshErr: errors.New("login: 503")}
	creds.stale.Store(true)
	placer := &fakePlacer{}
	audit := &memAudit{}
	c, ledger := newTestCoordinator(placer, creds, &memDedup{}, audit)
	st, res := twoSidedState(t)

	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	// No call ever left the process, so the stake must come back.
	assert.Zero(t, atomic.LoadInt32(&placer.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&creds.refreshes))
	assert.Equal(t, domain.IntentFailed, ledger.State(st.Key.DedupKey()))
	assert.Equal(t, 1000.00, ledger.Balance())
	assert.Equal(t, []string{domain.AuditBetFailed}, audit.events())
}

func TestRejectedBetRefundsStake(t *testing.T) {
	placer := &fakePlacer{outcomes: []domain.BetOutcome{{Status: domain.OutcomeRejected, Reason: "odds_changed"}}}
	audit := &memAudit{}
	c, ledger := newTestCoordinator(placer, &fakeCreds{}, &memDedup{}, audit)
	st, res := twoSidedState(t)

	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	assert.Equal(t, domain.IntentFailed, ledger.State(st.Key.DedupKey()))
	assert.Equal(t, 1000.00, ledger.Balance())
	assert.Equal(t, []string{domain.AuditBetRejected}, audit.events())

	// The key stays claimed: flapping odds cannot re-trigger it.
	err := c.Trigger(context.Background(), st, res)
	assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)
}

func TestTransportErrorIsTerminalUnknown(t *testing.T) {
	placer := &fakePlacer{errs: []error{errors.New("connection reset")}}
	audit := &memAudit{}
	c, ledger := newTestCoordinator(placer, &fakeCreds{}, &memDedup{}, audit)
	st, res := twoSidedState(t)

	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	// The bet may have landed: keep the stake committed, never retry.
	assert.Equal(t, int32(1), atomic.LoadInt32(&placer.calls))
	assert.Equal(t, domain.IntentDispatched, ledger.State(st.Key.DedupKey()))
	assert.Equal(t, 985.00, ledger.Balance())
	assert.Equal(t, []string{domain.AuditBetUnknown}, audit.events())

	err := c.Trigger(context.Background(), st, res)
	assert.ErrorIs(t, err, domain.ErrAlreadyDispatched)
}

func TestDryRunSkipsPlacement(t *testing.T) {
	placer := &fakePlacer{}
	ledger := NewLedger(1000, 1.5)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := &memAudit{}
	c := NewCoordinator(Config{DryRun: true}, ledger, placer, &fakeCreds{}, &memDedup{}, audit, nil, nil, logger)

	st, res := twoSidedState(t)
	require.NoError(t, c.Trigger(context.Background(), st, res))
	c.Wait()

	assert.Zero(t, atomic.LoadInt32(&placer.calls))
	assert.Equal(t, domain.IntentDispatched, ledger.State(st.Key.DedupKey()))
}
