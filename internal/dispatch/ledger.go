package dispatch

import (
	"fmt"
	"math"
	"sync"

	"github.com/sharpline/valuebot/internal/domain"
)

// Ledger is the session-scoped record of dispatch attempts and bankroll. All
// transitions happen under one mutex so a market key can be claimed exactly
// once no matter how many quote updates race on it.
type Ledger struct {
	mu       sync.Mutex
	balance  float64
	stakePct float64
	states   map[string]domain.IntentState
}

// NewLedger returns a Ledger staking stakePct percent of the running balance
// per bet.
func NewLedger(balance, stakePct float64) *Ledger {
	return &Ledger{
		balance:  balance,
		stakePct: stakePct,
		states:   make(map[string]domain.IntentState),
	}
}

// Claim transitions a key from unseen to dispatching and reserves its stake
// in one atomic step. The balance is read exactly once per claim; two
// concurrent claims can never size their stakes off the same balance. A key
// in any state past unseen is rejected with domain.ErrAlreadyDispatched.
func (l *Ledger) Claim(dedupKey string) (stake float64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.states[dedupKey]; st != domain.IntentUnseen {
		return 0, fmt.Errorf("ledger: %s is %s: %w", dedupKey, st, domain.ErrAlreadyDispatched)
	}

	stake = math.Round(l.balance*l.stakePct) / 100
	if stake <= 0 {
		return 0, fmt.Errorf("ledger: balance %.2f too low: %w", l.balance, domain.ErrDispatchRejected)
	}

	l.balance -= stake
	l.states[dedupKey] = domain.IntentDispatching
	return stake, nil
}

// Settle records the terminal state of a claimed key. A failed claim whose
// stake never left the account returns the stake to the balance; dispatched
// and unknown outcomes keep it reserved.
func (l *Ledger) Settle(dedupKey string, state domain.IntentState, refund float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[dedupKey] = state
	if state == domain.IntentFailed {
		l.balance += refund
	}
}

// MarkDispatched records an externally observed dispatch (a cross-process
// dedup hit) so the key is never attempted in this session.
func (l *Ledger) MarkDispatched(dedupKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[dedupKey] = domain.IntentDispatched
}

// State reports the current intent state for a key.
func (l *Ledger) State(dedupKey string) domain.IntentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[dedupKey]
}

// Balance returns the current uncommitted balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// SetBalance replaces the balance with a figure confirmed by the bookmaker.
func (l *Ledger) SetBalance(b float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = b
}
