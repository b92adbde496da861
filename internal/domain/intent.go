package domain

import "time"

// IntentState is the per-key dispatch state machine. A key moves
// Unseen -> Dispatching -> Dispatched | Failed and never back. The single
// stale-credential retry happens inside Dispatching; Failed is terminal for
// the session.
type IntentState int

const (
	IntentUnseen IntentState = iota
	IntentDispatching
	IntentDispatched
	IntentFailed
)

func (s IntentState) String() string {
	switch s {
	case IntentUnseen:
		return "unseen"
	case IntentDispatching:
		return "dispatching"
	case IntentDispatched:
		return "dispatched"
	case IntentFailed:
		return "failed"
	}
	return "unknown"
}

// BetIntent is the immutable record of a decision to bet. Created exactly
// once per eligible opportunity per session; its key doubles as the dedup key.
type BetIntent struct {
	ID        string // UUID
	Key       MarketKey
	Selection Selection
	Stake     float64 // computed from balance at decision time
	Price     float64 // soft price at decision time
	ValuePct  float64
	CreatedAt time.Time
}

// OutcomeStatus classifies the result of handing an intent to the execution
// collaborator.
type OutcomeStatus string

const (
	OutcomeConfirmed OutcomeStatus = "confirmed"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeError     OutcomeStatus = "error"
	// OutcomeUnknown marks intents whose fate was lost to a shutdown or
	// timeout mid-flight. They are never retried automatically; operators
	// reconcile against the account before re-enabling the key.
	OutcomeUnknown OutcomeStatus = "unknown"
)

// BetOutcome is the execution collaborator's answer for one placed intent.
type BetOutcome struct {
	Status OutcomeStatus
	Reason string // rejection reason or error text
	BetID  string // bookmaker-side identifier when confirmed
}
