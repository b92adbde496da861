package domain

import "time"

// Audit event names emitted by the engine.
const (
	AuditValueBetFound  = "value_bet_found"
	AuditBetDispatched  = "bet_dispatched"
	AuditBetRejected    = "bet_rejected"
	AuditBetFailed      = "bet_failed"
	AuditBetUnknown     = "bet_unknown"
	AuditIneligible     = "ineligible"
	AuditFeedDisconnect = "feed_disconnected"
	AuditCredential     = "credential"
)

// AuditRecord is one row of the audit trail: every dispatched or rejected
// opportunity produces one, carrying both sides' prices and the decision.
type AuditRecord struct {
	ID         string
	At         time.Time
	Event      string
	Key        string // MarketKey.DedupKey()
	Sport      string
	Market     string
	SharpPrice float64
	SoftPrice  float64
	ValuePct   float64
	Decision   string
	Reason     string
	Stake      float64
	Outcome    string
	Detail     map[string]any
}
