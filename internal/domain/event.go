package domain

import "time"

type EventKind string

const (
	KindPaymentSucceeded EventKind = "payment_succeeded"
	KindPaymentFailed    EventKind = "payment_failed"
	KindChargeRefunded   EventKind = "charge_refunded"
	KindUnknown          EventKind = "unknown"
)

// NotificationEvent is the normalized form of one webhook delivery. It lives
// for the duration of a single pipeline pass and is never persisted as-is;
// the webhook_events table keeps the raw payload for audit.
type NotificationEvent struct {
	EventID          string
	Kind             EventKind
	RemotePaymentRef string
	RemoteChargeRef  string
	RemoteRefundRef  string
	ReceivedAt       time.Time
}

// Outcome classifies the result of reconciling one delivery. Every pipeline
// path terminates in exactly one of these.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeNoOp           Outcome = "no_op"
	OutcomeRecordNotFound Outcome = "record_not_found"
	OutcomeConflict       Outcome = "conflict"
	OutcomeAnomaly        Outcome = "anomaly"
	OutcomeError          Outcome = "error"
)

// Settled reports whether an outcome is final for deduplication. An empty
// outcome means the attempt never finished, and OutcomeError covers failures
// the processor is told to redeliver; a redelivery of either must be
// reprocessed, not dropped.
func (o Outcome) Settled() bool {
	return o != "" && o != OutcomeError
}
