package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// RecordStore is the slice of the payment store the reconciler depends on.
// CompareAndUpdateStatus must be atomic with respect to concurrent callers
// on the same record.
type RecordStore interface {
	FindByRemotePaymentID(ctx context.Context, ref string) (*domain.PaymentRecord, error)
	CompareAndUpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.PaymentStatus) (bool, error)
}

type step int

const (
	stepApply step = iota
	stepNoOp
	stepAnomaly
)

// nextStatus encodes the transition table. Refunded is absorbing: nothing
// moves a record away from it. A success arriving after a failure wins,
// because the processor's success is authoritative and failure webhooks can
// be delivered late.
func nextStatus(cur domain.PaymentStatus, kind domain.EventKind) (domain.PaymentStatus, step) {
	switch cur {
	case domain.PaymentStatusPending:
		switch kind {
		case domain.KindPaymentSucceeded:
			return domain.PaymentStatusSucceeded, stepApply
		case domain.KindPaymentFailed:
			return domain.PaymentStatusFailed, stepApply
		case domain.KindChargeRefunded:
			return cur, stepAnomaly
		}
	case domain.PaymentStatusSucceeded:
		switch kind {
		case domain.KindPaymentSucceeded:
			return cur, stepNoOp
		case domain.KindPaymentFailed:
			return cur, stepAnomaly
		case domain.KindChargeRefunded:
			return domain.PaymentStatusRefunded, stepApply
		}
	case domain.PaymentStatusFailed:
		switch kind {
		case domain.KindPaymentSucceeded:
			return domain.PaymentStatusSucceeded, stepApply
		case domain.KindPaymentFailed:
			return cur, stepNoOp
		case domain.KindChargeRefunded:
			return cur, stepAnomaly
		}
	case domain.PaymentStatusRefunded:
		return cur, stepNoOp
	}
	return cur, stepNoOp
}

type Reconciler struct {
	store  RecordStore
	logger *slog.Logger
}

func NewReconciler(store RecordStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Reconcile applies one event kind to the record identified by the remote
// payment ref. Writes go through a conditional update keyed on the status
// read at lookup time; a concurrent writer causes one re-read and retry
// before giving up with OutcomeConflict.
func (r *Reconciler) Reconcile(ctx context.Context, remotePaymentRef string, kind domain.EventKind) domain.Outcome {
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := r.store.FindByRemotePaymentID(ctx, remotePaymentRef)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The record may not be persisted yet; creation and webhook
				// delivery race.
				r.logger.Warn("no record for remote payment",
					"remote_payment_id", remotePaymentRef,
					"kind", kind,
				)
				return domain.OutcomeRecordNotFound
			}
			r.logger.Error("record lookup failed", "remote_payment_id", remotePaymentRef, "error", err)
			return domain.OutcomeError
		}

		next, s := nextStatus(rec.Status, kind)
		switch s {
		case stepNoOp:
			return domain.OutcomeNoOp
		case stepAnomaly:
			r.logger.Warn("anomalous event for record state",
				"remote_payment_id", remotePaymentRef,
				"status", rec.Status,
				"kind", kind,
			)
			return domain.OutcomeAnomaly
		}

		ok, err := r.store.CompareAndUpdateStatus(ctx, rec.ID, rec.Status, next)
		if err != nil {
			r.logger.Error("status update failed",
				"payment_id", rec.ID,
				"from", rec.Status,
				"to", next,
				"error", err,
			)
			return domain.OutcomeError
		}
		if ok {
			r.logger.Info("payment status reconciled",
				"payment_id", rec.ID,
				"remote_payment_id", remotePaymentRef,
				"from", rec.Status,
				"to", next,
				"kind", kind,
			)
			return domain.OutcomeApplied
		}
		// Lost the race; re-read and recompute once.
	}

	r.logger.Warn("record changed concurrently twice, giving up",
		"remote_payment_id", remotePaymentRef,
		"kind", kind,
	)
	return domain.OutcomeConflict
}
