package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/processor"
)

type pendingStore interface {
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.PaymentRecord, error)
}

type intentGetter interface {
	GetIntent(ctx context.Context, remoteID string) (*processor.Intent, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, remotePaymentRef string, kind domain.EventKind) domain.Outcome
}

// Sweeper recovers records whose webhook never arrived (or arrived before
// the record existed). It periodically asks the processor for the current
// intent status of stale pending records and feeds the answer through the
// same state machine the webhook pipeline uses.
type Sweeper struct {
	store      pendingStore
	proc       intentGetter
	reconciler reconciler
	logger     *slog.Logger
	interval   time.Duration
	pendingAge time.Duration
	batchSize  int
}

func NewSweeper(store pendingStore, proc intentGetter, rec reconciler, logger *slog.Logger, interval, pendingAge time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		store:      store,
		proc:       proc,
		reconciler: rec,
		logger:     logger,
		interval:   interval,
		pendingAge: pendingAge,
		batchSize:  batchSize,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("reconciliation sweeper started", "interval", s.interval, "pending_age", s.pendingAge)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	records, err := s.store.ListStalePending(ctx, s.pendingAge, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list stale pending payments", "error", err)
		return
	}

	for _, rec := range records {
		intent, err := s.proc.GetIntent(ctx, rec.RemotePaymentID)
		if err != nil {
			// Leave it for the next pass.
			s.logger.Warn("intent status lookup failed",
				"payment_id", rec.ID,
				"remote_payment_id", rec.RemotePaymentID,
				"error", err,
			)
			continue
		}

		kind := processor.KindForIntentStatus(intent.Status)
		if kind == domain.KindUnknown {
			continue
		}

		outcome := s.reconciler.Reconcile(ctx, rec.RemotePaymentID, kind)
		s.logger.Info("stale pending payment swept",
			"payment_id", rec.ID,
			"remote_payment_id", rec.RemotePaymentID,
			"intent_status", intent.Status,
			"outcome", outcome,
		)
	}
}
