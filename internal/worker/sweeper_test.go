package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/processor"
)

type fakePendingStore struct {
	records []domain.PaymentRecord
	err     error
}

func (f *fakePendingStore) ListStalePending(context.Context, time.Duration, int) ([]domain.PaymentRecord, error) {
	return f.records, f.err
}

type fakeIntentGetter struct {
	statuses map[string]string
	errs     map[string]error
}

func (f *fakeIntentGetter) GetIntent(_ context.Context, remoteID string) (*processor.Intent, error) {
	if err := f.errs[remoteID]; err != nil {
		return nil, err
	}
	return &processor.Intent{ID: remoteID, Status: f.statuses[remoteID]}, nil
}

type recordedReconcile struct {
	ref  string
	kind domain.EventKind
}

type fakeReconciler struct {
	calls []recordedReconcile
}

func (f *fakeReconciler) Reconcile(_ context.Context, ref string, kind domain.EventKind) domain.Outcome {
	f.calls = append(f.calls, recordedReconcile{ref: ref, kind: kind})
	return domain.OutcomeApplied
}

func pendingRecord(ref string) domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:              uuid.New(),
		RemotePaymentID: ref,
		Status:          domain.PaymentStatusPending,
	}
}

func newTestSweeper(store pendingStore, proc intentGetter, rec reconciler) *Sweeper {
	return NewSweeper(store, proc, rec, slog.Default(), time.Minute, 15*time.Minute, 25)
}

func TestSweepSettlesTerminalIntents(t *testing.T) {
	store := &fakePendingStore{records: []domain.PaymentRecord{
		pendingRecord("pi_done"),
		pendingRecord("pi_dead"),
	}}
	proc := &fakeIntentGetter{statuses: map[string]string{
		"pi_done": "succeeded",
		"pi_dead": "canceled",
	}}
	rec := &fakeReconciler{}

	newTestSweeper(store, proc, rec).sweep(context.Background())

	assert.Equal(t, []recordedReconcile{
		{ref: "pi_done", kind: domain.KindPaymentSucceeded},
		{ref: "pi_dead", kind: domain.KindPaymentFailed},
	}, rec.calls)
}

func TestSweepSkipsNonTerminalIntents(t *testing.T) {
	store := &fakePendingStore{records: []domain.PaymentRecord{pendingRecord("pi_waiting")}}
	proc := &fakeIntentGetter{statuses: map[string]string{"pi_waiting": "requires_payment_method"}}
	rec := &fakeReconciler{}

	newTestSweeper(store, proc, rec).sweep(context.Background())

	assert.Empty(t, rec.calls)
}

func TestSweepSkipsFailedLookups(t *testing.T) {
	// One lookup failing must not stop the rest of the batch.
	store := &fakePendingStore{records: []domain.PaymentRecord{
		pendingRecord("pi_broken"),
		pendingRecord("pi_done"),
	}}
	proc := &fakeIntentGetter{
		statuses: map[string]string{"pi_done": "succeeded"},
		errs:     map[string]error{"pi_broken": errors.New("upstream unavailable")},
	}
	rec := &fakeReconciler{}

	newTestSweeper(store, proc, rec).sweep(context.Background())

	assert.Equal(t, []recordedReconcile{
		{ref: "pi_done", kind: domain.KindPaymentSucceeded},
	}, rec.calls)
}

func TestSweepListFailure(t *testing.T) {
	store := &fakePendingStore{err: errors.New("connection refused")}
	rec := &fakeReconciler{}

	newTestSweeper(store, &fakeIntentGetter{}, rec).sweep(context.Background())

	assert.Empty(t, rec.calls)
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	store := &fakePendingStore{}
	s := NewSweeper(store, &fakeIntentGetter{}, &fakeReconciler{}, slog.Default(),
		10*time.Millisecond, time.Minute, 25)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
