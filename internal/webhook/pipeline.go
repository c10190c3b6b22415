package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/logging"
)

// AuditStore records every accepted delivery. Create must reject a second
// insert with the same processor event id with domain.ErrDuplicateEvent;
// that unique constraint is the authoritative dedup guard. FindByEventID
// returns the row id and recorded outcome for a previously accepted event,
// so a redelivery can tell a settled duplicate from a failed attempt.
type AuditStore interface {
	Create(ctx context.Context, id uuid.UUID, eventID string, kind domain.EventKind, payload json.RawMessage, receivedAt time.Time) error
	SetOutcome(ctx context.Context, id uuid.UUID, outcome domain.Outcome) error
	FindByEventID(ctx context.Context, eventID string) (uuid.UUID, domain.Outcome, error)
}

// Deduper is an optional fast path in front of the audit store. Seen errors
// must degrade to "not seen"; availability of the cache never decides
// correctness. Mark is called only after a settled outcome, so an event
// rejected for redelivery is never claimed by the cache.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Pipeline processes one webhook delivery end to end:
// verify -> normalize -> dedup -> resolve -> reconcile. Each delivery is an
// isolated unit of work; the only shared state is the store.
type Pipeline struct {
	verifier   *Verifier
	resolver   *Resolver
	reconciler *Reconciler
	audit      AuditStore
	dedup      Deduper
}

func NewPipeline(verifier *Verifier, resolver *Resolver, reconciler *Reconciler, audit AuditStore, dedup Deduper) *Pipeline {
	return &Pipeline{
		verifier:   verifier,
		resolver:   resolver,
		reconciler: reconciler,
		audit:      audit,
		dedup:      dedup,
	}
}

// Process returns a classified outcome for acknowledged deliveries, or an
// error for deliveries that must be rejected so the processor retries
// (bad signature, malformed payload, lookup timeout). Forged or malformed
// payloads are never acknowledged.
func (p *Pipeline) Process(ctx context.Context, body []byte, sigHeader string, now time.Time) (domain.Outcome, error) {
	log := logging.FromContext(ctx)

	if err := p.verifier.Verify(body, sigHeader, now); err != nil {
		log.Warn("webhook rejected", "error", err)
		return "", err
	}

	ev, err := Normalize(body, now)
	if err != nil {
		log.Warn("webhook payload not parseable", "error", err)
		return "", err
	}
	log = log.With("event_id", ev.EventID, "kind", ev.Kind)

	if p.dedup != nil {
		seen, err := p.dedup.Seen(ctx, ev.EventID)
		if err != nil {
			log.Warn("dedup cache unavailable, falling through to store", "error", err)
		} else if seen {
			log.Info("duplicate delivery dropped by cache")
			return domain.OutcomeNoOp, nil
		}
	}

	auditID := uuid.New()
	if err := p.audit.Create(ctx, auditID, ev.EventID, ev.Kind, body, ev.ReceivedAt); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEvent) {
			log.Error("failed to record webhook event", "error", err)
			return domain.OutcomeError, nil
		}

		// Only a settled prior outcome makes the redelivery a duplicate.
		// An empty or error outcome means the earlier attempt was rejected
		// for redelivery (lookup timeout, store failure) or died before
		// finishing; this delivery is its retry and reprocesses under the
		// existing audit row.
		priorID, prior, ferr := p.audit.FindByEventID(ctx, ev.EventID)
		if ferr != nil {
			log.Error("failed to look up recorded event", "error", ferr)
			return domain.OutcomeError, nil
		}
		if prior.Settled() {
			log.Info("duplicate delivery dropped by store", "outcome", prior)
			return domain.OutcomeNoOp, nil
		}
		log.Info("retrying previously unsettled delivery", "prior_outcome", prior)
		auditID = priorID
	}

	outcome, procErr := p.process(ctx, ev)
	if err := p.audit.SetOutcome(ctx, auditID, outcome); err != nil {
		log.Error("failed to record outcome", "outcome", outcome, "error", err)
	}
	if p.dedup != nil && procErr == nil && outcome.Settled() {
		if err := p.dedup.Mark(ctx, ev.EventID); err != nil {
			log.Warn("failed to mark event in dedup cache", "error", err)
		}
	}
	return outcome, procErr
}

func (p *Pipeline) process(ctx context.Context, ev domain.NotificationEvent) (domain.Outcome, error) {
	log := logging.FromContext(ctx)

	if ev.Kind == domain.KindUnknown {
		// Accepted and ignored; unknown event types must not abort
		// processing.
		log.Info("ignoring unrecognized event type", "event_id", ev.EventID)
		return domain.OutcomeNoOp, nil
	}

	ref, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrLookupTimeout) {
			// Transient; reject the delivery so the processor retries.
			log.Warn("reference lookup timed out", "event_id", ev.EventID)
			return domain.OutcomeError, err
		}
		log.Warn("event did not resolve to a payment", "event_id", ev.EventID, "error", err)
		return domain.OutcomeAnomaly, nil
	}

	return p.reconciler.Reconcile(ctx, ref, ev.Kind), nil
}
