package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// ProcessorLookup dereferences an indirect object reference to the remote
// payment identifier that owns it. Each method is a single API call; an
// empty ref with a nil error means the remote object exists but is not
// attached to a payment.
type ProcessorLookup interface {
	PaymentRefForCharge(ctx context.Context, chargeRef string) (string, error)
	PaymentRefForRefund(ctx context.Context, refundRef string) (string, error)
}

// Resolver turns a normalized event into the remote payment identifier the
// reconciler keys on. At most one external lookup happens per event; refund
// references are never chased through a second hop.
type Resolver struct {
	lookup  ProcessorLookup
	timeout time.Duration
}

func NewResolver(lookup ProcessorLookup, timeout time.Duration) *Resolver {
	return &Resolver{lookup: lookup, timeout: timeout}
}

func (r *Resolver) Resolve(ctx context.Context, ev domain.NotificationEvent) (string, error) {
	if ev.RemotePaymentRef != "" {
		return ev.RemotePaymentRef, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ref string
	var err error
	switch {
	case ev.RemoteChargeRef != "":
		ref, err = r.lookup.PaymentRefForCharge(ctx, ev.RemoteChargeRef)
	case ev.RemoteRefundRef != "":
		ref, err = r.lookup.PaymentRefForRefund(ctx, ev.RemoteRefundRef)
	default:
		return "", fmt.Errorf("%w: event %s carries no reference", domain.ErrUnresolvable, ev.EventID)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: event %s", domain.ErrLookupTimeout, ev.EventID)
		}
		return "", fmt.Errorf("%w: event %s: %w", domain.ErrUnresolvable, ev.EventID, err)
	}
	if ref == "" {
		return "", fmt.Errorf("%w: event %s: lookup returned no payment", domain.ErrUnresolvable, ev.EventID)
	}
	return ref, nil
}
