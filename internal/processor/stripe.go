package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// IntentRequest is the subset of intent creation the service exposes.
type IntentRequest struct {
	Amount           int64
	Currency         domain.Currency
	Description      string
	CustomerRef      string
	PaymentMethodRef string
}

// Intent is the processor's view of a payment, reduced to what the service
// and the sweeper need.
type Intent struct {
	ID     string
	Status string
}

// Client wraps the Stripe API. Every call threads the caller's context so
// I/O respects the configured timeout instead of hanging.
type Client struct {
	api     *client.API
	timeout time.Duration
	logger  *slog.Logger
}

func New(secretKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		api:     client.New(secretKey, nil),
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(string(req.Currency))),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	if req.PaymentMethodRef != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodRef)
	}
	params.Context = ctx

	start := time.Now()
	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}
	c.logger.Info("payment intent created",
		"remote_payment_id", pi.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (c *Client) ConfirmIntent(ctx context.Context, remoteID, paymentMethodRef string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentConfirmParams{}
	if paymentMethodRef != "" {
		params.PaymentMethod = stripe.String(paymentMethodRef)
	}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(remoteID, params)
	if err != nil {
		return nil, fmt.Errorf("ConfirmIntent: %w", mapNotFound(err))
	}
	return &Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (c *Client) GetIntent(ctx context.Context, remoteID string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(remoteID, params)
	if err != nil {
		return nil, fmt.Errorf("GetIntent: %w", mapNotFound(err))
	}
	return &Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

// PaymentRefForCharge retrieves a charge and returns the id of the payment
// intent that owns it. Empty with a nil error means the charge exists but
// is not attached to an intent.
func (c *Client) PaymentRefForCharge(ctx context.Context, chargeRef string) (string, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := c.api.Charges.Get(chargeRef, params)
	if err != nil {
		return "", fmt.Errorf("PaymentRefForCharge: %w", mapNotFound(err))
	}
	if ch.PaymentIntent == nil {
		return "", nil
	}
	return ch.PaymentIntent.ID, nil
}

// PaymentRefForRefund retrieves a refund and returns the id of the payment
// intent it belongs to. The lookup never chains through the refund's charge;
// one call per event is the ceiling.
func (c *Client) PaymentRefForRefund(ctx context.Context, refundRef string) (string, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx

	re, err := c.api.Refunds.Get(refundRef, params)
	if err != nil {
		return "", fmt.Errorf("PaymentRefForRefund: %w", mapNotFound(err))
	}
	if re.PaymentIntent != nil {
		return re.PaymentIntent.ID, nil
	}
	if re.Charge != nil && re.Charge.PaymentIntent != nil {
		return re.Charge.PaymentIntent.ID, nil
	}
	return "", nil
}

// KindForIntentStatus maps a processor intent status onto the event kind the
// reconciler understands. Non-terminal statuses map to KindUnknown and are
// left alone.
func KindForIntentStatus(status string) domain.EventKind {
	switch stripe.PaymentIntentStatus(status) {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.KindPaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.KindPaymentFailed
	default:
		return domain.KindUnknown
	}
}

func mapNotFound(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, stripeErr.Msg)
	}
	return err
}
