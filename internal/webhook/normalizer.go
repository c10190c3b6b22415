package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// rawEvent mirrors the processor's event envelope. Unknown fields are
// ignored for forward compatibility.
type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// rawObject covers the three object shapes a reconcilable event can carry:
// payment intents, charges and refunds. The processor sends related objects
// either as bare id strings or expanded sub-objects, so refs decode through
// objectRef.
type rawObject struct {
	Object        string    `json:"object"`
	ID            string    `json:"id"`
	PaymentIntent objectRef `json:"payment_intent"`
	Charge        objectRef `json:"charge"`
}

type objectRef struct {
	ID string
}

func (r *objectRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

// Normalize parses a verified payload into a typed NotificationEvent.
// Unrecognized event types yield KindUnknown rather than an error so new
// processor events never abort processing; a recognized type missing every
// usable reference is malformed.
func Normalize(body []byte, receivedAt time.Time) (domain.NotificationEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.NotificationEvent{}, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}
	if raw.ID == "" {
		return domain.NotificationEvent{}, fmt.Errorf("%w: missing event id", domain.ErrMalformedPayload)
	}

	ev := domain.NotificationEvent{
		EventID:    raw.ID,
		Kind:       kindForType(raw.Type),
		ReceivedAt: receivedAt,
	}
	if ev.Kind == domain.KindUnknown {
		return ev, nil
	}

	var obj rawObject
	if err := json.Unmarshal(raw.Data.Object, &obj); err != nil {
		return domain.NotificationEvent{}, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	switch obj.Object {
	case "payment_intent":
		ev.RemotePaymentRef = obj.ID
	case "charge":
		ev.RemoteChargeRef = obj.ID
		ev.RemotePaymentRef = obj.PaymentIntent.ID
	case "refund":
		ev.RemoteRefundRef = obj.ID
		ev.RemoteChargeRef = obj.Charge.ID
		ev.RemotePaymentRef = obj.PaymentIntent.ID
	default:
		// Intent events always carry a payment_intent object; tolerate a
		// missing object marker as long as an id is present.
		if ev.Kind == domain.KindPaymentSucceeded || ev.Kind == domain.KindPaymentFailed {
			ev.RemotePaymentRef = obj.ID
		}
	}

	if ev.RemotePaymentRef == "" && ev.RemoteChargeRef == "" && ev.RemoteRefundRef == "" {
		return domain.NotificationEvent{}, fmt.Errorf("%w: event %s (%s) carries no reference", domain.ErrMalformedPayload, raw.ID, raw.Type)
	}
	return ev, nil
}

func kindForType(t string) domain.EventKind {
	switch t {
	case "payment_intent.succeeded":
		return domain.KindPaymentSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		return domain.KindPaymentFailed
	case "charge.refunded":
		return domain.KindChargeRefunded
	default:
		return domain.KindUnknown
	}
}
