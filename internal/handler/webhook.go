package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/logging"
	"github.com/mreyes-dev/payflow/internal/webhook"
)

const maxWebhookBody = 1 << 20 // processor payloads are well under 1MB

type WebhookHandler struct {
	pipeline *webhook.Pipeline
}

func NewWebhookHandler(pipeline *webhook.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// Receive ingests one processor delivery. Anything acknowledged gets the
// literal {"received": true} body the processor expects; rejections carry a
// status that makes the processor retry.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	outcome, err := h.pipeline.Process(r.Context(), body, r.Header.Get("Stripe-Signature"), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSignatureInvalid):
			RespondAppError(w, ErrInvalidSignature, nil)
		case errors.Is(err, domain.ErrSignatureStale):
			RespondAppError(w, ErrStaleSignature, nil)
		case errors.Is(err, domain.ErrMalformedPayload):
			RespondAppError(w, ErrInvalidRequest, nil)
		case errors.Is(err, domain.ErrLookupTimeout):
			RespondAppError(w, ErrUpstreamTimeout, nil)
		default:
			log.Error("webhook processing failed", "error", err)
			RespondAppError(w, ErrInternalError, nil)
		}
		return
	}

	if outcome == domain.OutcomeError {
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
