package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/auth"
	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/logging"
	"github.com/mreyes-dev/payflow/internal/processor"
	"github.com/mreyes-dev/payflow/internal/service"
)

type paymentService interface {
	Create(ctx context.Context, req service.CreatePaymentRequest) (*domain.PaymentRecord, error)
	Confirm(ctx context.Context, paymentID, ownerID uuid.UUID, paymentMethodRef string) (*processor.Intent, error)
	GetForOwner(ctx context.Context, paymentID, ownerID uuid.UUID) (*domain.PaymentRecord, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	CustomerRef      string `json:"customer_ref"`
	PaymentMethodRef string `json:"payment_method_ref"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a three-letter ISO code"})
	}

	return errs
}

type confirmPaymentRequest struct {
	PaymentMethodRef string `json:"payment_method_ref"`
}

type paymentDTO struct {
	ID              uuid.UUID `json:"id"`
	RemotePaymentID string    `json:"remote_payment_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	Description     *string   `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toPaymentDTO(p *domain.PaymentRecord) paymentDTO {
	return paymentDTO{
		ID:              p.ID,
		RemotePaymentID: p.RemotePaymentID,
		Amount:          p.Amount,
		Currency:        string(p.Currency),
		Status:          string(p.Status),
		Description:     p.Description,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type confirmDTO struct {
	RemotePaymentID string `json:"remote_payment_id"`
	ProcessorStatus string `json:"processor_status"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.Create(r.Context(), service.CreatePaymentRequest{
		OwnerID:          ownerID,
		Amount:           req.Amount,
		Currency:         domain.Currency(req.Currency),
		Description:      req.Description,
		CustomerRef:      req.CustomerRef,
		PaymentMethodRef: req.PaymentMethodRef,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

// Confirm forwards confirmation to the processor and echoes the processor's
// view of the intent. The local status is left untouched; the webhook (or the
// sweeper) settles it.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	intent, err := h.payments.Confirm(r.Context(), paymentID, ownerID, req.PaymentMethodRef)
	if err != nil {
		log.Warn("payment confirmation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, confirmDTO{
		RemotePaymentID: intent.ID,
		ProcessorStatus: intent.Status,
	})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetForOwner(r.Context(), paymentID, ownerID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}
