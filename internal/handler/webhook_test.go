package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/webhook"
)

const testWebhookSecret = "whsec_test"

type stubRecordStore struct {
	rec    *domain.PaymentRecord
	casErr error
}

func (s *stubRecordStore) FindByRemotePaymentID(_ context.Context, ref string) (*domain.PaymentRecord, error) {
	if s.rec == nil || s.rec.RemotePaymentID != ref {
		return nil, domain.ErrNotFound
	}
	cp := *s.rec
	return &cp, nil
}

func (s *stubRecordStore) CompareAndUpdateStatus(_ context.Context, id uuid.UUID, expected, next domain.PaymentStatus) (bool, error) {
	if s.casErr != nil {
		return false, s.casErr
	}
	if s.rec.ID != id || s.rec.Status != expected {
		return false, nil
	}
	s.rec.Status = next
	return true, nil
}

type stubAudit struct {
	events   map[string]uuid.UUID
	outcomes map[uuid.UUID]domain.Outcome
}

func (a *stubAudit) Create(_ context.Context, id uuid.UUID, eventID string, _ domain.EventKind, _ json.RawMessage, _ time.Time) error {
	if _, ok := a.events[eventID]; ok {
		return domain.ErrDuplicateEvent
	}
	a.events[eventID] = id
	return nil
}

func (a *stubAudit) SetOutcome(_ context.Context, id uuid.UUID, outcome domain.Outcome) error {
	a.outcomes[id] = outcome
	return nil
}

func (a *stubAudit) FindByEventID(_ context.Context, eventID string) (uuid.UUID, domain.Outcome, error) {
	id, ok := a.events[eventID]
	if !ok {
		return uuid.Nil, "", domain.ErrNotFound
	}
	return id, a.outcomes[id], nil
}

type stubLookup struct{}

func (stubLookup) PaymentRefForCharge(context.Context, string) (string, error) { return "", nil }
func (stubLookup) PaymentRefForRefund(context.Context, string) (string, error) { return "", nil }

func newTestWebhookHandler(store *stubRecordStore) *WebhookHandler {
	pipeline := webhook.NewPipeline(
		webhook.NewVerifier(testWebhookSecret, 5*time.Minute),
		webhook.NewResolver(stubLookup{}, time.Second),
		webhook.NewReconciler(store, slog.Default()),
		&stubAudit{events: map[string]uuid.UUID{}, outcomes: map[uuid.UUID]domain.Outcome{}},
		nil,
	)
	return NewWebhookHandler(pipeline)
}

func signedHeader(body, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func pendingRecord(ref string) *domain.PaymentRecord {
	now := time.Now().UTC()
	return &domain.PaymentRecord{
		ID:              uuid.New(),
		RemotePaymentID: ref,
		OwnerID:         uuid.New(),
		Amount:          1000,
		Currency:        "USD",
		Status:          domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestReceive(t *testing.T) {
	successBody := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent","id":"pi_1"}}}`

	tests := []struct {
		name       string
		body       string
		header     func(body string) string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid signed delivery",
			body:       successBody,
			header:     func(b string) string { return signedHeader(b, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature header",
			body:       successBody,
			header:     func(string) string { return "" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "wrong secret",
			body:       successBody,
			header:     func(b string) string { return signedHeader(b, "whsec_other") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name: "stale signature",
			body: successBody,
			header: func(b string) string {
				ts := time.Now().Add(-time.Hour).Unix()
				mac := hmac.New(sha256.New, []byte(testWebhookSecret))
				fmt.Fprintf(mac, "%d.%s", ts, b)
				return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "STALE_SIGNATURE",
		},
		{
			name:       "malformed payload",
			body:       `not-json`,
			header:     func(b string) string { return signedHeader(b, testWebhookSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unknown event type acked",
			body:       `{"id":"evt_2","type":"customer.created","data":{"object":{}}}`,
			header:     func(b string) string { return signedHeader(b, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "no matching record still acked",
			body:       `{"id":"evt_3","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent","id":"pi_missing"}}}`,
			header:     func(b string) string { return signedHeader(b, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestWebhookHandler(&stubRecordStore{rec: pendingRecord("pi_1")})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(tc.body))
			if header := tc.header(tc.body); header != "" {
				req.Header.Set("Stripe-Signature", header)
			}
			rr := httptest.NewRecorder()

			h.Receive(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			if tc.wantCode == "" {
				var ack map[string]bool
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
				assert.True(t, ack["received"])
				return
			}

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

func TestReceiveAppliesTransition(t *testing.T) {
	store := &stubRecordStore{rec: pendingRecord("pi_1")}
	h := newTestWebhookHandler(store)

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent","id":"pi_1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", signedHeader(body, testWebhookSecret))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.PaymentStatusSucceeded, store.rec.Status)
}

func TestReceiveStoreFailure(t *testing.T) {
	store := &stubRecordStore{rec: pendingRecord("pi_1"), casErr: fmt.Errorf("connection refused")}
	h := newTestWebhookHandler(store)

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent","id":"pi_1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", signedHeader(body, testWebhookSecret))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
