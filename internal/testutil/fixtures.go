package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/domain"
)

var TestOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func SeedPaymentRecord(t *testing.T, db *sql.DB, remotePaymentID string, status domain.PaymentStatus) *domain.PaymentRecord {
	t.Helper()

	now := time.Now().UTC()
	rec := &domain.PaymentRecord{
		ID:              uuid.New(),
		RemotePaymentID: remotePaymentID,
		OwnerID:         TestOwnerID,
		Amount:          2500,
		Currency:        "USD",
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := db.Exec(
		`INSERT INTO payment_records (id, remote_payment_id, owner_id, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.RemotePaymentID, rec.OwnerID, rec.Amount, rec.Currency, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment record %s: %v", remotePaymentID, err)
	}
	return rec
}

func GetPaymentStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.PaymentStatus {
	t.Helper()

	var status domain.PaymentStatus
	err := db.QueryRow(`SELECT status FROM payment_records WHERE id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("get payment status %s: %v", id, err)
	}
	return status
}

func BackdatePayment(t *testing.T, db *sql.DB, id uuid.UUID, age time.Duration) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE payment_records SET created_at = now() - $2::interval WHERE id = $1`,
		id, age.String(),
	)
	if err != nil {
		t.Fatalf("backdate payment %s: %v", id, err)
	}
}

func CountWebhookEvents(t *testing.T, db *sql.DB, eventID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM webhook_events WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		t.Fatalf("count webhook events for %s: %v", eventID, err)
	}
	return count
}
