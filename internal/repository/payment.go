package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mreyes-dev/payflow/internal/domain"
)

const paymentColumns = `id, remote_payment_id, owner_id, amount, currency,
	status, description, created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_records (
			id, remote_payment_id, owner_id, amount, currency, status, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.RemotePaymentID, p.OwnerID, p.Amount, p.Currency, p.Status, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicatePayment)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, id,
	)
	p, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) FindByRemotePaymentID(ctx context.Context, ref string) (*domain.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE remote_payment_id = $1`, ref,
	)
	p, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindByRemotePaymentID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindByRemotePaymentID: %w", err)
	}
	return p, nil
}

// CompareAndUpdateStatus writes next only if the record still holds expected.
// The WHERE clause makes the check-and-set a single atomic statement, so
// concurrent reconcilers cannot interleave a lost update.
func (r *PaymentRepository) CompareAndUpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_records SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		next, id, expected,
	)
	if err != nil {
		return false, fmt.Errorf("CompareAndUpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CompareAndUpdateStatus: rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListStalePending returns pending records created before the cutoff, oldest
// first. Used by the sweeper to recover from missed webhooks.
func (r *PaymentRepository) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_records
		WHERE status = $1 AND created_at < now() - $2::interval
		ORDER BY created_at LIMIT $3`,
		domain.PaymentStatusPending, fmt.Sprintf("%d seconds", int(olderThan.Seconds())), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStalePending: %w", err)
	}
	defer rows.Close()

	var records []domain.PaymentRecord
	for rows.Next() {
		p, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStalePending: scan: %w", err)
		}
		records = append(records, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStalePending: rows: %w", err)
	}
	return records, nil
}

func scanPaymentRecord(s scanner) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	err := s.Scan(
		&p.ID, &p.RemotePaymentID, &p.OwnerID, &p.Amount, &p.Currency,
		&p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
