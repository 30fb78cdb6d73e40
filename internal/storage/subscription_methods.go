package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== Subscription Methods ==========

// CreateSubscription creates a new subscription record
func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (
			id, created_at, updated_at, tenant_id, amount, currency,
			status, billing_period_start, billing_period_end, payment_reference
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.CreatedAt, sub.UpdatedAt, sub.TenantID, sub.Amount,
		sub.Currency, sub.Status, sub.BillingPeriodStart,
		sub.BillingPeriodEnd, sub.PaymentReference,
	)

	return err
}

// GetSubscription gets a subscription by ID
func (s *PostgresStore) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, amount, currency,
		       status, billing_period_start, billing_period_end, payment_reference
		FROM subscriptions
		WHERE id = $1`

	sub := &models.Subscription{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.TenantID, &sub.Amount,
		&sub.Currency, &sub.Status, &sub.BillingPeriodStart,
		&sub.BillingPeriodEnd, &sub.PaymentReference,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return sub, err
}

// GetLatestSubscription returns the most recently created subscription
// for a tenant; this row is authoritative for gating decisions.
func (s *PostgresStore) GetLatestSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, amount, currency,
		       status, billing_period_start, billing_period_end, payment_reference
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	sub := &models.Subscription{}
	err := s.getDB().QueryRowContext(ctx, query, tenantID).Scan(
		&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.TenantID, &sub.Amount,
		&sub.Currency, &sub.Status, &sub.BillingPeriodStart,
		&sub.BillingPeriodEnd, &sub.PaymentReference,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return sub, err
}

// UpdateSubscription updates a subscription record
func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()

	query := `
		UPDATE subscriptions SET
			updated_at = $2, amount = $3, currency = $4, status = $5,
			billing_period_start = $6, billing_period_end = $7, payment_reference = $8
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.UpdatedAt, sub.Amount, sub.Currency, sub.Status,
		sub.BillingPeriodStart, sub.BillingPeriodEnd, sub.PaymentReference,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListSubscriptions lists a tenant's subscription history
func (s *PostgresStore) ListSubscriptions(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Subscription, int64, error) {
	var total int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE tenant_id = $1", tenantID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, tenant_id, amount, currency,
		       status, billing_period_start, billing_period_end, payment_reference
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs := make([]*models.Subscription, 0)
	for rows.Next() {
		sub := &models.Subscription{}
		err := rows.Scan(
			&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.TenantID,
			&sub.Amount, &sub.Currency, &sub.Status,
			&sub.BillingPeriodStart, &sub.BillingPeriodEnd, &sub.PaymentReference,
		)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}

	return subs, total, rows.Err()
}
