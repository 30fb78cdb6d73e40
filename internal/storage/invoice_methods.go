package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== Invoice Methods ==========

// CreateInvoice creates an invoice. The tenant id is stamped from the
// scope, never taken from the payload.
func (s *PostgresStore) CreateInvoice(ctx context.Context, scope Scope, inv *models.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if !scope.IsSuperAdmin() {
		inv.TenantID = scope.TenantID()
	}
	if inv.TenantID == uuid.Nil {
		return ErrInvalidData
	}

	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `
		INSERT INTO invoices (
			id, created_at, updated_at, tenant_id, number, customer_name,
			amount, currency, status, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		inv.ID, inv.CreatedAt, inv.UpdatedAt, inv.TenantID, inv.Number,
		inv.CustomerName, inv.Amount, inv.Currency, inv.Status, inv.IssuedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetInvoice gets an invoice visible under the scope
func (s *PostgresStore) GetInvoice(ctx context.Context, scope Scope, id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, number, customer_name,
		       amount, currency, status, issued_at
		FROM invoices
		WHERE id = $1`
	args := []interface{}{id}
	query, args = scope.Append(query, args)

	inv := &models.Invoice{}
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(
		&inv.ID, &inv.CreatedAt, &inv.UpdatedAt, &inv.TenantID, &inv.Number,
		&inv.CustomerName, &inv.Amount, &inv.Currency, &inv.Status, &inv.IssuedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return inv, err
}

// UpdateInvoice updates an invoice within the scope
func (s *PostgresStore) UpdateInvoice(ctx context.Context, scope Scope, inv *models.Invoice) error {
	inv.UpdatedAt = time.Now()

	query := `
		UPDATE invoices SET
			updated_at = $2, number = $3, customer_name = $4, amount = $5,
			currency = $6, status = $7, issued_at = $8
		WHERE id = $1`
	args := []interface{}{
		inv.ID, inv.UpdatedAt, inv.Number, inv.CustomerName,
		inv.Amount, inv.Currency, inv.Status, inv.IssuedAt,
	}
	query, args = scope.Append(query, args)

	result, err := s.getDB().ExecContext(ctx, query, args...)
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

// DeleteInvoice deletes an invoice within the scope
func (s *PostgresStore) DeleteInvoice(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := "DELETE FROM invoices WHERE id = $1"
	args := []interface{}{id}
	query, args = scope.Append(query, args)

	result, err := s.getDB().ExecContext(ctx, query, args...)
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

// ListInvoices lists invoices visible under the scope
func (s *PostgresStore) ListInvoices(ctx context.Context, scope Scope, limit, offset int) ([]*models.Invoice, int64, error) {
	countQuery := "SELECT COUNT(*) FROM invoices WHERE 1=1"
	countArgs := []interface{}{}
	countQuery, countArgs = scope.Append(countQuery, countArgs)

	var total int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, tenant_id, number, customer_name,
		       amount, currency, status, issued_at
		FROM invoices
		WHERE 1=1`
	args := []interface{}{}
	query, args = scope.Append(query, args)

	query += " ORDER BY created_at DESC"
	query += limitOffsetClause(len(args))
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := make([]*models.Invoice, 0)
	for rows.Next() {
		inv := &models.Invoice{}
		err := rows.Scan(
			&inv.ID, &inv.CreatedAt, &inv.UpdatedAt, &inv.TenantID,
			&inv.Number, &inv.CustomerName, &inv.Amount, &inv.Currency,
			&inv.Status, &inv.IssuedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}

	return invoices, total, rows.Err()
}
