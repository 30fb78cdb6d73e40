package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== Vehicle Methods ==========

// CreateVehicle creates a vehicle. The tenant id is stamped from the
// scope, never taken from the payload.
func (s *PostgresStore) CreateVehicle(ctx context.Context, scope Scope, v *models.Vehicle) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if !scope.IsSuperAdmin() {
		v.TenantID = scope.TenantID()
	}
	if v.TenantID == uuid.Nil {
		return ErrInvalidData
	}

	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	query := `
		INSERT INTO vehicles (
			id, created_at, updated_at, tenant_id, plate, make, model,
			status, driver_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		v.ID, v.CreatedAt, v.UpdatedAt, v.TenantID, v.Plate, v.Make,
		v.Model, v.Status, v.DriverName,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetVehicle gets a vehicle visible under the scope
func (s *PostgresStore) GetVehicle(ctx context.Context, scope Scope, id uuid.UUID) (*models.Vehicle, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, plate, make, model,
		       status, driver_name
		FROM vehicles
		WHERE id = $1`
	args := []interface{}{id}
	query, args = scope.Append(query, args)

	v := &models.Vehicle{}
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(
		&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.TenantID, &v.Plate,
		&v.Make, &v.Model, &v.Status, &v.DriverName,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return v, err
}

// UpdateVehicle updates a vehicle within the scope
func (s *PostgresStore) UpdateVehicle(ctx context.Context, scope Scope, v *models.Vehicle) error {
	v.UpdatedAt = time.Now()

	query := `
		UPDATE vehicles SET
			updated_at = $2, plate = $3, make = $4, model = $5,
			status = $6, driver_name = $7
		WHERE id = $1`
	args := []interface{}{v.ID, v.UpdatedAt, v.Plate, v.Make, v.Model, v.Status, v.DriverName}
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

// DeleteVehicle deletes a vehicle within the scope
func (s *PostgresStore) DeleteVehicle(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := "DELETE FROM vehicles WHERE id = $1"
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

// ListVehicles lists vehicles visible under the scope
func (s *PostgresStore) ListVehicles(ctx context.Context, scope Scope, limit, offset int) ([]*models.Vehicle, int64, error) {
	countQuery := "SELECT COUNT(*) FROM vehicles WHERE 1=1"
	countArgs := []interface{}{}
	countQuery, countArgs = scope.Append(countQuery, countArgs)

	var total int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, tenant_id, plate, make, model,
		       status, driver_name
		FROM vehicles
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

	vehicles := make([]*models.Vehicle, 0)
	for rows.Next() {
		v := &models.Vehicle{}
		err := rows.Scan(
			&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.TenantID, &v.Plate,
			&v.Make, &v.Model, &v.Status, &v.DriverName,
		)
		if err != nil {
			return nil, 0, err
		}
		vehicles = append(vehicles, v)
	}

	return vehicles, total, rows.Err()
}
