package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== Tenant Methods ==========

// CreateTenant creates a new tenant
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	tenant.Workspace = strings.ToLower(tenant.Workspace)

	query := `
		INSERT INTO tenants (
			id, created_at, updated_at, name, workspace, is_active,
			is_free_tier, subscription_status, trial_ends_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.CreatedAt, tenant.UpdatedAt, tenant.Name,
		tenant.Workspace, tenant.IsActive, tenant.IsFreeTier,
		tenant.SubscriptionStatus, tenant.TrialEndsAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetTenant gets a tenant by ID
func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT id, created_at, updated_at, name, workspace, is_active,
		       is_free_tier, subscription_status, trial_ends_at
		FROM tenants
		WHERE id = $1`

	return s.scanTenant(s.getDB().QueryRowContext(ctx, query, id))
}

// GetTenantByWorkspace gets a tenant by its unique workspace slug. The
// lookup is case-folded; an inactive tenant still resolves.
func (s *PostgresStore) GetTenantByWorkspace(ctx context.Context, workspace string) (*models.Tenant, error) {
	query := `
		SELECT id, created_at, updated_at, name, workspace, is_active,
		       is_free_tier, subscription_status, trial_ends_at
		FROM tenants
		WHERE workspace = lower($1)`

	return s.scanTenant(s.getDB().QueryRowContext(ctx, query, workspace))
}

func (s *PostgresStore) scanTenant(row *sql.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(
		&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Name,
		&tenant.Workspace, &tenant.IsActive, &tenant.IsFreeTier,
		&tenant.SubscriptionStatus, &tenant.TrialEndsAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return tenant, err
}

// UpdateTenant updates a tenant
func (s *PostgresStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
		UPDATE tenants SET
			updated_at = $2, name = $3, is_active = $4, is_free_tier = $5,
			subscription_status = $6, trial_ends_at = $7
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.UpdatedAt, tenant.Name, tenant.IsActive,
		tenant.IsFreeTier, tenant.SubscriptionStatus, tenant.TrialEndsAt,
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

// ListTenants lists all tenants (platform console only)
func (s *PostgresStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, name, workspace, is_active,
		       is_free_tier, subscription_status, trial_ends_at
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tenants := make([]*models.Tenant, 0)
	for rows.Next() {
		tenant := &models.Tenant{}
		err := rows.Scan(
			&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Name,
			&tenant.Workspace, &tenant.IsActive, &tenant.IsFreeTier,
			&tenant.SubscriptionStatus, &tenant.TrialEndsAt,
		)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}

	return tenants, total, rows.Err()
}

// ========== Membership Methods ==========

// CreateMembership creates a user-tenant association
func (s *PostgresStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO tenant_users (
			user_id, tenant_id, role, is_primary_admin, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		m.UserID, m.TenantID, m.Role, m.IsPrimaryAdmin, m.CreatedAt, m.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// ListMembershipsByUser lists a user's tenant memberships, most recent
// first so anomaly resolution is deterministic.
func (s *PostgresStore) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT user_id, tenant_id, role, is_primary_admin, created_at, updated_at
		FROM tenant_users
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.getDB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ListMembershipsByTenant lists all memberships of a tenant
func (s *PostgresStore) ListMembershipsByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT user_id, tenant_id, role, is_primary_admin, created_at, updated_at
		FROM tenant_users
		WHERE tenant_id = $1
		ORDER BY created_at DESC`

	rows, err := s.getDB().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemberships(rows)
}

func scanMemberships(rows *sql.Rows) ([]*models.Membership, error) {
	memberships := make([]*models.Membership, 0)
	for rows.Next() {
		m := &models.Membership{}
		err := rows.Scan(
			&m.UserID, &m.TenantID, &m.Role, &m.IsPrimaryAdmin,
			&m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// DeleteMembership removes a user-tenant association
func (s *PostgresStore) DeleteMembership(ctx context.Context, userID, tenantID uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM tenant_users WHERE user_id = $1 AND tenant_id = $2",
		userID, tenantID,
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

// ========== Super-admin Methods ==========

// IsSuperAdmin reports whether the user is a platform-wide administrator
func (s *PostgresStore) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.getDB().QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM super_admins WHERE user_id = $1)",
		userID,
	).Scan(&exists)
	return exists, err
}

// CreateSuperAdmin marks a user as platform-wide administrator
func (s *PostgresStore) CreateSuperAdmin(ctx context.Context, userID uuid.UUID) error {
	_, err := s.getDB().ExecContext(ctx,
		"INSERT INTO super_admins (user_id, created_at) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, time.Now(),
	)
	return err
}
