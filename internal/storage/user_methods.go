package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== User Methods ==========

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	query := `
		INSERT INTO users (
			id, created_at, updated_at, email, first_name, last_name,
			password_hash, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.Email,
		user.FirstName, user.LastName, user.PasswordHash, user.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetUser gets a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, created_at, updated_at, email, first_name, last_name,
		       password_hash, is_active, last_login_at
		FROM users
		WHERE id = $1`

	return s.scanUser(s.getDB().QueryRowContext(ctx, query, id))
}

// GetUserByEmail gets a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, created_at, updated_at, email, first_name, last_name,
		       password_hash, is_active, last_login_at
		FROM users
		WHERE email = lower($1)`

	return s.scanUser(s.getDB().QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email,
		&user.FirstName, &user.LastName, &user.PasswordHash,
		&user.IsActive, &user.LastLoginAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return user, err
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			updated_at = $2, email = $3, first_name = $4, last_name = $5,
			password_hash = $6, is_active = $7, last_login_at = $8
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive, user.LastLoginAt,
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

// ListUsersByTenant lists users belonging to the scoped tenant through
// their memberships. Super-admin scopes list every user.
func (s *PostgresStore) ListUsersByTenant(ctx context.Context, scope Scope, limit, offset int) ([]*models.User, int64, error) {
	countQuery := "SELECT COUNT(*) FROM users u WHERE 1=1"
	listQuery := `
		SELECT u.id, u.created_at, u.updated_at, u.email, u.first_name,
		       u.last_name, u.password_hash, u.is_active, u.last_login_at
		FROM users u WHERE 1=1`

	args := []interface{}{}
	if !scope.IsSuperAdmin() {
		clause := " AND EXISTS (SELECT 1 FROM tenant_users tu WHERE tu.user_id = u.id AND tu.tenant_id = $1)"
		countQuery += clause
		listQuery += clause
		args = append(args, scope.TenantID())
	}

	var total int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery += " ORDER BY u.created_at DESC"
	listQuery += limitOffsetClause(len(args))
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email,
			&user.FirstName, &user.LastName, &user.PasswordHash,
			&user.IsActive, &user.LastLoginAt,
		)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}
