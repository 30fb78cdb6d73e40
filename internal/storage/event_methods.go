package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an audit log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO event_logs (
			id, created_at, tenant_id, user_id, type, level, description, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.TenantID, event.UserID,
		event.Type, event.Level, event.Description, event.Details,
	)

	return err
}

// ListEventLogs lists audit log entries visible under the scope
func (s *PostgresStore) ListEventLogs(ctx context.Context, scope Scope, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	where, args = scope.Append(where, args)

	if filters.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", len(args)+1)
		args = append(args, *filters.UserID)
	}
	if filters.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", len(args)+1)
		args = append(args, *filters.Type)
	}
	if filters.Level != nil {
		where += fmt.Sprintf(" AND level = $%d", len(args)+1)
		args = append(args, *filters.Level)
	}
	if filters.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *filters.StartTime)
	}
	if filters.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", len(args)+1)
		args = append(args, *filters.EndTime)
	}

	var total int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM event_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, tenant_id, user_id, type, level, description, details
		FROM event_logs` + where + " ORDER BY created_at DESC"
	query += limitOffsetClause(len(args))
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*models.EventLog, 0)
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.TenantID, &event.UserID,
			&event.Type, &event.Level, &event.Description, &event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, total, rows.Err()
}
