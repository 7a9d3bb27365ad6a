package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ferreteria/storefront/models"
	"github.com/ferreteria/storefront/repositories"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

const selectAccessEvents = `
		SELECT id, action, path, subject, email, role, redirect_to, token_state,
		       details, COALESCE(ip_address, ''), COALESCE(user_agent, ''),
		       COALESCE(request_id, ''), timestamp
		FROM access_events`

// AccessEventRepository implements the repositories.AccessEventRepository interface
type AccessEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccessEventRepository creates a new access event repository
func NewAccessEventRepository(db *DB, logger *zap.Logger) repositories.AccessEventRepository {
	return &AccessEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new access event
func (r *AccessEventRepository) Insert(ctx context.Context, event *models.AccessEvent) error {
	query := `
		INSERT INTO access_events (
			id, action, path, subject, email, role, redirect_to, token_state,
			details, ip_address, user_agent, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	var details interface{}
	if len(event.Details) > 0 {
		details = []byte(event.Details)
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.Path,
		event.Subject,
		event.Email,
		event.Role,
		event.RedirectTo,
		event.TokenState,
		details,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access event: %w", err)
	}

	r.logger.Debug("access event inserted",
		zap.String("id", event.ID.String()),
		zap.String("action", string(event.Action)))
	return nil
}

// List retrieves access events matching filter, newest first
func (r *AccessEventRepository) List(ctx context.Context, filter repositories.AccessEventFilter) ([]*models.AccessEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	where := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Action != "" {
		where("action = $%d", string(filter.Action))
	}
	if filter.Subject != "" {
		where("subject = $%d", filter.Subject)
	}
	if !filter.Since.IsZero() {
		where("timestamp >= $%d", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := selectAccessEvents
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf("\n\t\tORDER BY timestamp DESC\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AccessEvent, 0)
	for rows.Next() {
		e := &models.AccessEvent{}
		var (
			action  string
			details []byte
		)
		if err := rows.Scan(
			&e.ID,
			&action,
			&e.Path,
			&e.Subject,
			&e.Email,
			&e.Role,
			&e.RedirectTo,
			&e.TokenState,
			&details,
			&e.IPAddress,
			&e.UserAgent,
			&e.RequestID,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access event: %w", err)
		}
		e.Action = models.AccessAction(action)
		if len(details) > 0 {
			e.Details = details
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access events: %w", err)
	}

	return events, nil
}

// DeleteBefore removes events older than cutoff
func (r *AccessEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM access_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete access events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
