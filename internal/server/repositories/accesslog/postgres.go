// Package accesslog is the insert-only audit trail of share verify attempts.
package accesslog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/showroom/internal/dbx"
	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AccessLogEntry) error {
	query :=
		`INSERT INTO share_access_log (share_id, share_code, client_ip, user_agent, success, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	var shareID sql.NullString
	if e.ShareID != "" {
		shareID = sql.NullString{String: e.ShareID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, shareID, e.ShareCode, e.ClientIP, e.UserAgent, e.Success, e.Reason).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListByShare(ctx context.Context, shareID string, limit int) ([]models.AccessLogEntry, error) {
	query :=
		`SELECT id, share_id, share_code, client_ip, user_agent, success, reason, created_at
		 FROM share_access_log
		 WHERE share_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, shareID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.AccessLogEntry, 0)
	for rows.Next() {
		var e models.AccessLogEntry
		var sid sql.NullString
		if err := rows.Scan(&e.ID, &sid, &e.ShareCode, &e.ClientIP, &e.UserAgent, &e.Success, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.ShareID = sid.String
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
