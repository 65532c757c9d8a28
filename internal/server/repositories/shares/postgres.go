// Package shares stores share credentials and lifecycle state.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/dbx"
	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shareColumns = `id, code, password_hash, active, expires_at, view_count, last_accessed_at, created_by, created_at, updated_at`

func scanShare(row interface{ Scan(...any) error }) (*models.Share, error) {
	s := &models.Share{}
	var expiresAt, lastAccessedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Code, &s.PasswordHash, &s.Active, &expiresAt, &s.ViewCount,
		&lastAccessedAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = dbx.TimePtr(expiresAt)
	s.LastAccessedAt = dbx.TimePtr(lastAccessedAt)
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, share *models.Share) error {
	query :=
		`INSERT INTO shares (id, code, password_hash, active, expires_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		share.ID, share.Code, share.PasswordHash, share.Active, dbx.NullTime(share.ExpiresAt), share.CreatedBy).
		Scan(&share.CreatedAt, &share.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE code = $1`
	return r.getOne(ctx, query, code)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Share, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM shares WHERE code = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Update writes the mutable columns of share (code, password hash, active
// flag, expiry) and refreshes updated_at.
func (r *PostgresRepository) Update(ctx context.Context, share *models.Share) error {
	query :=
		`UPDATE shares
		 SET code = $2, password_hash = $3, active = $4, expires_at = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		share.ID, share.Code, share.PasswordHash, share.Active, dbx.NullTime(share.ExpiresAt)).
		Scan(&share.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Delete removes the share; associations go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// RecordView bumps the view counter and last access time in one statement.
func (r *PostgresRepository) RecordView(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE shares SET view_count = view_count + 1, last_accessed_at = $2
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
