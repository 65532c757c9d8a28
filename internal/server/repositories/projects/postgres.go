// Package projects reads project metadata owned by the project catalogue.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) GetSummary(ctx context.Context, id string) (*models.ProjectSummary, error) {
	query := `SELECT id, title, description FROM projects WHERE id = $1`

	p := &models.ProjectSummary{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Title, &p.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

// ListFiles returns the project's files oldest first.
func (r *PostgresRepository) ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	query :=
		`SELECT id, project_id, name, content_type, size_bytes, storage_key, created_at
		 FROM project_files
		 WHERE project_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.ProjectFile, 0)
	for rows.Next() {
		var f models.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.SizeBytes, &f.StorageKey, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
