// Package associations stores the share-to-project placements used to build
// timelines.
package associations

import (
	"context"
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

// ReplaceForShare drops every association of the share and inserts items in
// order. Run it inside a transaction: a failure halfway leaves a partial set.
func (r *PostgresRepository) ReplaceForShare(ctx context.Context, shareID string, items []models.Association) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM share_projects WHERE share_id = $1`, shareID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query :=
		`INSERT INTO share_projects (share_id, project_id, category, year, quarter, display_order)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	for _, a := range items {
		if _, err := r.db.ExecContext(ctx, query, shareID, a.ProjectID, a.Category, a.Year, a.Quarter, a.DisplayOrder); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) ListByShare(ctx context.Context, shareID string) ([]models.Association, error) {
	query :=
		`SELECT id, share_id, project_id, category, year, quarter, display_order
		 FROM share_projects
		 WHERE share_id = $1
		 ORDER BY category, year, quarter, display_order, id`

	rows, err := r.db.QueryContext(ctx, query, shareID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Association
	for rows.Next() {
		var a models.Association
		if err := rows.Scan(&a.ID, &a.ShareID, &a.ProjectID, &a.Category, &a.Year, &a.Quarter, &a.DisplayOrder); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// ListTimelineRows joins the share's associations with project metadata.
// The thumbnail is the storage key of the earliest-created file of each
// project. Rows come ordered by display order, then insertion order.
func (r *PostgresRepository) ListTimelineRows(ctx context.Context, shareID string) ([]models.TimelineRow, error) {
	query :=
		`SELECT a.category, a.year, a.quarter, a.display_order, p.id, p.title, p.description,
		        COALESCE((SELECT f.storage_key FROM project_files f
		                  WHERE f.project_id = p.id
		                  ORDER BY f.created_at, f.id
		                  LIMIT 1), '')
		 FROM share_projects a
		 JOIN projects p ON p.id = a.project_id
		 WHERE a.share_id = $1
		 ORDER BY a.display_order, a.id`

	rows, err := r.db.QueryContext(ctx, query, shareID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.TimelineRow
	for rows.Next() {
		var row models.TimelineRow
		if err := rows.Scan(&row.Category, &row.Year, &row.Quarter, &row.DisplayOrder,
			&row.ProjectID, &row.Title, &row.Description, &row.ThumbnailKey); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) IsLinked(ctx context.Context, shareID, projectID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM share_projects WHERE share_id = $1 AND project_id = $2)`

	var linked bool
	if err := r.db.QueryRowContext(ctx, query, shareID, projectID).Scan(&linked); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return linked, nil
}
