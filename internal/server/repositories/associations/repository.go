package associations

import (
	"context"

	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type Repository interface {
	ReplaceForShare(ctx context.Context, shareID string, items []models.Association) error
	ListByShare(ctx context.Context, shareID string) ([]models.Association, error)
	ListTimelineRows(ctx context.Context, shareID string) ([]models.TimelineRow, error)
	IsLinked(ctx context.Context, shareID, projectID string) (bool, error)
}
