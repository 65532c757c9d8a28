package projects

import (
	"context"

	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type Repository interface {
	GetSummary(ctx context.Context, id string) (*models.ProjectSummary, error)
	ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error)
}
