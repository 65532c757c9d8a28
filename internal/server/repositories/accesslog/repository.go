package accesslog

import (
	"context"

	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.AccessLogEntry) error
	ListByShare(ctx context.Context, shareID string, limit int) ([]models.AccessLogEntry, error)
}
