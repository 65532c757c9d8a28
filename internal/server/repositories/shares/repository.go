package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, share *models.Share) error
	GetByID(ctx context.Context, id string) (*models.Share, error)
	GetByCode(ctx context.Context, code string) (*models.Share, error)
	List(ctx context.Context) ([]*models.Share, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, share *models.Share) error
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, id string, at time.Time) error
}
