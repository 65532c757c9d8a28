package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/dbx"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/cache"
	"github.com/dmitrijs2005/showroom/internal/server/metrics"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/showroom/internal/shared"
	"github.com/google/uuid"
)

var newShareCode = func() (string, error) {
	return shared.MakeRandCode(shareCodeLength)
}

// ShareService implements admin share management. Every mutation goes
// through mutate, which invalidates the affected cached timelines after the
// transaction commits and before the caller gets its answer.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.TimelineCache
	log         logging.Logger
	now         func() time.Time
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, c cache.TimelineCache, log logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: m,
		cache:       c,
		log:         log.With("module", "shares"),
		now:         time.Now,
	}
}

type mutation struct {
	share *models.Share
	// stale lists the share codes whose cached timelines are now wrong.
	stale []string
}

func (s *ShareService) mutate(ctx context.Context, name string, fn func(ctx context.Context, tx dbx.DBTX) (mutation, error)) (*models.Share, error) {
	m, err := dbx.InTx(ctx, s.db, fn)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, m.stale...); err != nil {
		s.log.Error(ctx, "timeline cache invalidation failed", "mutation", name, "codes", m.stale, "error", err)
		return nil, fmt.Errorf("invalidate timeline cache: %w", err)
	}
	metrics.CacheInvalidations.WithLabelValues(name).Add(float64(len(m.stale)))

	return m.share, nil
}

// Create stores a new share under a freshly generated code.
func (s *ShareService) Create(ctx context.Context, in models.CreateShareInput) (*models.Share, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := s.validateExpiry(in.ExpiresAt); err != nil {
		return nil, err
	}
	assocs, err := buildAssociations(in.Associations)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	share, err := s.mutate(ctx, "create", func(ctx context.Context, tx dbx.DBTX) (mutation, error) {
		if err := s.checkProjects(ctx, tx, assocs); err != nil {
			return mutation{}, err
		}

		code, err := s.generateCode(ctx, tx)
		if err != nil {
			return mutation{}, err
		}

		share := &models.Share{
			ID:           uuid.NewString(),
			Code:         code,
			PasswordHash: hash,
			Active:       true,
			ExpiresAt:    in.ExpiresAt,
			CreatedBy:    in.CreatedBy,
		}
		if err := s.repomanager.Shares(tx).Create(ctx, share); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return mutation{}, common.ErrCodeConflict
			}
			return mutation{}, fmt.Errorf("create share: %w", err)
		}

		if err := s.repomanager.Associations(tx).ReplaceForShare(ctx, share.ID, assocs); err != nil {
			return mutation{}, fmt.Errorf("store associations: %w", err)
		}
		share.Associations = assocs

		// A code can be reused after a delete; drop whatever may linger.
		return mutation{share: share, stale: []string{code}}, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "share created", "id", share.ID, "code", share.Code, "created_by", in.CreatedBy)
	return share, nil
}

// Update applies the non-nil fields of in. Renaming purges the cached
// timelines of both the old and the new code.
func (s *ShareService) Update(ctx context.Context, id string, in models.UpdateShareInput) (*models.Share, error) {
	if !validID(id) {
		return nil, common.ErrShareNotFound
	}

	var hash string
	if in.Password != nil {
		if err := ValidatePassword(*in.Password); err != nil {
			return nil, err
		}
		h, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	if in.Code != nil {
		if err := ValidateShareCode(*in.Code); err != nil {
			return nil, err
		}
	}
	if !in.ClearExpiry {
		if err := s.validateExpiry(in.ExpiresAt); err != nil {
			return nil, err
		}
	}
	var assocs []models.Association
	if in.Associations != nil {
		var err error
		if assocs, err = buildAssociations(*in.Associations); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, "update", func(ctx context.Context, tx dbx.DBTX) (mutation, error) {
		sharesRepo := s.repomanager.Shares(tx)
		assocRepo := s.repomanager.Associations(tx)

		share, err := sharesRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return mutation{}, common.ErrShareNotFound
			}
			return mutation{}, fmt.Errorf("load share: %w", err)
		}
		stale := []string{share.Code}

		if in.Password != nil {
			share.PasswordHash = hash
		}
		if in.Active != nil {
			share.Active = *in.Active
		}
		if in.ClearExpiry {
			share.ExpiresAt = nil
		} else if in.ExpiresAt != nil {
			share.ExpiresAt = in.ExpiresAt
		}
		if in.Code != nil && *in.Code != share.Code {
			taken, err := sharesRepo.CodeExists(ctx, *in.Code)
			if err != nil {
				return mutation{}, fmt.Errorf("check code: %w", err)
			}
			if taken {
				return mutation{}, common.ErrCodeConflict
			}
			share.Code = *in.Code
			stale = append(stale, share.Code)
		}

		if err := sharesRepo.Update(ctx, share); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return mutation{}, common.ErrCodeConflict
			}
			if errors.Is(err, common.ErrorNotFound) {
				return mutation{}, common.ErrShareNotFound
			}
			return mutation{}, fmt.Errorf("update share: %w", err)
		}

		if in.Associations != nil {
			if err := s.checkProjects(ctx, tx, assocs); err != nil {
				return mutation{}, err
			}
			if err := assocRepo.ReplaceForShare(ctx, share.ID, assocs); err != nil {
				return mutation{}, fmt.Errorf("store associations: %w", err)
			}
		}

		share.Associations, err = assocRepo.ListByShare(ctx, share.ID)
		if err != nil {
			return mutation{}, fmt.Errorf("load associations: %w", err)
		}

		return mutation{share: share, stale: stale}, nil
	})
}

// Delete removes the share and, through the schema, its associations. The
// access log keeps its rows.
func (s *ShareService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrShareNotFound
	}

	_, err := s.mutate(ctx, "delete", func(ctx context.Context, tx dbx.DBTX) (mutation, error) {
		repo := s.repomanager.Shares(tx)

		share, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return mutation{}, common.ErrShareNotFound
			}
			return mutation{}, fmt.Errorf("load share: %w", err)
		}

		if err := repo.Delete(ctx, id); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return mutation{}, common.ErrShareNotFound
			}
			return mutation{}, fmt.Errorf("delete share: %w", err)
		}

		return mutation{share: share, stale: []string{share.Code}}, nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "share deleted", "id", id)
	return nil
}

// Get returns the share with its associations.
func (s *ShareService) Get(ctx context.Context, id string) (*models.Share, error) {
	if !validID(id) {
		return nil, common.ErrShareNotFound
	}

	share, err := s.repomanager.Shares(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrShareNotFound
		}
		return nil, fmt.Errorf("load share: %w", err)
	}

	share.Associations, err = s.repomanager.Associations(s.db).ListByShare(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load associations: %w", err)
	}

	return share, nil
}

func (s *ShareService) List(ctx context.Context) ([]*models.Share, error) {
	list, err := s.repomanager.Shares(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return list, nil
}

// AccessLog returns the newest verify attempts recorded for the share id.
// Entries of deleted shares stay readable.
func (s *ShareService) AccessLog(ctx context.Context, id string, limit int) ([]models.AccessLogEntry, error) {
	if !validID(id) {
		return nil, common.ErrShareNotFound
	}
	if limit <= 0 {
		limit = defaultAccessLogLen
	}
	limit = min(limit, maxAccessLogLen)

	entries, err := s.repomanager.AccessLog(s.db).ListByShare(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list access log: %w", err)
	}
	return entries, nil
}

func (s *ShareService) validateExpiry(t *time.Time) error {
	if t != nil && !t.After(s.now()) {
		return fmt.Errorf("%w: expiry must be in the future", common.ErrorValidation)
	}
	return nil
}

// checkProjects rejects placements of unknown projects.
func (s *ShareService) checkProjects(ctx context.Context, tx dbx.DBTX, assocs []models.Association) error {
	repo := s.repomanager.Projects(tx)
	seen := make(map[string]bool)
	for _, a := range assocs {
		if seen[a.ProjectID] {
			continue
		}
		seen[a.ProjectID] = true

		if _, err := repo.GetSummary(ctx, a.ProjectID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: unknown project %s", common.ErrorValidation, a.ProjectID)
			}
			return fmt.Errorf("check project: %w", err)
		}
	}
	return nil
}

// generateCode draws random codes until an unused one turns up. Existence is
// checked up front because a failed insert would abort the transaction.
func (s *ShareService) generateCode(ctx context.Context, tx dbx.DBTX) (string, error) {
	repo := s.repomanager.Shares(tx)
	for range maxCodeAttempts {
		code, err := newShareCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", common.ErrCodeExhausted
}
