package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/auth"
	"github.com/dmitrijs2005/showroom/internal/server/cache"
	"github.com/dmitrijs2005/showroom/internal/server/metrics"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/showroom/internal/server/storage"
)

// TimelineService serves the viewer read path for holders of a share token.
type TimelineService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.TimelineCache
	linker      storage.Linker
	log         logging.Logger
	now         func() time.Time
}

func NewTimelineService(db *sql.DB, m repomanager.RepositoryManager, c cache.TimelineCache, l storage.Linker, log logging.Logger) *TimelineService {
	return &TimelineService{
		db:          db,
		repomanager: m,
		cache:       c,
		linker:      l,
		log:         log.With("module", "timeline"),
		now:         time.Now,
	}
}

// authorize loads the share behind an already validated token and checks
// that it is still readable. Expiry is derived here on every call.
func (s *TimelineService) authorize(ctx context.Context, code string, claims *auth.ShareClaims) (*models.Share, error) {
	if claims == nil || claims.ShareCode != code {
		return nil, common.ErrTokenScopeMismatch
	}

	share, err := s.repomanager.Shares(s.db).GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrShareNotFound
		}
		s.log.Error(ctx, "share lookup failed", "code", code, "error", err)
		return nil, fmt.Errorf("share lookup: %w", err)
	}

	// The code may have been deleted and reissued since the token was minted.
	if share.ID != claims.ShareID {
		return nil, common.ErrTokenScopeMismatch
	}
	if !share.Active {
		return nil, common.ErrShareInactive
	}
	if share.IsExpired(s.now()) {
		return nil, common.ErrShareExpired
	}

	return share, nil
}

// Timeline returns the nested timeline of the share, from cache when a live
// entry exists. A cache failure degrades to a rebuild.
func (s *TimelineService) Timeline(ctx context.Context, code string, claims *auth.ShareClaims) (models.Timeline, error) {
	share, err := s.authorize(ctx, code, claims)
	if err != nil {
		return nil, err
	}

	t, ok, err := s.cache.Get(ctx, code)
	switch {
	case err != nil:
		metrics.TimelineCache.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error(ctx, "timeline cache read failed", "code", code, "error", err)
	case ok:
		metrics.TimelineCache.WithLabelValues(metrics.ResultHit).Inc()
		return t, nil
	default:
		metrics.TimelineCache.WithLabelValues(metrics.ResultMiss).Inc()
	}

	t, err = s.Build(ctx, share.ID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, code, t); err != nil {
		s.log.Error(ctx, "timeline cache write failed", "code", code, "error", err)
	}

	return t, nil
}

// Build computes the timeline of a share from its associations. Projects
// keep their association order within a quarter.
func (s *TimelineService) Build(ctx context.Context, shareID string) (models.Timeline, error) {
	rows, err := s.repomanager.Associations(s.db).ListTimelineRows(ctx, shareID)
	if err != nil {
		s.log.Error(ctx, "timeline rows load failed", "share_id", shareID, "error", err)
		return nil, fmt.Errorf("load timeline: %w", err)
	}

	thumbs := make(map[string]string)
	t := models.Timeline{}
	for _, r := range rows {
		thumb, seen := thumbs[r.ThumbnailKey]
		if !seen {
			thumb, err = s.linker.URL(ctx, r.ThumbnailKey)
			if err != nil {
				s.log.Error(ctx, "thumbnail link failed", "project_id", r.ProjectID, "error", err)
				return nil, fmt.Errorf("thumbnail link: %w", err)
			}
			thumbs[r.ThumbnailKey] = thumb
		}

		t.Add(r.Category, strconv.Itoa(r.Year), r.Quarter, models.ProjectSummary{
			ID:           r.ProjectID,
			Title:        r.Title,
			Description:  r.Description,
			ThumbnailURL: thumb,
		})
	}

	return t, nil
}

// ProjectDetail returns a project with download links for its files. The
// project must be placed on the share; anything else reads as not linked so
// project ids cannot be probed through a share.
func (s *TimelineService) ProjectDetail(ctx context.Context, code, projectID string, claims *auth.ShareClaims) (*models.ProjectDetail, error) {
	share, err := s.authorize(ctx, code, claims)
	if err != nil {
		return nil, err
	}

	if !validID(projectID) {
		return nil, common.ErrProjectNotLinked
	}

	linked, err := s.repomanager.Associations(s.db).IsLinked(ctx, share.ID, projectID)
	if err != nil {
		s.log.Error(ctx, "association check failed", "code", code, "project_id", projectID, "error", err)
		return nil, fmt.Errorf("association check: %w", err)
	}
	if !linked {
		return nil, common.ErrProjectNotLinked
	}

	projects := s.repomanager.Projects(s.db)

	summary, err := projects.GetSummary(ctx, projectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrProjectNotLinked
		}
		s.log.Error(ctx, "project load failed", "project_id", projectID, "error", err)
		return nil, fmt.Errorf("project load: %w", err)
	}

	files, err := projects.ListFiles(ctx, projectID)
	if err != nil {
		s.log.Error(ctx, "project files load failed", "project_id", projectID, "error", err)
		return nil, fmt.Errorf("project files load: %w", err)
	}

	for i := range files {
		files[i].URL, err = s.linker.URL(ctx, files[i].StorageKey)
		if err != nil {
			s.log.Error(ctx, "file link failed", "file_id", files[i].ID, "error", err)
			return nil, fmt.Errorf("file link: %w", err)
		}
	}
	if len(files) > 0 {
		summary.ThumbnailURL = files[0].URL
	}

	return &models.ProjectDetail{ProjectSummary: *summary, Files: files}, nil
}
