package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/dbx"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/cache"
	"github.com/dmitrijs2005/showroom/internal/server/config"
	"github.com/dmitrijs2005/showroom/internal/server/ledger"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/accesslog"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/associations"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/projects"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/shares"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// --- in-memory store behind the repository interfaces ---

type store struct {
	mu        sync.Mutex
	shares    map[string]models.Share
	assocs    map[string][]models.Association
	projects  map[string]models.ProjectSummary
	files     map[string][]models.ProjectFile
	audit     []models.AccessLogEntry
	nextID    int64
	errs      map[string]error
	calls     map[string]int
	auditErr  error
	listLimit int
}

func newStore() *store {
	return &store{
		shares:   make(map[string]models.Share),
		assocs:   make(map[string][]models.Association),
		projects: make(map[string]models.ProjectSummary),
		files:    make(map[string][]models.ProjectFile),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// enter counts the call and returns the injected error, if any. Callers
// hold mu.
func (s *store) enter(op string) error {
	s.calls[op]++
	return s.errs[op]
}

func (s *store) addProject(id, title string, fileKeys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[id] = models.ProjectSummary{ID: id, Title: title, Description: title + " description"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, k := range fileKeys {
		s.files[id] = append(s.files[id], models.ProjectFile{
			ID:         id + "-f" + string(rune('0'+i)),
			ProjectID:  id,
			Name:       k,
			StorageKey: k,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func (s *store) auditEntries() []models.AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AccessLogEntry(nil), s.audit...)
}

func (s *store) share(id string) (models.Share, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[id]
	return sh, ok
}

type fakeShares struct{ s *store }

func (f fakeShares) Create(ctx context.Context, sh *models.Share) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.Create"); err != nil {
		return err
	}
	for _, other := range f.s.shares {
		if other.Code == sh.Code {
			return common.ErrorAlreadyExists
		}
	}
	sh.CreatedAt = time.Now()
	sh.UpdatedAt = sh.CreatedAt
	c := *sh
	c.Associations = nil
	f.s.shares[sh.ID] = c
	return nil
}

func (f fakeShares) GetByID(ctx context.Context, id string) (*models.Share, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.GetByID"); err != nil {
		return nil, err
	}
	sh, ok := f.s.shares[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &sh, nil
}

func (f fakeShares) GetByCode(ctx context.Context, code string) (*models.Share, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.GetByCode"); err != nil {
		return nil, err
	}
	for _, sh := range f.s.shares {
		if sh.Code == code {
			return &sh, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeShares) List(ctx context.Context) ([]*models.Share, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.List"); err != nil {
		return nil, err
	}
	out := make([]*models.Share, 0, len(f.s.shares))
	for _, sh := range f.s.shares {
		out = append(out, &sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f fakeShares) CodeExists(ctx context.Context, code string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.CodeExists"); err != nil {
		return false, err
	}
	for _, sh := range f.s.shares {
		if sh.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeShares) Update(ctx context.Context, sh *models.Share) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.Update"); err != nil {
		return err
	}
	if _, ok := f.s.shares[sh.ID]; !ok {
		return common.ErrorNotFound
	}
	for id, other := range f.s.shares {
		if id != sh.ID && other.Code == sh.Code {
			return common.ErrorAlreadyExists
		}
	}
	sh.UpdatedAt = time.Now()
	c := *sh
	c.Associations = nil
	f.s.shares[sh.ID] = c
	return nil
}

func (f fakeShares) Delete(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.Delete"); err != nil {
		return err
	}
	if _, ok := f.s.shares[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.shares, id)
	delete(f.s.assocs, id)
	return nil
}

func (f fakeShares) RecordView(ctx context.Context, id string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Shares.RecordView"); err != nil {
		return err
	}
	sh, ok := f.s.shares[id]
	if !ok {
		return common.ErrorNotFound
	}
	sh.ViewCount++
	sh.LastAccessedAt = &at
	f.s.shares[id] = sh
	return nil
}

type fakeAssociations struct{ s *store }

func (f fakeAssociations) ReplaceForShare(ctx context.Context, shareID string, items []models.Association) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Associations.ReplaceForShare"); err != nil {
		return err
	}
	out := make([]models.Association, 0, len(items))
	for _, a := range items {
		f.s.nextID++
		a.ID = f.s.nextID
		a.ShareID = shareID
		out = append(out, a)
	}
	f.s.assocs[shareID] = out
	return nil
}

func (f fakeAssociations) ListByShare(ctx context.Context, shareID string) ([]models.Association, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Associations.ListByShare"); err != nil {
		return nil, err
	}
	out := append([]models.Association{}, f.s.assocs[shareID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f fakeAssociations) ListTimelineRows(ctx context.Context, shareID string) ([]models.TimelineRow, error) {
	list, err := f.ListByShare(ctx, shareID)
	if err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Associations.ListTimelineRows"); err != nil {
		return nil, err
	}
	out := make([]models.TimelineRow, 0, len(list))
	for _, a := range list {
		p := f.s.projects[a.ProjectID]
		var thumb string
		if files := f.s.files[a.ProjectID]; len(files) > 0 {
			thumb = files[0].StorageKey
		}
		out = append(out, models.TimelineRow{
			Category:     a.Category,
			Year:         a.Year,
			Quarter:      a.Quarter,
			DisplayOrder: a.DisplayOrder,
			ProjectID:    a.ProjectID,
			Title:        p.Title,
			Description:  p.Description,
			ThumbnailKey: thumb,
		})
	}
	return out, nil
}

func (f fakeAssociations) IsLinked(ctx context.Context, shareID, projectID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Associations.IsLinked"); err != nil {
		return false, err
	}
	for _, a := range f.s.assocs[shareID] {
		if a.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

type fakeAccessLog struct{ s *store }

func (f fakeAccessLog) Append(ctx context.Context, e *models.AccessLogEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.calls["AccessLog.Append"]++
	if f.s.auditErr != nil {
		return f.s.auditErr
	}
	f.s.nextID++
	e.ID = f.s.nextID
	e.CreatedAt = time.Now()
	f.s.audit = append(f.s.audit, *e)
	return nil
}

func (f fakeAccessLog) ListByShare(ctx context.Context, shareID string, limit int) ([]models.AccessLogEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("AccessLog.ListByShare"); err != nil {
		return nil, err
	}
	f.s.listLimit = limit
	out := make([]models.AccessLogEntry, 0)
	for i := len(f.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if f.s.audit[i].ShareID == shareID {
			out = append(out, f.s.audit[i])
		}
	}
	return out, nil
}

type fakeProjects struct{ s *store }

func (f fakeProjects) GetSummary(ctx context.Context, id string) (*models.ProjectSummary, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Projects.GetSummary"); err != nil {
		return nil, err
	}
	p, ok := f.s.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (f fakeProjects) ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.enter("Projects.ListFiles"); err != nil {
		return nil, err
	}
	return append([]models.ProjectFile{}, f.s.files[projectID]...), nil
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error     { return nil }
func (m *fakeRepoManager) Shares(db dbx.DBTX) shares.Repository             { return fakeShares{m.s} }
func (m *fakeRepoManager) Associations(db dbx.DBTX) associations.Repository { return fakeAssociations{m.s} }
func (m *fakeRepoManager) AccessLog(db dbx.DBTX) accesslog.Repository       { return fakeAccessLog{m.s} }
func (m *fakeRepoManager) Projects(db dbx.DBTX) projects.Repository         { return fakeProjects{m.s} }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

// --- collaborators ---

// fakeLinker signs nothing; it makes keys recognisable in assertions.
type fakeLinker struct {
	err   error
	calls int
}

func (l *fakeLinker) URL(ctx context.Context, key string) (string, error) {
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	if key == "" {
		return "", nil
	}
	return "https://files.test/" + key, nil
}

// spyCache wraps a real cache and records invalidations.
type spyCache struct {
	cache.TimelineCache
	mu        sync.Mutex
	deleted   []string
	deleteErr error
	getErr    error
}

func (c *spyCache) Get(ctx context.Context, code string) (models.Timeline, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.TimelineCache.Get(ctx, code)
}

func (c *spyCache) Delete(ctx context.Context, codes ...string) error {
	c.mu.Lock()
	c.deleted = append(c.deleted, codes...)
	c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.TimelineCache.Delete(ctx, codes...)
}

// --- fixture ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const (
	projectA = "0b6f2f55-6a43-4c1e-9a55-3f1f0c5b7a01"
	projectB = "0b6f2f55-6a43-4c1e-9a55-3f1f0c5b7a02"
	projectC = "0b6f2f55-6a43-4c1e-9a55-3f1f0c5b7a03"
	missingP = "0b6f2f55-6a43-4c1e-9a55-3f1f0c5b7aff"
)

type fixture struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	store     *store
	ledger    *ledger.MemoryLedger
	cache     *spyCache
	linker    *fakeLinker
	clock     *testClock
	cfg       *config.Config
	admission *AdmissionService
	timeline  *TimelineService
	shares    *ShareService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	st := newStore()
	st.addProject(projectA, "Project A", "projects/a/cover.png", "projects/a/deck.pdf")
	st.addProject(projectB, "Project B")
	st.addProject(projectC, "Project C", "projects/c/cover.png")

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	rm := &fakeRepoManager{s: st}
	l := ledger.NewMemoryLedger(ledger.Settings{Window: cfg.FailureWindow, Lockout: cfg.LockoutDuration}).WithClock(clock.Now)
	c := &spyCache{TimelineCache: cache.NewMemoryCache(cfg.TimelineCacheSize, cfg.TimelineCacheTTL)}
	lk := &fakeLinker{}
	log := logging.Discard()

	f := &fixture{
		db:        db,
		mock:      mock,
		store:     st,
		ledger:    l,
		cache:     c,
		linker:    lk,
		clock:     clock,
		cfg:       cfg,
		admission: NewAdmissionService(db, rm, l, cfg, log),
		timeline:  NewTimelineService(db, rm, c, lk, log),
		shares:    NewShareService(db, rm, c, log),
	}
	f.admission.now = clock.Now
	f.timeline.now = clock.Now
	f.shares.now = clock.Now
	return f
}

// expectTx registers n committed transactions with sqlmock.
func (f *fixture) expectTx(n int) {
	for range n {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}
}

func (f *fixture) createShare(t *testing.T, password string, assocs ...models.AssociationInput) *models.Share {
	t.Helper()
	f.expectTx(1)
	sh, err := f.shares.Create(context.Background(), models.CreateShareInput{
		Password:     password,
		Associations: assocs,
		CreatedBy:    "admin-1",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return sh
}

func placement(projectID, category string, year int, quarter string) models.AssociationInput {
	return models.AssociationInput{ProjectID: projectID, Category: category, Year: year, Quarter: quarter}
}

var viewer = Client{IP: "203.0.113.7", UserAgent: "test-agent"}
