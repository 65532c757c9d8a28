// Package server initializes and runs the share access server. It opens the
// database, picks the key-value backend for the attempt ledger and the
// timeline cache, and runs the HTTP API next to the gRPC health endpoint
// until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/cache"
	"github.com/dmitrijs2005/showroom/internal/server/config"
	"github.com/dmitrijs2005/showroom/internal/server/httpapi"
	"github.com/dmitrijs2005/showroom/internal/server/kvstore"
	"github.com/dmitrijs2005/showroom/internal/server/ledger"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/showroom/internal/server/services"
	"github.com/dmitrijs2005/showroom/internal/server/storage"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/showroom/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router *gin.Engine
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrations: %w", err)
	}

	l, tc, err := newKVStores(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	linker, err := storage.NewS3Linker(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	admission := services.NewAdmissionService(db, rm, l, c, logger)
	timeline := services.NewTimelineService(db, rm, tc, linker, logger)
	shares := services.NewShareService(db, rm, tc, logger)

	router, err := httpapi.NewRouter(httpapi.NewHandler(admission, timeline, shares, logger), httpapi.RouterOptions{
		SecretKey:          []byte(c.SecretKey),
		TrustedProxies:     c.TrustedProxies,
		VerifyRateInterval: c.VerifyRateInterval,
		VerifyRateBurst:    c.VerifyRateBurst,
		Health:             db.PingContext,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("http router: %w", err)
	}

	return &App{config: c, logger: logger, db: db, router: router}, nil
}

// newKVStores builds the attempt ledger and the timeline cache on the
// configured backend.
func newKVStores(ctx context.Context, c *config.Config) (ledger.Ledger, cache.TimelineCache, error) {
	settings := ledger.Settings{Window: c.FailureWindow, Lockout: c.LockoutDuration}

	switch c.KVBackend {
	case config.KVBackendMemory:
		return ledger.NewMemoryLedger(settings), cache.NewMemoryCache(c.TimelineCacheSize, c.TimelineCacheTTL), nil
	case config.KVBackendDynamo:
		client, err := kvstore.NewClient(ctx, c.DynamoRegion, c.DynamoEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamodb init error: %w", err)
		}
		return ledger.NewDynamoLedger(client, c.DynamoTable, settings),
			cache.NewDynamoCache(client, c.DynamoTable, c.TimelineCacheTTL), nil
	default:
		return nil, nil, fmt.Errorf("unknown kv backend %q", c.KVBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.db.PingContext)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
}
