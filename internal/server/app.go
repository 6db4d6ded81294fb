// Package server wires the folio backend together: database and migrations,
// the object store, domain services, the HTTP API, the gRPC health
// endpoint and the cleanup worker.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/auth"
	"github.com/dmitrijs2005/folio/internal/server/config"
	"github.com/dmitrijs2005/folio/internal/server/httpapi"
	"github.com/dmitrijs2005/folio/internal/server/imaging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/folio/internal/server/services"
	"github.com/dmitrijs2005/folio/internal/server/storage"
	"github.com/dmitrijs2005/folio/internal/server/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/folio/internal/server/grpc"
)

const (
	authRequestsPerMinute   = 10
	publicRequestsPerMinute = 30
	limiterCleanupInterval  = 5 * time.Minute
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry
	metrics  metrics.Recorder

	store     storage.ObjectStore
	cleanup   *cleanup.Job
	profiles  *services.ProfileWriter
	auth      *services.AuthService
	content   *services.ContentService
	images    *services.ImageService
	analytics *services.AnalyticsService
	contact   *services.ContactService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newObjectStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, store: store, metrics: metrics.Nop{}}
	if c.MetricsEnabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		app.metrics = metrics.NewCollector(app.registry)
	}

	var google auth.IDTokenVerifier
	if c.GoogleClientID != "" {
		google = auth.NewGoogleVerifier(c.GoogleClientID)
	}

	opts := services.DefaultProfileWriterOptions()
	opts.BaseDelay = c.ProfileRetryBaseDelay

	app.profiles = services.NewProfileWriter(db, rm, opts, logger, app.metrics)
	app.auth = services.NewAuthService(db, rm, c, auth.NewArgon2(), google, app.profiles, logger)
	app.content = services.NewContentService(db, rm, store, logger, app.metrics)
	app.images = services.NewImageService(store, imaging.DefaultOptions(), logger, app.metrics)
	app.analytics = services.NewAnalyticsService(db, rm, c.AnalyticsEnabled, logger)
	app.contact = services.NewContactService(c.ContactRelayURL, c.ContactRelayAccessKey, nil, logger)
	app.cleanup = cleanup.NewJob(db, rm, store, logger, app.metrics)

	return app, nil
}

func newObjectStore(ctx context.Context, c *config.Config) (storage.ObjectStore, error) {
	switch c.ObjectBackend {
	case config.BackendS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			PublicURL:    c.S3PublicURL,
		})
	case config.BackendImageHost:
		return storage.NewImageHostStore(storage.ImageHostOptions{
			UploadURL:    c.ImageHostUploadURL,
			UploadPreset: c.ImageHostUploadPreset,
			DeleteURL:    c.ImageHostDeleteURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown object backend %q", c.ObjectBackend)
	}
}

// GrantAdmin promotes the identity registered under email. Roles have no
// API; this is the out-of-band path.
func (app *App) GrantAdmin(ctx context.Context, email string) error {
	return app.auth.GrantAdmin(ctx, email)
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) router(authLimiter, publicLimiter *httpapi.RateLimiter) http.Handler {
	d := httpapi.Deps{
		Auth:          app.auth,
		Profiles:      app.profiles,
		Content:       app.content,
		Images:        app.images,
		Analytics:     app.analytics,
		Contact:       app.contact,
		SecretKey:     app.config.SecretKey,
		Logger:        app.logger,
		Metrics:       app.metrics,
		AuthLimiter:   authLimiter,
		PublicLimiter: publicLimiter,
	}
	if app.registry != nil {
		d.MetricsHandler = metrics.Handler(app.registry)
	}
	return httpapi.NewRouter(d)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, h http.Handler) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, h, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.config.CleanupInterval, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	authLimiter := httpapi.NewRateLimiter(authRequestsPerMinute, limiterCleanupInterval, app.metrics)
	defer authLimiter.Stop()
	publicLimiter := httpapi.NewRateLimiter(publicRequestsPerMinute, limiterCleanupInterval, app.metrics)
	defer publicLimiter.Stop()

	h := app.router(authLimiter, publicLimiter)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc, h)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.cleanup.Start(ctx, app.config.CleanupInterval)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
