// Package server wires configuration, storage, the authentication service
// and both transports into one process, and shuts them down together.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	gs "github.com/dmitrijs2005/notekeeper/internal/server/grpc"
	"github.com/dmitrijs2005/notekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/dmitrijs2005/notekeeper/internal/server/session"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *dbx.Manager
	repos    repomanager.RepositoryManager
	metrics  *metrics.Metrics
	issuer   *auth.Issuer
	users    *services.UserService
	sessions *session.Store
	limiter  httpapi.Limiter
	redis    *redis.Client
}

// NewApp builds the application against Postgres. Logs go to stdout.
func NewApp(c *config.Config) (*App, error) {
	opener := dbx.OpenPostgres(c.DatabaseDSN, dbx.PoolOptions{
		MaxConns:    c.DBMaxConns,
		PingTimeout: c.DBPingTimeout,
	})
	return newApp(c, os.Stdout, opener, repomanager.NewPostgresRepositoryManager())
}

func newApp(c *config.Config, out io.Writer, open dbx.Opener, repos repomanager.RepositoryManager) (*App, error) {
	logger := logging.NewJSONLogger(out, c.LogLevel)

	issuer := auth.NewIssuer(auth.Config{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})

	sessions, err := session.NewStore(c.SessionSecret, session.CookieOptions{
		Name:   c.SessionCookieName,
		Secure: c.IsProduction(),
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	mt := metrics.New()
	db := dbx.NewManager(open)

	us, err := services.NewUserService(db, repos, issuer, c.PasswordHashCost, mt, logger)
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	app := &App{
		config:   c,
		logger:   logger,
		db:       db,
		repos:    repos,
		metrics:  mt,
		issuer:   issuer,
		users:    us,
		sessions: sessions,
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.limiter = httpapi.NewRedisLimiter(app.redis, "notekeeper:rl")
	} else {
		app.limiter = httpapi.NewMemoryLimiter()
	}

	return app, nil
}

// Handler returns the HTTP route table.
func (app *App) Handler() http.Handler {
	h := httpapi.NewHandler(app.users, app.sessions, app.metrics, app.logger)
	return httpapi.NewRouter(h, httpapi.RouterOptions{
		Limiter:         app.limiter,
		RateLimit:       app.config.RateLimit,
		RateLimitWindow: app.config.RateLimitWindow,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) migrate(ctx context.Context) error {
	if !app.config.MigrateOnStart {
		return nil
	}
	db, err := app.db.Get(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := app.repos.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	app.logger.Info(ctx, "Migrations applied")
	return nil
}

func (app *App) startHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewServer(app.config.EndpointAddrGRPC, app.users, app.issuer, app.metrics, app.logger)
	return s.Run(ctx)
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)
	app.initSignalHandler(cancelFunc)

	if err := app.migrate(ctx); err != nil {
		app.logger.Error(ctx, "startup failed", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.startHTTPServer(gctx) })
	g.Go(func() error { return app.startGRPCServer(gctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if err := app.db.Reset(); err != nil {
		app.logger.Warn(ctx, "closing database", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "closing redis", "error", err)
		}
	}
}
