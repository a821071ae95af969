// Package app wires the service components together and owns the
// process lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"codeshare/pkg/api"
	"codeshare/pkg/auth"
	"codeshare/pkg/banner"
	"codeshare/pkg/config"
	"codeshare/pkg/logger"
	"codeshare/pkg/ranking"
	"codeshare/pkg/ratelimit"
	"codeshare/pkg/router"
	"codeshare/pkg/security"
	"codeshare/pkg/store"
	"codeshare/pkg/telemetry"
	"codeshare/pkg/templates"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	cache   *templates.Cache
	ranking *ranking.Engine
	routes  *router.Tree

	srv *http.Server
}

// New initializes everything that does not need a running context: the
// store, the caches and the route tree. Call Run to start serving.
func New(cfg *config.Config, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Level)

	if cfg.Security.MasterKeyHex != "" {
		if err := security.SetKeyHex(cfg.Security.MasterKeyHex); err != nil {
			return nil, fmt.Errorf("invalid master key: %w", err)
		}
	} else {
		logger.Warn("master_key_missing", "effect", "sessions disabled")
	}

	if err := store.Open(cfg.Server.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Server.DBPath, err)
	}
	store.OnWriteFailure = telemetry.RecordWriteFailure

	a := &App{cfg: cfg, version: version}

	a.auth = auth.New()
	if err := a.auth.Load(); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	a.limiter = ratelimit.New(
		cfg.Security.RateLimit.MaxRequests,
		cfg.Security.RateLimit.MaxAccounts,
		cfg.Security.RateLimit.Window.Duration(),
	)
	if err := a.limiter.Load(); err != nil {
		return nil, fmt.Errorf("failed to load ip records: %w", err)
	}
	a.limiter.OnThrottle = telemetry.RecordThrottled

	a.cache = templates.New(cfg.Cache.MaxBytes.Int64(), cfg.Server.TemplatesDir, cfg.Cache.Mappings)
	a.cache.OnHit = telemetry.RecordCacheHit
	a.cache.OnMiss = telemetry.RecordCacheMiss
	a.cache.OnEviction = telemetry.RecordCacheEviction

	a.ranking = ranking.New(cfg.Ranking.PageSize)
	if err := a.ranking.Rebuild(); err != nil {
		return nil, fmt.Errorf("failed to build browse lists: %w", err)
	}

	a.routes = api.New(cfg, a.auth, a.limiter, a.cache, a.ranking).Routes()
	return a, nil
}

// Run starts the background workers and the HTTP server and blocks until
// ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	store.StartWriter(ctx)
	a.limiter.Start(ctx)
	if err := a.ranking.Start(ctx, a.cfg.Ranking.Cron); err != nil {
		return err
	}

	banner.Print(a.cfg.Addr(), a.cfg.Server.DBPath, a.version)

	errCh := a.startHTTP()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
	}
	store.StopWriter(5 * time.Second)
	if err := store.Close(); err != nil {
		logger.Warn("pebble_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
