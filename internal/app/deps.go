package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/cache"
	"github.com/MuhammadAbdiel/aora-app/internal/config"
	"github.com/MuhammadAbdiel/aora-app/internal/db"
	"github.com/MuhammadAbdiel/aora-app/internal/handlers"
	"github.com/MuhammadAbdiel/aora-app/internal/middleware"
	"github.com/MuhammadAbdiel/aora-app/internal/repositories"
	"github.com/MuhammadAbdiel/aora-app/internal/storage"
)

const (
	loginRateWindow = time.Minute
	loginRateTTL    = 10 * time.Minute
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// A nil pool keeps accounts, documents and files in memory. The returned cleanup
// releases connections opened here.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.ServerConfig, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	var cleanups []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	deps := handlers.Dependencies{Health: make(map[string]handlers.Pinger)}

	if pool != nil {
		deps.Accounts = repositories.NewPostgresAccountRepository(pool)
		deps.Documents = repositories.NewPostgresDocumentRepository(pool)
		deps.Files = repositories.NewPostgresFileRepository(pool)
		deps.Health["postgres"] = pool
	} else {
		logger.Warn("no database configured, records are kept in memory")
		deps.Accounts = repositories.NewInMemoryAccountRepository()
		deps.Documents = repositories.NewInMemoryDocumentRepository()
		deps.Files = repositories.NewInMemoryFileRepository()
	}

	var sessionStore auth.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		if pool == nil {
			return handlers.Dependencies{}, cleanup, fmt.Errorf("session backend %q requires a database", cfg.SessionBackend)
		}
		sessionStore = repositories.NewPostgresSessionStore(pool)
	case config.SessionBackendRedis:
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return handlers.Dependencies{}, cleanup, err
		}
		cleanups = append(cleanups, client.Close)
		sessionStore = cache.NewRedisSessionStore(client)
		deps.Health["redis"] = cache.Health{Client: client}
	case config.SessionBackendMemory:
		sessionStore = auth.NewInMemorySessionStore()
	default:
		return handlers.Dependencies{}, cleanup, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
	deps.Sessions = auth.NewManager(cfg.SessionTTL, sessionStore)

	if cfg.ObjectStore.Bucket != "" {
		objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, cleanup, err
		}
		deps.Objects = objects
		deps.Health["objects"] = objects
	} else {
		logger.Warn("no object store bucket configured, file contents are kept in memory")
		deps.Objects = storage.NewMemoryStorage()
	}

	if cfg.LoginRateLimit > 0 {
		deps.LoginLimiter = middleware.NewIPRateLimiter(cfg.LoginRateLimit, loginRateWindow, cfg.LoginRateBurst, loginRateTTL)
	}

	return deps, cleanup, nil
}
