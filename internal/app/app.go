// Package app implements the aora command: the backing service (serve, migrate) and
// the client commands that drive the session provider and backend facade.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/MuhammadAbdiel/aora-app/internal/config"
	"github.com/MuhammadAbdiel/aora-app/internal/db"
	"github.com/MuhammadAbdiel/aora-app/internal/handlers"
	"github.com/MuhammadAbdiel/aora-app/internal/httpserver"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/middleware"
)

const usage = "expected command: serve, migrate, signup, signin, signout, whoami, posts, search, mine, or upload"

// Run bootstraps the Aora application.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "migrate":
		return runMigrations(ctx, args[1:], out)
	case "signup", "signin", "signout", "whoami", "posts", "search", "mine", "upload":
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runClient(ctx, cfg, args, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     logging.ParseLevel(level),
	}))
}

func serve(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	inMemory := flags.Bool("memory", false, "keep all data in memory instead of PostgreSQL")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *inMemory {
		cfg.Server.SessionBackend = config.SessionBackendMemory
	}
	if err := cfg.Server.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	var pool db.Pool
	if !*inMemory {
		pgPool, err := db.Connect(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		pool = pgPool
	}

	deps, cleanup, err := buildDependencies(ctx, pool, cfg.Server, logger)
	defer func() {
		if cerr := cleanup(context.WithoutCancel(ctx)); cerr != nil {
			logger.Error("release dependencies", "error", cerr)
		}
	}()
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	handlers.RegisterRoutes(router, deps)
	handler := middleware.RequestLogger(logger)(router)

	srv := httpserver.New(cfg.Server.AppPort, handler)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting http server", "addr", srv.Addr(), "sessionBackend", cfg.Server.SessionBackend)
	if err := srv.Run(ctx, nil); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}

func runMigrations(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	migrationDir := cfg.Server.MigrationDir
	if !filepath.IsAbs(migrationDir) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		migrationDir = filepath.Join(wd, migrationDir)
	}

	switch command {
	case "status", "up":
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	ctx = logging.WithLogger(ctx, newLogger(cfg.Server.LogLevel))

	pool, err := db.Connect(ctx, cfg.Server.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if command == "status" {
		migrations, err := db.MigrationStatus(ctx, pool, migrationDir)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			mark := " "
			if m.Applied {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %s\n", mark, m.Version)
		}
		return nil
	}

	applied, err := db.Migrate(ctx, pool, migrationDir)
	for _, name := range applied {
		fmt.Fprintf(out, "applied migration %s\n", name)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "no migrations to apply")
	}
	return nil
}
