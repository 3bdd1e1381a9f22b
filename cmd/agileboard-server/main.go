package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/agileboard/internal"
	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/config"
	"github.com/kazz187/agileboard/internal/event"
	"github.com/kazz187/agileboard/internal/eventbus"
	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/internal/task"
	taskrepo "github.com/kazz187/agileboard/internal/task/repositoryimpl"
	userrepo "github.com/kazz187/agileboard/internal/user/repositoryimpl"
	"github.com/kazz187/agileboard/pkg/clog"
	"github.com/kazz187/agileboard/pkg/storage"
)

var (
	app  = kingpin.New("agileboard-server", "Task store and auth service for agileboard")
	host = app.Flag("host", "Address to bind to. Overrides AGILEBOARD_HTTP_HOST.").String()
	port = app.Flag("port", "Port to bind to. Overrides AGILEBOARD_HTTP_PORT.").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadServerEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	if *host != "" {
		env.HTTPHost = *host
	}
	if *port != "" {
		env.HTTPPort = *port
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	if err := run(env); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(env *config.ServerEnv) error {
	// Setup storage
	var store storage.Storage
	var err error
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			return fmt.Errorf("failed to create S3 storage: %w", err)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			return fmt.Errorf("failed to create local storage: %w", err)
		}
	}

	// Setup repositories
	var taskRepo task.Repository
	switch env.TaskBackend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(env.SQLitePath), 0o700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		sqliteRepo, err := taskrepo.NewSQLiteRepository(env.SQLitePath)
		if err != nil {
			return err
		}
		defer sqliteRepo.Close()
		taskRepo = sqliteRepo
	case "yaml":
		taskRepo = taskrepo.NewYAMLRepository(store)
	default:
		return fmt.Errorf("unknown task backend %q", env.TaskBackend)
	}
	userRepo := userrepo.NewYAMLRepository(store)

	bus := eventbus.New()
	tokens := auth.NewTokens(env.JWTSecret, env.TokenTTL)

	srv := server.NewServer(
		&env.HTTPEnv,
		auth.NewInterceptor(tokens, rpc.PublicProcedures...),
		auth.NewServer(userRepo, tokens),
		task.NewServer(taskRepo, bus),
		event.NewServer(bus),
	)
	slog.Info("task backend ready", "backend", env.TaskBackend, "storage", env.StorageEnv.Type)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")

		// Give active connections time to finish after stream contexts are cancelled.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return p.Wait()
}
