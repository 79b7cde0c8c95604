package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metarticles/internal/server/api"
	"metarticles/internal/server/config"
	"metarticles/internal/server/database"
	"metarticles/internal/server/service"
	"metarticles/internal/server/session"
	"metarticles/internal/server/storage"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited cleanly")
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"blob_backend", cfg.BlobBackend,
		"session_store", cfg.SessionStore,
		"max_upload_size", cfg.MaxUploadSize,
		"memory_database", cfg.UsesMemoryDatabase(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data stores
	var (
		users    service.UserStore
		articles service.ArticleStore
		health   api.HealthChecker
		db       *database.DB
	)
	if cfg.UsesMemoryDatabase() {
		mem := database.NewMemoryStore()
		users, articles = mem, mem
		slog.Warn("using in-memory store, data is lost on restart")
	} else {
		db, err = database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			return err
		}
		slog.Info("database migrations complete")

		users = database.NewUserRepository(db)
		articles = database.NewArticleRepository(db)
		health = db
	}

	// Blob storage
	backend, err := newBlobBackend(cfg)
	if err != nil {
		return err
	}
	blobs := storage.NewBlobStore(backend)
	if err := blobs.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	slog.Info("blob storage initialized", "backend", cfg.BlobBackend)

	// Sessions
	store, closeStore, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	sessions := session.NewManager(store, session.Options{
		Lifetime:    cfg.SessionLifetime,
		IdleTimeout: cfg.SessionIdleTimeout,
		Secure:      cfg.CookieSecure,
	})

	// Services and router
	identity := service.NewIdentityService(users)
	library := service.NewArticleService(articles, users, blobs, cfg.MaxUploadSize)

	handler := api.NewHandler(identity, library, sessions, health)
	e, err := api.SetupRouter(handler, sessions, api.RouterConfig{
		MaxUploadSize: cfg.MaxUploadSize,
		CookieSecure:  cfg.CookieSecure,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		// Stop accepting new requests, finish in-flight with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})
	return g.Wait()
}

func newBlobBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.BlobBackend {
	case config.BlobMinio:
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return storage.NewFileSystemStore(cfg.UploadDir), nil
	}
}

// newSessionStore returns the configured scs store and a function releasing
// its resources.
func newSessionStore(ctx context.Context, cfg *config.Config, db *database.DB) (scs.Store, func(), error) {
	switch cfg.SessionStore {
	case config.SessionPostgres:
		store := session.NewPostgresStore(db.Pool)
		if n, err := store.Purge(ctx); err != nil {
			slog.Warn("failed to purge expired sessions", "error", err)
		} else if n > 0 {
			slog.Info("purged expired sessions", "count", n)
		}
		return store, func() {}, nil
	case config.SessionRedis:
		store := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
		return store, func() { store.Close() }, nil
	default:
		store := memstore.New()
		return store, store.StopCleanup, nil
	}
}
