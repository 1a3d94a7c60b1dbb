package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/blob"
	"taskflow/internal/comments"
	"taskflow/internal/dashboard"
	"taskflow/internal/identity"
	"taskflow/internal/logging"
	"taskflow/internal/notify"
	"taskflow/internal/server"
	"taskflow/internal/teams"
	"taskflow/internal/workflow"
	db "taskflow/repository/db"
	inmemory "taskflow/repository/inmemory"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Store is the full storage surface. Both the Postgres and the in-memory
// implementations satisfy it.
type Store interface {
	identity.Store
	workflow.Store
	teams.Store
	comments.Store
	dashboard.Store
	notify.Store
	Ping(ctx context.Context) error
	Close()
}

type runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.WithError(err).Fatal("taskflow stopped")
	}
	log.Info("taskflow stopped")
}

func run(args []string) error {
	cfg, err := server.ReadConfig(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("starting taskflow")

	flush, err := setupSentry(cfg.SentryDSN)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	defer flush()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, closePublisher := openPublisher(cfg.RedisAddr)
	defer closePublisher()

	svc, err := buildServices(cfg, store, publisher)
	if err != nil {
		return err
	}
	api := server.NewTaskAPI(cfg, svc)
	if api == nil {
		return fmt.Errorf("failed to initialize API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return serve(api, sigChan, cfg.ShutdownTimeout)
}

func setupSentry(dsn string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, AttachStacktrace: true}); err != nil {
		return nil, err
	}
	log.Info("[SUCCESS] Sentry error reporting enabled")
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// openStore returns the configured store. When PostgreSQL is unreachable
// the service falls back to in-memory storage.
func openStore(cfg *server.Config) (Store, error) {
	if cfg.Storage == server.StorageMemory {
		log.Info("using in-memory storage")
		return inmemory.NewStorage(), nil
	}

	dbStorage, err := db.NewStorage(cfg.DBStr)
	if err != nil {
		log.WithError(err).Warn("[WARN] database unreachable, falling back to in-memory storage")
		return inmemory.NewStorage(), nil
	}
	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		dbStorage.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return dbStorage, nil
}

// openPublisher connects the Redis fan-out. It returns a nil publisher
// when Redis is not configured or not reachable.
func openPublisher(addr string) (notify.Publisher, func()) {
	noop := func() {}
	if addr == "" {
		return nil, noop
	}
	p := notify.NewRedisPublisher(addr, "", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		log.WithError(err).WithField("addr", addr).Warn("redis unreachable, live notifications disabled")
		_ = p.Close()
		return nil, noop
	}
	log.WithField("addr", addr).Info("[SUCCESS] redis notification fan-out enabled")
	return p, func() { _ = p.Close() }
}

func buildServices(cfg *server.Config, store Store, publisher notify.Publisher) (server.Services, error) {
	blobs, err := blob.NewLocal(cfg.UploadDir)
	if err != nil {
		return server.Services{}, fmt.Errorf("upload dir: %w", err)
	}
	notifications := notify.NewService(store, publisher)
	ids := identity.NewService(store, identity.NewTokenService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL))

	return server.Services{
		Identity:      ids,
		Tasks:         workflow.NewService(store, notifications, blobs),
		Teams:         teams.NewService(store, ids, notifications, blobs),
		Comments:      comments.NewService(store, notifications),
		Dashboard:     dashboard.NewService(store),
		Notifications: notifications,
		Store:         store,
	}, nil
}

// serve runs api until it fails or a signal arrives.
func serve(api runner, signals <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	select {
	case sig := <-signals:
		return handleShutdown(api, sig, timeout)
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

func handleShutdown(api runner, sig os.Signal, timeout time.Duration) error {
	log.WithField("signal", sig.String()).Info("[INFO] graceful shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("[SUCCESS] graceful shutdown complete")
	return nil
}
