package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DaDevFox/task-systems/checkin-core/internal/config"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/httpapi"
	"github.com/DaDevFox/task-systems/checkin-core/internal/logging"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logging.Logger

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.WithError(err).Warn("ignoring .env file")
	}

	cfg, err := config.ParseServerFlags(os.Args[1:], logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger = logging.Configure(os.Getenv("LOG_LEVEL"), cfg.LogFormat, cfg.Debug)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
	logger.Info("server stopped")
}

func run(cfg config.ServerConfig, logger *logrus.Logger) error {
	dbType, err := repository.ParseDatabaseType(cfg.DatabaseType)
	if err != nil {
		return err
	}

	store, err := repository.NewStore(storePath(cfg.DataDir, dbType), dbType, logger)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}

	app := service.NewApp(store, service.AppConfig{
		DefaultValidity: cfg.DefaultValidity,
		StrongTokens:    cfg.StrongTokens,
		Location:        cfg.Location,
	}, logger)
	defer func() {
		if err := app.Close(); err != nil {
			logger.WithError(err).Error("failed to close store")
		}
	}()
	app.Events.SubscribeAll(events.AuditHandler(logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewServer(app, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"db_type":  dbType,
			"data_dir": cfg.DataDir,
			"timezone": cfg.Location.String(),
		}).Info("starting checkin-core HTTP server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down checkin-core server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx, srv, app.Events, logger)
	})

	return g.Wait()
}

// shutdown stops accepting requests, then waits for event handlers started by
// in-flight requests so none runs against a closed store
func shutdown(ctx context.Context, srv *http.Server, pubsub *events.PubSub, logger *logrus.Logger) error {
	err := srv.Shutdown(ctx)
	pubsub.Wait()
	logger.Debug("event handlers drained")
	if err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	return nil
}

// storePath places each backend in its own location under dataDir
func storePath(dataDir string, dbType repository.DatabaseType) string {
	switch dbType {
	case repository.DatabaseTypeMemory:
		return ""
	case repository.DatabaseTypeBolt:
		return filepath.Join(dataDir, "checkin")
	default:
		return filepath.Join(dataDir, "badger")
	}
}
