// Package syncservice assembles and runs the sync service process.
package syncservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalhub/vitalsync/internal/api"
	"github.com/vitalhub/vitalsync/internal/config"
	"github.com/vitalhub/vitalsync/internal/factory"
	"github.com/vitalhub/vitalsync/internal/health"
	"github.com/vitalhub/vitalsync/internal/idempotency"
	"github.com/vitalhub/vitalsync/internal/logger"
	"github.com/vitalhub/vitalsync/internal/repository"
	"github.com/vitalhub/vitalsync/internal/syncer"
)

const healthInterval = 15 * time.Second

// Run starts the sync service HTTP server and the background scheduler,
// blocking until shutdown or a fatal error.
func Run() error {
	log := logger.New("vitalsync")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Dur("sync_interval", cfg.SyncInterval).
		Dur("backfill_window", cfg.BackfillWindow).
		Msg("sync service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := factory.NewBackend(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("storage backend unavailable")
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("backend close failed")
		}
	}()

	repo := repository.New(backend, log)
	guard := idempotency.New(cfg.GuardTTL)
	sources := factory.NewSources(cfg, log)

	orch := syncer.New(repo, guard, sources, syncer.Config{
		BackfillWindow: cfg.BackfillWindow,
		CycleTimeout:   cfg.CycleTimeout,
		FetchTimeout:   cfg.FetchTimeout,
		StorageTimeout: cfg.StorageTimeout,
		Workers:        cfg.SyncWorkers,
	}, log)

	svcHealth := startHealthCheckers(ctx, log, repo)

	sched := syncer.NewScheduler(orch, cfg.SyncInterval, log)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler stopped unexpectedly")
		}
	}()

	router := api.NewRouter(orch, repo, svcHealth)
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Stack().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// startHealthCheckers starts the store checker and the service aggregate.
func startHealthCheckers(ctx context.Context, log zerolog.Logger, repo *repository.Repository) *health.ServiceChecker {
	storeChecker := health.NewPingChecker("store", repo, 5*time.Second, log)
	go storeChecker.Start(ctx, healthInterval)

	svcHealth := health.NewServiceChecker(log, storeChecker)
	go svcHealth.Start(ctx, healthInterval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
