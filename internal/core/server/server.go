package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
	"github.com/mwinters/gfs-windcache/internal/core/config"
	"github.com/mwinters/gfs-windcache/internal/core/health"
	middleware "github.com/mwinters/gfs-windcache/internal/core/middleware"
	"github.com/mwinters/gfs-windcache/internal/core/router"
)

// Run wires the chi router, starts the http.Server, and blocks until ctx
// is canceled or the server fails.
func Run(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	rdb *redisstore.Client,
	handlers *router.Handlers,
	sched SchedulerRunning,
) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(redisReadiness{rdb: rdb, sched: sched}))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	handlers.Mount(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
