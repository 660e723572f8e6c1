package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/server"
)

func main() {
	bootstrap, _ := config.NewLogger(false)
	cfg := server.LoadConfig(config.FromOS(bootstrap))

	logger, err := config.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg server.Config, logger *zap.Logger) error {
	logger.Info("starting renderscope server",
		zap.String("backend", cfg.Backend),
		zap.String("port", cfg.Port),
		zap.Int64("max_storage_mb", cfg.MaxStorageMB))

	store, err := server.InitializeStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	handlers := server.InitializeHandlers(cfg, store, logger)
	runner := server.InitializeRetention(store, handlers.Policy, logger)

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var background errgroup.Group
	background.Go(func() error {
		handlers.Hub.Run(bgCtx)
		return nil
	})
	background.Go(func() error {
		task := &server.RetentionTask{
			Runner:   runner,
			Monitor:  handlers.Retention,
			Logger:   logger.Named("retention"),
			Interval: config.RetentionInterval,
		}
		task.Run(bgCtx)
		return nil
	})
	background.Go(func() error {
		server.RunBadgerGC(bgCtx, store, logger.Named("gc"))
		return nil
	})

	router := mux.NewRouter()
	server.SetupRoutes(router, handlers, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.Strings("endpoints", []string{
				"POST /log-performance",
				"GET  /get-performance-data",
				"GET  /v1/components",
				"GET  /v1/health",
				"GET  /metrics",
			}))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cancel()
			background.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Cancel background tasks first or Wait blocks on the hub
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown warning", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		background.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		logger.Warn("some background tasks did not stop in time")
	}

	logger.Info("renderscope server exited")
	return nil
}
