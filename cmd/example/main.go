// Command renderscope-example is a demo producer. It runs a small app whose
// two components report every render to the renderscope server, and clicks
// its buttons on a timer so the log fills up without a browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/sdk"
	"github.com/nicktill/renderscope/pkg/sdk/httpx"
)

var startTime = time.Now()

// exampleConfig holds the demo's environment settings
type exampleConfig struct {
	ServerURL string
	Addr      string
	Interval  time.Duration
	Workload  int
	Debug     bool
}

func loadConfig(env config.Env) exampleConfig {
	return exampleConfig{
		ServerURL: env.String("RENDERSCOPE_SERVER_URL", config.DefaultServerURL),
		Addr:      env.String("RENDERSCOPE_EXAMPLE_ADDR", ":3001"),
		Interval:  env.Duration("RENDERSCOPE_EXAMPLE_INTERVAL", 3*time.Second),
		Workload:  int(env.Int64("RENDERSCOPE_EXAMPLE_WORKLOAD", 20_000_000)),
		Debug:     env.Bool("RENDERSCOPE_DEBUG"),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "renderscope-example",
		Short:         "Run a demo app that reports component renders to renderscope",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(config.FromOS(nil))
			logger, err := config.NewLogger(cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			return run(cmd.Context(), cfg, logger)
		},
	}

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg exampleConfig, logger *zap.Logger) error {
	reporter, err := sdk.New(sdk.Config{
		ServerURL:     cfg.ServerURL,
		Optimizations: optimizations,
		Logger:        logger.Named("sdk"),
	})
	if err != nil {
		return err
	}
	if err := reporter.Start(ctx); err != nil {
		return err
	}

	demo := newApp(reporter, cfg.Workload)

	mux := http.NewServeMux()
	setupHandlers(mux, demo, reporter)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	server := &http.Server{
		Handler:      httpx.Middleware(reporter)(mux),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("example app listening",
			zap.String("addr", listener.Addr().String()),
			zap.String("server_url", cfg.ServerURL))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	go startTrafficSimulator(ctx, "http://"+loopback(listener.Addr()), cfg.Interval, logger)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("example app failed: %w", err)
		}
	}

	logger.Info("shutting down example app")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if err := reporter.Stop(shutdownCtx); err != nil {
		logger.Warn("reporter did not flush", zap.Error(err))
	}

	s := reporter.Stats()
	logger.Info("example app exited",
		zap.Int64("sent", s.Sent),
		zap.Int64("dropped", s.Dropped),
		zap.Int64("failed", s.Failed))
	return nil
}

// loopback turns a wildcard listen address into one the simulator can dial
func loopback(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		return fmt.Sprintf("127.0.0.1:%d", tcp.Port)
	}
	return addr.String()
}
