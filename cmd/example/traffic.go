package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// clicks cycles through the demo app's buttons
var clicks = []string{"/count", "/other-count", "/count"}

// startTrafficSimulator clicks the demo app's buttons every interval until ctx is done
func startTrafficSimulator(ctx context.Context, baseURL string, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	logger.Info("traffic simulator started", zap.Duration("interval", interval))

	n := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("traffic simulator stopped", zap.Int("clicks", n))
			return
		case <-ticker.C:
			path := clicks[n%len(clicks)]
			n++

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, nil)
			if err != nil {
				logger.Warn("failed to build click", zap.String("path", path), zap.Error(err))
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("click failed", zap.String("path", path), zap.Error(err))
				}
				continue
			}
			resp.Body.Close()
			logger.Debug("click", zap.String("path", path), zap.Int("status", resp.StatusCode))
		}
	}
}
