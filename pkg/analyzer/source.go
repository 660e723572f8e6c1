package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/sdk/transport"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Source loads the full log in append order.
type Source interface {
	Load(ctx context.Context) ([]record.PerformanceRecord, error)
}

// HTTPSource reads the log from a running ingestion service.
type HTTPSource struct {
	transport *transport.HTTPTransport

	// Timeout bounds one Load; zero means only ctx applies.
	Timeout time.Duration
}

// NewHTTPSource creates a source for the service at serverURL.
func NewHTTPSource(serverURL string) (*HTTPSource, error) {
	t, err := transport.NewHTTP(serverURL)
	if err != nil {
		return nil, err
	}
	return &HTTPSource{transport: t, Timeout: config.FetchTimeout}, nil
}

// Load fetches GET /get-performance-data.
func (s *HTTPSource) Load(ctx context.Context) ([]record.PerformanceRecord, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	records, err := s.transport.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch performance data from %s: %w", s.transport.BaseURL(), err)
	}
	return records, nil
}

// StoreSource reads a log store directly, without the service.
type StoreSource struct {
	Store storage.Store
}

// Load reads every record from the store.
func (s StoreSource) Load(ctx context.Context) ([]record.PerformanceRecord, error) {
	records, err := s.Store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read performance log: %w", err)
	}
	return records, nil
}
