package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
)

// Service paths
const (
	LogPerformancePath  = "/log-performance"
	PerformanceDataPath = "/get-performance-data"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// ErrNetwork matches any *NetworkError via errors.Is.
var ErrNetwork = errors.New("network error")

// NetworkError reports a request to the ingestion service that failed in
// transit or was answered with a non-2xx status.
type NetworkError struct {
	Endpoint   string
	StatusCode int // 0 when no response arrived
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) match.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Transport defines the interface for sending records
type Transport interface {
	Send(ctx context.Context, rec record.PerformanceRecord) error
}

// HTTPTransport talks to the ingestion service over HTTP
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates a new HTTP transport for the service at baseURL
// (for example "http://localhost:5001").
func NewHTTP(baseURL string) (*HTTPTransport, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("transport: base URL %q must start with http:// or https://", baseURL)
	}
	return &HTTPTransport{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// BaseURL returns the service address this transport talks to
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

// Send posts one record to the ingest endpoint
func (t *HTTPTransport) Send(ctx context.Context, rec record.PerformanceRecord) error {
	endpoint := t.baseURL + LogPerformancePath

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(endpoint, resp)
	}

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// FetchAll retrieves the full log in append order
func (t *HTTPTransport) FetchAll(ctx context.Context) ([]record.PerformanceRecord, error) {
	endpoint := t.baseURL + PerformanceDataPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(endpoint, resp)
	}

	var records []record.PerformanceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &NetworkError{Endpoint: endpoint, StatusCode: 0, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	if records == nil {
		records = []record.PerformanceRecord{}
	}
	return records, nil
}

func statusError(endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	// Prefer the service's {"message": ...} envelope over raw JSON
	var envelope struct {
		Message string `json:"message"`
	}
	text := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		text = envelope.Message
	}

	return &NetworkError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       text,
		Err:        fmt.Errorf("unexpected status %s", resp.Status),
	}
}
