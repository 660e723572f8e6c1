package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/renderscope/pkg/record"
)

func TestNewHTTP(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{"plain", "http://localhost:5001", "http://localhost:5001", false},
		{"trailing slash", "http://localhost:5001/", "http://localhost:5001", false},
		{"https", "https://perf.example.com", "https://perf.example.com", false},
		{"empty", "", "", true},
		{"no scheme", "localhost:5001", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewHTTP(tt.baseURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.BaseURL())
			assert.Equal(t, DefaultTimeout, tr.client.Timeout)
		})
	}
}

func TestHTTPTransport_Send(t *testing.T) {
	var received record.PerformanceRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, LogPerformancePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Performance logged successfully!"}`))
	}))
	defer server.Close()

	tr, err := NewHTTP(server.URL)
	require.NoError(t, err)

	rec := record.PerformanceRecord{
		Component:      "ExpensiveComponent",
		Phase:          record.PhaseUpdate,
		ActualDuration: 52.5,
		RenderTime:     52.5,
		StateUpdates:   1,
		PropsReceived:  1,
		PropsUsed:      record.Int64(1),
	}
	require.NoError(t, tr.Send(context.Background(), rec))
	assert.Equal(t, rec.Component, received.Component)
	assert.Equal(t, int64(1), *received.PropsUsed)
}

func TestHTTPTransport_SendRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Bad Request","message":"invalid performance record: component must not be empty"}`))
	}))
	defer server.Close()

	tr, err := NewHTTP(server.URL)
	require.NoError(t, err)

	err = tr.Send(context.Background(), record.PerformanceRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusBadRequest, nErr.StatusCode)
	assert.Contains(t, nErr.Error(), "component must not be empty")
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	tr, err := NewHTTP(url)
	require.NoError(t, err)

	err = tr.Send(context.Background(), record.PerformanceRecord{Component: "A"})
	assert.ErrorIs(t, err, ErrNetwork)

	_, err = tr.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPTransport_FetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PerformanceDataPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"component":"A","actualDuration":50},{"component":"A","actualDuration":80,"propsUsed":0}]`))
	}))
	defer server.Close()

	tr, err := NewHTTP(server.URL)
	require.NoError(t, err)

	records, err := tr.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(80), records[1].ActualDuration)
	require.NotNil(t, records[1].PropsUsed)
	assert.Equal(t, int64(0), *records[1].PropsUsed)
}

func TestHTTPTransport_FetchAllServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage read failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr, err := NewHTTP(server.URL)
	require.NoError(t, err)

	_, err = tr.FetchAll(context.Background())
	var nErr *NetworkError
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, http.StatusInternalServerError, nErr.StatusCode)
	assert.Equal(t, "storage read failed", nErr.Body)
}

func TestHTTPTransport_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	tr, err := NewHTTP(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = tr.Send(ctx, record.PerformanceRecord{Component: "A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
