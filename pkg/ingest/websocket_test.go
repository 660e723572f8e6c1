package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/renderscope/pkg/storage/memory"
	"github.com/nicktill/renderscope/pkg/storage/storagetest"
)

func TestRecordHub_StreamsAcceptedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewRecordHub(nil)
	go hub.Run(ctx)

	h := NewHandler(memory.New(), nil)
	h.SetHub(hub)
	router := newRouter(h)
	router.HandleFunc("/v1/ws", hub.HandleWebSocket)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	rr := post(t, router, `{"component":"ExpensiveComponent","actualDuration":52.5,"renderTime":52.5}`)
	require.Equal(t, 200, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event RecordEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "record", event.Type)
	assert.Equal(t, "ExpensiveComponent", event.Record.Component)
	assert.Equal(t, "none", event.Record.OptimizationApplied)
}

func TestRecordHub_PublishWithoutClientsIsNoop(t *testing.T) {
	hub := NewRecordHub(nil)
	for i := 0; i < 1000; i++ {
		hub.Publish(storagetest.Record("A", 1))
	}
	assert.Empty(t, hub.events)
}

func TestRecordHub_OriginCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewRecordHub(nil, "http://localhost:3000")
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{srv.URL, true},
		{"http://evil.example", false},
	}

	for _, tt := range tests {
		header := http.Header{}
		if tt.origin != "" {
			header.Set("Origin", tt.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		if tt.ok {
			require.NoError(t, err, tt.origin)
			conn.Close()
			continue
		}
		require.Error(t, err, tt.origin)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
