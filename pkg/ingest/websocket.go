package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/record"
)

// RecordEvent is the message sent to live subscribers for each accepted record
type RecordEvent struct {
	Type   string                   `json:"type"`
	Record record.PerformanceRecord `json:"record"`
}

// RecordHub fans accepted records out to WebSocket subscribers, typically
// the dashboard watching renders arrive.
type RecordHub struct {
	upgrader websocket.Upgrader

	subscribers map[*websocket.Conn]struct{}
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	events      chan []byte

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewRecordHub creates a hub. Browsers may subscribe from the server's own
// origin or from any of allowedOrigins ("*" allows all); clients sending no
// Origin header are always accepted.
func NewRecordHub(logger *zap.Logger, allowedOrigins ...string) *RecordHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &RecordHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WSReadBufferSize,
			WriteBufferSize: config.WSWriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				switch {
				case origin == "", allowed["*"], allowed[origin]:
					return true
				default:
					return origin == "http://"+r.Host || origin == "https://"+r.Host
				}
			},
		},
		subscribers: make(map[*websocket.Conn]struct{}),
		register:    make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister:  make(chan *websocket.Conn, config.WSChannelBuffer),
		events:      make(chan []byte, config.WSBroadcastBuffer),
		logger:      logger,
	}
}

// Run owns the subscriber set until ctx is done, then closes every connection.
func (h *RecordHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.subscribers {
				conn.Close()
			}
			h.subscribers = make(map[*websocket.Conn]struct{})
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.subscribers[conn] = struct{}{}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber connected", zap.Int("subscribers", n))

		case conn := <-h.unregister:
			h.drop(conn)

		case event := <-h.events:
			for _, conn := range h.send(event) {
				h.drop(conn)
			}
		}
	}
}

// send writes event to every subscriber and returns the ones that failed.
func (h *RecordHub) send(event []byte) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var failed []*websocket.Conn
	for conn := range h.subscribers {
		conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, event); err != nil {
			h.logger.Debug("record event write failed", zap.Error(err))
			failed = append(failed, conn)
		}
	}
	return failed
}

func (h *RecordHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.subscribers[conn]
	if ok {
		delete(h.subscribers, conn)
		conn.Close()
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("subscriber disconnected", zap.Int("subscribers", n))
	}
}

// Publish queues rec for every subscriber. It never blocks ingestion: with no
// subscribers or a full buffer the event is dropped.
func (h *RecordHub) Publish(rec record.PerformanceRecord) {
	if !h.HasClients() {
		return
	}

	event, err := json.Marshal(RecordEvent{Type: "record", Record: rec})
	if err != nil {
		h.logger.Warn("failed to encode record event", zap.Error(err))
		return
	}

	select {
	case h.events <- event:
	default:
		h.logger.Warn("record event buffer full, dropping event", zap.String("component", rec.Component))
	}
}

// HasClients reports whether anyone is subscribed
func (h *RecordHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers) > 0
}

// HandleWebSocket upgrades the request and keeps the subscription alive
// until the client goes away.
func (h *RecordHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.register <- conn

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.unregister <- conn
	}()

	go h.keepAlive(ctx, conn)

	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	// Subscribers never send data; reading drives the pong handler and
	// notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("subscriber closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// keepAlive pings conn until ctx ends. WriteControl is safe alongside the
// hub's data writes.
func (h *RecordHub) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(config.WSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(config.WSWriteDeadline)); err != nil {
				return
			}
		}
	}
}
