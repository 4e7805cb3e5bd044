package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// feedClient is one change-feed subscriber. send is closed exactly once, by
// whoever removes the client from the set.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ChangeFeed pushes product change events to WebSocket subscribers.
// It implements Notifier.
type ChangeFeed struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

// NewChangeFeed creates an empty ChangeFeed.
func NewChangeFeed(logger *zap.Logger) *ChangeFeed {
	return &ChangeFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// RegisterRoutes registers /ws.
func (f *ChangeFeed) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", f.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket upgrades the request and subscribes the connection.
func (f *ChangeFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}

	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("change feed subscriber connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go f.writePump(c)
	go f.readPump(c)
}

// Broadcast queues event for every subscriber. Subscribers whose buffer is
// full are disconnected instead of blocking the caller.
func (f *ChangeFeed) Broadcast(event model.ChangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("failed to encode change event", zap.Error(err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			f.logger.Warn("dropping slow change feed subscriber",
				zap.String("remote_addr", c.conn.RemoteAddr().String()),
			)
			f.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (f *ChangeFeed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// readPump discards client messages and detects disconnects.
func (f *ChangeFeed) readPump(c *feedClient) {
	defer func() {
		f.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("change feed read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump drains the send channel and keeps the connection alive with pings.
func (f *ChangeFeed) writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
				_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.logger.Debug("failed to send change event", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *ChangeFeed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

func (f *ChangeFeed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
	f.logger.Info("change feed subscriber disconnected", zap.String("remote_addr", c.conn.RemoteAddr().String()))
}

// CloseAllConnections disconnects every subscriber with a normal close frame.
func (f *ChangeFeed) CloseAllConnections() {
	f.mu.Lock()
	for c := range f.clients {
		f.removeLocked(c)
	}
	f.mu.Unlock()

	f.logger.Info("all change feed connections closed")
}
