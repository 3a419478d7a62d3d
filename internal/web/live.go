package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dietcal/internal/dashboard"
	appLog "dietcal/internal/log"
	"dietcal/internal/source"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 4
)

// updateEvent is the message pushed to live clients.
type updateEvent struct {
	Type      string         `json:"type"` // "initial" or "update"
	Timestamp time.Time      `json:"timestamp"`
	Data      dashboard.View `json:"data"`
}

// Hub fans dashboard updates out to connected websocket clients. A client
// whose buffer is full misses that update rather than blocking the others.
type Hub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	send chan []byte
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*liveClient]struct{})}
}

func (h *Hub) register() *liveClient {
	c := &liveClient{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client without blocking.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			appLog.Debug("live: client buffer full, dropping update")
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func (s *Server) updateMessage(kind string, snap source.Snapshot) ([]byte, error) {
	view, err := dashboard.Build(snap, s.dashboardOptions(time.Time{}))
	if err != nil {
		return nil, err
	}
	return json.Marshal(updateEvent{Type: kind, Timestamp: s.now(), Data: view})
}

// handleWS upgrades to a websocket, sends the current dashboard and then
// every refreshed one until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		appLog.Debug("live: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	initial, err := s.updateMessage("initial", s.snapshot(r.Context()))
	if err != nil {
		appLog.Error("live: cannot encode initial dashboard", err)
		return
	}

	client := s.hub.register()
	defer s.hub.unregister(client)

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	// Reader: only keeps pong deadlines fresh and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					appLog.Debug("live: client closed unexpectedly", "err", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
