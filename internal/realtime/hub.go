// Package realtime pushes notifications to the browser tabs a session has
// open, so a toast raised by a background re-bind shows up without a reload.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/phillip-england/hrms/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

type Client struct {
	ID        string
	SessionID string
	Send      chan []byte
}

type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Publish implements notify.Publisher.
func (h *Hub) Publish(sessionID string, n notify.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.WithError(err).Error("encode notification")
		return
	}
	h.Send(sessionID, "notification", payload)
}

// Send delivers one envelope to every client of sessionID. Slow clients
// drop messages rather than block the caller.
func (h *Hub) Send(sessionID, kind string, payload json.RawMessage) {
	msg, err := json.Marshal(Envelope{Type: kind, Payload: payload, CreatedAt: time.Now().UTC()})
	if err != nil {
		h.logger.WithError(err).Error("encode envelope")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.SessionID != sessionID {
			continue
		}
		select {
		case client.Send <- msg:
		default:
			h.logger.WithField("client", client.ID).Warn("drop realtime message")
		}
	}
}

func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, client := range h.clients {
		if client.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Serve upgrades the request and pumps messages until the socket closes.
// The caller has already resolved sessionID from the portal cookie.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	client := &Client{ID: uuid.NewString(), SessionID: sessionID, Send: make(chan []byte, sendBuffer)}
	h.Register(client)

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *Hub) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.Unregister(client)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
