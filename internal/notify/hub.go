// Package notify delivers "results ready" banners to browser sessions over WebSocket.
//
// Notifications are kept in a small per-session history so a client that connects
// after delivery finished still sees the banner. With a Redis relay configured,
// notifications published on one instance reach sockets held by every instance.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16

	// DefaultHistorySessions bounds how many sessions keep a notification history.
	DefaultHistorySessions = 1024
	// HistoryPerSession bounds the notifications kept for one session.
	HistoryPerSession = 10
)

// Relay fans notifications out across server instances.
type Relay interface {
	Publish(ctx context.Context, n *domain.Notification) error
	Subscribe(ctx context.Context, deliver func(*domain.Notification)) error
	Close() error
}

// Hub tracks WebSocket clients per session and implements domain.Notifier.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	history  *lru.Cache
	histMu   sync.Mutex
	relay    Relay
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithRelay routes notifications through r so every instance receives them.
func WithRelay(r Relay) HubOption {
	return func(h *Hub) { h.relay = r }
}

// WithAllowedOrigins restricts WebSocket upgrades to the listed origins. "*" allows all.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
}

// NewHub creates a hub. historySessions <= 0 uses DefaultHistorySessions.
func NewHub(logger *logrus.Logger, historySessions int, opts ...HubOption) (*Hub, error) {
	if historySessions <= 0 {
		historySessions = DefaultHistorySessions
	}
	history, err := lru.New(historySessions)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Start subscribes to the relay, if any. It returns once the subscription is established.
// When subscribing fails the relay is dropped and notifications are delivered locally.
func (h *Hub) Start(ctx context.Context) error {
	relay := h.currentRelay()
	if relay == nil {
		return nil
	}
	if err := relay.Subscribe(ctx, h.deliverLocal); err != nil {
		h.mu.Lock()
		h.relay = nil
		h.mu.Unlock()
		if cerr := relay.Close(); cerr != nil {
			h.logger.WithError(cerr).Debug("Closing unused notification relay failed")
		}
		return err
	}
	return nil
}

func (h *Hub) currentRelay() Relay {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.relay
}

// Publish records n in the session history and pushes it to connected clients.
func (h *Hub) Publish(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.SessionID == "" {
		return domain.NewValidationError("session_id", "notification session is required", nil)
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if relay := h.currentRelay(); relay != nil {
		if err := relay.Publish(ctx, n); err != nil {
			h.logger.WithError(err).Warn("Notification relay publish failed, delivering locally")
			h.deliverLocal(n)
		}
		return nil
	}

	h.deliverLocal(n)
	return nil
}

// Recent returns the stored notifications for a session, oldest first.
func (h *Hub) Recent(sessionID string) []*domain.Notification {
	h.histMu.Lock()
	defer h.histMu.Unlock()

	v, ok := h.history.Get(sessionID)
	if !ok {
		return nil
	}
	list := v.([]*domain.Notification)
	return append([]*domain.Notification(nil), list...)
}

// ClientCount returns the number of sockets open for a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) remember(n *domain.Notification) {
	h.histMu.Lock()
	defer h.histMu.Unlock()

	var list []*domain.Notification
	if v, ok := h.history.Get(n.SessionID); ok {
		list = v.([]*domain.Notification)
	}
	for _, existing := range list {
		if existing.ID == n.ID {
			return
		}
	}
	list = append(list, n)
	if len(list) > HistoryPerSession {
		list = list[len(list)-HistoryPerSession:]
	}
	h.history.Add(n.SessionID, list)
}

func (h *Hub) deliverLocal(n *domain.Notification) {
	h.remember(n)

	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode notification")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[n.SessionID] {
		select {
		case c.send <- payload:
		default:
			h.logger.WithField("session_id", n.SessionID).Warn("Notification dropped for slow client")
		}
	}
}

// ServeWS upgrades the request and streams notifications for sessionID.
// The session's history is replayed first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("WebSocket upgrade failed")
		return
	}

	c := &client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBuffer+HistoryPerSession),
	}

	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	for _, n := range h.Recent(sessionID) {
		if payload, err := json.Marshal(n); err == nil {
			c.send <- payload
		}
	}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
}

// Close disconnects every client and closes the relay.
func (h *Hub) Close() error {
	h.mu.Lock()
	for session, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, session)
	}
	relay := h.relay
	h.relay = nil
	h.mu.Unlock()

	if relay != nil {
		return relay.Close()
	}
	return nil
}

// readPump discards inbound frames and unregisters the client when the socket closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("session_id", c.sessionID).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
