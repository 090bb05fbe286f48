package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/auth"
	"github.com/wms-platform/task-service/internal/pkg/logging"
)

const (
	// RoomManager receives every event on the bus
	RoomManager = "manager"

	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// OperatorRoom names an operator's private room
func OperatorRoom(operatorID string) string {
	return "operator:" + operatorID
}

// session is one authenticated socket connection
type session struct {
	conn   *websocket.Conn
	userID string
	rooms  map[string]struct{}
	send   chan []byte
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

// Hub is the realtime gateway: it authenticates socket sessions, tracks
// room membership and presence, and fans bus events out to rooms. All
// shared state is guarded by one mutex and mutated only from the socket
// and dispatcher paths.
type Hub struct {
	tokens    *auth.Tokens
	publisher application.RealtimePublisher
	logger    *logging.Logger
	upgrader  websocket.Upgrader

	mu          sync.Mutex
	sessions    map[*session]struct{}
	rooms       map[string]map[*session]struct{}
	userSockets map[string]map[*session]struct{}
	closed      bool
}

// NewHub creates the realtime gateway
func NewHub(tokens *auth.Tokens, publisher application.RealtimePublisher, logger *logging.Logger) *Hub {
	return &Hub{
		tokens:    tokens,
		publisher: publisher,
		logger:    logger.WithComponent("realtime-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions:    make(map[*session]struct{}),
		rooms:       make(map[string]map[*session]struct{}),
		userSockets: make(map[string]map[*session]struct{}),
	}
}

// HandleWS upgrades one HTTP request into an authenticated socket
// session. The token may arrive in the Authorization header or the query
// string; a missing or invalid token rejects the connection.
func (h *Hub) HandleWS(c *gin.Context) {
	tokenString := extractToken(c.Request)
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}

	claims, err := h.tokens.Verify(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}

	rooms := make(map[string]struct{})
	switch {
	case claims.IsManager():
		rooms[RoomManager] = struct{}{}
	case claims.OperatorID != "":
		rooms[OperatorRoom(claims.OperatorID)] = struct{}{}
	default:
		// Non-managers must carry an operator identifier claim.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Socket upgrade failed")
		return
	}

	sess := &session{
		conn:   conn,
		userID: claims.UserID,
		rooms:  rooms,
		send:   make(chan []byte, sendBufferSize),
	}

	h.register(sess)
	go h.writeLoop(sess)
	go h.readLoop(sess)
}

// extractToken pulls the bearer token from the Authorization header or
// the token/auth query parameters.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.URL.Query().Get("auth")
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sess.conn.Close()
		return
	}

	h.sessions[sess] = struct{}{}
	for room := range sess.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*session]struct{})
		}
		h.rooms[room][sess] = struct{}{}
	}
	if h.userSockets[sess.userID] == nil {
		h.userSockets[sess.userID] = make(map[*session]struct{})
	}
	h.userSockets[sess.userID][sess] = struct{}{}
	userCount := len(h.userSockets)
	h.mu.Unlock()

	h.logger.Info("Socket connected", "userId", sess.userID, "activeUsers", userCount)
	h.publishPresence(sess.userID, true)
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	if _, known := h.sessions[sess]; !known {
		h.mu.Unlock()
		return
	}

	delete(h.sessions, sess)
	for room := range sess.rooms {
		delete(h.rooms[room], sess)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.userSockets[sess.userID], sess)
	online := len(h.userSockets[sess.userID]) > 0
	if !online {
		delete(h.userSockets, sess.userID)
	}
	h.mu.Unlock()

	sess.close()
	sess.conn.Close()

	h.logger.Info("Socket disconnected", "userId", sess.userID)
	if !online {
		h.publishPresence(sess.userID, false)
	}
}

// publishPresence pushes the recomputed presence onto the bus. The
// subscriber fan-out delivers it to managers only.
func (h *Hub) publishPresence(userID string, active bool) {
	h.mu.Lock()
	users := make([]string, 0, len(h.userSockets))
	for id := range h.userSockets {
		users = append(users, id)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type:    domain.EventUserPresenceUpdated,
		Payload: map[string]any{"userId": userID, "active": active},
	}); err != nil {
		h.logger.WithError(err).Warn("Failed to publish USER_PRESENCE_UPDATED")
	}

	if err := h.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type:    domain.EventUserListUpdated,
		Payload: map[string]any{"users": users},
	}); err != nil {
		h.logger.WithError(err).Warn("Failed to publish USER_LIST_UPDATED")
	}
}

// HandleBusEvent fans one bus event out to the rooms that should see it.
// It is registered as an event-bus handler.
func (h *Hub) HandleBusEvent(event *domain.RealtimeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event for broadcast")
		return
	}

	targets := []string{RoomManager}
	if !event.ManagerOnly() {
		if operatorID, ok := event.OperatorID(); ok {
			targets = append(targets, OperatorRoom(operatorID))
		}
	}

	h.mu.Lock()
	var recipients []*session
	for _, room := range targets {
		for sess := range h.rooms[room] {
			recipients = append(recipients, sess)
		}
	}
	h.mu.Unlock()

	for _, sess := range recipients {
		select {
		case sess.send <- data:
		default:
			// A session that cannot keep up is dropped rather than
			// blocking the dispatcher.
			h.logger.Warn("Dropping slow socket session", "userId", sess.userID)
			go h.unregister(sess)
		}
	}
}

func (h *Hub) writeLoop(sess *session) {
	for data := range sess.send {
		sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	sess.conn.Close()
}

// readLoop drains inbound frames to detect closure; clients do not send
// application messages.
func (h *Hub) readLoop(sess *session) {
	defer h.unregister(sess)
	for {
		if _, _, err := sess.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ActiveUserIDs returns the users with at least one open socket
func (h *Hub) ActiveUserIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]string, 0, len(h.userSockets))
	for id := range h.userSockets {
		users = append(users, id)
	}
	return users
}

// Close shuts every session down and stops accepting new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		h.unregister(sess)
	}
	h.logger.Info("Realtime hub closed")
}
