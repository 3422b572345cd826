// Package realtime keeps the websocket connections of online users and
// pushes events to them.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"codejudge/internal/platform/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Frame is what clients receive.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// clientMessage is what clients may send.
type clientMessage struct {
	Action string `json:"action"` // "join" or "leave"
	Room   string `json:"room"`
}

type Hub struct {
	mu     sync.RWMutex
	users  map[string]map[*client]struct{}
	rooms  map[string]map[*client]struct{}
	closed bool

	onOnline func(userID string)
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*client]struct{}),
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.NewNamedLogger("realtime"),
	}
}

// OnOnline registers fn to run when a user goes from no connections to one.
func (h *Hub) OnOnline(fn func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOnline = fn
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// OnlineCount returns the number of users with at least one connection.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) PushToUser(userID, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	slow := h.sendLocked(h.users[userID], msg)
	h.mu.RUnlock()
	h.drop(slow)
}

func (h *Hub) PushToRoom(room, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	slow := h.sendLocked(h.rooms[room], msg)
	h.mu.RUnlock()
	h.drop(slow)
}

// Join adds every connection of userID to room.
func (h *Hub) Join(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.joinLocked(c, room)
	}
}

func (h *Hub) Leave(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.leaveLocked(c, room)
	}
}

// Close drops every connection. Later upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, conns := range h.users {
		all = append(all, collect(conns)...)
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// ServeWS upgrades the request and attaches the connection to userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
	}
	cameOnline, onOnline := h.register(c)

	go c.writePump()
	go c.readPump()

	if cameOnline && onOnline != nil {
		go onOnline(userID)
	}
}

func (h *Hub) register(c *client) (bool, func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.users[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.log.Debugw("Client connected", "user_id", c.userID, "connections", len(conns))
	return len(conns) == 1, h.onOnline
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, c.userID)
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	h.log.Debugw("Client disconnected", "user_id", c.userID)
}

func (h *Hub) joinLocked(c *client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) encode(event string, payload interface{}) ([]byte, bool) {
	msg, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.log.Errorw("Failed to encode event", "event", event, "error", err)
		return nil, false
	}
	return msg, true
}

// sendLocked never blocks. It returns the clients whose buffer was full.
// Callers hold h.mu, which keeps unregister from closing c.send meanwhile.
func (h *Hub) sendLocked(targets map[*client]struct{}, msg []byte) []*client {
	var slow []*client
	for c := range targets {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) drop(slow []*client) {
	for _, c := range slow {
		h.log.Warnw("Client too slow, dropping connection", "user_id", c.userID)
		h.unregister(c)
	}
}

func collect(set map[*client]struct{}) []*client {
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
