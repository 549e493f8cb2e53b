package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// the client must send {"token": "..."} within this window
	authTimeout = 5 * time.Second

	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// AuthFunc validates an access token and returns the user it belongs to.
type AuthFunc func(token string) (userID string, err error)

type Client struct {
	ID     string
	UserID string
	group  string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub tracks open WebSocket connections and forwards group messages to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	auth     AuthFunc
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHub(auth AuthFunc, allowedOrigins []string, log *slog.Logger) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &Hub{
		clients: make(map[string]*Client),
		auth:    auth,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Deliver queues msg on every connection in group. Slow connections drop the message.
func (h *Hub) Deliver(group string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.clients {
		if c.group != group {
			continue
		}
		select {
		case c.send <- msg:
			delivered++
		default:
			h.log.Warn("realtime.deliver_dropped", "client_id", c.ID, "group", group)
		}
	}

	return delivered
}

// Connections returns how many sockets are open for userID.
func (h *Hub) Connections(userID string) int {
	group := GroupForUser(userID)

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c.group == group {
			n++
		}
	}
	return n
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.log.Info("realtime.client_registered", "client_id", c.ID, "user_id", c.UserID)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()

	h.log.Info("realtime.client_unregistered", "client_id", c.ID, "user_id", c.UserID)
}

// ServeWS upgrades the request, authenticates the first frame and joins the
// connection to the user's group.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("realtime.upgrade_failed", "err", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}

	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth timeout"))
		_ = conn.Close()
		return
	}

	userID, err := h.auth(authMsg.Token)
	if err != nil || userID == "" {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
		_ = conn.Close()
		return
	}

	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		group:  GroupForUser(userID),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// join before acknowledging so nothing published after the ack is missed
	h.add(c)

	ack, _ := json.Marshal(map[string]string{"status": "authenticated", "user_id": userID})
	c.send <- ack

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames; clients have nothing to say.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("realtime.read_error", "client_id", c.ID, "err", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
