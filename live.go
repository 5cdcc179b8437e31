package photobooth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const liveWriteTimeout = 5 * time.Second

// EventBranding is published when the active event profile changes. It is
// not recorded in the store.
const EventBranding = "branding"

// GalleryEvent is pushed to admin dashboards whenever the gallery changes.
type GalleryEvent struct {
	Event    string    `json:"event"`
	Filename string    `json:"filename,omitempty"`
	URL      string    `json:"url,omitempty"`
	At       time.Time `json:"at"`
}

// Hub fans gallery events out to connected admin websockets. Only Run
// writes to the connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{} // closed when Run returns
	logger     *log.Logger
}

// NewHub creates a Hub. Call Run to start delivering events.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run delivers events until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("live client connected", "total", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				client.Close()
			}
			h.logger.Debug("live client disconnected", "total", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn("live send failed", "err", err)
					delete(h.clients, client)
					client.Close()
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
			}
			return
		}
	}
}

// Publish queues an event for every connected client. Events are dropped
// when the queue is full.
func (h *Hub) Publish(ev GalleryEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn("live queue full, dropping event", "event", ev.Event)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// serveWS upgrades an admin request and keeps reading until the peer goes away.
func (h *Hub) serveWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}
	if !h.join(c.Request().Context(), conn) {
		conn.Close()
		return nil
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.leave(conn)
	return nil
}

// join hands conn to Run. It reports false if the hub has stopped or ctx
// ended first.
func (h *Hub) join(ctx context.Context, conn *websocket.Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// leave hands conn back to Run for closing. After Run has returned every
// connection is already closed.
func (h *Hub) leave(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}
