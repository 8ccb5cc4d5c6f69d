package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingEvery    = 30 * time.Second
	wsSendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes console snapshots to every connected websocket client. A client
// that cannot keep up loses messages instead of slowing the console down.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	// Initial, when set, is sent to a client right after it connects.
	Initial func() models.Snapshot
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Publish implements services.SnapshotSink.
func (h *Hub) Publish(ev models.Event) {
	body, err := json.Marshal(envelope{Type: "snapshot", Action: string(ev.Action), RequestID: ev.RequestID, Snapshot: ev.Snapshot})
	if err != nil {
		utils.LogEvent(ev.RequestID, "ws", "marshal", err.Error())
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.send <- body:
		default:
			utils.LogEvent(ev.RequestID, "ws", "drop", "client="+id+" send buffer full")
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS is the GET /api/ws handler.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.LogEvent(c.GetString("request_id"), "ws", "upgrade", err.Error())
		return
	}
	id := uuid.NewString()
	cl := &client{conn: conn, send: make(chan []byte, wsSendBuffer)}

	if h.Initial != nil {
		if body, err := json.Marshal(envelope{Type: "snapshot", Snapshot: h.Initial()}); err == nil {
			cl.send <- body
		}
	}
	h.add(id, cl)
	utils.LogEvent(c.GetString("request_id"), "ws", "connect", "client="+id)

	go h.writeLoop(id, cl)
	h.readLoop(id, cl)
}

type envelope struct {
	Type      string          `json:"type"`
	Action    string          `json:"action,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Snapshot  models.Snapshot `json:"snapshot"`
}

func (h *Hub) add(id string, c *client) {
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.send)
		delete(h.clients, id)
	}
}

// readLoop only watches for close frames and pongs; clients never send commands here.
func (h *Hub) readLoop(id string, c *client) {
	defer func() {
		h.remove(id)
		_ = c.conn.Close()
		utils.LogEvent("", "ws", "disconnect", "client="+id)
	}()
	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(id string, c *client) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				utils.LogEvent("", "ws", "write", "client="+id+" "+err.Error())
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
