package eventlog

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
)

const (
	writeDeadline = 5 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the websocket-backed debug/introspection feed (§6): an optional
// sink distinct from the out-of-scope graphical notification UI, which
// only ever receives a narrow "show this notice" callback. It fans
// accepted authorization events out to local inspector clients and seeds
// each new connection with a bounded backlog from its ring buffer.
type Hub struct {
	mutex      sync.RWMutex
	clients    map[string]*wsClient
	ring       *RingBuffer
	bulkEvents int
}

// NewHub constructs a Hub with the given ring-buffer capacity and the
// number of backlog events sent to a newly connected client.
func NewHub(ringSize, bulkEvents int) *Hub {
	return &Hub{
		clients:    make(map[string]*wsClient),
		ring:       NewRingBuffer(ringSize),
		bulkEvents: bulkEvents,
	}
}

// BroadcastEvent implements Broadcaster: record the entry and fan it out
// to every connected inspector, dropping for any client whose send buffer
// is full rather than blocking the logging path.
func (h *Hub) BroadcastEvent(entry Entry) {
	h.ring.Add(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("eventlog: dropping event for inspector %s (send buffer full)", c.id)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// resulting client, first sending it the buffered backlog as NDJSON.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("eventlog: websocket upgrade failed: %v", err)
		return
	}

	backlog := h.ring.GetTail(h.bulkEvents)
	if err := conn.WriteMessage(gws.TextMessage, ndjson(backlog)); err != nil {
		_ = conn.Close()
		return
	}

	c := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, 256), closed: make(chan struct{})}
	h.mutex.Lock()
	h.clients[c.id] = c
	h.mutex.Unlock()

	go c.writePump()
	go h.readPump(c)
}

func (h *Hub) readPump(c *wsClient) {
	defer h.removeClient(c.id)

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(id string) {
	h.mutex.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mutex.Unlock()
	if ok {
		c.close()
	}
}

func ndjson(entries []Entry) []byte {
	out := make([]byte, 0, 256*len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out
}

type wsClient struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	closed  chan struct{}
	closeMu sync.Mutex
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsClient) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		_ = c.conn.Close()
	}
}
