package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS handled by the mux middleware
}

// Hub fans out broadcast messages to every connected WebSocket client.
// Clients subscribe to every topic on connect, per the documented publisher
// behavior — there is no per-client topic filtering in this implementation.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

func newHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]bool)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast marshals payload as {"topic": topic, "data": payload} and
// fans it out to every connected client's send buffer, dropping the
// message for any client whose buffer is already full rather than
// blocking the publisher.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	message, err := json.Marshal(wireMessage{Topic: topic, Data: payload})
	if err != nil {
		h.log.Warn().Err(err).Str("topic", topic).Msg("rpc: failed to marshal broadcast payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			h.log.Warn().Str("topic", topic).Msg("rpc: client send buffer full, dropping message")
		}
	}
}

type wireMessage struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// client is one upgraded WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// Clients only ever receive on this connection; any inbound frame
		// just resets the read deadline via the pong handler above, or is
		// discarded. A read error (including a client-initiated close)
		// ends the pump.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("rpc: websocket upgrade failed")
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()
}
