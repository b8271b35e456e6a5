package stub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Hub tracks the live connections subscribed to each channel and fans
// broadcast frames out to them.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[c.channelID]; !ok {
		h.channels[c.channelID] = make(map[*Client]struct{})
	}
	h.channels[c.channelID][c] = struct{}{}

	l := log.L()
	l.Debug().Str(log.FieldChannelID, c.channelID).Msg("client joined channel")
}

func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[c.channelID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			if len(clients) == 0 {
				delete(h.channels, c.channelID)
			}
		}
	}
}

// Broadcast delivers a frame to every client on the channel, the sender
// included: the echo is how senders see their own message.
func (h *Hub) Broadcast(channelID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[channelID] {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
}

// Client is one live connection on the stub server.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	channelID string
}

func NewClient(hub *Hub, conn *websocket.Conn, channelID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 64),
		channelID: channelID,
	}
}

// ReadPump consumes inbound frames until the connection drops. Frames
// are passed to handler; the pump itself only manages lifecycle.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		handler(c, data)
	}
}

// WritePump drains the send queue onto the socket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Send queues a frame for this client only.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}
