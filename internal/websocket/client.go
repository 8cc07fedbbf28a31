package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4 * 1024            // listeners only send control messages
	sendBuffer     = 256
)

// Control message types a listener may send
const (
	MsgIdentify  = "IDENTIFY"
	MsgSubscribe = "SUBSCRIBE"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dashboard access
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ControlMessage labels a listener or narrows the events it receives.
// Topics are event prefixes such as "job" or "recommendation"; an empty
// list restores the full stream.
type ControlMessage struct {
	Type     string   `json:"type"`
	ClientID string   `json:"clientId,omitempty"`
	Topics   []string `json:"topics,omitempty"`
}

// Client is one websocket listener registered with the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte // closed by the hub only

	ID string

	mu     sync.RWMutex
	label  string
	topics []string
}

// wants reports whether event matches the listener's subscription
func (c *Client) wants(event string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	for _, topic := range c.topics {
		if event == topic || strings.HasPrefix(event, topic+".") {
			return true
		}
	}
	return false
}

func (c *Client) handleControl(raw []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case MsgIdentify:
		if msg.ClientID == "" {
			return
		}
		c.mu.Lock()
		c.label = msg.ClientID
		c.mu.Unlock()
		log.Printf("📡 Listener %s identified as %s", c.ID, msg.ClientID)

	case MsgSubscribe:
		topics := make([]string, 0, len(msg.Topics))
		for _, t := range msg.Topics {
			if t = strings.Trim(strings.TrimSpace(t), "."); t != "" {
				topics = append(topics, t)
			}
		}
		c.mu.Lock()
		c.topics = topics
		c.mu.Unlock()
		c.hub.reply(c, "subscribed", map[string][]string{"topics": topics})
	}
}

// readPump consumes control messages until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS error: %v", err)
			}
			return
		}
		c.handleControl(message)
	}
}

// writePump forwards queued events and keeps the connection alive with pings
func (c *Client) writePump() {
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

// ServeWs upgrades the request and registers the listener with hub
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WS: upgrade failed: %v", err)
		return
	}
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ID:   "web_" + uuid.New().String(),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
