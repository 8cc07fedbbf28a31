// Package websocket pushes optimization and recommendation events to
// dashboard listeners.
package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is the envelope pushed to every listener
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

type outbound struct {
	event string
	msg   []byte
	to    *Client // nil broadcasts to every subscribed listener
}

// Hub tracks listeners and fans events out to them. Only Run touches a
// client's send channel.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	outbox     chan outbound

	mu sync.RWMutex // guards clients for ClientCount
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbox:     make(chan outbound, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("📡 Listener connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				h.drop(client)
				log.Printf("📴 Listener disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case out := <-h.outbox:
			h.mu.Lock()
			if out.to != nil {
				if _, ok := h.clients[out.to.ID]; ok {
					h.deliver(out.to, out.msg)
				}
			} else {
				for _, client := range h.clients {
					if client.wants(out.event) {
						h.deliver(client, out.msg)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues msg for client, dropping listeners that fall behind.
// Callers hold h.mu.
func (h *Hub) deliver(client *Client, msg []byte) {
	select {
	case client.send <- msg:
	default:
		log.Printf("⚠️ WS: listener %s too slow, dropped", client.ID)
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client.ID)
	close(client.send)
}

// Notify publishes a job or recommendation event to every subscribed
// listener. It never blocks; events are dropped when the hub is saturated.
func (h *Hub) Notify(event string, payload interface{}) {
	h.enqueue(event, payload, nil)
}

// reply sends an event to a single listener
func (h *Hub) reply(client *Client, event string, payload interface{}) {
	h.enqueue(event, payload, client)
}

func (h *Hub) enqueue(event string, payload interface{}, to *Client) {
	msg, err := json.Marshal(Event{Type: event, Data: payload, At: time.Now().UTC()})
	if err != nil {
		log.Printf("❌ WS: cannot encode %s: %v", event, err)
		return
	}

	select {
	case h.outbox <- outbound{event: event, msg: msg, to: to}:
	default:
		log.Printf("⚠️ WS: outbox full, dropped %s", event)
	}
}

// ClientCount returns the number of connected listeners
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
