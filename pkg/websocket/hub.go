package websocket

import (
	"encoding/json"
	"sync"

	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// Hub fans messages out to clients subscribed to a topic
type Hub struct {
	clients map[string]*Client
	topics  map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message

	mu sync.RWMutex
}

// NewHub creates a hub; call Run in its own goroutine
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message, 256),
	}
}

// Run processes registrations and broadcasts until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.Broadcast:
			h.SendToTopic(msg.Topic, msg)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok && existing != client {
		h.removeLocked(existing)
	}
	h.clients[client.ID] = client
	if client.Topic != "" {
		if h.topics[client.Topic] == nil {
			h.topics[client.Topic] = make(map[string]*Client)
		}
		h.topics[client.Topic][client.ID] = client
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		h.removeLocked(client)
	}
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client.ID)
	if subs, ok := h.topics[client.Topic]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, client.Topic)
		}
	}
	client.closeSend()
}

// SendToTopic delivers msg to every subscriber of topic, dropping slow clients
func (h *Hub) SendToTopic(topic string, msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("websocket: failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	subs := make([]*Client, 0, len(h.topics[topic]))
	for _, c := range h.topics[topic] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if !c.trySend(payload) {
			logger.Warn("websocket: client send buffer full, dropping", zap.String("client_id", c.ID))
			go func(c *Client) { h.Unregister <- c }(c)
		}
	}
}

// GetClient returns the client registered under id
func (h *Hub) GetClient(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTopicSubscriberCount returns how many clients follow topic
func (h *Hub) GetTopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
