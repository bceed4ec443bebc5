package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub fans freshly published gems out to map viewers. Clients subscribe by
// cache cell key (rounded coordinates); publishes go to local clients and,
// when redis is configured, to the cell's pub/sub channel so every instance
// sees them.
type Hub struct {
	id      string
	redis   *redis.Client
	log     *zap.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Cell string
	Send chan []byte
}

// envelope carries a publish across instances; src lets the publishing
// instance skip its own message, which it already delivered locally.
type envelope struct {
	Src  string          `json:"src"`
	Data json.RawMessage `json:"data"`
}

func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		log:     log,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(cell string) *Client {
	client := &Client{
		Cell: cell,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[cell] == nil {
		h.clients[cell] = map[*Client]struct{}{}
	}
	h.clients[cell][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cellClients, ok := h.clients[client.Cell]; ok {
		delete(cellClients, client)
		if len(cellClients) == 0 {
			delete(h.clients, client.Cell)
		}
	}
	close(client.Send)
}

// Broadcast delivers a gem payload to everyone watching the cell. Slow
// clients drop messages rather than blocking the publish path.
func (h *Hub) Broadcast(cell string, payload []byte) {
	h.deliver(cell, payload)

	if h.redis != nil {
		msg, err := json.Marshal(envelope{Src: h.id, Data: payload})
		if err != nil {
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel(cell), msg).Err(); err != nil {
			h.log.Warn("redis publish", zap.Error(err))
		}
	}
}

// deliver sends to the cell's local clients. Sends happen under the read
// lock so Unregister cannot close a channel mid-send.
func (h *Hub) deliver(cell string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[cell] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "gems:*:new")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		if env.Src == h.id {
			// already delivered locally on the publish path
			continue
		}
		h.deliver(cellFromChannel(msg.Channel), env.Data)
	}
}

func redisChannel(cell string) string {
	return "gems:" + cell + ":new"
}

func cellFromChannel(ch string) string {
	// gems:{cell}:new
	const prefix = "gems:"
	const suffix = ":new"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
