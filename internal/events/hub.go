package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/motion"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var ErrNotConnected = errors.New("events: device not connected")

// SampleSink receives what the phone reports about its motion sensor.
type SampleSink interface {
	Push(userID string, a motion.Acceleration)
	SetAvailable(userID string, available bool)
}

type inbound struct {
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Available bool    `json:"available"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub keeps the phone connections per user. With a Redis client, Publish goes
// through pub/sub so any instance holding the connection delivers the event.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*conn
	cancelFuncs map[string]context.CancelFunc
	redisClient *redis.Client
	sink        SampleSink
	logger      internal.Logger
}

func NewHub(redisClient *redis.Client, logger internal.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*conn),
		cancelFuncs: make(map[string]context.CancelFunc),
		redisClient: redisClient,
		logger:      logger,
	}
}

func (h *Hub) SetSampleSink(sink SampleSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

func channelFor(userID string) string { return "user_events:" + userID }

// ServeUser upgrades an already authenticated request.
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}
	h.registerConnection(userID, c)

	go func() {
		defer h.unregisterConnection(userID, c)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			h.handleInbound(userID, data)
		}
	}()
}

func (h *Hub) handleInbound(userID string, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debugf("websocket: ignoring malformed message from %s: %v", userID, err)
		return
	}
	h.mu.RLock()
	sink := h.sink
	h.mu.RUnlock()
	if sink == nil {
		return
	}
	switch msg.Type {
	case "motion.sample":
		sink.Push(userID, motion.Acceleration{X: msg.X, Y: msg.Y, Z: msg.Z})
	case "motion.available":
		sink.SetAvailable(userID, msg.Available)
	default:
		h.logger.Debugf("websocket: unknown message type %q from %s", msg.Type, userID)
	}
}

func (h *Hub) registerConnection(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	if h.redisClient != nil && len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	h.logger.Infof("websocket connected: user %s (total: %d)", userID, len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, c *conn) {
	h.mu.Lock()
	c.ws.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	last := len(h.connections[userID]) == 0
	if last {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}
	sink := h.sink
	h.mu.Unlock()

	if last && sink != nil {
		sink.SetAvailable(userID, false)
	}
	h.logger.Infof("websocket disconnected: user %s", userID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, channelFor(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID string, data []byte) int {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[userID]...)
	h.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Warnf("websocket: write to %s failed: %v", userID, err)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, channelFor(ev.UserID), data).Err(); err != nil {
			return fmt.Errorf("events: publish %s: %w", ev.Type, err)
		}
		return nil
	}
	h.broadcast(ev.UserID, data)
	return nil
}

func (h *Hub) IsForeground(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// RequestSamples and StopSamples make the hub a motion.Controller. They talk
// to the local connection directly: samples come back on that same socket.
func (h *Hub) RequestSamples(userID string, interval time.Duration) error {
	return h.direct(New(userID, MotionSubscribe, map[string]any{"interval_ms": interval.Milliseconds()}))
}

func (h *Hub) StopSamples(userID string) error {
	return h.direct(New(userID, MotionUnsubscribe, nil))
}

func (h *Hub) direct(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.broadcast(ev.UserID, data) == 0 {
		return ErrNotConnected
	}
	return nil
}

var (
	_ Publisher         = (*Hub)(nil)
	_ Presence          = (*Hub)(nil)
	_ motion.Controller = (*Hub)(nil)
)
