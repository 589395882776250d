package api

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeSnapshot    = "snapshot"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsQueueLen is how many outbound messages a client may fall behind by
// before events are dropped for it.
const wsQueueLen = 256

// WSMessage is the envelope for every message the server sends.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels for subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound message. Payload is decoded once the type is known.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var wsChannels = []string{
	ChannelDeviceCreated,
	ChannelDeviceUpdated,
	ChannelDeviceDeleted,
	ChannelStatsChanged,
}

func encodeWS(msgType, id, eventType string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// wsTiming holds the keepalive settings shared by every connection.
type wsTiming struct {
	readLimit int64
	ping      time.Duration
	pongWait  time.Duration
}

// idle is how long a connection may stay silent before it is dropped.
func (t wsTiming) idle() time.Duration { return t.ping + t.pongWait }

// Hub tracks live dashboard connections and fans registry events out to them.
type Hub struct {
	logger *logging.Logger
	timing wsTiming

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Uint64
}

// WSClient is one dashboard connection.
//
// A client starts subscribed to every channel. Its first subscribe request
// narrows that to the listed channels; later requests add to the set.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	operator string

	mu       sync.RWMutex
	queue    chan []byte
	closed   bool
	channels map[string]struct{} // nil: every channel
}

// Origins are enforced by the CORS middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates a hub using the keepalive settings in cfg.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		logger: logger,
		timing: wsTiming{
			readLimit: int64(cfg.MaxMessageSize),
			ping:      time.Duration(cfg.PingInterval) * time.Second,
			pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
		},
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := slices.Collect(maps.Keys(h.clients))
	clear(h.clients)
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
		c.conn.Close()
	}
	if n := h.dropped.Load(); n > 0 {
		h.logger.Info("websocket hub stopped", "dropped_events", n)
	}
}

func (h *Hub) attach(conn *websocket.Conn, operator string) *WSClient {
	c := &WSClient{
		hub:      h,
		conn:     conn,
		operator: operator,
		queue:    make(chan []byte, wsQueueLen),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "operator", operator, "clients", n)
	return c
}

func (h *Hub) detach(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "operator", c.operator, "clients", n)
}

// Broadcast sends an event to every client subscribed to channel.
// Slow clients with a full queue miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeWS(WSTypeEvent, "", channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := slices.Collect(maps.Keys(h.clients))
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.wants(channel) {
			continue
		}
		if !c.enqueue(data) {
			h.dropped.Add(1)
			h.logger.Warn("websocket client too slow, event dropped", "channel", channel, "operator", c.operator)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the request and greets the client with the
// current occupancy so dashboards render before the first event arrives.
// Authentication, when enabled, has already happened in requireOperator.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.attach(conn, operatorFromContext(r.Context()))

	if occ, err := s.registry.Stats(r.Context()); err != nil {
		s.logger.Warn("websocket snapshot unavailable", "error", err)
	} else {
		client.reply(WSTypeSnapshot, "", map[string]any{
			"site_id":  s.site.ID,
			"stats":    occ,
			"channels": wsChannels,
		})
	}

	go client.writeLoop()
	go client.readLoop()
}

func (c *WSClient) readLoop() {
	defer c.conn.Close()
	defer c.hub.detach(c)

	t := c.hub.timing
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.idle())) }

	c.conn.SetReadLimit(t.readLimit)
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "operator", c.operator, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.handle(data)
	}
}

func (c *WSClient) writeLoop() {
	t := c.hub.timing
	ticker := time.NewTicker(t.ping)
	defer ticker.Stop()
	defer c.conn.Close()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(t.pongWait)) //nolint:errcheck // surfaces on write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // peer may be gone
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(WSTypePong, req.ID, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Channels) == 0 {
			c.fail(req.ID, "payload must list channels")
			return
		}
		if unknown := unknownChannels(p.Channels); len(unknown) > 0 {
			c.fail(req.ID, "unknown channel: "+strings.Join(unknown, ", "))
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(p.Channels)
		} else {
			c.unsubscribe(p.Channels)
		}
		c.reply(WSTypeResponse, req.ID, map[string]any{"channels": c.subscribed()})
	default:
		c.fail(req.ID, "unknown message type: "+req.Type)
	}
}

func unknownChannels(channels []string) []string {
	var unknown []string
	for _, ch := range channels {
		if !slices.Contains(wsChannels, ch) {
			unknown = append(unknown, ch)
		}
	}
	return unknown
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels == nil {
		c.channels = make(map[string]struct{}, len(channels))
	}
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels == nil {
		c.channels = make(map[string]struct{}, len(wsChannels))
		for _, ch := range wsChannels {
			c.channels[ch] = struct{}{}
		}
	}
	for _, ch := range channels {
		delete(c.channels, ch)
	}
}

// subscribed returns the client's channels in sorted order.
func (c *WSClient) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channels == nil {
		return slices.Sorted(slices.Values(wsChannels))
	}
	return slices.Sorted(maps.Keys(c.channels))
}

func (c *WSClient) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channels == nil {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

// enqueue reports false only when the queue is full.
// Messages for a closed client are discarded.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the queue once, ending writeLoop.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *WSClient) reply(msgType, id string, payload any) {
	data, err := encodeWS(msgType, id, "", payload)
	if err != nil {
		c.hub.logger.Error("encoding websocket reply failed", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *WSClient) fail(id, message string) {
	c.reply(WSTypeError, id, map[string]string{"message": message})
}
