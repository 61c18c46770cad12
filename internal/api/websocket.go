package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devsel/internal/device"
	"github.com/nerrad567/devsel/internal/infrastructure/config"
	"github.com/nerrad567/devsel/internal/infrastructure/logging"
)

// Message types exchanged on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256
)

// Event channels.
const (
	EventSweepCompleted   = "sweep.completed"
	EventSelectionChanged = "selection.changed"
)

// defaultChannels are subscribed for every new client. They are also the
// only channels a client may subscribe to.
var defaultChannels = []string{EventSweepCompleted, EventSelectionChanged}

// WSMessage is an outbound message, and the shape clients send back.
// Seq numbers events so a client can spot messages dropped while it was slow.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is an inbound client message with its payload left raw.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans sweep and selection events out to connected clients.
// It implements device.SweepObserver.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	seq     atomic.Uint64
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected event stream consumer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	pingInterval time.Duration
	pongWait     time.Duration

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	closed        bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates a hub. Run must be called to tear clients down on shutdown.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	if len(clients) > 0 {
		h.logger.Debug("websocket clients disconnected on shutdown", "clients", len(clients))
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its queue. Repeated calls are
// harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client subscribed to channel.
// Clients whose queue is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Seq:       h.seq.Add(1),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.isSubscribed(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.enqueue(data) {
			dropped++
		}
	}
	if len(targets) > 0 {
		h.logger.Debug("websocket event sent",
			"channel", channel,
			"recipients", len(targets)-dropped,
			"dropped", dropped,
		)
	}
}

// ObserveSweep broadcasts the result on the sweep.completed channel.
func (h *Hub) ObserveSweep(_ context.Context, result device.Result) {
	h.Broadcast(EventSweepCompleted, result)
}

// handleWebSocket upgrades the request and starts the client's pumps.
// New clients start subscribed to every channel.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newWSClient(s.hub, conn, s.wsCfg)
	s.hub.Register(c)

	go c.writePump()
	go c.readPump(int64(s.wsCfg.MaxMessageSize))
}

func newWSClient(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *WSClient {
	c := &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		pingInterval:  time.Duration(cfg.PingInterval) * time.Second,
		pongWait:      time.Duration(cfg.PongTimeout) * time.Second,
		subscriptions: make(map[string]struct{}, len(defaultChannels)),
	}
	for _, ch := range defaultChannels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

// extendDeadline pushes the read deadline one ping cycle ahead.
func (c *WSClient) extendDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
}

// readPump consumes client messages until the connection fails.
func (c *WSClient) readPump(limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	c.extendDeadline() //nolint:errcheck // Deadline errors surface on the next read
	c.conn.SetPongHandler(func(string) error { return c.extendDeadline() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message counts as alive.
		c.extendDeadline() //nolint:errcheck // Deadline errors surface on the next read
		c.handleMessage(data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.pongWait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Connection is going away
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

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe:
		c.changeSubscriptions(req, true)
	case WSTypeUnsubscribe:
		c.changeSubscriptions(req, false)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// changeSubscriptions adds or removes channels. Unknown channel names reject
// the whole request.
func (c *WSClient) changeSubscriptions(req wsRequest, add bool) {
	var sub WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
		c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
		return
	}
	for _, ch := range sub.Channels {
		if !slices.Contains(defaultChannels, ch) {
			c.reply(req.ID, WSTypeError, errorPayload(fmt.Sprintf("unknown channel %q", ch)))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.reply(req.ID, WSTypeResponse, map[string][]string{key: sub.Channels})
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// enqueue offers data to the send queue without blocking. It reports false
// when the client is gone or its queue is full.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue exactly once.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}
