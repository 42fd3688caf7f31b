// Package stream fans pipeline events out to websocket clients and accepts
// player actions over the same socket.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait         = 5 * time.Second
	defaultSendBuffer = 64
	maxMessageBytes   = 64 << 10
)

// Submitter is the slice of the engine the stream needs.
type Submitter interface {
	Submit(ctx context.Context, actor store.Entity, req turn.Request) (event.Event, error)
	Disconnect(actor store.Entity) bool
}

type clientMessage struct {
	Type   string         `json:"type"`
	Seq    uint64         `json:"seq,omitempty"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

type eventMessage struct {
	Type  string      `json:"type"`
	Event event.Event `json:"event"`
}

type resultMessage struct {
	Type  string      `json:"type"`
	Seq   uint64      `json:"seq,omitempty"`
	Event event.Event `json:"event"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Option func(*Hub)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

type client struct {
	// actor is zero for spectators.
	actor  store.Entity
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

type Hub struct {
	engine     Submitter
	logger     zerolog.Logger
	sendBuffer int
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(engine Submitter, opts ...Option) *Hub {
	h := &Hub{
		engine:     engine,
		logger:     zerolog.Nop(),
		sendBuffer: defaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Listen is a pipeline listener. It never blocks: a client whose buffer is
// full misses the event.
func (h *Hub) Listen(ev event.Event) {
	data, err := json.Marshal(eventMessage{Type: "event", Event: ev})
	if err != nil {
		h.logger.Error().Err(err).Str("event", ev.Name).Msg("failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Uint32("actor", uint32(c.actor)).Str("event", ev.Name).Msg("client buffer full, event dropped")
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request. ?actor=<id> binds the socket to a player;
// without it the client only watches.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var actor store.Entity
	if raw := r.URL.Query().Get("actor"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			http.Error(w, "invalid actor", http.StatusBadRequest)
			return
		}
		actor = store.Entity(id)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	c := &client{actor: actor, conn: conn, send: make(chan []byte, h.sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info().Uint32("actor", uint32(actor)).Str("remote", r.RemoteAddr).Msg("stream client connected")

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Uint32("actor", uint32(c.actor)).Msg("write failed")
			c.conn.Close()
			return
		}
	}
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	c.conn.Close()
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer h.drop(c)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.reply(c, errorMessage{Type: "error", Code: "invalid_json", Message: "invalid json"})
			continue
		}
		switch msg.Type {
		case "action":
			h.handleAction(ctx, c, msg)
		default:
			h.reply(c, errorMessage{Type: "error", Seq: msg.Seq, Code: "unknown_type", Message: "unknown message type " + strconv.Quote(msg.Type)})
		}
	}
}

func (h *Hub) handleAction(ctx context.Context, c *client, msg clientMessage) {
	if c.actor == 0 {
		h.reply(c, errorMessage{Type: "error", Seq: msg.Seq, Code: "spectator", Message: "connect with ?actor=<id> to act"})
		return
	}
	if msg.Action == "" {
		h.reply(c, errorMessage{Type: "error", Seq: msg.Seq, Code: "bad_request", Message: "action is required"})
		return
	}
	ev, err := h.engine.Submit(ctx, c.actor, turn.Request{Name: msg.Action, Args: msg.Args})
	if err != nil {
		h.reply(c, errorMessage{Type: "error", Seq: msg.Seq, Code: errorCode(err), Message: err.Error()})
		return
	}
	h.reply(c, resultMessage{Type: "result", Seq: msg.Seq, Event: ev})
}

func (h *Hub) reply(c *client, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn().Uint32("actor", uint32(c.actor)).Msg("client buffer full, reply dropped")
	}
}

// drop unregisters c and ends any turn its actor was holding.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	h.logger.Info().Uint32("actor", uint32(c.actor)).Msg("stream client disconnected")
	if c.actor != 0 {
		h.engine.Disconnect(c.actor)
	}
}
