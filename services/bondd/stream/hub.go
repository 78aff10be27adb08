package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
	"github.com/elysia-dev/elysia-korea-pf/core/types"
	"github.com/elysia-dev/elysia-korea-pf/observability"
)

const (
	wsWriteTimeout    = 10 * time.Second
	subscriberBacklog = 64
	sinkName          = "stream"
)

// Message is the JSON frame pushed to stream subscribers.
type Message struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type subscriber struct {
	ch      chan Message
	product string
}

// Hub fans committed events out to websocket subscribers. Slow subscribers
// lose events rather than stalling the node.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	payload := events.Unwrap(evt)
	if payload == nil {
		payload = &types.Event{Type: evt.EventType()}
	}
	msg := Message{Type: evt.EventType(), Attributes: payload.Clone().Attributes}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.product != "" && sub.product != msg.Attributes["id"] {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			observability.Events().RecordDropped(sinkName)
		}
	}
}

// Subscribe registers a subscriber. product filters on the product id
// attribute when non-empty. The returned cancel func must be called once.
func (h *Hub) Subscribe(product string) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, subscriberBacklog), product: strings.TrimSpace(product)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client goes away. The optional "product" query parameter filters by id.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	updates, cancel := h.Subscribe(r.URL.Query().Get("product"))
	defer cancel()

	if err := pump(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func pump(ctx context.Context, conn *websocket.Conn, updates <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := write(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
