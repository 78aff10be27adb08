package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/elysia-dev/elysia-korea-pf/core/types"
)

type payload struct{ evt *types.Event }

func (p payload) EventType() string   { return p.evt.Type }
func (p payload) Event() *types.Event { return p.evt }

func event(kind, id string) payload {
	return payload{&types.Event{Type: kind, Attributes: map[string]string{"id": id}}}
}

func TestHubFiltersAndDrops(t *testing.T) {
	hub := NewHub()
	all, cancelAll := hub.Subscribe("")
	defer cancelAll()
	only2, cancel2 := hub.Subscribe("2")
	defer cancel2()

	hub.Emit(event("bond.claimed", "1"))
	hub.Emit(event("bond.claimed", "2"))

	require.Equal(t, "1", (<-all).Attributes["id"])
	require.Equal(t, "2", (<-all).Attributes["id"])
	require.Equal(t, "2", (<-only2).Attributes["id"])

	// A full backlog drops instead of blocking.
	for i := 0; i < subscriberBacklog+5; i++ {
		hub.Emit(event("bond.claimed", "1"))
	}
	require.Len(t, all, subscriberBacklog)

	cancelAll()
	cancelAll()
	require.Equal(t, 1, hub.Subscribers())
	hub.Close()
	_, ok := <-only2
	require.False(t, ok)
}

func TestHubWebsocket(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?product=7", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Emit(event("bond.shares.minted", "6"))
	hub.Emit(event("bond.product.repaid", "7"))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "bond.product.repaid", msg.Type)
	require.Equal(t, "7", msg.Attributes["id"])
}
