package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"payway/core/events"
	"payway/core/types"
)

func TestEventsWebsocketDeliversBacklogAndLive(t *testing.T) {
	ts := newTestServer(t)
	ts.addItem(t, "Gorllia")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.http.URL, "http://", "ws://", 1) + "/ws/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The add emitted before the dial arrives from the backlog.
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var event types.Event
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, events.TypeItemAdded, event.Type)
	require.Equal(t, "Gorllia", event.Attributes["name"])

	ts.addItem(t, "Blue Dream")
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, events.TypeItemAdded, event.Type)
	require.Equal(t, "Blue Dream", event.Attributes["name"])
}
