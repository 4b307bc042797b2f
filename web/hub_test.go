package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	waitForClients(t, hub, 1)
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d", want)
}

func TestHub_BroadcastsLogAndStats(t *testing.T) {
	hub := NewHub(logging.NewLogger(logging.LogLevelError, nil))
	conn := dialHub(t, hub)

	hub.Log("system", "now playing Lamp", "")
	hub.Stats(types.LiveStats{Running: true, CurrentProduct: "Lamp", Queue: []string{}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var first struct {
		Type    string     `json:"type"`
		Payload logPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, "log", first.Type)
	assert.Equal(t, "now playing Lamp", first.Payload.Message)

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var second struct {
		Type    string          `json:"type"`
		Payload types.LiveStats `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &second))
	assert.Equal(t, "stats", second.Type)
	assert.Equal(t, "Lamp", second.Payload.CurrentProduct)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(logging.NewLogger(logging.LogLevelError, nil))
	conn := dialHub(t, hub)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients is a no-op, not a panic.
	hub.Log("system", "nobody is listening", "")
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub(logging.NewLogger(logging.LogLevelError, nil))
	// A client whose writer never drains fills its buffer and gets dropped
	// instead of blocking the broadcaster.
	c := &client{send: make(chan []byte, 1)}
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	hub.Log("system", "one", "")
	hub.Log("system", "two", "")

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-c.send
	assert.True(t, open, "first message was buffered")
	_, open = <-c.send
	assert.False(t, open, "channel closed after the drop")
}

func TestHub_MultipleClients(t *testing.T) {
	hub := NewHub(logging.NewLogger(logging.LogLevelError, nil))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer b.Close()
	waitForClients(t, hub, 2)

	hub.Log("system", "hello", "")

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	}
}
