package websocket

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

	"github.com/vrsandeep/vmfa-addons/internal/addons"
)

func TestHub(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		hub:  hub,
		send: make(chan []byte, 1),
	}

	hub.register <- client

	hub.Broadcast([]byte("hello"))
	select {
	case received := <-client.send:
		assert.Equal(t, "hello", string(received))
	case <-time.After(time.Second):
		t.Fatal("Client did not receive broadcast message in time")
	}

	hub.unregister <- client
	select {
	case _, ok := <-client.send:
		assert.False(t, ok, "send channel should be closed after unregistration")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHubNotify(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	hub.Notify(addons.ActionEvent{
		Action: "install",
		Slug:   "vmfa-rules-engine",
		Notice: addons.Notice{Message: "Rules Engine installed successfully.", Type: addons.NoticeSuccess},
	})

	select {
	case raw := <-client.send:
		var event addons.ActionEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, "install", event.Action)
		assert.Equal(t, addons.NoticeSuccess, event.Notice.Type)
	case <-time.After(time.Second):
		t.Fatal("event was not broadcast")
	}
}

func TestServeWs(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration is asynchronous; keep broadcasting until one arrives.
	received := make(chan string, 1)
	go func() {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- string(msg)
		}
	}()

	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case msg := <-received:
			assert.Equal(t, `{"ping":true}`, msg)
			return
		case <-ticker.C:
			require.NoError(t, hub.BroadcastJSON(map[string]bool{"ping": true}))
		case <-deadline:
			t.Fatal("no message received over websocket")
		}
	}
}
