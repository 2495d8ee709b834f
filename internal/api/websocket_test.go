package api

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/audy/taxonomy/core/store"
)

func dialTestWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketBroadcast(t *testing.T) {
	srv, _ := testServer(t, Config{})
	conn := dialTestWS(t, srv)

	// Give the hub time to register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.hub.clientCount() == 0 {
		t.Fatal("client never registered")
	}

	srv.hub.BroadcastProgress("import", "reading", "Reading source", 30)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var msg ProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "progress" || msg.Operation != "import" || msg.Progress != 30 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestWebSocketCompleteMessage(t *testing.T) {
	srv, _ := testServer(t, Config{})
	conn := dialTestWS(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	srv.hub.BroadcastComplete("import", "Dataset imported", map[string]interface{}{"nodes": 42})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var msg ProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "complete" || msg.Progress != 100 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Data["nodes"] != float64(42) {
		t.Errorf("data = %v", msg.Data)
	}
}

// Removing a stalled client during a broadcast must not race with
// concurrent readers of the client map. Run with -race.
func TestHubDropsStalledClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	stalled := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- stalled

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.clientCount()
		}
	}()

	// First message fills the buffer, second finds it full and drops
	// the client.
	hub.BroadcastProgress("import", "reading", "msg", 10)
	hub.BroadcastProgress("import", "reading", "msg", 20)

	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.clientCount(); n != 0 {
		t.Errorf("clientCount() = %d after dropping stalled client, want 0", n)
	}
	<-done

	if _, ok := <-stalled.send; ok {
		// One buffered message may remain; the channel must be closed
		// after it drains.
		if _, ok := <-stalled.send; ok {
			t.Error("stalled client channel not closed")
		}
	}
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ws.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	srv, err := NewServer(Config{}, st, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	go srv.hub.Run()

	// Must not block or panic with nobody listening.
	srv.hub.BroadcastProgress("import", "reading", "msg", 10)
	srv.hub.BroadcastError("import", "failed")
}
