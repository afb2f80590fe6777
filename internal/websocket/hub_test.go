package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// startHub serves the hub behind a test server that trusts the "user" query
// parameter as the authenticated identity.
func startHub(t *testing.T, store Store) (*Hub, string) {
	t.Helper()

	// Pump goroutines can outlive the test, and zaptest loggers must not be used after it ends.
	hub := NewHub(store, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		if err != nil {
			http.Error(w, "bad user", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Connect(conn, userID)
	}))

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, userID int64) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+strconv.FormatInt(userID, 10), nil)
	if err != nil {
		t.Fatalf("dial as %d: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("user %d never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestSocketDirectMessageScenario(t *testing.T) {
	store := newFakeStore()
	hub, url := startHub(t, store)
	alice := dial(t, hub, url, 1)
	bob := dial(t, hub, url, 2)

	if err := alice.WriteJSON(map[string]any{
		"type": "message", "fromUserId": 1, "toUserId": 2, "content": "hello",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	received := readFrame(t, bob)
	echo := readFrame(t, alice)
	for _, frame := range []map[string]any{received, echo} {
		if frame["type"] != "message" || frame["content"] != "hello" || frame["isRead"] != false {
			t.Errorf("unexpected frame: %v", frame)
		}
	}
	if received["id"] != echo["id"] {
		t.Errorf("recipient and echo should carry the same message, got %v and %v", received["id"], echo["id"])
	}
}

func TestSocketGroupScenario(t *testing.T) {
	store := newFakeStore()
	store.members[7] = []int64{1, 2, 3}
	hub, url := startHub(t, store)
	one := dial(t, hub, url, 1)
	two := dial(t, hub, url, 2)
	three := dial(t, hub, url, 3)

	if err := two.WriteJSON(map[string]any{"type": "groupMessage", "groupId": 7, "content": "push mid"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, conn := range []*websocket.Conn{one, two, three} {
		if frame := readFrame(t, conn); frame["type"] != "groupMessage" || frame["content"] != "push mid" {
			t.Errorf("unexpected frame: %v", frame)
		}
	}
}

func TestSocketSessionTakeover(t *testing.T) {
	hub, url := startHub(t, newFakeStore())
	first := dial(t, hub, url, 1)

	second, _, err := websocket.DefaultDialer.Dial(url+"?user=1", nil)
	if err != nil {
		t.Fatalf("dial second session: %v", err)
	}
	defer second.Close()

	if frame := readFrame(t, first); frame["type"] != "sessionReplaced" {
		t.Fatalf("expected sessionReplaced, got %v", frame)
	}
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected the replaced socket to be closed")
	}

	if !hub.IsOnline(1) || hub.OnlineCount() != 1 {
		t.Errorf("expected exactly the new session to stay registered")
	}

	// The new session still receives routed frames.
	other := dial(t, hub, url, 2)
	if err := other.WriteJSON(map[string]any{"type": "typing", "toUserId": 1, "isTyping": true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := readFrame(t, second); frame["type"] != "typing" {
		t.Errorf("unexpected frame on new session: %v", frame)
	}
}

func TestSocketClosedUnregisters(t *testing.T) {
	hub, url := startHub(t, newFakeStore())
	conn := dial(t, hub, url, 5)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.IsOnline(5) {
		if time.Now().After(deadline) {
			t.Fatalf("closed socket stayed registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(newFakeStore(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := attach(hub, 1)
	cancel()
	<-done

	if hub.OnlineCount() != 0 {
		t.Errorf("expected empty registry after shutdown")
	}
	if err := c.enqueue([]byte(`{}`)); err == nil {
		t.Errorf("expected client to be closed after shutdown")
	}
}

func TestSocketOversizedMessageKeepsConnection(t *testing.T) {
	store := newFakeStore()
	hub, url := startHub(t, store)
	alice := dial(t, hub, url, 1)
	bob := dial(t, hub, url, 2)

	big := strings.Repeat("a", 40*1024)
	if err := alice.WriteJSON(map[string]any{"type": "message", "toUserId": 2, "content": big}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := readFrame(t, alice); frame["type"] != "error" || frame["message"] != errContentTooLong {
		t.Fatalf("expected content length error, got %v", frame)
	}
	if store.count() != 0 {
		t.Errorf("oversized message was persisted")
	}
	if !hub.IsOnline(1) {
		t.Fatalf("sender was dropped after an oversized message")
	}

	if err := alice.WriteJSON(map[string]any{"type": "message", "toUserId": 2, "content": "still here"}); err != nil {
		t.Fatalf("write after oversized message: %v", err)
	}
	if frame := readFrame(t, bob); frame["content"] != "still here" {
		t.Errorf("unexpected frame: %v", frame)
	}
	if frame := readFrame(t, alice); frame["content"] != "still here" {
		t.Errorf("unexpected echo: %v", frame)
	}
}

func TestConnectAfterShutdownIsRefused(t *testing.T) {
	hub := NewHub(newFakeStore(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	connected := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connected <- hub.Connect(conn, 1)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if c := <-connected; c != nil {
		t.Errorf("expected a stopped hub to refuse the client")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Errorf("expected the refused socket to be closed")
	}
	if hub.OnlineCount() != 0 {
		t.Errorf("expected no registered clients, got %d", hub.OnlineCount())
	}
}
