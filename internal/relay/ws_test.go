package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// bridgeStub accepts websocket connections and pushes one event per
// connection, numbered by accept order. The first connection is dropped
// right after its event to force a reconnect.
type bridgeStub struct {
	mu       sync.Mutex
	accepted int
	hold     chan struct{}
}

func newBridgeStub() *bridgeStub {
	return &bridgeStub{hold: make(chan struct{})}
}

func (b *bridgeStub) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.accepted++
	n := b.accepted
	b.mu.Unlock()

	ctx := r.Context()
	_ = wsjson.Write(ctx, conn, Message{ID: int64(n), Channel: "chan-1", Content: "event"})
	if n == 1 {
		_ = conn.Close(websocket.StatusGoingAway, "drop")
		return
	}
	select {
	case <-b.hold:
	case <-ctx.Done():
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func wsTestURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDeliversAndReconnects(t *testing.T) {
	stub := newBridgeStub()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()
	defer close(stub.hold)

	ws := NewWebSocket(wsTestURL(srv), 5, 10*time.Millisecond)
	events := make(chan *Message, 8)
	states := make(chan WebSocketState, 16)
	ws.OnMessage(func(m *Message) { events <- m })
	ws.OnStateChange(func(s WebSocketState) { states <- s })

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitEvent := func(wantID int64) {
		t.Helper()
		select {
		case m := <-events:
			if m.ID != wantID {
				t.Fatalf("event id = %d, want %d", m.ID, wantID)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for event %d", wantID)
		}
	}

	waitEvent(1)
	// The stub dropped the first connection; the run loop must redial and
	// resume the stream.
	waitEvent(2)

	sawReconnecting := false
	timeout := time.After(time.Second)
	for !sawReconnecting {
		select {
		case s := <-states:
			if s == WSStateReconnecting {
				sawReconnecting = true
			}
		case <-timeout:
			t.Fatal("never observed the reconnecting state")
		}
	}
	if got := ws.State(); got != WSStateConnected {
		t.Fatalf("state after reconnect = %s, want connected", got)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ws.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := ws.State(); got != WSStateDisconnected {
		t.Fatalf("state after close = %s, want disconnected", got)
	}
}

func TestWebSocketConnectFailsFast(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/ws", 1, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err == nil {
		t.Fatal("dial to a closed port should fail")
	}
	if got := ws.State(); got != WSStateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
}
