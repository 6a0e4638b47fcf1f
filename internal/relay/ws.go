package relay

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

const wsDialTimeout = 10 * time.Second

// WebSocket consumes the bridge's event stream. One goroutine owns the
// connection for its whole lifetime: it reads, detects failure, and redials.
// Message callbacks run on that goroutine; handlers that block must fan out
// themselves.
type WebSocket struct {
	wsURL        string
	maxAttempts  int
	retryDelay   time.Duration
	pingInterval time.Duration

	mu        sync.RWMutex
	state     WebSocketState
	conn      *websocket.Conn // current conn, held only so Close can reach it
	onMessage []MessageCallback
	onState   []StateCallback

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewWebSocket(wsURL string, maxAttempts int, retryDelay time.Duration) *WebSocket {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	return &WebSocket{
		wsURL:        wsURL,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		pingInterval: 30 * time.Second,
		state:        WSStateDisconnected,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// OnMessage registers a callback for every decoded event. Register before
// Connect; the stream starts as soon as the first dial succeeds.
func (ws *WebSocket) OnMessage(cb MessageCallback) {
	ws.mu.Lock()
	ws.onMessage = append(ws.onMessage, cb)
	ws.mu.Unlock()
}

func (ws *WebSocket) OnStateChange(cb StateCallback) {
	ws.mu.Lock()
	ws.onState = append(ws.onState, cb)
	ws.mu.Unlock()
}

// Connect dials once, synchronously, so startup fails fast on a bad URL,
// then hands the connection to the run loop.
func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.setState(WSStateConnecting)
	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(WSStateFailed)
		return err
	}
	ws.adopt(conn)
	go ws.run(conn)
	return nil
}

// Close stops the run loop and waits for it to drain, bounded by ctx.
func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.mu.Lock()
	if ws.conn != nil {
		_ = ws.conn.Close(websocket.StatusNormalClosure, "shutdown")
		ws.conn = nil
	}
	ws.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ws.done:
		return nil
	}
}

// run serves one connection at a time. When serving ends and the client is
// not stopping, it redials with linear backoff up to maxAttempts and carries
// on with the fresh connection.
func (ws *WebSocket) run(conn *websocket.Conn) {
	defer close(ws.done)
	for {
		ws.serve(conn)
		if ws.isStopping() {
			ws.setState(WSStateDisconnected)
			return
		}

		ws.setState(WSStateReconnecting)
		next, ok := ws.redial()
		if !ok {
			ws.setState(WSStateFailed)
			return
		}
		conn = next
		ws.adopt(conn)
	}
}

// serve reads events from conn until it dies or the client stops. A ping
// goroutine scoped to this connection kills it when the peer goes quiet, which
// unblocks the read and lets run redial.
func (ws *WebSocket) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ws.ping(ctx, conn)

	for {
		if ws.isStopping() {
			return
		}
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			_ = conn.Close(websocket.StatusGoingAway, "read failed")
			return
		}
		ws.dispatch(&msg)
	}
}

func (ws *WebSocket) ping(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ws.stopCh:
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// Force the blocked read in serve to fail.
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (ws *WebSocket) redial() (*websocket.Conn, bool) {
	for attempt := 1; attempt <= ws.maxAttempts; attempt++ {
		select {
		case <-ws.stopCh:
			return nil, false
		case <-time.After(ws.retryDelay * time.Duration(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
		conn, err := ws.dial(ctx)
		cancel()
		if err == nil {
			return conn, true
		}
	}
	return nil, false
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	return conn, err
}

// adopt publishes the current connection for Close and flips to connected.
func (ws *WebSocket) adopt(conn *websocket.Conn) {
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	ws.setState(WSStateConnected)
}

func (ws *WebSocket) dispatch(msg *Message) {
	ws.mu.RLock()
	cbs := make([]MessageCallback, len(ws.onMessage))
	copy(cbs, ws.onMessage)
	ws.mu.RUnlock()
	for _, cb := range cbs {
		cb(msg)
	}
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.mu.Lock()
	ws.state = state
	cbs := make([]StateCallback, len(ws.onState))
	copy(cbs, ws.onState)
	ws.mu.Unlock()
	for _, cb := range cbs {
		cb(state)
	}
}

// State reports the current connection state.
func (ws *WebSocket) State() WebSocketState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}
