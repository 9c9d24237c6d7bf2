package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 30 * time.Second
	wsCloseGrace       = time.Second
	wsAcceptBacklog    = 16
)

// WebSocketListener accepts WebSocket upgrades on one HTTP path
type WebSocketListener struct {
	ln       net.Listener
	server   *http.Server
	path     string
	upgrader websocket.Upgrader

	mu          sync.Mutex
	closed      bool
	acceptQueue chan Connection
	done        chan struct{}
}

// ListenWebSocket binds hostport and serves upgrades on path
func ListenWebSocket(ctx context.Context, hostport, path string) (*WebSocketListener, error) {
	if path == "" {
		path = "/"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", ListenAddress(hostport))
	if err != nil {
		return nil, err
	}

	l := &WebSocketListener{
		ln:   ln,
		path: path,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: wsHandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		acceptQueue: make(chan Connection, wsAcceptBacklog),
		done:        make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: wsHandshakeTimeout,
	}

	go func() {
		_ = l.server.Serve(ln)
	}()

	return l, nil
}

// handleUpgrade upgrades the request and queues the connection for Accept
func (l *WebSocketListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	wsConn := newWebSocketConnection(conn)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = wsConn.Close()
		return
	}
	select {
	case l.acceptQueue <- wsConn:
	default:
		// backlog full, the peer will retry
		_ = wsConn.Close()
	}
}

// Accept waits for and returns the next upgraded connection
func (l *WebSocketListener) Accept(ctx context.Context) (Connection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrListenerClosed
	case conn := <-l.acceptQueue:
		return conn, nil
	}
}

// Close closes the listener and drops connections that were never accepted
func (l *WebSocketListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	for {
		select {
		case conn := <-l.acceptQueue:
			_ = conn.Close()
		default:
			return l.server.Close()
		}
	}
}

// Addr returns the listener's network address
func (l *WebSocketListener) Addr() string {
	return "ws://" + l.ln.Addr().String() + l.path
}

// WebSocketDialer dials one ws:// URL
type WebSocketDialer struct {
	url    string
	dialer websocket.Dialer
}

// NewWebSocketDialer creates a dialer for url
func NewWebSocketDialer(url string) *WebSocketDialer {
	return &WebSocketDialer{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}
}

// Dial makes one connection attempt
func (d *WebSocketDialer) Dial(ctx context.Context) (Connection, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return newWebSocketConnection(conn), nil
}

// Address returns the dialed URL
func (d *WebSocketDialer) Address() string {
	return d.url
}

// webSocketConnection carries a byte stream as binary WebSocket messages
type webSocketConnection struct {
	conn   *websocket.Conn
	buffer []byte
	mu     sync.Mutex
	closed bool
}

func newWebSocketConnection(conn *websocket.Conn) *webSocketConnection {
	return &webSocketConnection{conn: conn}
}

// Read returns data from at most one WebSocket message. A normal close from
// the peer reads as io.EOF, like a TCP FIN.
func (c *webSocketConnection) Read(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, read from it first
	if len(c.buffer) > 0 {
		n = copy(p, c.buffer)
		c.buffer = c.buffer[n:]
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, io.EOF
		}
		return 0, err
	}

	if messageType != websocket.BinaryMessage {
		return 0, fmt.Errorf("unexpected message type: %d", messageType)
	}

	n = copy(p, data)

	// Buffer any remaining data
	if n < len(data) {
		c.mu.Lock()
		c.buffer = data[n:]
		c.mu.Unlock()
	}

	return n, nil
}

// Write sends p as one binary message
func (c *webSocketConnection) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	c.mu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close sends a close frame and closes the underlying socket
func (c *webSocketConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseGrace))
	return c.conn.Close()
}

// RemoteAddr returns the peer address
func (c *webSocketConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

var _ Connection = (*webSocketConnection)(nil)
var _ Listener = (*WebSocketListener)(nil)
var _ Dialer = (*WebSocketDialer)(nil)
