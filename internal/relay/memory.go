package relay

import (
	"context"
	"io"
	"net"
	"sync"
)

// memoryAddr names one side of an in-memory connection
type memoryAddr string

func (a memoryAddr) Network() string { return "memory" }
func (a memoryAddr) String() string  { return string(a) }

// memoryConnection represents an in-memory bidirectional pipe
type memoryConnection struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	remote memoryAddr
	mu     sync.Mutex
	closed bool
}

// Read reads data from the connection
func (c *memoryConnection) Read(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	c.mu.Unlock()
	return c.reader.Read(p)
}

// Write writes data to the connection
func (c *memoryConnection) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	c.mu.Unlock()
	return c.writer.Write(p)
}

// Close closes both directions; the peer reads io.EOF
func (c *memoryConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.reader.Close()
	_ = c.writer.Close()
	return nil
}

// CloseWrite ends the outgoing direction only, like (*net.TCPConn).CloseWrite.
// The peer reads io.EOF and can still write back.
func (c *memoryConnection) CloseWrite() error {
	return c.writer.Close()
}

// RemoteAddr returns the name of the other side
func (c *memoryConnection) RemoteAddr() net.Addr {
	return c.remote
}

// MemoryListener is an in-memory implementation of Listener for testing
type MemoryListener struct {
	addr        string
	connections chan Connection
	mu          sync.Mutex
	closed      bool
}

// NewMemoryListener creates a new in-memory listener
func NewMemoryListener(addr string) *MemoryListener {
	return &MemoryListener{
		addr:        addr,
		connections: make(chan Connection, 10),
	}
}

// Accept waits for and returns the next connection
func (l *MemoryListener) Accept(ctx context.Context) (Connection, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrListenerClosed
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case conn, ok := <-l.connections:
		if !ok {
			return nil, ErrListenerClosed
		}
		return conn, nil
	}
}

// Close closes the listener
func (l *MemoryListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.connections)
	return nil
}

// Addr returns the listener's name
func (l *MemoryListener) Addr() string {
	return l.addr
}

// addConnection adds a connection to the listener's accept queue
func (l *MemoryListener) addConnection(conn Connection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListenerClosed
	}
	l.connections <- conn
	return nil
}

// Pipe returns two connected in-memory connections
func Pipe(a, b string) (Connection, Connection) {
	// Pipe 1: a writes -> b reads
	bReader, aWriter := io.Pipe()
	// Pipe 2: b writes -> a reads
	aReader, bWriter := io.Pipe()

	return &memoryConnection{reader: aReader, writer: aWriter, remote: memoryAddr(b)},
		&memoryConnection{reader: bReader, writer: bWriter, remote: memoryAddr(a)}
}

// MemoryDialer is an in-memory implementation of Dialer for testing
type MemoryDialer struct {
	listener *MemoryListener
	mu       sync.Mutex
	closed   bool
}

// NewMemoryDialer creates a new in-memory dialer connected to the given listener
func NewMemoryDialer(listener *MemoryListener) *MemoryDialer {
	return &MemoryDialer{
		listener: listener,
	}
}

// Dial creates a new connection to the listener
func (d *MemoryDialer) Dial(ctx context.Context) (Connection, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialerClosed
	}
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialerConn, listenerConn := Pipe("memory-dialer", d.listener.addr)

	// Add the listener side to the listener's accept queue
	if err := d.listener.addConnection(listenerConn); err != nil {
		_ = dialerConn.Close()
		_ = listenerConn.Close()
		return nil, err
	}

	return dialerConn, nil
}

// Address returns the listener's name
func (d *MemoryDialer) Address() string {
	return d.listener.addr
}

// Close closes the dialer
func (d *MemoryDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ Connection = (*memoryConnection)(nil)
var _ Listener = (*MemoryListener)(nil)
var _ Dialer = (*MemoryDialer)(nil)
