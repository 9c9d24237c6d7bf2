package relay

import (
	"context"
	"errors"
	"net"
	"time"
)

// TCPListener accepts plain TCP connections
type TCPListener struct {
	ln *net.TCPListener
}

// ListenTCP binds address. Binding failures are returned as-is and are not retried.
func ListenTCP(ctx context.Context, address string) (*TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{ln: ln.(*net.TCPListener)}, nil
}

// Accept waits for the next inbound connection or for ctx to be done
func (l *TCPListener) Accept(ctx context.Context) (Connection, error) {
	if err := l.ln.SetDeadline(time.Time{}); err != nil {
		return nil, translateListenErr(err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.SetDeadline(time.Now())
	})
	defer stop()

	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, translateListenErr(err)
	}
	tune(conn)
	return conn, nil
}

// Close closes the listener
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// Addr returns the bound address, with the real port when ":0" was requested
func (l *TCPListener) Addr() string {
	return l.ln.Addr().String()
}

// TCPDialer dials one TCP address
type TCPDialer struct {
	address string
	dialer  net.Dialer
}

// NewTCPDialer creates a dialer for address
func NewTCPDialer(address string) *TCPDialer {
	return &TCPDialer{
		address: address,
		dialer:  net.Dialer{Timeout: 30 * time.Second},
	}
}

// Dial makes one connection attempt
func (d *TCPDialer) Dial(ctx context.Context) (Connection, error) {
	conn, err := d.dialer.DialContext(ctx, "tcp", d.address)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tune(tcpConn)
	}
	return conn, nil
}

// Address returns the dialed address
func (d *TCPDialer) Address() string {
	return d.address
}

// tune disables Nagle so each relayed chunk leaves as soon as it is written
func tune(conn *net.TCPConn) {
	_ = conn.SetNoDelay(true)
}

func translateListenErr(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrListenerClosed
	}
	return err
}

var _ Listener = (*TCPListener)(nil)
var _ Dialer = (*TCPDialer)(nil)
