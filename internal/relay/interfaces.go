package relay

import (
	"context"
	"io"
	"net"
)

// Connection is one live bidirectional byte stream. Close shuts down both
// directions and unblocks any pending Read or Write.
type Connection interface {
	io.ReadWriteCloser

	// RemoteAddr returns the address of the other end
	RemoteAddr() net.Addr
}

// Listener accepts inbound connections on a bound address
type Listener interface {
	// Accept waits for and returns the next connection to the listener
	Accept(ctx context.Context) (Connection, error)

	// Close closes the listener
	// Any blocked Accept operations will be unblocked and return errors
	Close() error

	// Addr returns the listener's network address
	Addr() string
}

// Dialer establishes outbound connections to one fixed address
type Dialer interface {
	// Dial makes a single connection attempt
	Dial(ctx context.Context) (Connection, error)

	// Address returns the address being dialed
	Address() string
}
