package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrListenerClosed is returned when trying to accept on a closed listener
	ErrListenerClosed = errors.New("listener is closed")
	// ErrDialerClosed is returned when trying to dial with a closed dialer
	ErrDialerClosed = errors.New("dialer is closed")
	// ErrConnectionClosed is returned when trying to read/write on a closed connection
	ErrConnectionClosed = errors.New("connection is closed")
)

// IsWebSocket reports whether address selects the WebSocket transport
func IsWebSocket(address string) bool {
	lower := strings.ToLower(address)
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}

// ListenAddress turns a bare port into a listen address on all interfaces
func ListenAddress(address string) string {
	if address == "" || IsWebSocket(address) || strings.Contains(address, ":") {
		return address
	}
	return ":" + address
}

// Listen binds address with the transport it selects
func Listen(ctx context.Context, address string) (Listener, error) {
	address = ListenAddress(address)
	if address == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	if IsWebSocket(address) {
		u, err := url.Parse(address)
		if err != nil {
			return nil, fmt.Errorf("failed to parse URL: %w", err)
		}
		return ListenWebSocket(ctx, u.Host, u.Path)
	}
	return ListenTCP(ctx, address)
}

// NewDialer returns a dialer for address with the transport it selects
func NewDialer(address string) (Dialer, error) {
	if address == "" {
		return nil, fmt.Errorf("dial address is required")
	}

	if IsWebSocket(address) {
		if _, err := url.Parse(address); err != nil {
			return nil, fmt.Errorf("failed to parse URL: %w", err)
		}
		return NewWebSocketDialer(address), nil
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	return NewTCPDialer(address), nil
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc struct {
	Addr string
	Fn   func(ctx context.Context) (Connection, error)
}

// Dial calls Fn
func (d DialerFunc) Dial(ctx context.Context) (Connection, error) {
	return d.Fn(ctx)
}

// Address returns Addr
func (d DialerFunc) Address() string {
	return d.Addr
}

var _ Dialer = DialerFunc{}
