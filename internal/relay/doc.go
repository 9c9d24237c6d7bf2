// Package relay provides the socket layer under the relay engine.
//
// It defines small interfaces for the two ways an endpoint obtains a
// connection, so the pumps and supervisors never depend on a concrete
// transport:
//
// Connection is a bidirectional stream implementing io.Reader, io.Writer and
// io.Closer. Closing it from one goroutine unblocks a Read or Write pending in
// another, which is how a session is torn down.
//
// Listener binds once and hands out inbound connections one Accept at a time.
//
// Dialer makes single connection attempts against one fixed address. Retrying
// is left to the caller.
//
// # Transports
//
// Plain addresses ("host:port", or a bare port for listeners) use TCP.
// Addresses of the form "ws://host:port/path" use a WebSocket in which every
// Write becomes one binary message and every Read returns at most one message.
//
// # Memory Implementation
//
// MemoryListener and MemoryDialer connect through in-process pipes. A pipe Read
// returns at most the bytes of one Write, which keeps record boundaries
// intact and makes relay tests deterministic.
//
// # Usage Example
//
//	listener, err := relay.Listen(ctx, "9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer listener.Close()
//
//	conn, err := listener.Accept(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
package relay
