package client

import "net"

// Socket is the transport capability a Client needs from its underlying
// connection. There is one concrete implementation per transport: a TCP
// stream socket, a synthesized UDP virtual socket, and a WebSocket
// wrapper. Session and routing code depends only on this interface.
type Socket interface {
	// Write sends a raw payload. It returns an error instead of
	// panicking when the socket is not writable.
	Write(b []byte) error

	// Close closes the underlying transport. For UDP this only removes
	// the virtual socket from the mux registry, since there is no
	// transport-level connection to close.
	Close() error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
