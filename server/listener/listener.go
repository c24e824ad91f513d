// Package listener provides the transport acceptors. Each variant binds a
// transport, accepts or synthesizes connections, and hands out fully
// wired clients speaking the uniform envelope protocol.
package listener

import (
	"net"
	"sync"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/logger"
)

// Listener is the pluggable acceptor abstraction. The lifecycle is
// idle -> listening -> closed; Listen binds the transport and AcceptClient
// blocks until the next logical connection.
type Listener interface {
	Listen() error
	AcceptClient() (*client.Client, error)
	Close() error
	Addr() net.Addr
}

// Params are shared by all listener variants.
type Params struct {
	Log *logger.Logger

	// BindAddr is the "host:port" to bind. Unused by the WebSocket
	// variant when it is mounted on an external HTTP server.
	BindAddr string

	// Delimiter terminates each envelope on stream transports.
	Delimiter []byte

	// MaxErrors is the per-client transport error threshold.
	MaxErrors int
}

var errNotListening = errors.New("listener not listening")

const readBufferSize = 8192

// streamSocket adapts a net.Conn to the client socket contract. Both the
// TCP variant and the UDP virtual connections use it. Writes are
// serialized so concurrent broadcasts cannot interleave frames.
type streamSocket struct {
	mu   sync.Mutex
	conn net.Conn
}

var _ client.Socket = &streamSocket{}

func (s *streamSocket) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Write(b)

	return errors.Annotate(err, "write")
}

func (s *streamSocket) Close() error {
	return errors.Annotate(s.conn.Close(), "close")
}

func (s *streamSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *streamSocket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// readPump reads raw bytes from conn into the client until the conn
// fails, then closes the client with the failure reason. Frame order is
// preserved because a single goroutine feeds the framing buffer.
func readPump(conn net.Conn, c *client.Client) {
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			_ = c.Close(err.Error())

			return
		}

		c.HandleData(buf[:n])
	}
}
