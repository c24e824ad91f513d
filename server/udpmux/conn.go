package udpmux

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/logger"
)

// Conn is a virtual connection: a remote address plus a send path through
// the shared packet conn. It is not a real connection handle; closing it
// only removes it from the mux registry.
type Conn interface {
	net.Conn
	Done() <-chan struct{}
}

type conn struct {
	log *logger.Logger

	conn  net.PacketConn
	laddr net.Addr
	raddr net.Addr

	readChan             chan []byte
	closeConnRequestChan chan closeConnRequest
	torndown             chan struct{}
}

var _ Conn = &conn{}

func (c *conn) Close() error {
	req := closeConnRequest{
		conn:    c,
		errChan: make(chan error, 1),
	}

	select {
	case c.closeConnRequestChan <- req:
	case <-c.torndown:
		return nil
	}

	err := <-req.errChan

	return errors.Trace(err)
}

// close must only be called from the mux loop.
func (c *conn) close() {
	close(c.readChan)
	close(c.torndown)
}

func (c *conn) Done() <-chan struct{} {
	return c.torndown
}

func (c *conn) Read(b []byte) (int, error) {
	buf, ok := <-c.readChan
	if !ok {
		return 0, errors.Annotatef(io.ErrClosedPipe, "raddr: %s", c.raddr)
	}

	copy(b, buf)

	return len(buf), nil
}

func (c *conn) Write(b []byte) (int, error) {
	select {
	case <-c.torndown:
		return 0, errors.Annotatef(io.ErrClosedPipe, "raddr: %s", c.raddr)
	default:
		i, err := c.conn.WriteTo(b, c.raddr)

		return i, errors.Annotate(err, "write")
	}
}

func (c *conn) LocalAddr() net.Addr {
	return c.laddr
}

func (c *conn) RemoteAddr() net.Addr {
	return c.raddr
}

// Deadlines are not supported on virtual connections.
func (c *conn) SetDeadline(t time.Time) error {
	return nil
}

func (c *conn) SetReadDeadline(t time.Time) error {
	return nil
}

func (c *conn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (c *conn) String() string {
	return fmt.Sprintf("udpmux [%s %s]", c.laddr, c.raddr)
}
