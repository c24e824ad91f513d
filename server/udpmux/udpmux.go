// Package udpmux synthesizes persistent connections on top of a
// connectionless UDP socket. Each remote (address, port) pair maps to one
// virtual connection; the first datagram from an unknown source creates
// the connection and the datagram itself is delivered to it. Connections
// are never purged automatically, because UDP has no transport-level
// close signal; they live until explicitly closed.
package udpmux

import (
	"io"
	"net"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/logger"
)

const DefaultMTU uint32 = 8192

// Mux owns the underlying packet conn and the registry of virtual
// connections. All registry access happens on a single loop goroutine, so
// the map needs no locking.
type Mux struct {
	params *Params

	log *logger.Logger

	getConnRequestChan   chan getConnRequest
	newConnChan          chan Conn
	closeConnRequestChan chan closeConnRequest
	datagramChan         chan datagram

	teardownChan chan struct{}
	torndownChan chan struct{}
}

type Params struct {
	Log  *logger.Logger
	Conn net.PacketConn

	MTU            uint32
	ReadChanSize   int
	ReadBufferSize int
}

func New(params Params) *Mux {
	m := &Mux{
		params: &params,

		log: params.Log.WithNamespaceAppended("udpmux"),

		getConnRequestChan:   make(chan getConnRequest),
		newConnChan:          make(chan Conn),
		closeConnRequestChan: make(chan closeConnRequest),
		datagramChan:         make(chan datagram, params.ReadBufferSize),

		teardownChan: make(chan struct{}, 1),
		torndownChan: make(chan struct{}),
	}

	if m.params.MTU == 0 {
		m.params.MTU = DefaultMTU
	}

	go m.start()

	return m
}

func (m *Mux) LocalAddr() net.Addr {
	return m.params.Conn.LocalAddr()
}

// AcceptConn blocks until a datagram from a previously unseen source
// creates a new virtual connection. Exactly one accept fires per source.
func (m *Mux) AcceptConn() (Conn, error) {
	conn, ok := <-m.newConnChan
	if !ok {
		return nil, errors.Annotate(io.ErrClosedPipe, "accept")
	}

	m.log.Debug("Accept conn", logger.Ctx{
		"remote_addr": conn.RemoteAddr(),
	})

	return conn, nil
}

// GetConn creates a virtual connection for raddr before any datagram has
// arrived from it. Used to reach out to a known remote first.
func (m *Mux) GetConn(raddr net.Addr) (Conn, error) {
	req := getConnRequest{
		raddr:    raddr,
		connChan: make(chan Conn, 1),
		errChan:  make(chan error, 1),
	}

	select {
	case m.getConnRequestChan <- req:
	case <-m.torndownChan:
		return nil, errors.Annotate(io.ErrClosedPipe, "get conn")
	}

	select {
	case err := <-req.errChan:
		return nil, errors.Trace(err)
	case conn := <-req.connChan:
		return conn, nil
	}
}

func (m *Mux) start() {
	readingDone := make(chan struct{})

	go func() {
		defer close(readingDone)
		m.startReading()
	}()

	conns := map[string]*conn{}

	defer func() {
		_ = m.params.Conn.Close()

		<-readingDone

		for _, c := range conns {
			c.close()
		}

		close(m.newConnChan)
		close(m.torndownChan)
	}()

	createConn := func(raddr net.Addr) *conn {
		return &conn{
			log: m.log.WithCtx(logger.Ctx{
				"remote_addr": raddr,
			}),

			conn:  m.params.Conn,
			laddr: m.params.Conn.LocalAddr(),
			raddr: raddr,

			readChan:             make(chan []byte, m.params.ReadChanSize),
			closeConnRequestChan: m.closeConnRequestChan,
			torndown:             make(chan struct{}),
		}
	}

	handleGetConn := func(req getConnRequest) {
		raddrStr := req.raddr.String()

		if _, ok := conns[raddrStr]; ok {
			req.errChan <- errors.Annotatef(ErrConnAlreadyExists, "raddr: %s", raddrStr)

			return
		}

		c := createConn(req.raddr)
		conns[raddrStr] = c

		req.connChan <- c
	}

	handleDatagram := func(pkt datagram) {
		raddrStr := pkt.raddr.String()

		c, ok := conns[raddrStr]
		if !ok {
			c = createConn(pkt.raddr)
			conns[raddrStr] = c
			m.newConnChan <- c
		}

		select {
		case c.readChan <- pkt.bytes:
		default:
			m.log.Debug("Dropped datagram", logger.Ctx{
				"remote_addr": c.raddr,
			})
		}
	}

	handleClose := func(req closeConnRequest) {
		raddrStr := req.conn.raddr.String()

		c, ok := conns[raddrStr]
		if !ok {
			req.errChan <- errors.Annotatef(ErrConnNotFound, "raddr: %s", raddrStr)

			return
		}

		if c == req.conn {
			delete(conns, raddrStr)
			c.close()
		}

		req.errChan <- nil
	}

	for {
		select {
		case req := <-m.getConnRequestChan:
			handleGetConn(req)
		case pkt := <-m.datagramChan:
			handleDatagram(pkt)
		case req := <-m.closeConnRequestChan:
			handleClose(req)
		case <-m.teardownChan:
			return
		}
	}
}

func (m *Mux) startReading() {
	buf := make([]byte, m.params.MTU)

	for {
		i, raddr, err := m.params.Conn.ReadFrom(buf)
		if err != nil {
			m.log.Warn("Read remote data", logger.Ctx{
				"error": err,
			})

			return
		}

		pkt := datagram{
			bytes: make([]byte, i),
			raddr: raddr,
		}

		copy(pkt.bytes, buf[:i])

		select {
		case m.datagramChan <- pkt:
		case <-m.torndownChan:
			return
		}
	}
}

// CloseChannel is closed once the mux has fully torn down.
func (m *Mux) CloseChannel() <-chan struct{} {
	return m.torndownChan
}

func (m *Mux) Close() error {
	select {
	case m.teardownChan <- struct{}{}:
	case <-m.torndownChan:
	}

	for range m.newConnChan {
		// Drain in case a new connection is blocking on send.
	}

	<-m.torndownChan

	return nil
}

type datagram struct {
	bytes []byte
	raddr net.Addr
}

type getConnRequest struct {
	raddr net.Addr

	connChan chan Conn
	errChan  chan error
}

type closeConnRequest struct {
	conn    *conn
	errChan chan error
}
