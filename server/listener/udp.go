package listener

import (
	"net"
	"sync"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/udpmux"
)

const (
	udpReadChanSize   = 64
	udpReadBufferSize = 128
)

// UDP synthesizes client identity from the remote (address, port) pair.
// The mux keeps one virtual connection per source; clients persist until
// explicitly disconnected or kicked, since UDP has no close signal.
type UDP struct {
	params Params
	log    *logger.Logger
	codec  *message.DelimitedCodec

	mu  sync.Mutex
	mux *udpmux.Mux
}

var _ Listener = &UDP{}

func NewUDP(params Params) *UDP {
	return &UDP{
		params: params,
		log:    params.Log.WithNamespaceAppended("udp"),
		codec:  message.NewDelimitedCodec(params.Delimiter),
	}
}

func (l *UDP) Listen() error {
	pc, err := net.ListenPacket("udp", l.params.BindAddr)
	if err != nil {
		return errors.Annotatef(err, "listen udp: %s", l.params.BindAddr)
	}

	mux := udpmux.New(udpmux.Params{
		Log:            l.params.Log,
		Conn:           pc,
		ReadChanSize:   udpReadChanSize,
		ReadBufferSize: udpReadBufferSize,
	})

	l.mu.Lock()
	l.mux = mux
	l.mu.Unlock()

	l.log.Info("Listen", logger.Ctx{
		"local_addr": pc.LocalAddr(),
	})

	return nil
}

// AcceptClient blocks until a datagram arrives from a previously unseen
// source. Datagrams from known sources are routed to the existing client
// by the mux and never produce a second accept.
func (l *UDP) AcceptClient() (*client.Client, error) {
	l.mu.Lock()
	mux := l.mux
	l.mu.Unlock()

	if mux == nil {
		return nil, errors.Trace(errNotListening)
	}

	conn, err := mux.AcceptConn()
	if err != nil {
		return nil, errors.Annotate(err, "accept udp")
	}

	c := client.New(client.Params{
		Log:       l.params.Log,
		ID:        identifiers.ClientID(conn.RemoteAddr().String()),
		Socket:    &streamSocket{conn: conn},
		Codec:     l.codec,
		Delimiter: l.codec.Delimiter(),
		MaxErrors: l.params.MaxErrors,
	})

	go readPump(conn, c)

	return c, nil
}

func (l *UDP) Close() error {
	l.mu.Lock()
	mux := l.mux
	l.mux = nil
	l.mu.Unlock()

	if mux == nil {
		return nil
	}

	return errors.Annotate(mux.Close(), "close udp")
}

func (l *UDP) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mux == nil {
		return nil
	}

	return l.mux.LocalAddr()
}
