package listener

import (
	"net"
	"sync"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
)

// TCP accepts native stream connections. One accepted conn maps 1:1 to
// one client; envelopes are delimiter-framed on the stream.
type TCP struct {
	params Params
	log    *logger.Logger
	codec  *message.DelimitedCodec

	mu sync.Mutex
	ln net.Listener
}

var _ Listener = &TCP{}

func NewTCP(params Params) *TCP {
	return &TCP{
		params: params,
		log:    params.Log.WithNamespaceAppended("tcp"),
		codec:  message.NewDelimitedCodec(params.Delimiter),
	}
}

func (l *TCP) Listen() error {
	ln, err := net.Listen("tcp", l.params.BindAddr)
	if err != nil {
		return errors.Annotatef(err, "listen tcp: %s", l.params.BindAddr)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.log.Info("Listen", logger.Ctx{
		"local_addr": ln.Addr(),
	})

	return nil
}

func (l *TCP) AcceptClient() (*client.Client, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	if ln == nil {
		return nil, errors.Trace(errNotListening)
	}

	conn, err := ln.Accept()
	if err != nil {
		return nil, errors.Annotate(err, "accept tcp")
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

func (l *TCP) Close() error {
	l.mu.Lock()
	ln := l.ln
	l.ln = nil
	l.mu.Unlock()

	if ln == nil {
		return nil
	}

	return errors.Annotate(ln.Close(), "close tcp")
}

func (l *TCP) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}
