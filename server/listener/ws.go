package listener

import (
	"context"
	e "errors"
	"io"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/juju/errors"
	"nhooyr.io/websocket"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/uuid"
)

const wsWriteTimeout = 5 * time.Second

// WebSocket accepts clients over HTTP upgrades. Each WebSocket frame is
// exactly one envelope, so clients carry no framing buffer. The listener
// either owns its own HTTP server (BindAddr set) or is mounted as a
// handler on an externally supplied router, in which case it attaches no
// generic HTTP handling of its own.
type WebSocket struct {
	params Params
	log    *logger.Logger
	codec  message.ByteSerializer

	clients chan *client.Client
	ctx     context.Context
	cancel  context.CancelFunc

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

var _ Listener = &WebSocket{}
var _ http.Handler = &WebSocket{}

func NewWebSocket(params Params) *WebSocket {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocket{
		params:  params,
		log:     params.Log.WithNamespaceAppended("ws"),
		clients: make(chan *client.Client),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Listen binds the listener's own HTTP server. When BindAddr is empty the
// listener expects to be mounted on an external server and Listen is a
// no-op.
func (l *WebSocket) Listen() error {
	if l.params.BindAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", l.params.BindAddr)
	if err != nil {
		return errors.Annotatef(err, "listen ws: %s", l.params.BindAddr)
	}

	router := chi.NewRouter()
	router.Mount("/ws", l)

	srv := &http.Server{Handler: router}

	l.mu.Lock()
	l.ln = ln
	l.srv = srv
	l.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !e.Is(err, http.ErrServerClosed) {
			l.log.Error("Serve", errors.Trace(err), nil)
		}
	}()

	l.log.Info("Listen", logger.Ctx{
		"local_addr": ln.Addr(),
	})

	return nil
}

// ServeHTTP upgrades the request and runs the connection's read pump. The
// client id is taken from the last path segment, or generated when the
// path carries none.
func (l *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		l.log.Error("Accept websocket", errors.Trace(err), nil)

		return
	}

	clientID := path.Base(r.URL.Path)
	if clientID == "" || clientID == "." || clientID == "/" || clientID == "ws" {
		clientID = uuid.New()
	}

	defer conn.Close(websocket.StatusInternalError, "")

	c := client.New(client.Params{
		Log:    l.params.Log,
		ID:     identifiers.ClientID(clientID),
		Socket: newWSSocket(l.ctx, conn, r),
		Codec:  l.codec,
		Framed: true,

		MaxErrors: l.params.MaxErrors,
	})

	l.log.Info("New websocket connection", logger.Ctx{
		"client_id": clientID,
	})

	select {
	case l.clients <- c:
	case <-l.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server closed")

		return
	}

	for {
		_, data, err := conn.Read(l.ctx)
		if err != nil {
			reason := "closed"

			switch {
			case e.Is(err, context.Canceled):
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
			case websocket.CloseStatus(err) == websocket.StatusGoingAway:
			default:
				reason = err.Error()
			}

			_ = c.Close(reason)

			return
		}

		c.HandleFrame(data)
	}
}

func (l *WebSocket) AcceptClient() (*client.Client, error) {
	select {
	case c := <-l.clients:
		return c, nil
	case <-l.ctx.Done():
		return nil, errors.Annotate(io.ErrClosedPipe, "accept ws")
	}
}

func (l *WebSocket) Close() error {
	l.cancel()

	l.mu.Lock()
	srv := l.srv
	l.srv = nil
	l.ln = nil
	l.mu.Unlock()

	if srv == nil {
		return nil
	}

	return errors.Annotate(srv.Close(), "close ws")
}

func (l *WebSocket) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}

// wsAddr satisfies net.Addr for the HTTP-level addresses of an upgraded
// connection.
type wsAddr struct {
	addr string
}

func (a wsAddr) Network() string {
	return "websocket"
}

func (a wsAddr) String() string {
	return a.addr
}

type wsSocket struct {
	ctx   context.Context
	conn  *websocket.Conn
	laddr net.Addr
	raddr net.Addr
}

var _ client.Socket = &wsSocket{}

func newWSSocket(ctx context.Context, conn *websocket.Conn, r *http.Request) *wsSocket {
	return &wsSocket{
		ctx:   ctx,
		conn:  conn,
		laddr: wsAddr{addr: r.Host},
		raddr: wsAddr{addr: r.RemoteAddr},
	}
}

func (s *wsSocket) Write(b []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, wsWriteTimeout)
	defer cancel()

	return errors.Annotate(s.conn.Write(ctx, websocket.MessageText, b), "write")
}

func (s *wsSocket) Close() error {
	return errors.Annotate(s.conn.Close(websocket.StatusNormalClosure, ""), "close")
}

func (s *wsSocket) LocalAddr() net.Addr {
	return s.laddr
}

func (s *wsSocket) RemoteAddr() net.Addr {
	return s.raddr
}
