package server

import (
	"context"
	e "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/clock"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/listener"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/registry"
	"github.com/wireline/wireline/server/room"
)

type Params struct {
	Log     *logger.Logger
	Clock   clock.Clock
	Config  Config
	Version string
}

// Server composes one transport listener, the server-wide client
// registry, the room registry and the application route table. It also
// owns the HTTP surface with the probe and metrics endpoints; the
// WebSocket transport shares that surface.
type Server struct {
	params Params
	log    *logger.Logger
	clock  clock.Clock

	listener listener.Listener
	clients  *registry.ClientManager
	rooms    *room.Manager
	router   map[string]routeHandler
	uptime   *UptimeMonitor
	mux      *Mux
}

func New(params Params) *Server {
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	log := params.Log.WithNamespaceAppended("server")

	cfg := params.Config

	listenerParams := listener.Params{
		Log:       params.Log,
		BindAddr:  net.JoinHostPort(cfg.Transport.BindHost, strconv.Itoa(cfg.Transport.BindPort)),
		Delimiter: []byte(cfg.Transport.Delimiter),
		MaxErrors: cfg.Transport.MaxErrors,
	}

	var (
		transport listener.Listener
		wsHandler http.Handler
	)

	switch cfg.Transport.Type {
	case TransportTypeUDP:
		transport = listener.NewUDP(listenerParams)
	case TransportTypeWS:
		// The WebSocket listener is mounted on the shared HTTP surface
		// rather than binding its own port.
		listenerParams.BindAddr = ""
		ws := listener.NewWebSocket(listenerParams)
		transport = ws
		wsHandler = ws
	default:
		transport = listener.NewTCP(listenerParams)
	}

	s := &Server{
		params:   params,
		log:      log,
		clock:    params.Clock,
		listener: transport,
		clients:  registry.NewClientManager(log, cfg.MaxClients),
		rooms:    room.NewManager(params.Log, cfg.MaxRooms),
		uptime:   NewUptimeMonitor(params.Clock),
	}

	s.router = s.routes()

	s.mux = NewMux(MuxParams{
		Log:        params.Log,
		Prometheus: cfg.Prometheus,
		Uptime:     s.uptime,
		WSHandler:  wsHandler,
		Version:    params.Version,
	})

	return s
}

// Handler exposes the HTTP surface, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the bound transport address, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start binds the transport and the HTTP surface and serves until ctx is
// cancelled or a listener fails fatally. On return everything has been
// torn down.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := s.params.Config

	if err := s.listener.Listen(); err != nil {
		return errors.Trace(err)
	}

	httpAddr := net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.BindPort))

	httpLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = s.listener.Close()

		return errors.Annotatef(err, "listen http: %s", httpAddr)
	}

	httpServer := NewHTTPServer(HTTPServerParams{
		TLSCertFile: cfg.TLS.Cert,
		TLSKeyFile:  cfg.TLS.Key,
	}, s.mux)

	s.uptime.Start()

	errChan := make(chan error, 2)

	go func() {
		err := httpServer.Start(httpLn)
		if err != nil && !e.Is(errors.Cause(err), http.ErrServerClosed) {
			errChan <- errors.Trace(err)
		}
	}()

	go s.acceptLoop(ctx, errChan)

	s.log.Info("Server started", logger.Ctx{
		"http_addr":      httpLn.Addr(),
		"transport":      cfg.Transport.Type,
		"transport_addr": s.listener.Addr(),
	})

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errChan:
	}

	cancel()
	s.stop(httpServer)

	return errors.Trace(err)
}

// stop disconnects every client, empties the registries and closes both
// listeners.
func (s *Server) stop(httpServer *HTTPServer) {
	for _, c := range s.clients.Clear() {
		_ = c.Close("server shutting down")
	}

	for _, r := range s.rooms.All() {
		r.Clear()
		s.rooms.Remove(r.Name())
	}

	prometheusRoomsActive.Set(0)

	_ = s.listener.Close()
	_ = httpServer.Stop()

	s.uptime.Stop()

	s.log.Info("Server stopped", nil)
}

func (s *Server) acceptLoop(ctx context.Context, errChan chan<- error) {
	for {
		c, err := s.listener.AcceptClient()
		if err != nil {
			select {
			case <-ctx.Done():
			case errChan <- errors.Trace(err):
			}

			return
		}

		go s.serveClient(ctx, c)
	}
}

// serveClient enrolls the client and consumes its event channel until it
// disconnects. Admission failures are answered with an error message
// before the connection is dropped.
func (s *Server) serveClient(ctx context.Context, c *client.Client) {
	prometheusConnTotal.Inc()

	if err := s.clients.Add(c); err != nil {
		prometheusConnRejectedTotal.Inc()

		reason := errors.Cause(err).Error()

		_ = c.Write(message.NewError("/connect", reason))
		_ = c.Close(reason)

		s.drain(c)

		return
	}

	prometheusConnActive.Inc()
	connectedAt := s.clock.Now()

	defer func() {
		prometheusConnActive.Dec()
		prometheusConnDuration.Observe(s.clock.Now().Sub(connectedAt).Seconds())
	}()

	s.log.Info("Client connected", logger.Ctx{
		"client_id":   c.ID(),
		"remote_addr": c.Socket().RemoteAddr(),
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()

	interval := time.Duration(s.params.Config.Transport.PingIntervalMS) * time.Millisecond
	if interval > 0 {
		c.StartPinger(pingCtx, interval)
	}

	if err := c.Ping(); err != nil {
		c.HandleError(errors.Trace(err))
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.Close("server shutting down")
			s.cleanupClient(c)

			return
		case event := <-c.Events():
			switch event.Type {
			case client.EventMessage:
				s.routeMessage(c, event.Message)
			case client.EventMaxError:
				_ = c.Close("too many errors")
			case client.EventDisconnect:
				s.cleanupClient(c)

				s.log.Info("Client disconnected", logger.Ctx{
					"client_id": c.ID(),
					"reason":    event.Reason,
				})

				return
			default:
			}
		}
	}
}

// drain consumes events of a rejected client until its disconnect so the
// event channel's producer side never blocks.
func (s *Server) drain(c *client.Client) {
	for event := range c.Events() {
		if event.Type == client.EventDisconnect {
			return
		}
	}
}

func (s *Server) cleanupClient(c *client.Client) {
	s.clients.Remove(c.ID())
	s.rooms.RemoveClient(c.ID())
}

// routeMessage resolves an inbound message. Built-in routes are already
// done by the client's own router; server routes come next, then the
// room routers. Unknown routes are logged and dropped.
func (s *Server) routeMessage(c *client.Client, msg message.Message) {
	if msg.IsDone() {
		return
	}

	prometheusMessagesRoutedTotal.Inc()

	if handler, ok := s.router[msg.Route]; ok {
		s.respond(c, handler(c, &msg))

		return
	}

	if isRoomRoute(msg.Route) {
		s.routeRoomMessage(c, &msg)

		return
	}

	s.log.Error("Unknown route", errors.Errorf("no handler for route: %s", msg.Route), logger.Ctx{
		"client_id": c.ID(),
		"route":     msg.Route,
	})
}

// routeRoomMessage dispatches a room-scoped route. An explicit room name
// in the payload wins; otherwise the sender's rooms are tried in room
// insertion order and the first one claims the message.
func (s *Server) routeRoomMessage(c *client.Client, msg *message.Message) {
	if name := msg.DataString("room"); name != "" {
		r, ok := s.rooms.Get(identifiers.RoomID(name))
		if !ok {
			response := message.NewError(msg.Route, "room not found: "+name)
			s.respond(c, &response)

			return
		}

		response, _ := r.Handle(c, msg)
		s.respond(c, response)

		return
	}

	for _, r := range s.rooms.RoomsOf(c.ID()) {
		if response, handled := r.Handle(c, msg); handled {
			s.respond(c, response)

			return
		}
	}

	response := message.NewError(msg.Route, "not a member of any room")
	s.respond(c, &response)
}

func (s *Server) respond(c *client.Client, response *message.Message) {
	if response == nil {
		return
	}

	if err := c.Write(*response); err != nil {
		c.HandleError(errors.Trace(err))
	}
}

func isRoomRoute(route string) bool {
	switch route {
	case room.RouteBroadcast, room.RouteLock, room.RouteUnlock,
		room.RoutePrivatize, room.RouteDeprivatize:
		return true
	default:
		return false
	}
}
