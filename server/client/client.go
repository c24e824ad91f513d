package client

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/clock"
	"github.com/wireline/wireline/server/framing"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
)

// Built-in protocol routes handled by the client's local router. They
// cover connection housekeeping only; application routes are resolved by
// the owning server.
const (
	RoutePing      = "/ping"
	RoutePong      = "/pong"
	RouteHeartbeat = "/hb"
)

const (
	defaultMaxErrors       = 10
	defaultEventBufferSize = 64
)

// HandlerFunc handles a locally routed message. It may mutate the
// message's status (e.g. mark it done) and may return a response to be
// written back to the client.
type HandlerFunc func(msg *message.Message) *message.Message

type Params struct {
	Log   *logger.Logger
	Clock clock.Clock

	ID     identifiers.ClientID
	Socket Socket
	Codec  message.Codec

	// Framed is true for frame-oriented transports (WebSocket), where
	// each inbound frame is exactly one envelope and no framing buffer
	// is needed.
	Framed bool

	// Delimiter configures the framing buffer for stream transports.
	Delimiter []byte

	// MaxErrors is the transport error threshold that triggers the
	// terminal max-error event.
	MaxErrors int

	EventBufferSize int
}

// Client wraps one logical connection. It owns the framing buffer for
// stream transports, converts raw input into messages, runs the built-in
// ping/pong/heartbeat router, and exposes the uniform event contract on
// an ordered channel.
type Client struct {
	params Params

	log    *logger.Logger
	clock  clock.Clock
	rx     *framing.Buffer
	router map[string]HandlerFunc

	events chan Event
	closed chan struct{}

	maxErrorOnce sync.Once
	closeOnce    sync.Once

	mu             sync.Mutex
	name           string
	errorCount     int
	lastPingSentAt time.Time
	latency        time.Duration
	pinger         *Pinger
}

func New(params Params) *Client {
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	if params.MaxErrors == 0 {
		params.MaxErrors = defaultMaxErrors
	}

	if params.EventBufferSize == 0 {
		params.EventBufferSize = defaultEventBufferSize
	}

	c := &Client{
		params: params,
		log: params.Log.WithNamespaceAppended("client").WithCtx(logger.Ctx{
			"client_id": params.ID,
		}),
		clock:  params.Clock,
		events: make(chan Event, params.EventBufferSize),
		closed: make(chan struct{}),
	}

	if !params.Framed {
		c.rx = framing.NewBuffer(params.Delimiter)
	}

	c.router = map[string]HandlerFunc{
		RoutePing:      c.handlePing,
		RoutePong:      c.handlePong,
		RouteHeartbeat: c.handleHeartbeat,
	}

	return c
}

func (c *Client) ID() identifiers.ClientID {
	return c.params.ID
}

func (c *Client) Socket() Socket {
	return c.params.Socket
}

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.name
}

func (c *Client) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Summary is the serializable view of a client used in paginated registry
// listings.
type Summary struct {
	ID   identifiers.ClientID `json:"id"`
	Name string               `json:"name,omitempty"`
}

func (c *Client) Summary() Summary {
	return Summary{
		ID:   c.ID(),
		Name: c.Name(),
	}
}

// Events returns the ordered event channel. Events for one client are
// delivered strictly in arrival order; EventDisconnect is always last.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// HandleData feeds raw stream bytes into the framing buffer and routes
// every complete frame. Transports that deliver discrete frames call
// HandleFrame directly instead.
func (c *Client) HandleData(raw []byte) {
	if c.rx == nil {
		c.HandleFrame(raw)

		return
	}

	c.rx.Append(raw)

	for _, frame := range c.rx.Split() {
		c.HandleFrame(frame)
	}
}

// HandleFrame deserializes one frame and routes the resulting message.
// Malformed frames are logged and dropped locally; they are not transport
// errors and do not count towards the error threshold.
func (c *Client) HandleFrame(frame []byte) {
	msg, err := c.params.Codec.Deserialize(frame)
	if err != nil {
		c.log.Error("Deserialize frame", errors.Trace(err), nil)

		return
	}

	c.routeMessage(msg)
}

// routeMessage runs the local router when the route matches, writes back
// any response, and always emits the message event so the owning server
// can resolve application routes.
func (c *Client) routeMessage(msg message.Message) {
	if handler, ok := c.router[msg.Route]; ok {
		if response := handler(&msg); response != nil {
			if err := c.Write(*response); err != nil {
				c.HandleError(errors.Trace(err))
			}
		}
	}

	c.emit(Event{Type: EventMessage, Message: msg})
}

func (c *Client) handlePing(msg *message.Message) *message.Message {
	msg.SetDone()

	pong := message.New(RoutePong, nil)

	return &pong
}

func (c *Client) handlePong(msg *message.Message) *message.Message {
	msg.SetDone()

	c.mu.Lock()
	if !c.lastPingSentAt.IsZero() {
		c.latency = c.clock.Now().Sub(c.lastPingSentAt)
	}
	pinger := c.pinger
	c.mu.Unlock()

	if pinger != nil {
		pinger.ReceivePong()
	}

	return nil
}

func (c *Client) handleHeartbeat(msg *message.Message) *message.Message {
	msg.SetDone()

	hb := message.New(RouteHeartbeat, nil)

	return &hb
}

// Ping records the send time and writes a ping message. Latency is
// updated when the matching pong arrives.
func (c *Client) Ping() error {
	c.mu.Lock()
	c.lastPingSentAt = c.clock.Now()
	c.mu.Unlock()

	return errors.Trace(c.Write(message.New(RoutePing, nil)))
}

// Latency returns the last measured round-trip time.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.latency
}

// StartPinger begins sending periodic pings until ctx is cancelled.
func (c *Client) StartPinger(ctx context.Context, interval time.Duration) {
	pinger := NewPinger(ctx, c.clock, interval, func() {
		if err := c.Ping(); err != nil {
			c.HandleError(errors.Trace(err))
		}
	})

	c.mu.Lock()
	c.pinger = pinger
	c.mu.Unlock()
}

// Write serializes and sends a message on the underlying socket.
func (c *Client) Write(msg message.Message) error {
	payload, err := c.params.Codec.Serialize(msg)
	if err != nil {
		return errors.Annotatef(err, "write client: %s", c.params.ID)
	}

	err = c.params.Socket.Write(payload)

	return errors.Annotatef(err, "write client: %s", c.params.ID)
}

// HandleError records a transport error. Reaching the error threshold
// emits the terminal max-error event exactly once.
func (c *Client) HandleError(err error) {
	c.mu.Lock()
	c.errorCount++
	count := c.errorCount
	c.mu.Unlock()

	c.log.Warn("Transport error", logger.Ctx{
		"error":       err,
		"error_count": count,
	})

	c.emit(Event{Type: EventError, Err: err})

	if count >= c.params.MaxErrors {
		c.maxErrorOnce.Do(func() {
			c.emit(Event{Type: EventMaxError})
		})
	}
}

func (c *Client) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.errorCount
}

// Close closes the underlying socket and emits the final disconnect
// event. Subsequent calls are no-ops.
func (c *Client) Close(reason string) error {
	var err error

	c.closeOnce.Do(func() {
		err = c.params.Socket.Close()
		c.emit(Event{Type: EventDisconnect, Reason: reason})
		close(c.closed)
	})

	return errors.Trace(err)
}

// emit delivers an event in order. Events arriving after close are
// dropped; the consumer has already seen the disconnect.
func (c *Client) emit(event Event) {
	select {
	case <-c.closed:
	default:
		select {
		case c.events <- event:
		case <-c.closed:
		}
	}
}
