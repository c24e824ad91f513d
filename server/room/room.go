package room

import (
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/registry"
)

// Room-scoped routes, layered on top of the registry's member routes.
const (
	RouteBroadcast   = "/broadcast"
	RouteLock        = "/lock"
	RouteUnlock      = "/unlock"
	RoutePrivatize   = "/privatize"
	RouteDeprivatize = "/deprivatize"
)

var (
	ErrRoomExists    = errors.New("room already exists")
	ErrTooManyRooms  = errors.New("too many rooms")
	ErrWrongPassword = errors.New("wrong password")
)

// Room is a named, ownable, optionally password-protected sub-registry of
// clients with scoped broadcast. Ownership is identity only; there is no
// token or signature behind it.
type Room struct {
	*registry.ClientManager

	log       *logger.Logger
	name      identifiers.RoomID
	owner     identifiers.ClientID
	createdAt time.Time

	mu       sync.Mutex
	password string
	hidden   bool
	seq      uint64
}

type Params struct {
	Log   *logger.Logger
	Name  identifiers.RoomID
	Owner identifiers.ClientID

	// Password empty means the room is unlocked.
	Password string

	// MaxClients zero means unlimited.
	MaxClients int
}

func New(params Params) *Room {
	log := params.Log.WithNamespaceAppended("room").WithCtx(logger.Ctx{
		"room": params.Name,
	})

	return &Room{
		ClientManager: registry.NewClientManager(log, params.MaxClients),
		log:           log,
		name:          params.Name,
		owner:         params.Owner,
		createdAt:     time.Now(),
		password:      params.Password,
	}
}

func (r *Room) Name() identifiers.RoomID {
	return r.name
}

func (r *Room) Owner() identifiers.ClientID {
	return r.owner
}

// IsOwner is a plain identity check against the stored owner id.
func (r *Room) IsOwner(id identifiers.ClientID) bool {
	return r.owner == id
}

func (r *Room) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.password != ""
}

func (r *Room) Hidden() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.hidden
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Join admits the client when it is not banned and either the password
// matches or the joiner owns the room. Capacity is enforced by the
// underlying registry.
func (r *Room) Join(c *client.Client, password string) error {
	id := c.ID()

	if r.IsBanned(id) {
		return errors.Annotatef(registry.ErrClientBanned, "join room: %s", r.name)
	}

	r.mu.Lock()
	match := r.password == "" || r.password == password
	r.mu.Unlock()

	if !match && !r.IsOwner(id) {
		return errors.Annotatef(ErrWrongPassword, "join room: %s", r.name)
	}

	return errors.Trace(r.Add(c))
}

func (r *Room) lock(password string) {
	r.mu.Lock()
	r.password = password
	r.mu.Unlock()
}

func (r *Room) setHidden(hidden bool) {
	r.mu.Lock()
	r.hidden = hidden
	r.mu.Unlock()
}

func (r *Room) nextSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++

	return r.seq
}

// Summary is the serializable view of a room used in public listings.
type Summary struct {
	Name      identifiers.RoomID   `json:"name"`
	Owner     identifiers.ClientID `json:"owner"`
	Locked    bool                 `json:"locked"`
	Clients   int                  `json:"clients"`
	CreatedAt int64                `json:"createdAt"`
}

func (r *Room) Summary() Summary {
	return Summary{
		Name:      r.name,
		Owner:     r.owner,
		Locked:    r.Locked(),
		Clients:   r.Size(),
		CreatedAt: r.createdAt.UnixMilli(),
	}
}

// Handle dispatches a room-scoped route for the given sender. It reports
// whether the route belongs to this room's router; a non-nil response is
// written back to the sender by the caller. Authorization violations are
// returned as error-status messages, never as dropped connections.
func (r *Room) Handle(c *client.Client, msg *message.Message) (*message.Message, bool) {
	switch msg.Route {
	case RouteBroadcast:
		return r.handleBroadcast(c, msg), true
	case RouteLock:
		return r.handleOwnerOnly(c, msg, func() {
			r.lock(msg.DataString("password"))
		}), true
	case RouteUnlock:
		return r.handleOwnerOnly(c, msg, func() {
			r.lock("")
		}), true
	case RoutePrivatize:
		return r.handleOwnerOnly(c, msg, func() {
			r.setHidden(true)
		}), true
	case RouteDeprivatize:
		return r.handleOwnerOnly(c, msg, func() {
			r.setHidden(false)
		}), true
	default:
		return nil, false
	}
}

// handleBroadcast fans a member's message out to the whole room. The
// server stamps the sender identity and a monotonically increasing
// per-room message id before delivery.
func (r *Room) handleBroadcast(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	if !r.Has(c.ID()) {
		response := message.NewError(RouteBroadcast, "not a member of room: "+r.name.String())

		return &response
	}

	data := map[string]interface{}{}

	for k, v := range msg.DataMap() {
		data[k] = v
	}

	data["user"] = c.ID().String()
	data["id"] = r.nextSeq()
	data["room"] = r.name.String()

	if err := r.Broadcast(message.New(RouteBroadcast, data)); err != nil {
		// Partial delivery failure. Already collected per member; the
		// broadcast itself still went out to the healthy members.
		r.log.Error("Broadcast", errors.Trace(err), logger.Ctx{
			"client_id": c.ID(),
		})
	}

	return nil
}

func (r *Room) handleOwnerOnly(c *client.Client, msg *message.Message, apply func()) *message.Message {
	msg.SetDone()

	if !r.IsOwner(c.ID()) {
		response := message.NewError(msg.Route, "not the owner of room: "+r.name.String())

		return &response
	}

	apply()

	response := message.New(msg.Route, nil)

	return &response
}
