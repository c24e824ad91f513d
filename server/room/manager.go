package room

import (
	"sync"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
)

// Manager is a capacity-bounded registry of rooms keyed by name. Rooms
// have no ban list of their own; bans apply to clients, inside each room.
type Manager struct {
	log      *logger.Logger
	maxRooms int

	mu    sync.RWMutex
	rooms map[identifiers.RoomID]*Room
	order []identifiers.RoomID
}

// NewManager creates a room registry. maxRooms of zero means unlimited.
func NewManager(log *logger.Logger, maxRooms int) *Manager {
	return &Manager{
		log:      log.WithNamespaceAppended("roommanager"),
		maxRooms: maxRooms,
		rooms:    map[identifiers.RoomID]*Room{},
	}
}

func (m *Manager) Add(r *Room) error {
	name := r.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[name]; ok {
		return errors.Annotatef(ErrRoomExists, "add room: %s", name)
	}

	if m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		m.log.Warn("Max rooms reached", logger.Ctx{
			"room":      name,
			"max_rooms": m.maxRooms,
		})

		return errors.Annotatef(ErrTooManyRooms, "add room: %s", name)
	}

	m.rooms[name] = r
	m.order = append(m.order, name)

	return nil
}

func (m *Manager) Get(name identifiers.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[name]

	return r, ok
}

func (m *Manager) Remove(name identifiers.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[name]; !ok {
		return false
	}

	delete(m.rooms, name)

	for i, existing := range m.order {
		if existing == name {
			m.order = append(m.order[:i], m.order[i+1:]...)

			break
		}
	}

	return true
}

func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}

// All returns a snapshot of rooms in insertion order.
func (m *Manager) All() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]*Room, 0, len(m.rooms))

	for _, name := range m.order {
		ret = append(ret, m.rooms[name])
	}

	return ret
}

// Public returns summaries of all non-hidden rooms.
func (m *Manager) Public() []Summary {
	all := m.All()

	ret := make([]Summary, 0, len(all))

	for _, r := range all {
		if !r.Hidden() {
			ret = append(ret, r.Summary())
		}
	}

	return ret
}

// RoomsOf returns the rooms the client is currently a member of, in room
// insertion order.
func (m *Manager) RoomsOf(id identifiers.ClientID) []*Room {
	var ret []*Room

	for _, r := range m.All() {
		if r.Has(id) {
			ret = append(ret, r)
		}
	}

	return ret
}

// RemoveClient removes the client from every room it is a member of.
// Used when a client disconnects or is evicted server-wide.
func (m *Manager) RemoveClient(id identifiers.ClientID) {
	for _, r := range m.All() {
		r.ClientManager.Remove(id)
	}
}
