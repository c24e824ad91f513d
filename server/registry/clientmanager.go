package registry

import (
	"sync"

	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/multierr"
)

// Stats are lifetime counters of a ClientManager.
type Stats struct {
	// PeakCount is the largest simultaneous member count observed.
	PeakCount int
	// TotalAdded counts every successful admission.
	TotalAdded uint64
}

// ClientManager is a capacity-bounded, ban-aware registry of clients
// keyed by id. All mutating and iterating methods are serialized with a
// mutex so the registry can be shared between connection goroutines.
type ClientManager struct {
	log        *logger.Logger
	maxClients int

	mu      sync.RWMutex
	clients map[identifiers.ClientID]*client.Client
	order   []identifiers.ClientID
	banned  map[identifiers.ClientID]struct{}
	stats   Stats
}

// NewClientManager creates a registry. maxClients of zero means
// unlimited.
func NewClientManager(log *logger.Logger, maxClients int) *ClientManager {
	return &ClientManager{
		log:        log.WithNamespaceAppended("clientmanager"),
		maxClients: maxClients,
		clients:    map[identifiers.ClientID]*client.Client{},
		banned:     map[identifiers.ClientID]struct{}{},
	}
}

// Add admits a client. Banned ids are rejected before anything else, and
// admission beyond capacity is rejected hard.
func (m *ClientManager) Add(c *client.Client) error {
	id := c.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.banned[id]; ok {
		return errors.Annotatef(ErrClientBanned, "add client: %s", id)
	}

	if _, ok := m.clients[id]; ok {
		return errors.Annotatef(ErrClientExists, "add client: %s", id)
	}

	if m.maxClients > 0 && len(m.clients) >= m.maxClients {
		m.log.Warn("Max clients reached", logger.Ctx{
			"client_id":   id,
			"max_clients": m.maxClients,
		})

		return errors.Annotatef(ErrCapacityReached, "add client: %s", id)
	}

	m.clients[id] = c
	m.order = append(m.order, id)

	m.stats.TotalAdded++
	if count := len(m.clients); count > m.stats.PeakCount {
		m.stats.PeakCount = count
	}

	return nil
}

func (m *ClientManager) Get(id identifiers.ClientID) (*client.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]

	return c, ok
}

// Has reports membership without returning the client.
func (m *ClientManager) Has(id identifiers.ClientID) bool {
	_, ok := m.Get(id)

	return ok
}

// Remove deletes the client from the registry. It reports whether the id
// was present.
func (m *ClientManager) Remove(id identifiers.ClientID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(id)
}

func (m *ClientManager) removeLocked(id identifiers.ClientID) bool {
	if _, ok := m.clients[id]; !ok {
		return false
	}

	delete(m.clients, id)

	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)

			break
		}
	}

	return true
}

// All returns a snapshot of members in insertion order. Iterating the
// snapshot is safe against concurrent mutation of the registry.
func (m *ClientManager) All() []*client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]*client.Client, 0, len(m.clients))

	for _, id := range m.order {
		ret = append(ret, m.clients[id])
	}

	return ret
}

func (m *ClientManager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.clients)
}

// Clear removes every member and returns the removed clients.
func (m *ClientManager) Clear() []*client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	ret := make([]*client.Client, 0, len(m.clients))

	for _, id := range m.order {
		ret = append(ret, m.clients[id])
	}

	m.clients = map[identifiers.ClientID]*client.Client{}
	m.order = nil

	return ret
}

// Ban removes the client and blocks the id from any future admission,
// even after removal and re-add.
func (m *ClientManager) Ban(id identifiers.ClientID) {
	m.mu.Lock()
	m.removeLocked(id)
	m.banned[id] = struct{}{}
	m.mu.Unlock()
}

func (m *ClientManager) IsBanned(id identifiers.ClientID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.banned[id]

	return ok
}

// Broadcast writes msg to every current member, in insertion order, each
// write independent of the others. A failing member never aborts delivery
// to the rest; all write errors are collected and returned combined.
func (m *ClientManager) Broadcast(msg message.Message) error {
	errs := multierr.New()

	for _, c := range m.All() {
		if err := c.Write(msg); err != nil {
			errs.Add(errors.Annotatef(err, "broadcast to: %s", c.ID()))
		}
	}

	return errs.Err()
}

// SerializePage returns up to max member summaries starting at offset, in
// insertion order. max of zero means all remaining.
func (m *ClientManager) SerializePage(max int, offset int) []client.Summary {
	all := m.All()

	if offset < 0 || offset >= len(all) {
		return nil
	}

	all = all[offset:]

	if max > 0 && max < len(all) {
		all = all[:max]
	}

	ret := make([]client.Summary, len(all))
	for i, c := range all {
		ret[i] = c.Summary()
	}

	return ret
}

func (m *ClientManager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}
