package registry_test

import (
	"net"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/registry"
)

type mockSocket struct {
	mu       sync.Mutex
	writes   int
	writeErr error
}

var _ client.Socket = &mockSocket{}

func (s *mockSocket) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	s.writes++

	return nil
}

func (s *mockSocket) Close() error { return nil }

func (s *mockSocket) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IP{127, 0, 0, 1}, Port: 1}
}

func (s *mockSocket) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IP{127, 0, 0, 1}, Port: 2}
}

func (s *mockSocket) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writes
}

func newClient(id string, socket *mockSocket) *client.Client {
	return client.New(client.Params{
		Log:    logger.NewFromEnv("WIRELINE_LOG"),
		ID:     identifiers.ClientID(id),
		Socket: socket,
		Codec:  message.ByteSerializer{},
		Framed: true,
	})
}

func newManager(maxClients int) *registry.ClientManager {
	return registry.NewClientManager(logger.NewFromEnv("WIRELINE_LOG"), maxClients)
}

func TestClientManager_AddGetRemove(t *testing.T) {
	m := newManager(0)

	a := newClient("a", &mockSocket{})
	b := newClient("b", &mockSocket{})

	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))

	assert.Equal(t, 2, m.Size())
	assert.True(t, m.Has("a"))

	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, a, got)

	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.False(t, m.Has("a"))
	assert.Equal(t, 1, m.Size())
}

func TestClientManager_DuplicateAdd(t *testing.T) {
	m := newManager(0)

	require.NoError(t, m.Add(newClient("a", &mockSocket{})))

	err := m.Add(newClient("a", &mockSocket{}))
	assert.Equal(t, registry.ErrClientExists, errors.Cause(err))
}

func TestClientManager_CapacityHardReject(t *testing.T) {
	m := newManager(1)

	require.NoError(t, m.Add(newClient("a", &mockSocket{})))

	err := m.Add(newClient("b", &mockSocket{}))
	assert.Equal(t, registry.ErrCapacityReached, errors.Cause(err))
	assert.Equal(t, 1, m.Size())

	// Capacity frees up on removal.
	m.Remove("a")
	assert.NoError(t, m.Add(newClient("b", &mockSocket{})))
}

func TestClientManager_BanSurvivesReAdd(t *testing.T) {
	m := newManager(0)

	a := newClient("a", &mockSocket{})
	require.NoError(t, m.Add(a))

	m.Ban("a")

	assert.False(t, m.Has("a"), "ban removes the client")
	assert.True(t, m.IsBanned("a"))

	err := m.Add(newClient("a", &mockSocket{}))
	assert.Equal(t, registry.ErrClientBanned, errors.Cause(err))
}

func TestClientManager_InsertionOrder(t *testing.T) {
	m := newManager(0)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, m.Add(newClient(id, &mockSocket{})))
	}

	var got []string
	for _, c := range m.All() {
		got = append(got, c.ID().String())
	}

	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestClientManager_Broadcast_PartialFailure(t *testing.T) {
	m := newManager(0)

	healthy1 := &mockSocket{}
	broken := &mockSocket{writeErr: errors.New("pipe broken")}
	healthy2 := &mockSocket{}

	require.NoError(t, m.Add(newClient("a", healthy1)))
	require.NoError(t, m.Add(newClient("b", broken)))
	require.NoError(t, m.Add(newClient("c", healthy2)))

	err := m.Broadcast(message.New("/broadcast", nil))
	require.Error(t, err)

	assert.Equal(t, 1, healthy1.Writes(), "failure of one member does not abort the rest")
	assert.Equal(t, 1, healthy2.Writes())
}

func TestClientManager_SerializePage(t *testing.T) {
	m := newManager(0)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Add(newClient(id, &mockSocket{})))
	}

	page := m.SerializePage(2, 1)
	require.Len(t, page, 2)
	assert.Equal(t, identifiers.ClientID("b"), page[0].ID)
	assert.Equal(t, identifiers.ClientID("c"), page[1].ID)

	assert.Len(t, m.SerializePage(0, 0), 4, "zero max returns all")
	assert.Len(t, m.SerializePage(10, 3), 1)
	assert.Nil(t, m.SerializePage(2, 10), "offset past the end")
}

func TestClientManager_Stats(t *testing.T) {
	m := newManager(0)

	require.NoError(t, m.Add(newClient("a", &mockSocket{})))
	require.NoError(t, m.Add(newClient("b", &mockSocket{})))
	m.Remove("a")
	require.NoError(t, m.Add(newClient("c", &mockSocket{})))

	stats := m.Stats()
	assert.Equal(t, 2, stats.PeakCount)
	assert.Equal(t, uint64(3), stats.TotalAdded)
}

func TestClientManager_Clear(t *testing.T) {
	m := newManager(0)

	require.NoError(t, m.Add(newClient("a", &mockSocket{})))
	require.NoError(t, m.Add(newClient("b", &mockSocket{})))

	removed := m.Clear()
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, m.Size())
}
