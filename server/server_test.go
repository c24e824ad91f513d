package server

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
)

func testConfig(transport TransportType) Config {
	var c Config

	InitConfig(&c)

	c.BindHost = "127.0.0.1"
	c.BindPort = 0
	c.Transport.Type = transport
	c.Transport.BindHost = "127.0.0.1"
	c.Transport.BindPort = 0
	c.Transport.PingIntervalMS = 60000
	c.MaxClients = 16

	return c
}

func startTestServer(t *testing.T, config Config) (*Server, context.CancelFunc, chan error) {
	t.Helper()

	s := New(Params{
		Log:     logger.NewFromEnv("WIRELINE_LOG"),
		Config:  config,
		Version: "v0.0.0-test",
	})

	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)

	go func() {
		serveDone <- s.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return s.Addr() != nil
	}, 5*time.Second, 5*time.Millisecond)

	return s, cancel, serveDone
}

func stopTestServer(t *testing.T, cancel context.CancelFunc, serveDone chan error) {
	t.Helper()

	cancel()

	select {
	case err := <-serveDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

var testWireCodec = message.NewDelimitedCodec([]byte("\r"))

type testConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestConn(t *testing.T, network, addr string) *testConn {
	t.Helper()

	conn, err := net.Dial(network, addr)
	require.NoError(t, err)

	return &testConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (c *testConn) close() {
	_ = c.conn.Close()
}

func (c *testConn) send(t *testing.T, msg message.Message) {
	t.Helper()

	payload, err := testWireCodec.Serialize(msg)
	require.NoError(t, err)

	_, err = c.conn.Write(payload)
	require.NoError(t, err)
}

// recv reads frames until one with the wanted route arrives. Heartbeat
// pings from the server are skipped along the way.
func (c *testConn) recv(t *testing.T, route string) message.Message {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		payload, err := c.reader.ReadBytes('\r')
		require.NoError(t, err)

		msg, err := testWireCodec.Deserialize(bytes.TrimSuffix(payload, []byte("\r")))
		require.NoError(t, err)

		if msg.Route == route {
			return msg
		}
	}
}

func TestServer_TCPChatRoom(t *testing.T) {
	s, cancel, serveDone := startTestServer(t, testConfig(TransportTypeTCP))
	defer stopTestServer(t, cancel, serveDone)

	owner := dialTestConn(t, "tcp", s.Addr().String())
	defer owner.close()

	member := dialTestConn(t, "tcp", s.Addr().String())
	defer member.close()

	// Create a room; the creator becomes owner and is auto-joined.
	owner.send(t, message.New(RouteRoomAdd, map[string]interface{}{"name": "lobby"}))

	resp := owner.recv(t, RouteRoomAdd)
	require.False(t, resp.IsError(), "room add: %v", resp.Data)
	assert.Equal(t, "lobby", resp.DataString("name"))
	assert.Equal(t, 1, resp.DataInt("clients"))

	member.send(t, message.New(RouteRoomJoin, map[string]interface{}{"name": "lobby"}))

	resp = member.recv(t, RouteRoomJoin)
	require.False(t, resp.IsError(), "room join: %v", resp.Data)
	assert.Equal(t, 2, resp.DataInt("clients"))

	// A member broadcast reaches everyone in the room, stamped with the
	// sender identity and a per-room message id.
	member.send(t, message.New("/broadcast", map[string]interface{}{"text": "hi"}))

	for _, c := range []*testConn{owner, member} {
		got := c.recv(t, "/broadcast")
		assert.Equal(t, "hi", got.DataString("text"))
		assert.Equal(t, "lobby", got.DataString("room"))
		assert.NotEmpty(t, got.DataString("user"))
		assert.Equal(t, 1, got.DataInt("id"))
	}

	// Room listing.
	member.send(t, message.New(RouteRoomGet, nil))

	resp = member.recv(t, RouteRoomGet)
	require.False(t, resp.IsError())
	assert.Equal(t, 1, resp.DataInt("total"))

	// Member listing.
	owner.send(t, message.New(RouteRoomClientGet, map[string]interface{}{"name": "lobby"}))

	resp = owner.recv(t, RouteRoomClientGet)
	require.False(t, resp.IsError())
	assert.Equal(t, 2, resp.DataInt("total"))

	clients, _ := resp.DataMap()["clients"].([]interface{})
	require.Len(t, clients, 2)

	// Whisper to every listed member; exactly one lands at the member
	// connection, carrying the stamped sender identity.
	for _, entry := range clients {
		m, _ := entry.(map[string]interface{})
		id, _ := m["id"].(string)

		owner.send(t, message.New(RouteWhisper, map[string]interface{}{
			"to":   id,
			"text": "psst",
		}))
	}

	whisper := member.recv(t, RouteWhisper)
	assert.Equal(t, "psst", whisper.DataString("text"))
	assert.NotEmpty(t, whisper.DataString("from"))
}

func TestServer_TCPRoomAccessControl(t *testing.T) {
	s, cancel, serveDone := startTestServer(t, testConfig(TransportTypeTCP))
	defer stopTestServer(t, cancel, serveDone)

	owner := dialTestConn(t, "tcp", s.Addr().String())
	defer owner.close()

	member := dialTestConn(t, "tcp", s.Addr().String())
	defer member.close()

	owner.send(t, message.New(RouteRoomAdd, map[string]interface{}{
		"name":     "vault",
		"password": "s3cret",
	}))

	resp := owner.recv(t, RouteRoomAdd)
	require.False(t, resp.IsError())

	// Wrong password is rejected with a readable reason.
	member.send(t, message.New(RouteRoomJoin, map[string]interface{}{
		"name":     "vault",
		"password": "bogus",
	}))

	resp = member.recv(t, RouteRoomJoin)
	assert.True(t, resp.IsError())
	assert.Equal(t, "wrong password", resp.Data)

	// Owner-only routes are rejected for non-owners.
	member.send(t, message.New(RouteRoomJoin, map[string]interface{}{
		"name":     "vault",
		"password": "s3cret",
	}))
	resp = member.recv(t, RouteRoomJoin)
	require.False(t, resp.IsError())

	member.send(t, message.New(RouteRoomDelete, map[string]interface{}{"name": "vault"}))

	resp = member.recv(t, RouteRoomDelete)
	assert.True(t, resp.IsError())
	assert.Equal(t, "not the owner of room: vault", resp.Data)

	// Outsiders are not members and cannot broadcast.
	outsider := dialTestConn(t, "tcp", s.Addr().String())
	defer outsider.close()

	outsider.send(t, message.New("/broadcast", map[string]interface{}{
		"room": "vault",
		"text": "let me in",
	}))

	resp = outsider.recv(t, "/broadcast")
	assert.True(t, resp.IsError())
	assert.Equal(t, "not a member of room: vault", resp.Data)
}

func TestServer_TCPPing(t *testing.T) {
	s, cancel, serveDone := startTestServer(t, testConfig(TransportTypeTCP))
	defer stopTestServer(t, cancel, serveDone)

	conn := dialTestConn(t, "tcp", s.Addr().String())
	defer conn.close()

	// The server pings on connect.
	conn.recv(t, "/ping")

	// And answers client pings with pongs.
	conn.send(t, message.New("/ping", nil))
	conn.recv(t, "/pong")
}

func TestServer_CapacityRejection(t *testing.T) {
	config := testConfig(TransportTypeTCP)
	config.MaxClients = 1

	s, cancel, serveDone := startTestServer(t, config)
	defer stopTestServer(t, cancel, serveDone)

	first := dialTestConn(t, "tcp", s.Addr().String())
	defer first.close()

	first.recv(t, "/ping")

	second := dialTestConn(t, "tcp", s.Addr().String())
	defer second.close()

	resp := second.recv(t, "/connect")
	assert.True(t, resp.IsError())
	assert.Equal(t, "capacity reached", resp.Data)
}

func TestServer_UDP(t *testing.T) {
	s, cancel, serveDone := startTestServer(t, testConfig(TransportTypeUDP))
	defer stopTestServer(t, cancel, serveDone)

	conn := dialTestConn(t, "udp", s.Addr().String())
	defer conn.close()

	// The first datagram both creates the client and is routed.
	conn.send(t, message.New(RouteRoomAdd, map[string]interface{}{"name": "udproom"}))

	resp := conn.recv(t, RouteRoomAdd)
	require.False(t, resp.IsError(), "room add: %v", resp.Data)

	// Later datagrams from the same source map to the same client, so
	// the membership from the room add still holds.
	conn.send(t, message.New("/broadcast", map[string]interface{}{"text": "yo"}))

	got := conn.recv(t, "/broadcast")
	assert.Equal(t, "yo", got.DataString("text"))
	assert.Equal(t, "udproom", got.DataString("room"))
}
