package listener_test

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/listener"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
)

func testParams() listener.Params {
	return listener.Params{
		Log:       logger.NewFromEnv("WIRELINE_LOG"),
		BindAddr:  "127.0.0.1:0",
		Delimiter: []byte("\r"),
	}
}

func TestTCP_NotListening(t *testing.T) {
	l := listener.NewTCP(testParams())

	_, err := l.AcceptClient()
	assert.Error(t, err)
	assert.Nil(t, l.Addr())
	assert.NoError(t, l.Close())
}

func TestTCP_AcceptClient(t *testing.T) {
	l := listener.NewTCP(testParams())

	require.NoError(t, l.Listen())
	defer l.Close()

	clients := make(chan *client.Client, 1)

	go func() {
		c, err := l.AcceptClient()
		require.NoError(t, err)
		clients <- c
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	c := <-clients
	assert.Equal(t, conn.LocalAddr().String(), c.ID().String())

	codec := message.NewDelimitedCodec([]byte("\r"))

	// Client to server.
	payload, err := codec.Serialize(message.New("/room/get", nil))
	require.NoError(t, err)

	_, err = conn.Write(payload)
	require.NoError(t, err)

	select {
	case event := <-c.Events():
		assert.Equal(t, client.EventMessage, event.Type)
		assert.Equal(t, "/room/get", event.Message.Route)
	case <-time.After(5 * time.Second):
		t.Fatal("no message event")
	}

	// Server to client.
	require.NoError(t, c.Write(message.New("/pong", nil)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	line, err := bufio.NewReader(conn).ReadBytes('\r')
	require.NoError(t, err)

	msg, err := codec.Deserialize(bytes.TrimSuffix(line, []byte("\r")))
	require.NoError(t, err)
	assert.Equal(t, "/pong", msg.Route)
}

func TestTCP_DisconnectOnConnClose(t *testing.T) {
	l := listener.NewTCP(testParams())

	require.NoError(t, l.Listen())
	defer l.Close()

	clients := make(chan *client.Client, 1)

	go func() {
		c, err := l.AcceptClient()
		require.NoError(t, err)
		clients <- c
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)

	c := <-clients

	require.NoError(t, conn.Close())

	select {
	case event := <-c.Events():
		assert.Equal(t, client.EventDisconnect, event.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestWebSocket_Mounted(t *testing.T) {
	params := testParams()
	params.BindAddr = ""

	l := listener.NewWebSocket(params)
	defer l.Close()

	srv := httptest.NewServer(l)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/myclient"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	defer conn.Close(websocket.StatusNormalClosure, "")

	c, err := l.AcceptClient()
	require.NoError(t, err)
	assert.Equal(t, identifiers.ClientID("myclient"), c.ID())

	// One WebSocket frame carries exactly one envelope.
	payload, err := message.ByteSerializer{}.Serialize(message.New("/room/get", nil))
	require.NoError(t, err)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))

	select {
	case event := <-c.Events():
		assert.Equal(t, client.EventMessage, event.Type)
		assert.Equal(t, "/room/get", event.Message.Route)
	case <-ctx.Done():
		t.Fatal("no message event")
	}

	// Server to client.
	require.NoError(t, c.Write(message.New("/ping", nil)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	msg, err := message.ByteSerializer{}.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, "/ping", msg.Route)
}

func TestWebSocket_GeneratedClientID(t *testing.T) {
	params := testParams()
	params.BindAddr = ""

	l := listener.NewWebSocket(params)
	defer l.Close()

	srv := httptest.NewServer(l)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	defer conn.Close(websocket.StatusNormalClosure, "")

	c, err := l.AcceptClient()
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID().String())
}
