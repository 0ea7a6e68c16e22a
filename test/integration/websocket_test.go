package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/test/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *server.Server) string {
	return "ws://" + srv.HTTPAddr().String() + "/ws"
}

// TestWebSocketLogin checks the gateway speaks the same protocol as TCP.
func TestWebSocketLogin(t *testing.T) {
	srv := testhelpers.StartServer(t, testhelpers.TestConfig())

	alice := testhelpers.DialWebSocket(t, wsURL(srv))
	resp := alice.Login("alice")
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "Welcome alice!", resp.Message)
	assert.Equal(t, []string{"alice"}, resp.OnlineUsers)
}

// TestWebSocketAndTCPInterop routes traffic between a WebSocket client and a
// TCP client in both directions.
func TestWebSocketAndTCPInterop(t *testing.T) {
	srv := testhelpers.StartServer(t, testhelpers.TestConfig())

	web := testhelpers.DialWebSocket(t, wsURL(srv))
	require.Equal(t, protocol.StatusSuccess, web.Login("web").Status)

	native := testhelpers.LoginTCP(t, srv.Addr().String(), "native")
	joined := web.Expect(protocol.KindUserJoined)
	assert.Equal(t, "native", joined.Username)

	web.Send(protocol.Message{Type: protocol.KindMessage, Recipient: "native", Content: "from the browser"})
	got := native.Expect(protocol.KindMessage)
	assert.Equal(t, "web", got.Sender)
	assert.Equal(t, "from the browser", got.Content)
	web.Expect(protocol.KindMessageSent)

	native.Send(protocol.Message{Type: protocol.KindMessage, Recipient: protocol.BroadcastRecipient, Content: "from the terminal"})
	got = web.Expect(protocol.KindMessage)
	assert.Equal(t, "native", got.Sender)
	assert.Equal(t, "from the terminal", got.Content)
	native.Expect(protocol.KindMessageSent)

	require.NoError(t, web.Close())
	left := native.Expect(protocol.KindUserLeft)
	assert.Equal(t, "web", left.Username)
	assert.Equal(t, []string{"native"}, left.OnlineUsers)
}

// TestWebSocketMalformedFrameSkipped checks that invalid JSON in a text frame
// is dropped without closing the connection.
func TestWebSocketMalformedFrameSkipped(t *testing.T) {
	srv := testhelpers.StartServer(t, testhelpers.TestConfig())

	c := testhelpers.DialWebSocket(t, wsURL(srv))
	c.SendRaw([]byte("{not json"))

	resp := c.Login("alice")
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
}

// TestWebSocketRejectsPost checks the gateway only accepts upgrade requests.
func TestWebSocketRejectsPost(t *testing.T) {
	srv := testhelpers.StartServer(t, testhelpers.TestConfig())

	client := &http.Client{Timeout: testhelpers.DefaultTimeout}
	resp, err := client.Post("http://"+srv.HTTPAddr().String()+"/ws", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestWebSocketDisabled checks that an empty HTTP address runs TCP only.
func TestWebSocketDisabled(t *testing.T) {
	cfg := testhelpers.TestConfig()
	cfg.HTTP.Addr = ""
	srv := testhelpers.StartServer(t, cfg)

	assert.Nil(t, srv.HTTPAddr())
	c := testhelpers.LoginTCP(t, srv.Addr().String(), "alice")
	c.ExpectNoMessage(50 * time.Millisecond)
}
