package ws

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"github.com/webitel/im-tag-router/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

type fixture struct {
	hub *registry.Hub
	srv *httptest.Server
}

func newFixture(t *testing.T, auth service.Auther, opts ...Option) *fixture {
	t.Helper()
	hub := registry.NewHub()
	router := service.NewConnectionRouter(hub, auth, discardLogger())
	opts = append([]Option{WithSendBuffer(8)}, opts...)
	srv := httptest.NewServer(NewWSHandler(discardLogger(), router, opts...))
	t.Cleanup(srv.Close)
	return &fixture{hub: hub, srv: srv}
}

func (f *fixture) dial(t *testing.T, query url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *fixture) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.Count() == n }, time.Second, 5*time.Millisecond)
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestWSHandler_RoutesByTags(t *testing.T) {
	f := newFixture(t, nil)

	alice := f.dial(t, url.Values{"tags": {`{"room":"42"}`}})
	bob := f.dial(t, url.Values{"tags": {`{"room":"42","role":"agent"}`}})
	carol := f.dial(t, url.Values{"tags": {`{"room":"7"}`}})
	f.waitConnections(t, 3)

	require.NoError(t, carol.WriteMessage(websocket.TextMessage, []byte(`{"message":"hello","tags":{"room":"42"}}`)))

	assert.Equal(t, `"hello"`, readText(t, alice))
	assert.Equal(t, `"hello"`, readText(t, bob))

	require.NoError(t, carol.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err := carol.ReadMessage()
	assert.Error(t, err, "the sender does not match room:42")
}

func TestWSHandler_BadMessageKeepsSocketOpen(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dial(t, url.Values{})
	f.waitConnections(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"nope":1}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"still here"}`)))

	assert.Equal(t, `"still here"`, readText(t, conn))
	assert.Equal(t, 1, f.hub.Count())
}

func TestWSHandler_RefusesUnauthorizedOpen(t *testing.T) {
	gate, err := service.NewApplicationsAuth([]config.ApplicationConfig{{
		Key: strPtr("app1"), Secret: strPtr("secretABC"), AuthorizeOpen: boolPtr(false),
	}}, false)
	require.NoError(t, err)
	f := newFixture(t, gate)

	conn := f.dial(t, url.Values{})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Equal(t, 0, f.hub.Count())

	ok := f.dial(t, url.Values{"key": {"app1"}, "secret": {"secretABC"}})
	f.waitConnections(t, 1)
	require.NoError(t, ok.WriteMessage(websocket.TextMessage,
		[]byte(`{"message":"hi","metadata":{"key":"app1","secret":"secretABC"}}`)))
	assert.Equal(t, `"hi"`, readText(t, ok))
}

func TestWSHandler_RefusesInvalidTags(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dial(t, url.Values{"tags": {`[1,2]`}})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "got %v", err)
}

func TestWSHandler_CloseDeregisters(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dial(t, url.Values{"tags": {`{"a":1}`}})
	f.waitConnections(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	f.waitConnections(t, 0)
}

func TestWSHandler_HubShutdownClosesSockets(t *testing.T) {
	f := newFixture(t, nil)

	conn := f.dial(t, url.Values{})
	f.waitConnections(t, 1)

	f.hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestWSHandler_RefusalReasonStaysValidUTF8(t *testing.T) {
	f := newFixture(t, nil)

	name := "x" + strings.Repeat("тег", 20)
	conn := f.dial(t, url.Values{"tags": {`{"` + name + `":true}`}})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseUnsupportedData, closeErr.Code)
	assert.True(t, utf8.ValidString(closeErr.Text))
	assert.LessOrEqual(t, len(closeErr.Text), 123)
}

func TestCloseReason(t *testing.T) {
	short := errors.New("denied")
	assert.Equal(t, "denied", closeReason(short))

	// 3-byte runes straddle the cut at every offset.
	for pad := 0; pad < 3; pad++ {
		long := errors.New(strings.Repeat("a", pad) + strings.Repeat("€", 60))
		reason := closeReason(long)
		assert.True(t, utf8.ValidString(reason), "pad %d", pad)
		assert.LessOrEqual(t, len(reason), 123)
		assert.Greater(t, len(reason), 119)
	}
}

func TestWSHandler_OversizeFrameClosesSocket(t *testing.T) {
	f := newFixture(t, nil, WithReadLimit(1024))

	small := f.dial(t, url.Values{})
	big := f.dial(t, url.Values{})
	f.waitConnections(t, 2)

	payload := `{"message":"` + strings.Repeat("a", 2048) + `"}`
	require.NoError(t, big.WriteMessage(websocket.TextMessage, []byte(payload)))

	require.NoError(t, big.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := big.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)

	f.waitConnections(t, 1)
	require.NoError(t, small.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err = small.ReadMessage()
	assert.Error(t, err, "the oversize request is never fanned out")
}

func TestWSHandler_DropsSilentPeer(t *testing.T) {
	f := newFixture(t, nil, WithPongWait(100*time.Millisecond))

	// The gorilla client only answers pings while it is reading.
	f.dial(t, url.Values{})
	f.waitConnections(t, 1)
	f.waitConnections(t, 0)
}

func TestWSHandler_KeepsResponsivePeer(t *testing.T) {
	f := newFixture(t, nil, WithPongWait(100*time.Millisecond))

	conn := f.dial(t, url.Values{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	f.waitConnections(t, 1)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, f.hub.Count())
}
