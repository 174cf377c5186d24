package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConn(t *testing.T, rawQuery string) model.Connector {
	t.Helper()
	q, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	conn := model.NewConnector(context.Background(), q, model.ConnectMetadata{RemoteIP: "127.0.0.1"}, 16)
	t.Cleanup(conn.Close)
	return conn
}

func tagsQuery(jsonObj string) string {
	return url.Values{"tags": {jsonObj}}.Encode()
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func app(key, secret string, authorizeOpen bool) config.ApplicationConfig {
	return config.ApplicationConfig{Key: strPtr(key), Secret: strPtr(secret), AuthorizeOpen: boolPtr(authorizeOpen)}
}

// received drains everything queued for conn without blocking.
func received(conn model.Connector) []string {
	var out []string
	for {
		select {
		case data := <-conn.Recv():
			out = append(out, string(data))
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

// brokenConn fails every send, like a transport whose socket died.
type brokenConn struct {
	model.Connector
}

var errBrokenPipe = errors.New("broken pipe")

func (brokenConn) Send([]byte, time.Duration) error { return errBrokenPipe }
