package httpsrv

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	s := New("127.0.0.1:0", mux, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.ListenAddr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	require.NoError(t, s.Stop(context.Background()))
	_, err = http.Get("http://" + s.ListenAddr() + "/healthz")
	assert.Error(t, err)
}
