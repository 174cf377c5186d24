package model

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnector_Lifecycle(t *testing.T) {
	conn := NewConnector(context.Background(), url.Values{"key": {"app1"}}, ConnectMetadata{}, 1)

	assert.Equal(t, StatePending, conn.State())
	assert.True(t, conn.MarkOpen())
	assert.False(t, conn.MarkOpen(), "open is a one-shot transition")
	assert.Equal(t, StateOpen, conn.State())

	assert.True(t, conn.MarkClosed())
	assert.False(t, conn.MarkClosed())
	assert.False(t, conn.MarkOpen(), "closed is terminal")
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnector_QueryIsCopied(t *testing.T) {
	q := url.Values{"tags": {`{"a":1}`}}
	conn := NewConnector(context.Background(), q, ConnectMetadata{}, 1)
	q.Set("tags", "changed")

	assert.Equal(t, `{"a":1}`, conn.Query().Get("tags"))
}

func TestConnector_Send(t *testing.T) {
	conn := NewConnector(context.Background(), nil, ConnectMetadata{}, 1)

	require.NoError(t, conn.Send([]byte(`"a"`), 10*time.Millisecond))
	err := conn.Send([]byte(`"b"`), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrSendTimeout)
	assert.Equal(t, uint64(1), conn.Dropped())

	assert.Equal(t, []byte(`"a"`), <-conn.Recv())

	conn.Close()
	conn.Close()
	assert.ErrorIs(t, conn.Send([]byte(`"c"`), 10*time.Millisecond), ErrConnectionClosed)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}
