package amqp

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/adapter/pubsub"
	"github.com/webitel/im-tag-router/internal/domain/model"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"github.com/webitel/im-tag-router/internal/service"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func startPipeline(t *testing.T) (*registry.Hub, service.Router, pubsub.RequestDispatcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Broker.Topic = "test.requests"

	gate, err := service.NewApplicationsAuth([]config.ApplicationConfig{{
		Key: strPtr("svc"), Secret: strPtr("K"), AuthorizeOpen: boolPtr(false),
	}}, true)
	require.NoError(t, err)

	hub := registry.NewHub()
	router := service.NewConnectionRouter(hub, gate, logger)

	provider, err := pubsub.NewProvider(cfg.Broker, watermill.NopLogger{})
	require.NoError(t, err)

	wm, err := NewWatermillRouter(watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, NewRequestHandler(cfg, router, logger).RegisterHandlers(wm, provider))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = wm.Run(ctx) }()
	<-wm.Running()
	t.Cleanup(func() {
		cancel()
		_ = wm.Close()
		_ = provider.Close()
	})

	return hub, router, pubsub.NewRequestDispatcher(provider.Publisher(), cfg.Broker.Topic)
}

func openConn(t *testing.T, router service.Router, tags string) model.Connector {
	t.Helper()
	conn := model.NewConnector(context.Background(), url.Values{"tags": {tags}}, model.ConnectMetadata{}, 8)
	t.Cleanup(conn.Close)
	require.NoError(t, router.OnOpen(conn))
	return conn
}

func TestConsumer_RoutesBrokerRequests(t *testing.T) {
	_, router, dispatcher := startPipeline(t)
	target := openConn(t, router, `{"user":7}`)
	other := openConn(t, router, `{"user":8}`)

	// The refused request is ACKed and the pipeline keeps consuming.
	require.NoError(t, dispatcher.Publish(context.Background(), model.NewRequest("denied").
		WithTags(model.TagSet{"user": model.IntTag(7)})))

	require.NoError(t, dispatcher.Publish(context.Background(), model.NewRequest("ping").
		WithTags(model.TagSet{"user": model.IntTag(7)}).
		WithMetadata(map[string]any{"key": "svc", "secret": "K"})))

	select {
	case data := <-target.Recv():
		assert.Equal(t, `"ping"`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("broker request was not routed")
	}

	select {
	case data := <-other.Recv():
		t.Fatalf("unexpected delivery %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBind_AcksRefusedRequests(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &RequestHandler{
		router: service.NewConnectionRouter(registry.NewHub(), nil, logger),
		logger: logger,
	}
	handle := Bind(h)

	assert.NoError(t, handle(message.NewMessage(watermill.NewUUID(), []byte(`not json`))))
	assert.NoError(t, handle(message.NewMessage(watermill.NewUUID(), []byte(`{"message":"ok"}`))))
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage(watermill.NewUUID(), nil)
	_, err := h(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, msg.Metadata.Get("trace_id"))

	msg = message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set("trace_id", "fixed")
	_, err = h(msg)
	require.NoError(t, err)
	assert.Equal(t, "fixed", seen)
}
