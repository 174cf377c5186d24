package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/im-tag-router/internal/domain/codec"
	"github.com/webitel/im-tag-router/internal/domain/model"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"golang.org/x/sync/errgroup"
)

// Router is the connection lifecycle and dispatch state machine invoked by transports.
type Router interface {
	// OnOpen authorizes a pending connection, parses its tags and registers it.
	OnOpen(conn model.Connector) error
	// OnMessage decodes, authorizes and fans out one inbound text message.
	OnMessage(ctx context.Context, conn model.Connector, text []byte) (*model.Response, error)
	// OnClose deregisters the connection. Safe to call more than once.
	OnClose(conn model.Connector)
	// OnError force-closes the transport and deregisters the connection.
	OnError(conn model.Connector, err error)
	// Publish fans out a request submitted by a server-side producer.
	Publish(ctx context.Context, req *model.Request) (*model.Response, error)
	// PublishText decodes wire text and publishes it as a server-side producer.
	PublishText(ctx context.Context, text []byte) (*model.Response, error)
}

var _ Router = (*ConnectionRouter)(nil)

const (
	defaultSendTimeout   = 500 * time.Millisecond
	defaultFanoutWorkers = 32
)

// RouterOption configures a ConnectionRouter.
type RouterOption func(*ConnectionRouter)

// WithSendTimeout bounds every per-recipient send.
func WithSendTimeout(d time.Duration) RouterOption {
	return func(r *ConnectionRouter) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithFanoutWorkers caps the number of concurrent sends of one fan-out.
func WithFanoutWorkers(n int) RouterOption {
	return func(r *ConnectionRouter) {
		if n > 0 {
			r.fanoutWorkers = n
		}
	}
}

// WithMessageParser enables structured (non-string) messages.
func WithMessageParser(p codec.MessageParser) RouterOption {
	return func(r *ConnectionRouter) { r.parser = p }
}

// WithTagsParser replaces the handshake tag parser.
func WithTagsParser(p *codec.QueryTagsParser) RouterOption {
	return func(r *ConnectionRouter) { r.tags = p }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) RouterOption {
	return func(r *ConnectionRouter) { r.metrics = m }
}

// ConnectionRouter ties the hub, the gate and the codec together.
type ConnectionRouter struct {
	hub    registry.Hubber
	auth   Auther
	logger *slog.Logger

	parser  codec.MessageParser
	tags    *codec.QueryTagsParser
	metrics *Metrics

	sendTimeout   time.Duration
	fanoutWorkers int
}

// NewConnectionRouter builds a router. A nil auth allows every operation.
func NewConnectionRouter(hub registry.Hubber, auth Auther, logger *slog.Logger, opts ...RouterOption) *ConnectionRouter {
	if auth == nil {
		auth = PermissiveAuth{}
	}
	r := &ConnectionRouter{
		hub:           hub,
		auth:          auth,
		logger:        logger,
		tags:          codec.NewQueryTagsParser(codec.DefaultTagsParam, 0),
		sendTimeout:   defaultSendTimeout,
		fanoutWorkers: defaultFanoutWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ConnectionRouter) OnOpen(conn model.Connector) error {
	l := r.logger.With("conn_id", conn.GetID())

	if conn.State() != model.StatePending {
		return model.Validationf("router.open", "connection is %s, not pending", conn.State())
	}

	// [PRE_AUTH] Refuse before anything is registered.
	if !r.auth.AuthorizeOpen(conn) {
		r.metrics.open(OutcomeUnauthorized)
		l.Debug("OPEN_REFUSED", "reason", "unauthorized")
		return model.Authorizationf("router.open", "connection opening is not authorized")
	}

	tags, err := r.tags.Parse(conn.Query())
	if err != nil {
		r.metrics.open(OutcomeInvalid)
		l.Debug("OPEN_REFUSED", "reason", "invalid_tags", "err", err)
		return err
	}

	if _, err := r.hub.Register(conn, tags); err != nil {
		r.metrics.open(OutcomeInvalid)
		l.Debug("OPEN_REFUSED", "reason", "register_failed", "err", err)
		return err
	}

	// [RACE_GUARD] A close that landed between Register and here wins.
	if !conn.MarkOpen() {
		r.hub.Unregister(conn.GetID())
		r.metrics.setConnections(r.hub.Count())
		return model.Validationf("router.open", "connection closed while opening")
	}

	r.metrics.open(OutcomeAccepted)
	r.metrics.setConnections(r.hub.Count())
	l.Debug("CONNECTION_OPENED", "tags", len(tags), "remote_ip", conn.Metadata().RemoteIP)
	return nil
}

func (r *ConnectionRouter) OnMessage(ctx context.Context, conn model.Connector, text []byte) (*model.Response, error) {
	l := r.logger.With("conn_id", conn.GetID())
	l.DebugContext(ctx, "MESSAGE_RECEIVED", "bytes", len(text))

	if conn.State() != model.StateOpen {
		r.metrics.request(SourceConnection, OutcomeInvalid)
		return nil, model.Validationf("router.message", "connection is %s, not open", conn.State())
	}

	req, err := codec.DecodeText(text, r.parser)
	if err != nil {
		r.metrics.request(SourceConnection, OutcomeInvalid)
		l.DebugContext(ctx, "REQUEST_DECODE_FAILED", "err", err)
		return nil, err
	}

	if !r.auth.AuthorizeSend(conn, req) {
		r.metrics.request(SourceConnection, OutcomeUnauthorized)
		l.DebugContext(ctx, "SEND_REFUSED")
		return nil, model.Authorizationf("router.message", "message sending is not authorized on connection '%s'", conn.GetID())
	}

	r.metrics.request(SourceConnection, OutcomeAccepted)
	return r.deliver(ctx, l, req)
}

func (r *ConnectionRouter) Publish(ctx context.Context, req *model.Request) (*model.Response, error) {
	l := r.logger.With("source", SourceProducer)

	if req == nil {
		r.metrics.request(SourceProducer, OutcomeInvalid)
		return nil, model.Validationf("router.publish", "nil request")
	}
	if err := req.Tags.Validate(); err != nil {
		r.metrics.request(SourceProducer, OutcomeInvalid)
		return nil, err
	}

	if !r.auth.AuthorizeSend(nil, req) {
		r.metrics.request(SourceProducer, OutcomeUnauthorized)
		l.DebugContext(ctx, "SEND_REFUSED")
		return nil, model.Authorizationf("router.publish", "message sending is not authorized")
	}

	r.metrics.request(SourceProducer, OutcomeAccepted)
	return r.deliver(ctx, l, req)
}

func (r *ConnectionRouter) PublishText(ctx context.Context, text []byte) (*model.Response, error) {
	req, err := codec.DecodeText(text, r.parser)
	if err != nil {
		r.metrics.request(SourceProducer, OutcomeInvalid)
		r.logger.DebugContext(ctx, "REQUEST_DECODE_FAILED", "source", SourceProducer, "err", err)
		return nil, err
	}
	return r.Publish(ctx, req)
}

func (r *ConnectionRouter) OnClose(conn model.Connector) {
	conn.MarkClosed()
	if r.hub.Unregister(conn.GetID()) {
		r.metrics.setConnections(r.hub.Count())
	}
	r.logger.Debug("CONNECTION_CLOSED", "conn_id", conn.GetID())
}

func (r *ConnectionRouter) OnError(conn model.Connector, err error) {
	l := r.logger.With("conn_id", conn.GetID())
	l.Error("CONNECTION_ERROR", "err", err)

	// [FORCE_CLOSE] Tear the transport down before forgetting the handle.
	conn.MarkClosed()
	conn.Close()
	if r.hub.Unregister(conn.GetID()) {
		r.metrics.setConnections(r.hub.Count())
	}
	l.Error("CONNECTION_FORCE_CLOSED")
}

// deliver forwards only the message to every match. A failing or stalled
// recipient never stops delivery to the others.
func (r *ConnectionRouter) deliver(ctx context.Context, l *slog.Logger, req *model.Request) (*model.Response, error) {
	data, err := codec.EncodeMessage(req.Message)
	if err != nil {
		return nil, err
	}

	recipients := r.hub.Match(req.Tags)
	resp := &model.Response{Recipients: len(recipients)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.fanoutWorkers)

	for _, conn := range recipients {
		g.Go(func() error {
			// [FAN_OUT_DISPATCH] Failures are recorded, never returned, so the group keeps going.
			if err := conn.Send(data, r.sendTimeout); err != nil {
				l.WarnContext(ctx, "SEND_FAILED",
					"recipient_id", conn.GetID(),
					"dropped", conn.Dropped(),
					"err", err,
				)
				mu.Lock()
				resp.Failures = append(resp.Failures, model.SendFailure{ConnID: conn.GetID(), Reason: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			resp.Delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.metrics.delivered(resp.Delivered, len(resp.Failures), resp.Recipients)
	l.DebugContext(ctx, "REQUEST_FANNED_OUT",
		"recipients", resp.Recipients,
		"delivered", resp.Delivered,
		"failed", len(resp.Failures),
	)
	return resp, nil
}
