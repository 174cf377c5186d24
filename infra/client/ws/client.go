package wsclient

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-tag-router/internal/domain/codec"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

const writeWait = 10 * time.Second

// Sender is what producers depend on; Client and MockClient both satisfy it.
type Sender interface {
	Send(ctx context.Context, req *model.Request) error
}

var (
	_ Sender = (*Client)(nil)
	_ Sender = (*MockClient)(nil)
)

// defaults holds the tags and metadata merged under every request.
type defaults struct {
	mu       sync.RWMutex
	tags     model.TagSet
	metadata map[string]any
}

func (d *defaults) DefaultTags() model.TagSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tags.Clone()
}

func (d *defaults) DefaultMetadata() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.metadata)
}

func (d *defaults) SetDefaultTags(tags model.TagSet) {
	d.mu.Lock()
	d.tags = tags.Clone()
	d.mu.Unlock()
}

func (d *defaults) SetDefaultMetadata(md map[string]any) {
	d.mu.Lock()
	d.metadata = maps.Clone(md)
	d.mu.Unlock()
}

// apply returns a copy of req with the defaults underneath; request values win.
func (d *defaults) apply(req *model.Request) *model.Request {
	d.mu.RLock()
	defer d.mu.RUnlock()

	md := make(map[string]any, len(d.metadata)+len(req.Metadata))
	maps.Copy(md, d.metadata)
	maps.Copy(md, req.Metadata)

	return &model.Request{
		Message:  req.Message,
		Tags:     d.tags.Merge(req.Tags),
		Metadata: md,
	}
}

// Option configures a Client at dial time.
type Option func(*Client)

func WithDefaultTags(tags model.TagSet) Option {
	return func(c *Client) { c.SetDefaultTags(tags) }
}

func WithDefaultMetadata(md map[string]any) Option {
	return func(c *Client) { c.SetDefaultMetadata(md) }
}

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// Client publishes requests over an outbound WebSocket connection.
type Client struct {
	defaults

	header http.Header
	conn   *websocket.Conn
	wmu    sync.Mutex
}

// Dial opens a connection to rawURL. query is appended to the handshake URL so
// the client can present its own key, secret and tags.
func Dial(ctx context.Context, rawURL string, query url.Values, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, model.Validationf("client.dial", "invalid url '%s'", rawURL).WithCause(err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), c.header)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// Send merges the defaults under req and writes the wire request.
// Requests without a message are refused before anything is sent.
// The write is bounded by the context deadline when one is set.
func (c *Client) Send(ctx context.Context, req *model.Request) error {
	if err := checkMessage(req); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := codec.Encode(c.apply(req))
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Read blocks for the next routed payload.
func (c *Client) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close performs the closing handshake and releases the socket.
func (c *Client) Close() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

func checkMessage(req *model.Request) error {
	if req == nil || req.Message == nil {
		return model.Validationf("client.send", "the provided request must have a message")
	}
	if s, ok := req.Message.(string); ok && s == "" {
		return model.Validationf("client.send", "the provided request must have a message")
	}
	return nil
}
