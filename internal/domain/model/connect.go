package model

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Interface guard
var _ Connector = (*connect)(nil)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timed out")
)

// ConnState is the per-connection lifecycle: Pending -> Open -> Closed.
type ConnState int32

const (
	StatePending ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// [CONNECTOR] THE CONTRACT BETWEEN THE TRANSPORT AND THE ROUTING CORE
// The transport owns the connector; the registry only references it by handle.
type Connector interface {
	GetID() uuid.UUID
	Query() url.Values
	Metadata() ConnectMetadata
	Send(data []byte, timeout time.Duration) error // Thread-safe, bounded by timeout
	Recv() <-chan []byte
	Done() <-chan struct{}
	State() ConnState
	MarkOpen() bool   // Pending -> Open, false if the connector already left Pending
	MarkClosed() bool // * -> Closed, false if it was already Closed
	Dropped() uint64  // Sends shed because the buffer stayed full
	Close()           // Terminate the connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	RemoteIP  string
	UserAgent string
}

type connect struct {
	id        uuid.UUID
	query     url.Values
	metadata  ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh    chan []byte
	state     atomic.Int32
	closeOnce sync.Once // [PROTECTION]

	droppedCount atomic.Uint64
}

// NewConnector builds a Pending connector for a transport session. The query
// is copied so later mutation by the transport cannot leak into routing.
func NewConnector(ctx context.Context, query url.Values, meta ConnectMetadata, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)

	q := make(url.Values, len(query))
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}

	return &connect{
		id:        uuid.New(),
		query:     q,
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan []byte, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID          { return c.id }
func (c *connect) Query() url.Values         { return c.query }
func (c *connect) Metadata() ConnectMetadata { return c.metadata }
func (c *connect) Recv() <-chan []byte       { return c.sendCh }
func (c *connect) Done() <-chan struct{}     { return c.ctx.Done() }
func (c *connect) State() ConnState          { return ConnState(c.state.Load()) }

// Dropped returns how many sends were abandoned because the buffer stayed full.
func (c *connect) Dropped() uint64 { return c.droppedCount.Load() }

func (c *connect) MarkOpen() bool {
	return c.state.CompareAndSwap(int32(StatePending), int32(StateOpen))
}

func (c *connect) MarkClosed() bool {
	return ConnState(c.state.Swap(int32(StateClosed))) != StateClosed
}

// Send enqueues data for the write pump, waiting at most timeout for buffer space.
func (c *connect) Send(data []byte, timeout time.Duration) error {
	// [LIFECYCLE_GATE] Abort immediately if the transport is already dead.
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case c.sendCh <- data:
		return nil
	case <-timer.C:
		// [BACKPRESSURE_THRESHOLD] Slow consumer; the event is shed for this session only.
		c.droppedCount.Add(1)
		return ErrSendTimeout
	}
}

// Close cancels the session context. The send channel is never closed, so a
// concurrent Send cannot panic; write pumps select on Done instead.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
