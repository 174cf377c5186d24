/*
Package registry keeps the set of open connections and answers tag queries over it.

Key Architectural Concepts:
  - Handle Arena: every registered connection receives a monotonically increasing
    Handle. The TagIndex works purely over handles; the Hub resolves handles back
    to sendable connectors.
  - Non-owning Index: the Hub never keeps a connector alive past Unregister. The
    transport owns the connector and the association is dropped immediately.
  - Concurrency Management: one goroutine per WebSocket session calls into the Hub,
    so every TagIndex access is serialised by a single RWMutex. Fan-out sends happen
    outside the lock on a snapshot returned by Match.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// Hubber defines the gateway for connection registration and tag routing.
type Hubber interface {
	Register(conn model.Connector, tags model.TagSet) (Handle, error)
	Unregister(connID uuid.UUID) bool
	IsConnected(connID uuid.UUID) bool
	Match(tags model.TagSet) []model.Connector
	Count() int
	Stats() model.HubStats
	Shutdown()
}

var _ Hubber = (*Hub)(nil)

type hubConfig struct {
	capacity int
}

// Hub implements a [LOCKED_REGISTRY] over a TagIndex.
type Hub struct {
	mu sync.RWMutex

	index   *TagIndex
	conns   map[Handle]model.Connector
	handles map[uuid.UUID]Handle
	next    Handle

	startedAt time.Time
	config    hubConfig
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		index:     NewTagIndex(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.conns = make(map[Handle]model.Connector, h.config.capacity)
	h.handles = make(map[uuid.UUID]Handle, h.config.capacity)
	return h
}

// Register assigns a fresh handle to conn and indexes it under tags.
// Registering the same connection twice is rejected with ErrAlreadyRegistered.
func (h *Hub) Register(conn model.Connector, tags model.TagSet) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.handles[conn.GetID()]; ok {
		return 0, ErrAlreadyRegistered
	}

	handle := h.next + 1
	if err := h.index.Add(handle, tags); err != nil {
		return 0, err
	}
	h.next = handle

	h.conns[handle] = conn
	h.handles[conn.GetID()] = handle
	return handle, nil
}

// Unregister drops the connection from the index. Unknown IDs are a no-op.
func (h *Hub) Unregister(connID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	handle, ok := h.handles[connID]
	if !ok {
		return false
	}

	h.index.Delete(handle)
	delete(h.conns, handle)
	delete(h.handles, connID)
	return true
}

func (h *Hub) IsConnected(connID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.handles[connID]
	return ok
}

// Match resolves a tag query to a snapshot of connectors.
func (h *Hub) Match(tags model.TagSet) []model.Connector {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handles := h.index.FindByTags(tags)
	out := make([]model.Connector, 0, len(handles))
	for _, handle := range handles {
		if conn, ok := h.conns[handle]; ok {
			out = append(out, conn)
		}
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.index.Count()
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return model.HubStats{
		TotalConnections: h.index.Count(),
		TotalTags:        h.index.BucketCount(),
		Uptime:           time.Since(h.startedAt),
	}
}

// Shutdown closes every registered connector and resets the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]model.Connector, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.index.Reset()
	h.conns = make(map[Handle]model.Connector)
	h.handles = make(map[uuid.UUID]Handle)
	h.mu.Unlock()

	// [GRACEFUL_SHUTDOWN] Close outside the lock; transports unwinding may call Unregister.
	for _, conn := range conns {
		conn.Close()
	}
}
