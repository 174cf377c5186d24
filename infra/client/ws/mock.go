package wsclient

import (
	"context"
	"sync"

	"github.com/webitel/im-tag-router/internal/domain/model"
	"github.com/webitel/im-tag-router/internal/domain/registry"
)

// MockClient records sent requests in a TagIndex instead of sending them.
// Requests are tracked by pointer identity.
type MockClient struct {
	defaults

	mu      sync.Mutex
	index   *registry.TagIndex
	handles map[*model.Request]registry.Handle
	reqs    map[registry.Handle]*model.Request
	next    registry.Handle
}

func NewMockClient() *MockClient {
	return &MockClient{
		index:   registry.NewTagIndex(),
		handles: make(map[*model.Request]registry.Handle),
		reqs:    make(map[registry.Handle]*model.Request),
	}
}

// Send records req under its own tags. Sending the same request twice is a validation error.
func (m *MockClient) Send(_ context.Context, req *model.Request) error {
	if err := checkMessage(req); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handles[req]; ok {
		return registry.ErrAlreadyRegistered
	}
	h := m.next + 1
	if err := m.index.Add(h, req.Tags); err != nil {
		return err
	}
	m.next = h
	m.handles[req] = h
	m.reqs[h] = req
	return nil
}

func (m *MockClient) Contains(req *model.Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[req]
	return ok
}

func (m *MockClient) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Count()
}

// FindByTags returns the recorded requests whose tags contain every given pair.
func (m *MockClient) FindByTags(tags model.TagSet) []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := m.index.FindByTags(tags)
	out := make([]*model.Request, 0, len(handles))
	for _, h := range handles {
		out = append(out, m.reqs[h])
	}
	return out
}

func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Reset()
	m.handles = make(map[*model.Request]registry.Handle)
	m.reqs = make(map[registry.Handle]*model.Request)
}
