package objectstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"edfanon/internal/services"
)

// Memory is an in-process Store used by tests and fakes.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// FailOn, when set, makes every operation on a matching key fail.
	FailOn string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), types: make(map[string]string)}
}

// Seed stores an object without the error plumbing, for test setup.
func (m *Memory) Seed(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
}

// ContentType returns the content type recorded for a key.
func (m *Memory) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[key]
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *Memory) fail(key, op string) error {
	if m.FailOn != "" && strings.Contains(key, m.FailOn) {
		return services.Wrap(services.ErrStorage, "objectstore", op, key, nil)
	}
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	if err := m.fail(prefix, "list"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if err := m.fail(key, "get"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, services.Wrap(services.ErrStorage, "objectstore", "get", key+" not found", nil)
	}
	return append([]byte(nil), body...), nil
}

func (m *Memory) Put(_ context.Context, key string, body []byte, contentType string) error {
	if err := m.fail(key, "put"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	if contentType != "" {
		m.types[key] = contentType
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if err := m.fail(key, "delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Copy(ctx context.Context, srcKey, dstKey string) error {
	body, err := m.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	return m.Put(ctx, dstKey, body, "")
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	if err := m.fail(key, "head"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}
