package contentstore

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/mr-tron/base58"
)

// Memory is an in-process Store for tests and local runs. Ids are
// sha2-256 multihashes in base58, shaped like CIDv0.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	names   map[string]string
	failErr error
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		names:   make(map[string]string),
	}
}

// FailUploads makes every later Upload return err; nil restores success.
func (m *Memory) FailUploads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Upload stores data under its content hash.
func (m *Memory) Upload(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}

	sum := sha256.Sum256(data)
	cid := base58.Encode(append([]byte{0x12, 0x20}, sum[:]...))
	m.objects[cid] = append([]byte(nil), data...)
	m.names[cid] = name
	return Scheme + cid, nil
}

// Fetch returns the content behind locator.
func (m *Memory) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[CID(locator)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Name returns the upload name recorded for locator.
func (m *Memory) Name(locator string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[CID(locator)]
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
