package store

import (
	"context"
	"sort"
	"sync"

	idspkg "github.com/ichaaulia/supercart/internal/engine/ids"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
)

// Memory is a map-backed Store. Values round-trip through JSON so they
// behave exactly like documents in a real backend. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte // collection -> id -> payload
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string, v any) error {
	collection, id, err := SplitKey(key)
	if err != nil {
		return err
	}

	m.mu.RLock()
	raw, ok := m.docs[collection][id]
	m.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return jsoncodec.Unmarshal(raw, v)
}

func (m *Memory) Set(ctx context.Context, key string, v any) error {
	collection, id, err := SplitKey(key)
	if err != nil {
		return err
	}

	raw, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string][]byte)
	}
	m.docs[collection][id] = raw
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	collection, id, err := SplitKey(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.docs[collection], id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Append(ctx context.Context, collection string, v any) (string, error) {
	id := idspkg.CreateULID()
	if err := m.Set(ctx, Key(collection, id), v); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Scan(ctx context.Context, collection string, fn func(id string, raw []byte) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make(map[string][]byte, len(ids))
	for _, id := range ids {
		snapshot[id] = m.docs[collection][id]
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id, snapshot[id]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.docs = make(map[string]map[string][]byte)
	m.mu.Unlock()
	return nil
}
