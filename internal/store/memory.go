package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store for tests.
type Memory struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

func (m *Memory) Read(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return EmptyObject, nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Write(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &Error{Op: "write", Key: key, Err: ErrInvalidJSON}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *Memory) Close() error {
	return nil
}
