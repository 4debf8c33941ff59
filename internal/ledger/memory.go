package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is the cause attached to calls on a Memory ledger that has
// been marked unavailable.
var ErrUnavailable = errors.New("ledger offline")

type entry struct {
	value   []byte
	version uint64
}

// Memory is an in-process Versioned ledger.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	data    map[string]entry
	offline bool
}

// NewMemory creates an empty, available ledger.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

// SetAvailable toggles simulated reachability. While unavailable every call
// fails with STORE_UNAVAILABLE.
func (m *Memory) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = !ok
}

func (m *Memory) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.offline && ctx.Err() == nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	v, _, err := m.GetVersioned(ctx, key)
	return v, err
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return unavailable("set", key, ErrUnavailable)
	}
	e := m.data[key]
	m.data[key] = entry{value: copyBytes(value), version: e.version + 1}
	return nil
}

func (m *Memory) GetVersioned(ctx context.Context, key string) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, 0, unavailable("get", key, ErrUnavailable)
	}
	e, ok := m.data[key]
	if !ok {
		return nil, 0, nil
	}
	return copyBytes(e.value), e.version, nil
}

func (m *Memory) CompareAndSet(ctx context.Context, key string, value []byte, expected uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("compare-and-set", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return false, unavailable("compare-and-set", key, ErrUnavailable)
	}
	e := m.data[key]
	if e.version != expected {
		return false, nil
	}
	m.data[key] = entry{value: copyBytes(value), version: e.version + 1}
	return true, nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
