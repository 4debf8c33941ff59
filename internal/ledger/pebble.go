package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const versionPrefixLen = 8

var errClosed = errors.New("pebble ledger closed")

// Pebble is a Versioned ledger on an embedded Pebble store. Each value is
// stored as an 8-byte big-endian version followed by the payload.
//
// Writes are serialized by a process-local mutex so that the read of the
// current version and the batch commit happen as one step.
type Pebble struct {
	mu     sync.Mutex
	db     *pebble.DB
	closed bool
}

// OpenPebble opens or creates a Pebble ledger in the directory path.
// An empty path opens a throwaway in-memory store.
func OpenPebble(path string) (*Pebble, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	} else if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ledger dir: %w", err)
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

// Close flushes and closes the store. Safe to call more than once.
func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

func (p *Pebble) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && ctx.Err() == nil
}

func (p *Pebble) Get(ctx context.Context, key string) ([]byte, error) {
	v, _, err := p.GetVersioned(ctx, key)
	return v, err
}

func (p *Pebble) GetVersioned(ctx context.Context, key string) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, 0, unavailable("get", key, errClosed)
	}
	return p.read(key)
}

func (p *Pebble) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", key, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return unavailable("set", key, errClosed)
	}

	_, version, err := p.read(key)
	if err != nil {
		return err
	}
	return p.write(key, value, version+1)
}

func (p *Pebble) CompareAndSet(ctx context.Context, key string, value []byte, expected uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("compare-and-set", key, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, unavailable("compare-and-set", key, errClosed)
	}

	_, version, err := p.read(key)
	if err != nil {
		return false, err
	}
	if version != expected {
		return false, nil
	}
	if err := p.write(key, value, version+1); err != nil {
		return false, err
	}
	return true, nil
}

// read must be called with mu held.
func (p *Pebble) read(key string) ([]byte, uint64, error) {
	raw, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	defer closer.Close()

	if len(raw) < versionPrefixLen {
		return nil, 0, unavailable("get", key, fmt.Errorf("value shorter than version prefix"))
	}
	version := binary.BigEndian.Uint64(raw[:versionPrefixLen])
	return copyBytes(raw[versionPrefixLen:]), version, nil
}

// write must be called with mu held.
func (p *Pebble) write(key string, value []byte, version uint64) error {
	buf := make([]byte, versionPrefixLen+len(value))
	binary.BigEndian.PutUint64(buf, version)
	copy(buf[versionPrefixLen:], value)

	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(key), buf, nil); err != nil {
		return unavailable("set", key, err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}
