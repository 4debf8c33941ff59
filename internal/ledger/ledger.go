package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/record"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

// Ledger is the external key/value store holding record and index blobs.
//
// Get returns (nil, nil) for an absent key. I/O failures are reported as
// STORE_UNAVAILABLE record errors.
type Ledger interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	IsAvailable(ctx context.Context) bool
}

// Versioned is a Ledger that stamps every key with a version and can
// conditionally overwrite it. Version 0 means the key is absent; each Set or
// successful CompareAndSet increments the version by one.
type Versioned interface {
	Ledger
	GetVersioned(ctx context.Context, key string) ([]byte, uint64, error)
	CompareAndSet(ctx context.Context, key string, value []byte, expected uint64) (bool, error)
}

// Plain hides any versioning capability of l, leaving only Get/Set.
// Stores built on a Plain ledger fall back to read-modify-write.
func Plain(l Ledger) Ledger {
	return plain{l}
}

type plain struct {
	l Ledger
}

func (p plain) Get(ctx context.Context, key string) ([]byte, error) { return p.l.Get(ctx, key) }
func (p plain) Set(ctx context.Context, key string, value []byte) error {
	return p.l.Set(ctx, key, value)
}
func (p plain) IsAvailable(ctx context.Context) bool { return p.l.IsAvailable(ctx) }

// Open creates the backend named by driver. path is ignored for the memory
// driver. Persistent backends implement io.Closer.
func Open(driver, path string) (Ledger, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPebble:
		p, err := OpenPebble(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
}

// Close closes l if the backend holds resources.
func Close(l Ledger) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Instrument counts every call on l. The returned ledger is Versioned
// whenever l is.
func Instrument(l Ledger, m *metrics.Metrics) Ledger {
	if m == nil {
		return l
	}
	base := instrumented{l: l, m: m}
	if v, ok := l.(Versioned); ok {
		return instrumentedVersioned{instrumented: base, v: v}
	}
	return base
}

type instrumented struct {
	l Ledger
	m *metrics.Metrics
}

func (i instrumented) observe(op string, err error) {
	if err != nil {
		i.m.LedgerOp(op, metrics.ResultError)
		return
	}
	i.m.LedgerOp(op, metrics.ResultOK)
}

func (i instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := i.l.Get(ctx, key)
	i.observe("get", err)
	return v, err
}

func (i instrumented) Set(ctx context.Context, key string, value []byte) error {
	err := i.l.Set(ctx, key, value)
	i.observe("set", err)
	return err
}

func (i instrumented) IsAvailable(ctx context.Context) bool {
	return i.l.IsAvailable(ctx)
}

// Close forwards to the wrapped backend.
func (i instrumented) Close() error {
	return Close(i.l)
}

type instrumentedVersioned struct {
	instrumented
	v Versioned
}

func (i instrumentedVersioned) GetVersioned(ctx context.Context, key string) ([]byte, uint64, error) {
	v, ver, err := i.v.GetVersioned(ctx, key)
	i.observe("get_versioned", err)
	return v, ver, err
}

func (i instrumentedVersioned) CompareAndSet(ctx context.Context, key string, value []byte, expected uint64) (bool, error) {
	ok, err := i.v.CompareAndSet(ctx, key, value, expected)
	i.observe("compare_and_set", err)
	return ok, err
}

func unavailable(op, key string, err error) error {
	return record.NewStoreUnavailableError(fmt.Sprintf("%s %s", op, key), err)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
