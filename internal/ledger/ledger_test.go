package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/record"
)

type backend struct {
	name string
	open func(t *testing.T) Versioned
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Versioned { return NewMemory() }},
		{"sqlite", func(t *testing.T) Versioned {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"pebble", func(t *testing.T) Versioned {
			p, err := OpenPebble("")
			require.NoError(t, err)
			t.Cleanup(func() { p.Close() })
			return p
		}},
	}
}

func TestLedger_GetSet(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t)
			assert.True(t, l.IsAvailable(ctx))

			v, err := l.Get(ctx, "record_keys")
			require.NoError(t, err)
			assert.Nil(t, v, "absent key reads as empty")

			require.NoError(t, l.Set(ctx, "record_keys", []byte(`["a"]`)))
			v, err = l.Get(ctx, "record_keys")
			require.NoError(t, err)
			assert.Equal(t, `["a"]`, string(v))

			require.NoError(t, l.Set(ctx, "record_keys", []byte(`["a","b"]`)))
			v, ver, err := l.GetVersioned(ctx, "record_keys")
			require.NoError(t, err)
			assert.Equal(t, `["a","b"]`, string(v))
			assert.Equal(t, uint64(2), ver)
		})
	}
}

func TestLedger_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t)

			ok, err := l.CompareAndSet(ctx, "k", []byte("one"), 0)
			require.NoError(t, err)
			assert.True(t, ok, "create when absent")

			ok, err = l.CompareAndSet(ctx, "k", []byte("dup"), 0)
			require.NoError(t, err)
			assert.False(t, ok, "absent expectation fails once key exists")

			ok, err = l.CompareAndSet(ctx, "k", []byte("two"), 1)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = l.CompareAndSet(ctx, "k", []byte("stale"), 1)
			require.NoError(t, err)
			assert.False(t, ok, "stale version loses")

			v, ver, err := l.GetVersioned(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "two", string(v))
			assert.Equal(t, uint64(2), ver)
		})
	}
}

func TestLedger_ConcurrentCASSingleWinner(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t)
			require.NoError(t, l.Set(ctx, "k", []byte("base")))

			const n = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := l.CompareAndSet(ctx, "k", []byte("next"), 1)
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.verifyPragma("journal_mode", "wal"))
	require.NoError(t, s.verifyPragma("synchronous", "1"))
	require.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	require.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "record_r1", []byte(`{"score":"FHE-NzI="}`)))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ver, err := s2.GetVersioned(ctx, "record_r1")
	require.NoError(t, err)
	assert.Equal(t, `{"score":"FHE-NzI="}`, string(v))
	assert.Equal(t, uint64(1), ver)
}

func TestPebble_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pebble")

	p1, err := OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, p1.Set(ctx, "record_keys", []byte(`["r1"]`)))
	require.NoError(t, p1.Close())
	require.NoError(t, p1.Close(), "second close is a no-op")

	p2, err := OpenPebble(dir)
	require.NoError(t, err)
	defer p2.Close()

	v, ver, err := p2.GetVersioned(ctx, "record_keys")
	require.NoError(t, err)
	assert.Equal(t, `["r1"]`, string(v))
	assert.Equal(t, uint64(1), ver)
}

func TestPebble_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	p, err := OpenPebble("")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.False(t, p.IsAvailable(ctx))
	_, err = p.Get(ctx, "k")
	assert.True(t, record.IsStoreUnavailable(err))
}

func TestMemory_Offline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetAvailable(false)

	assert.False(t, m.IsAvailable(ctx))
	_, err := m.Get(ctx, "k")
	assert.True(t, record.IsStoreUnavailable(err))
	assert.ErrorIs(t, err, ErrUnavailable)
	err = m.Set(ctx, "k", []byte("v"))
	assert.True(t, record.IsStoreUnavailable(err))

	m.SetAvailable(true)
	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	assert.Equal(t, 1, m.Keys())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Get(ctx, "k")
	assert.True(t, record.IsStoreUnavailable(err))
}

func TestPlain_HidesVersioning(t *testing.T) {
	p := Plain(NewMemory())
	_, ok := p.(Versioned)
	assert.False(t, ok)

	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "k", []byte("v")))
	v, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}

func TestOpen(t *testing.T) {
	l, err := Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, l)
	assert.NoError(t, Close(l))

	l, err = Open(DriverSQLite, filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.NoError(t, Close(l))

	_, err = Open("etcd", "")
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	l := Instrument(NewMemory(), m)

	v, ok := l.(Versioned)
	require.True(t, ok, "instrumenting keeps the versioned capability")

	require.NoError(t, l.Set(ctx, "k", []byte("v")))
	_, err := l.Get(ctx, "k")
	require.NoError(t, err)
	_, err = v.CompareAndSet(ctx, "k", []byte("w"), 1)
	require.NoError(t, err)

	assert.Equal(t, 3, testutil.CollectAndCount(m.Registry(), "fhetutor_ledger_operations_total"))
	assert.Equal(t, l, Instrument(l, nil))
}
