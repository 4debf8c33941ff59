package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedClock_StartsAtEpoch(t *testing.T) {
	clock := NewFixedClock(time.Time{})
	assert.Equal(t, int64(1700000000), clock.Now().Unix())
	assert.Equal(t, clock.Now(), clock.Now(), "reading does not advance")
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	clock := NewFixedClock(time.Unix(100, 0))

	assert.Equal(t, int64(160), clock.Advance(time.Minute).Unix())
	assert.Equal(t, int64(160), clock.Now().Unix())

	clock.Set(time.Unix(5, 0))
	assert.Equal(t, int64(5), clock.Now().Unix())
}

func TestTickingClock(t *testing.T) {
	clock := NewTickingClock(time.Unix(10, 0), time.Second)

	assert.Equal(t, int64(10), clock.Now().Unix())
	assert.Equal(t, int64(11), clock.Now().Unix())
	assert.Equal(t, int64(12), clock.Now().Unix())
}

func TestSequenceIDs(t *testing.T) {
	gen := NewSequenceIDs("")
	assert.Equal(t, "rec-001", gen.Generate())
	assert.Equal(t, "rec-002", gen.Generate())

	other := NewSequenceIDs("att")
	assert.Equal(t, "att-001", other.Generate())
}

func TestSequenceIDs_ConcurrentUnique(t *testing.T) {
	gen := NewSequenceIDs("rec")
	const n = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestFixedIDs(t *testing.T) {
	gen := NewFixedIDs("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestStaticSigner(t *testing.T) {
	s := NewStaticSigner("0xsig")
	sig, err := s.Sign(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "0xsig", sig)
	assert.Equal(t, []string{"hello"}, s.Messages())

	r := NewRejectingSigner()
	_, err = r.Sign(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestBlockingSigner_Release(t *testing.T) {
	s := NewBlockingSigner()

	done := make(chan string, 1)
	go func() {
		sig, _ := s.Sign(context.Background(), "msg")
		done <- sig
	}()

	assert.Equal(t, "msg", <-s.Started())
	s.Release("0xok")
	assert.Equal(t, "0xok", <-done)
}

func TestBlockingSigner_Cancel(t *testing.T) {
	s := NewBlockingSigner()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := s.Sign(ctx, "msg")
		errc <- err
	}()

	<-s.Started()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}
