package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/record"
)

// ErrContention is the cause reported when a compare-and-set write keeps
// losing to concurrent writers for MaxRetries attempts.
var ErrContention = errors.New("compare-and-set contention")

// ReadIndex returns the KeyIndex as stored, duplicates included.
// A missing or malformed index reads as empty.
func (s *Store) ReadIndex(ctx context.Context) ([]string, error) {
	raw, err := s.ledger.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	return s.parseIndex(raw), nil
}

func (s *Store) parseIndex(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.logger.Warn("malformed record index, treating as empty",
			"key", IndexKey,
			"error", err,
		)
		s.metrics.Skipped("malformed_index")
		return nil
	}
	return ids
}

// appendIndex adds id to the KeyIndex using the strongest primitive the
// ledger offers.
func (s *Store) appendIndex(ctx context.Context, id string) error {
	if s.versioned != nil {
		return s.appendIndexCAS(ctx, s.versioned, id)
	}
	return s.appendIndexRMW(ctx, id)
}

// appendIndexRMW is the unguarded read-modify-write. Concurrent callers can
// overwrite each other's append.
func (s *Store) appendIndexRMW(ctx context.Context, id string) error {
	raw, err := s.ledger.Get(ctx, IndexKey)
	if err != nil {
		return err
	}
	ids := s.parseIndex(raw)
	if slices.Contains(ids, id) {
		return nil
	}

	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := s.ledger.Set(ctx, IndexKey, data); err != nil {
		return err
	}
	s.metrics.IndexAppend("rmw")
	return nil
}

// appendIndexCAS retries a version-guarded append until it wins or the
// retry budget is spent. Retries after the first attempt wait on the
// store's rate limiter.
func (s *Store) appendIndexCAS(ctx context.Context, v ledger.Versioned, id string) error {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if attempt > 1 {
			if err := s.limiter.Wait(ctx); err != nil {
				return record.NewStoreUnavailableError("append index", err)
			}
		}

		raw, version, err := v.GetVersioned(ctx, IndexKey)
		if err != nil {
			return err
		}
		ids := s.parseIndex(raw)
		if slices.Contains(ids, id) {
			return nil
		}

		data, err := json.Marshal(append(ids, id))
		if err != nil {
			return fmt.Errorf("marshal index: %w", err)
		}

		ok, err := v.CompareAndSet(ctx, IndexKey, data, version)
		if err != nil {
			return err
		}
		if ok {
			s.metrics.IndexAppend("cas")
			return nil
		}

		s.metrics.IndexConflict()
		s.logger.Debug("record index changed concurrently, retrying",
			"id", id,
			"attempt", attempt,
			"version", version,
		)
	}

	return record.NewStoreUnavailableError(
		fmt.Sprintf("append %s to index after %d attempts", id, s.maxRetries),
		ErrContention,
	)
}
