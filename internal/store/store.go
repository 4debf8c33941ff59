package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/record"
)

// Reserved ledger keys.
const (
	IndexKey        = "record_keys"
	RecordKeyPrefix = "record_"
)

// Defaults for the compare-and-set index append.
const (
	DefaultMaxRetries    = 8
	DefaultRetryInterval = 5 * time.Millisecond
)

// RecordKey returns the ledger key of a record blob.
func RecordKey(id string) string {
	return RecordKeyPrefix + id
}

// Mutator computes the new value of a record from its current value.
// Returning an error aborts the update without writing.
type Mutator func(current record.LearningRecord) (record.LearningRecord, error)

// Options configures a Store. Zero values select defaults.
type Options struct {
	IDs           IDGenerator
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	MaxRetries    int
	RetryInterval time.Duration
}

// Store is the only component that touches the ledger.
//
// Thread-safety: Store is safe for concurrent use if its ledger is.
type Store struct {
	ledger    ledger.Ledger
	versioned ledger.Versioned
	ids       IDGenerator
	logger    *slog.Logger
	metrics   *metrics.Metrics

	maxRetries int
	limiter    *rate.Limiter
}

// New creates a Store over l. If l implements ledger.Versioned, index
// appends and record updates use compare-and-set.
func New(l ledger.Ledger, opts Options) *Store {
	s := &Store{
		ledger:     l,
		ids:        opts.IDs,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		maxRetries: opts.MaxRetries,
	}
	if v, ok := l.(ledger.Versioned); ok {
		s.versioned = v
	}
	if s.ids == nil {
		s.ids = UUIDv7Generator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	s.limiter = rate.NewLimiter(rate.Every(interval), 1)
	return s
}

// Versioned reports whether the store uses compare-and-set.
func (s *Store) Versioned() bool {
	return s.versioned != nil
}

func (s *Store) checkAvailable(ctx context.Context, op string) error {
	if !s.ledger.IsAvailable(ctx) {
		return record.NewStoreUnavailableError(op, ledger.ErrUnavailable)
	}
	return nil
}

// ListRecords returns every indexed record, newest first.
//
// Duplicate index entries are listed once. Records whose blob is missing
// or unparseable are skipped and logged. Ledger failures are returned.
func (s *Store) ListRecords(ctx context.Context) ([]record.LearningRecord, error) {
	if err := s.checkAvailable(ctx, "list records"); err != nil {
		return nil, err
	}

	ids, err := s.ReadIndex(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	records := make([]record.LearningRecord, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		raw, err := s.ledger.Get(ctx, RecordKey(id))
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			s.logger.Warn("indexed record has no blob, skipping", "id", id)
			s.metrics.Skipped("missing_blob")
			continue
		}
		r, err := record.UnmarshalBlob(id, raw)
		if err != nil {
			s.logger.Warn("record blob unreadable, skipping", "id", id, "error", err)
			s.metrics.Skipped("malformed_blob")
			continue
		}
		records = append(records, r)
	}

	slices.SortFunc(records, func(a, b record.LearningRecord) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return records, nil
}

// GetRecord reads one record by id.
func (s *Store) GetRecord(ctx context.Context, id string) (record.LearningRecord, error) {
	if err := s.checkAvailable(ctx, "get record"); err != nil {
		return record.LearningRecord{}, err
	}
	raw, err := s.ledger.Get(ctx, RecordKey(id))
	if err != nil {
		return record.LearningRecord{}, err
	}
	return decode(id, raw)
}

// CreateRecord assigns a fresh id to candidate, writes its blob and then
// appends the id to the KeyIndex. The candidate's ID field is ignored.
func (s *Store) CreateRecord(ctx context.Context, candidate record.LearningRecord) (string, error) {
	if err := s.checkAvailable(ctx, "create record"); err != nil {
		return "", err
	}

	id := s.ids.Generate()
	candidate.ID = id
	if candidate.Status == "" {
		candidate.Status = record.StatusPending
	}

	data, err := record.MarshalBlob(candidate)
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	if err := s.ledger.Set(ctx, RecordKey(id), data); err != nil {
		return "", err
	}
	if err := s.appendIndex(ctx, id); err != nil {
		s.logger.Error("record written but not indexed", "id", id, "error", err)
		return "", err
	}

	s.logger.Debug("record created", "id", id, "subject", candidate.Subject)
	return id, nil
}

// UpdateRecord applies mutate to the current value of id and writes the
// result back. The KeyIndex is not touched.
//
// On a versioned ledger the write is a compare-and-set and mutate is
// re-run against the fresh blob whenever a concurrent write wins.
// The id, owner and timestamp of a record are immutable.
func (s *Store) UpdateRecord(ctx context.Context, id string, mutate Mutator) (record.LearningRecord, error) {
	if err := s.checkAvailable(ctx, "update record"); err != nil {
		return record.LearningRecord{}, err
	}
	if s.versioned == nil {
		return s.updatePlain(ctx, id, mutate)
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if attempt > 1 {
			if err := s.limiter.Wait(ctx); err != nil {
				return record.LearningRecord{}, record.NewStoreUnavailableError("update record", err)
			}
		}

		raw, version, err := s.versioned.GetVersioned(ctx, RecordKey(id))
		if err != nil {
			return record.LearningRecord{}, err
		}
		next, data, err := s.apply(id, raw, mutate)
		if err != nil {
			return record.LearningRecord{}, err
		}

		ok, err := s.versioned.CompareAndSet(ctx, RecordKey(id), data, version)
		if err != nil {
			return record.LearningRecord{}, err
		}
		if ok {
			return next, nil
		}
		s.logger.Debug("record changed concurrently, retrying", "id", id, "attempt", attempt)
	}

	return record.LearningRecord{}, record.NewStoreUnavailableError(
		fmt.Sprintf("update %s after %d attempts", id, s.maxRetries),
		ErrContention,
	)
}

func (s *Store) updatePlain(ctx context.Context, id string, mutate Mutator) (record.LearningRecord, error) {
	raw, err := s.ledger.Get(ctx, RecordKey(id))
	if err != nil {
		return record.LearningRecord{}, err
	}
	next, data, err := s.apply(id, raw, mutate)
	if err != nil {
		return record.LearningRecord{}, err
	}
	if err := s.ledger.Set(ctx, RecordKey(id), data); err != nil {
		return record.LearningRecord{}, err
	}
	return next, nil
}

func (s *Store) apply(id string, raw []byte, mutate Mutator) (record.LearningRecord, []byte, error) {
	current, err := decode(id, raw)
	if err != nil {
		return record.LearningRecord{}, nil, err
	}

	next, err := mutate(current)
	if err != nil {
		return record.LearningRecord{}, nil, err
	}
	next.ID = id
	if next.Owner != current.Owner || next.Timestamp != current.Timestamp {
		return record.LearningRecord{}, nil, fmt.Errorf("update %s: owner and timestamp are immutable", id)
	}

	data, err := record.MarshalBlob(next)
	if err != nil {
		return record.LearningRecord{}, nil, fmt.Errorf("update %s: %w", id, err)
	}
	return next, data, nil
}

func decode(id string, raw []byte) (record.LearningRecord, error) {
	if len(raw) == 0 {
		return record.LearningRecord{}, record.NewNotFoundError(id)
	}
	r, err := record.UnmarshalBlob(id, raw)
	if err != nil {
		return record.LearningRecord{}, fmt.Errorf("record %s: %w", id, err)
	}
	return r, nil
}
