package harness

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/record"
	"github.com/roach88/fhetutor/internal/store"
	"github.com/roach88/fhetutor/internal/testutil"
)

func seeded(t *testing.T) (*AssertionContext, *ledger.Memory) {
	t.Helper()
	ctx := context.Background()
	c := codec.NewSimulated()
	l := ledger.NewMemory()
	st := store.New(l, store.Options{
		IDs:    testutil.NewSequenceIDs("rec"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for _, r := range []record.LearningRecord{
		{EncryptedScore: c.Encode(40), Timestamp: 1, Owner: "0xa", Subject: "Physics", Status: record.StatusPending},
		{EncryptedScore: c.Encode(72), Timestamp: 2, Owner: "0xa", Subject: "History", Status: record.StatusAnalyzed},
	} {
		_, err := st.CreateRecord(ctx, r)
		require.NoError(t, err)
	}

	return &AssertionContext{
		Store: st,
		Codec: c,
		Refs:  map[string]string{"first": "rec-001", "second": "rec-002"},
		Ctx:   ctx,
	}, l
}

func TestAssertRecordStatus(t *testing.T) {
	actx, _ := seeded(t)

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRecordStatus, Ref: "first", Status: "pending"},
		{Type: AssertRecordStatus, Ref: "rec-002", Status: "analyzed"},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions([]Assertion{
		{Type: AssertRecordStatus, Ref: "first", Status: "archived"},
		{Type: AssertRecordStatus, Ref: "ghost", Status: "pending"},
	}, actx)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Expected: record first status archived")
	assert.Contains(t, errs[0], "Actual: status pending")
	assert.Contains(t, errs[1], "NOT_FOUND")
}

func TestAssertRecordCount(t *testing.T) {
	actx, _ := seeded(t)

	assert.Empty(t, EvaluateAssertions([]Assertion{
		{Type: AssertRecordCount, Count: count(2)},
		{Type: AssertRecordCount, Status: "pending", Count: count(1)},
		{Type: AssertRecordCount, Status: "archived", Count: count(0)},
	}, actx))

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRecordCount, Status: "analyzed", Count: count(3)},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: 3 analyzed records")
	assert.Contains(t, errs[0], "Actual: 1 analyzed records")
}

func TestAssertScoreRange(t *testing.T) {
	actx, _ := seeded(t)

	assert.Empty(t, EvaluateAssertions([]Assertion{
		{Type: AssertScoreRange, Ref: "second", Min: score(72), Max: score(73)},
	}, actx))

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertScoreRange, Ref: "first", Min: score(30), Max: score(40)},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "score of first in [30, 40)")
	assert.Contains(t, errs[0], "Actual: score 40")
}

func TestAssertIndexConsistent(t *testing.T) {
	actx, l := seeded(t)
	ctx := context.Background()

	assert.Empty(t, EvaluateAssertions([]Assertion{{Type: AssertIndexConsistent}}, actx))

	require.NoError(t, l.Set(ctx, store.IndexKey, []byte(`["rec-001","rec-002","rec-001"]`)))
	errs := EvaluateAssertions([]Assertion{{Type: AssertIndexConsistent}}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "rec-001 indexed more than once")

	require.NoError(t, l.Set(ctx, store.IndexKey, []byte(`["rec-001","rec-009"]`)))
	errs = EvaluateAssertions([]Assertion{{Type: AssertIndexConsistent}}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "rec-009 indexed without a record")
}

func TestEvaluateAssertions_NoStore(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: AssertRecordCount, Count: count(0)}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires a record store")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	actx, _ := seeded(t)
	errs := EvaluateAssertions([]Assertion{{Type: "trace_contains"}}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "trace_contains"`)
}
