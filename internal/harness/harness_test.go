package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }
func count(n int) *int         { return &n }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(72), Hours: 3, Ref: "r"},
		},
		Assertions: []Assertion{
			{Type: AssertRecordStatus, Ref: "r", Status: "pending"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{
		Seq:     1,
		Op:      OpSubmit,
		As:      "0xowner",
		Ref:     "r",
		Record:  "rec-001",
		Outcome: OutcomeOK,
		Status:  "pending",
	}, result.Trace[0])
	assert.Equal(t, map[string]string{"r": "rec-001"}, result.Refs)
}

func TestRun_FullLifecycle(t *testing.T) {
	scenario := &Scenario{
		Name:        "full",
		Description: "submit, analyze, reveal, archive",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(72), Ref: "r"},
			{Op: OpAnalyze, Ref: "r"},
			{Op: OpReveal, Ref: "r"},
			{Op: OpArchive, Ref: "r"},
		},
		Assertions: []Assertion{
			{Type: AssertRecordStatus, Ref: "r", Status: "archived"},
			{Type: AssertScoreRange, Ref: "r", Min: score(67.5), Max: score(67.7)},
			{Type: AssertIndexConsistent},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 4)
	reveal := result.Trace[2]
	require.NotNil(t, reveal.Score)
	assert.InDelta(t, 67.6, *reveal.Score, 1e-9)
	assert.Equal(t, "analyzed", reveal.Status)
	assert.Equal(t, "archived", result.Trace[3].Status)
}

func TestRun_ExpectedErrors(t *testing.T) {
	scenario := &Scenario{
		Name:        "errors",
		Description: "expected failures pass",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(10), Ref: "r"},
			{Op: OpArchive, Ref: "r", As: "0xother", ExpectError: "UNAUTHORIZED"},
			{Op: OpAnalyze, Ref: "missing", ExpectError: "NOT_FOUND"},
			{Op: OpSubmit, Subject: "Alchemy", Score: score(10), ExpectError: "VALIDATION"},
			{Op: OpReveal, Ref: "r", Decline: true, ExpectError: "SIGNATURE_REJECTED"},
		},
		Assertions: []Assertion{
			{Type: AssertRecordCount, Count: count(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	outcomes := make([]string, 0, len(result.Trace))
	for _, ev := range result.Trace {
		outcomes = append(outcomes, ev.Outcome)
	}
	assert.Equal(t, []string{"ok", "UNAUTHORIZED", "NOT_FOUND", "VALIDATION", "SIGNATURE_REJECTED"}, outcomes)

	assert.Equal(t, "missing", result.Trace[2].Record, "unbound refs are literal ids")
	assert.Empty(t, result.Trace[2].Status)
	assert.Empty(t, result.Trace[3].Record)
	assert.Nil(t, result.Trace[4].Score)
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "a failing step without expect_error fails the scenario",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpAnalyze, Ref: "nope"},
		},
		Assertions: []Assertion{{Type: AssertIndexConsistent}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] analyze: unexpected error")
}

func TestRun_WrongExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "expect_error must match the actual code",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(10), Ref: "r"},
			{Op: OpAnalyze, Ref: "r", ExpectError: "UNAUTHORIZED"},
		},
		Assertions: []Assertion{{Type: AssertIndexConsistent}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"steps[1] analyze: expected UNAUTHORIZED, got ok"}, result.Errors)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "assert",
		Description: "assertion failures are reported",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(10), Ref: "r"},
		},
		Assertions: []Assertion{
			{Type: AssertRecordStatus, Ref: "r", Status: "archived"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: record_status")
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeat",
		Description: "same input, same trace",
		Owner:       "0xowner",
		Steps: []Step{
			{Op: OpSubmit, Subject: "Physics", Score: score(90), Ref: "a"},
			{Op: OpSubmit, Subject: "History", Score: score(40), Ref: "b"},
			{Op: OpAnalyze, Ref: "b"},
			{Op: OpReveal, Ref: "b"},
		},
		Assertions: []Assertion{{Type: AssertRecordCount, Count: count(2)}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Trace, second.Trace)
}
