package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/record"
	"github.com/roach88/fhetutor/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Codec codec.Codec
	Refs  map[string]string
	Ctx   context.Context
}

func (a *AssertionContext) resolve(ref string) string {
	if id, ok := a.Refs[ref]; ok {
		return id
	}
	return ref
}

// EvaluateAssertions evaluates all assertions against the final records.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Store == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a record store", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertRecordStatus:
				err = assertRecordStatus(actx, assertion)
			case AssertRecordCount:
				err = assertRecordCount(actx, assertion)
			case AssertScoreRange:
				err = assertScoreRange(actx, assertion)
			case AssertIndexConsistent:
				err = assertIndexConsistent(actx)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertRecordStatus(actx *AssertionContext, a Assertion) error {
	id := actx.resolve(a.Ref)
	r, err := actx.Store.GetRecord(actx.Ctx, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecordStatus,
			Expected: fmt.Sprintf("record %s (%s) with status %s", a.Ref, id, a.Status),
			Actual:   err.Error(),
		}
	}
	if string(r.Status) != a.Status {
		return &AssertionError{
			Type:     AssertRecordStatus,
			Expected: fmt.Sprintf("record %s status %s", a.Ref, a.Status),
			Actual:   fmt.Sprintf("status %s", r.Status),
		}
	}
	return nil
}

func assertRecordCount(actx *AssertionContext, a Assertion) error {
	records, err := actx.Store.ListRecords(actx.Ctx)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	count := 0
	for _, r := range records {
		if a.Status == "" || string(r.Status) == a.Status {
			count++
		}
	}

	if count != *a.Count {
		what := "records"
		if a.Status != "" {
			what = a.Status + " records"
		}
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
		}
	}
	return nil
}

func assertScoreRange(actx *AssertionContext, a Assertion) error {
	if actx.Codec == nil {
		return fmt.Errorf("score_range requires a codec")
	}

	id := actx.resolve(a.Ref)
	expected := fmt.Sprintf("score of %s in [%g, %g)", a.Ref, *a.Min, *a.Max)

	r, err := actx.Store.GetRecord(actx.Ctx, id)
	if err != nil {
		return &AssertionError{Type: AssertScoreRange, Expected: expected, Actual: err.Error()}
	}
	v, err := actx.Codec.Decode(r.EncryptedScore)
	if err != nil {
		return &AssertionError{Type: AssertScoreRange, Expected: expected, Actual: err.Error()}
	}
	if v < *a.Min || v >= *a.Max {
		return &AssertionError{
			Type:     AssertScoreRange,
			Expected: expected,
			Actual:   fmt.Sprintf("score %g", v),
		}
	}
	return nil
}

// assertIndexConsistent checks that no id was appended twice and that every
// indexed id resolves to a readable record.
func assertIndexConsistent(actx *AssertionContext) error {
	ids, err := actx.Store.ReadIndex(actx.Ctx)
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return &AssertionError{
				Type:     AssertIndexConsistent,
				Expected: "each id indexed once",
				Actual:   fmt.Sprintf("%s indexed more than once", id),
			}
		}
		seen[id] = true

		if _, err := actx.Store.GetRecord(actx.Ctx, id); err != nil {
			actual := err.Error()
			if record.IsNotFound(err) {
				actual = fmt.Sprintf("%s indexed without a record", id)
			}
			return &AssertionError{
				Type:     AssertIndexConsistent,
				Expected: "every indexed id resolves",
				Actual:   actual,
			}
		}
	}
	return nil
}
