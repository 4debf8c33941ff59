package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/fhetutor/internal/authz"
	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/lifecycle"
	"github.com/roach88/fhetutor/internal/record"
	"github.com/roach88/fhetutor/internal/store"
	"github.com/roach88/fhetutor/internal/testutil"
)

// Deterministic settings every scenario runs with.
const (
	// Noise is the fixed noise sample, so analyze maps v to v*0.8 + 10.
	Noise = 0.5

	// StepInterval is how far the clock moves before each step.
	StepInterval = time.Second

	// Signature is what the scenario signer returns.
	Signature = "0xscenario"

	publicKey = "0x04a1b2c3d4e5f60718293a4b5c6d7e8f"
)

// Harness is the test execution engine.
// It runs scenarios with a fixed clock, sequential record ids and a
// codec whose noise is pinned to Noise.
type Harness struct {
	store     *store.Store
	service   *lifecycle.Service
	codec     codec.Codec
	clock     *testutil.FixedClock
	logger    *slog.Logger
	owner     string
	decryptor map[bool]*authz.Decryptor
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory ledger, store and lifecycle service
// 2. Execute steps, checking each against its expect_error
// 3. Evaluate assertions against the final records
// 4. Return result with pass/fail, trace, and errors
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario.Owner)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{
		Store: h.store,
		Codec: h.codec,
		Refs:  result.Refs,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(owner string) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewFixedClock(testutil.DefaultEpoch)
	c := codec.NewSimulated(codec.WithNoise(func() float64 { return Noise }))

	st := store.New(ledger.NewMemory(), store.Options{
		IDs:    testutil.NewSequenceIDs("rec"),
		Logger: logger,
	})

	p, err := authz.NewProtocol(c, authz.Config{
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		ChainID:         11155111,
		SettleDelay:     -1,
		PublicKey:       publicKey,
		Clock:           clock,
		IDs:             testutil.NewSequenceIDs("attempt"),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decrypt protocol: %w", err)
	}

	return &Harness{
		store:   st,
		service: lifecycle.New(st, c, lifecycle.Options{Clock: clock, Logger: logger}),
		codec:   c,
		clock:   clock,
		logger:  logger,
		owner:   owner,
		decryptor: map[bool]*authz.Decryptor{
			false: authz.NewDecryptor(p, testutil.NewStaticSigner(Signature), nil),
			true:  authz.NewDecryptor(p, testutil.NewRejectingSigner(), nil),
		},
	}, nil
}

// executeStep runs one step, records it in the trace and checks its
// expectation. Operation errors are outcomes, not harness failures.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	h.clock.Advance(StepInterval)

	caller := step.As
	if caller == "" {
		caller = h.owner
	}
	id := step.Ref
	if bound, ok := result.Refs[step.Ref]; ok {
		id = bound
	}

	ev := TraceEvent{Op: step.Op, As: caller, Ref: step.Ref}
	var err error

	switch step.Op {
	case OpSubmit:
		id, err = h.service.Submit(ctx, lifecycle.SubmitRequest{
			Owner:       caller,
			Subject:     step.Subject,
			TestScore:   step.Score,
			StudyHours:  step.Hours,
			Description: step.Description,
		})
		if err == nil && step.Ref != "" {
			result.Refs[step.Ref] = id
		}
	case OpAnalyze:
		_, err = h.service.Analyze(ctx, id, caller)
	case OpArchive:
		_, err = h.service.Archive(ctx, id, caller)
	case OpReveal:
		var r record.LearningRecord
		if r, err = h.service.Record(ctx, id); err == nil {
			var v float64
			if v, err = h.decryptor[step.Decline].Reveal(ctx, r); err == nil {
				ev.Score = &v
			}
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	ev.Record = id
	ev.Outcome = outcome(err)
	if id != "" {
		if r, getErr := h.store.GetRecord(ctx, id); getErr == nil {
			ev.Status = string(r.Status)
		}
	}
	result.AddStep(ev)

	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
	case step.ExpectError != "" && ev.Outcome != step.ExpectError:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Op, step.ExpectError, ev.Outcome))
	}

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"record", id,
		"outcome", ev.Outcome,
	)
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := record.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
