package harness

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int    `json:"seq"`
	Op  string `json:"op"`
	As  string `json:"as"`
	Ref string `json:"ref,omitempty"`

	// Record is the id the step touched, when known.
	Record string `json:"record,omitempty"`

	// Outcome is OutcomeOK or the error code the step returned.
	Outcome string `json:"outcome"`

	// Status is the record's status after the step.
	Status string `json:"status,omitempty"`

	// Score is the plaintext a reveal step produced.
	Score *float64 `json:"score,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Refs maps scenario refs to the record ids they were bound to.
	Refs map[string]string `json:"refs,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Refs:   make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends ev to the trace, numbering it.
func (r *Result) AddStep(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
