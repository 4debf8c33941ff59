package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/fhetutor/internal/appstate"
	"github.com/roach88/fhetutor/internal/record"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (rejected transition, failed scenarios, etc.)
	ExitCommandError = 2 // Command error (bad flags, invalid config, ledger not reachable, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the command already rendered the failure, so
	// main must not print it again.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already rendered to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // record error code, e.g. "NOT_FOUND"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// statusLine holds a command's application state and renders the
// transaction banner the way a terminal shows it: an arrow while pending,
// then a check or a cross.
type statusLine struct {
	out   *OutputFormatter
	state appstate.State
}

func newStatusLine(out *OutputFormatter) *statusLine {
	return &statusLine{out: out}
}

// dispatch reduces a into the state. Only transaction actions print.
func (s *statusLine) dispatch(a appstate.Action) {
	s.state = appstate.Reduce(s.state, a)
	if s.out.JSON() {
		return
	}
	switch a.(type) {
	case appstate.TxStarted, appstate.TxSucceeded, appstate.TxFailed:
	default:
		return
	}
	tx := s.state.Tx
	switch tx.Phase {
	case appstate.PhasePending:
		fmt.Fprintf(s.out.Writer, "%s %s\n", color.CyanString("→"), tx.Message)
	case appstate.PhaseSuccess:
		fmt.Fprintf(s.out.Writer, "%s %s\n", color.GreenString("✓"), tx.Message)
	case appstate.PhaseError:
		fmt.Fprintf(s.out.Writer, "%s %s\n", color.RedString("✗"), tx.Message)
	}
}

// Message returns the current banner text.
func (s *statusLine) Message() string {
	return s.state.Tx.Message
}

// track runs fn as a three-phase transaction. A failure is rendered once,
// as the error banner in text mode or an error response in JSON mode, and
// returned as a reported ExitError.
func (s *statusLine) track(op appstate.Op, fn func() error) error {
	s.dispatch(appstate.TxStarted{Op: op})
	if err := fn(); err != nil {
		s.dispatch(appstate.TxFailed{Op: op, Err: err})
		return s.fail(err)
	}
	s.dispatch(appstate.TxSucceeded{Op: op})
	return nil
}

func (s *statusLine) fail(err error) error {
	if s.out.JSON() {
		code, _, details := describe(err)
		_ = s.out.Error(code, s.Message(), details)
	}
	return reported(err)
}

// fail renders err as an error response and returns it as a reported
// ExitError.
func fail(out *OutputFormatter, err error) error {
	code, message, details := describe(err)
	_ = out.Error(code, message, details)
	return reported(err)
}

// reported wraps err with its exit code. Only an unreachable ledger is a
// command error; every other record error is an operation failure.
func reported(err error) error {
	code := ExitFailure
	if record.IsStoreUnavailable(err) {
		code = ExitCommandError
	}
	c, _, _ := describe(err)
	return &ExitError{Code: code, Message: c, Err: err, Reported: true}
}

// describe splits err into the code, message and details shown to users.
func describe(err error) (code, message string, details any) {
	var re *record.Error
	if !errors.As(err, &re) {
		return "ERROR", err.Error(), nil
	}
	message = re.Message
	if re.Err != nil {
		message = fmt.Sprintf("%s: %v", message, re.Err)
	}
	if re.RecordID != "" {
		details = map[string]string{"record": re.RecordID}
	}
	return string(re.Code), message, details
}
