package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/fhetutor/internal/appstate"
	"github.com/roach88/fhetutor/internal/lifecycle"
	"github.com/roach88/fhetutor/internal/record"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Subject     string
	Score       float64
	Hours       float64
	Description string
}

// TxResult is the JSON payload of a mutating command.
type TxResult struct {
	Message string                `json:"message"`
	Record  record.LearningRecord `json:"record"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an encrypted test score",
		Long: `Encrypt a test score and store it as a new pending record owned by
the --as wallet.

Example:
  fhetutor submit --as 0xA11ce --subject Physics --score 72 --hours 3
  fhetutor submit --as 0xA11ce --subject History --score 88 --description "essay"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject from the catalogue")
	cmd.Flags().Float64Var(&opts.Score, "score", 0, "test score (required)")
	cmd.Flags().Float64Var(&opts.Hours, "hours", 0, "hours studied")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-form notes")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) (err error) {
	caller, err := requireCaller(opts.RootOptions)
	if err != nil {
		return err
	}
	app, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	req := lifecycle.SubmitRequest{
		Owner:       caller,
		Subject:     opts.Subject,
		StudyHours:  opts.Hours,
		Description: opts.Description,
	}
	// An omitted score is a validation error, not a zero.
	if cmd.Flags().Changed("score") {
		score := opts.Score
		req.TestScore = &score
	}

	ctx := commandContext(cmd)
	out := newFormatter(opts.RootOptions, cmd)
	status := newStatusLine(out)

	var id string
	if err := status.track(appstate.OpSubmit, func() error {
		var err error
		id, err = app.service.Submit(ctx, req)
		return err
	}); err != nil {
		return err
	}

	return printTx(ctx, app, out, status, id)
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, appstate.OpAnalyze,
		"Run the homomorphic analysis on a pending record",
		`Transform the encrypted score of a pending record without decrypting it
and mark the record analyzed. Only the owner may analyze.

Example:
  fhetutor analyze --as 0xA11ce 0195f3c2-...`,
		func(app *App) func(context.Context, string, string) (record.LearningRecord, error) {
			return app.service.Analyze
		})
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, appstate.OpArchive,
		"Archive a record",
		`Move a pending or analyzed record to the terminal archived state. The
ciphertext is kept as is. Only the owner may archive.

Example:
  fhetutor archive --as 0xA11ce 0195f3c2-...`,
		func(app *App) func(context.Context, string, string) (record.LearningRecord, error) {
			return app.service.Archive
		})
}

type transitionFunc func(app *App) func(ctx context.Context, id, caller string) (record.LearningRecord, error)

func newTransitionCommand(rootOpts *RootOptions, op appstate.Op, short, long string, transition transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:           string(op) + " <record-id>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(rootOpts, cmd, op, args[0], transition)
		},
	}
}

func runTransition(opts *RootOptions, cmd *cobra.Command, op appstate.Op, id string, transition transitionFunc) (err error) {
	caller, err := requireCaller(opts)
	if err != nil {
		return err
	}
	app, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	ctx := commandContext(cmd)
	out := newFormatter(opts, cmd)
	status := newStatusLine(out)

	if err := status.track(op, func() error {
		_, err := transition(app)(ctx, id, caller)
		return err
	}); err != nil {
		return err
	}

	return printTx(ctx, app, out, status, id)
}

// printTx reloads the record a transaction touched and prints it.
func printTx(ctx context.Context, app *App, out *OutputFormatter, status *statusLine, id string) error {
	r, err := app.service.Record(ctx, id)
	if err != nil {
		return fail(out, err)
	}
	if out.JSON() {
		return out.Success(TxResult{Message: status.Message(), Record: r})
	}
	fmt.Fprintf(out.Writer, "  %s  %s  %s\n", r.ID, r.Subject, statusLabel(r.Status))
	return nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Owner  string
	Status string
}

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Records []record.LearningRecord `json:"records"`
	Count   int                     `json:"count"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learning records, newest first",
		Long: `List every readable record on the ledger, newest first. Records whose
blob cannot be parsed are skipped.

Example:
  fhetutor list
  fhetutor list --owner 0xA11ce --status pending
  fhetutor list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only records owned by this wallet")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only records in this status (pending|analyzed|archived)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) (err error) {
	var want record.Status
	if opts.Status != "" {
		if want, err = record.ParseStatus(opts.Status); err != nil {
			return WrapExitError(ExitCommandError, "invalid --status", err)
		}
	}

	app, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	out := newFormatter(opts.RootOptions, cmd)
	all, err := app.service.Records(commandContext(cmd))
	if err != nil {
		return fail(out, err)
	}
	view := newStatusLine(out)
	view.dispatch(appstate.RecordsLoaded{Records: all})

	records := make([]record.LearningRecord, 0, len(view.state.Records))
	for _, r := range view.state.Records {
		if opts.Owner != "" && !record.SameOwner(r.Owner, opts.Owner) {
			continue
		}
		if want != "" && r.Status != want {
			continue
		}
		records = append(records, r)
	}
	out.VerboseLog("%d of %d records shown", len(records), len(view.state.Records))

	if out.JSON() {
		return out.Success(ListResult{Records: records, Count: len(records)})
	}

	if len(records) == 0 {
		fmt.Fprintln(out.Writer, "No records found.")
		return nil
	}
	printRecordTable(out.Writer, records, app.clock.Now())
	return nil
}

func printRecordTable(w io.Writer, records []record.LearningRecord, now time.Time) {
	headers := []string{"ID", "SUBJECT", "STATUS", "HOURS", "SUBMITTED", "OWNER"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Subject,
			r.Status.Label(),
			humanize.Ftoa(r.StudyHours),
			submittedAgo(r, now),
			r.Owner,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i == len(cells)-1 {
				b.WriteString(cell)
				break
			}
			fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w, b.String())
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one learning record",
		Long: `Show a record as stored on the ledger. The score stays encrypted; use
reveal to decrypt it.

Example:
  fhetutor show 0195f3c2-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
}

func runShow(opts *RootOptions, cmd *cobra.Command, id string) (err error) {
	app, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	out := newFormatter(opts, cmd)
	r, err := app.service.Record(commandContext(cmd), id)
	if err != nil {
		return fail(out, err)
	}

	if out.JSON() {
		return out.Success(r)
	}

	w := out.Writer
	submitted := time.Unix(r.Timestamp, 0).UTC()
	fmt.Fprintf(w, "  %-12s %s\n", "ID:", r.ID)
	fmt.Fprintf(w, "  %-12s %s\n", "Subject:", r.Subject)
	fmt.Fprintf(w, "  %-12s %s\n", "Status:", statusLabel(r.Status))
	fmt.Fprintf(w, "  %-12s %s\n", "Owner:", r.Owner)
	fmt.Fprintf(w, "  %-12s %s\n", "Study hours:", humanize.Ftoa(r.StudyHours))
	fmt.Fprintf(w, "  %-12s %s (%s)\n", "Submitted:", submitted.Format(time.RFC3339), submittedAgo(r, app.clock.Now()))
	if r.Description != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "Description:", r.Description)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "Ciphertext:", r.EncryptedScore)
	return nil
}

func submittedAgo(r record.LearningRecord, now time.Time) string {
	return humanize.RelTime(time.Unix(r.Timestamp, 0), now, "ago", "from now")
}

// statusLabel colours a status label for terminals.
func statusLabel(s record.Status) string {
	switch s {
	case record.StatusAnalyzed:
		return color.GreenString(s.Label())
	case record.StatusArchived:
		return color.HiBlackString(s.Label())
	default:
		return color.YellowString(s.Label())
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
