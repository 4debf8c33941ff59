package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/fhetutor/internal/appstate"
	"github.com/roach88/fhetutor/internal/authz"
	"github.com/roach88/fhetutor/internal/insights"
	"github.com/roach88/fhetutor/internal/record"
)

// WindowOptions pins the challenge a signature was made for, so that
// challenge and reveal can run as separate invocations.
type WindowOptions struct {
	Start     int64  // unix seconds; 0 opens the window now
	PublicKey string // empty generates fresh key material
}

func (w *WindowOptions) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&w.Start, "start", 0, "challenge window start (unix seconds, default now)")
	cmd.Flags().StringVar(&w.PublicKey, "public-key", "", "public key bound into the challenge (default generated)")
}

func (w *WindowOptions) start() time.Time {
	if w.Start == 0 {
		return time.Time{}
	}
	return time.Unix(w.Start, 0)
}

// ChallengeOptions holds flags for the challenge command.
type ChallengeOptions struct {
	*RootOptions
	WindowOptions
}

// ChallengeResult is the JSON payload of the challenge command.
type ChallengeResult struct {
	Message        string    `json:"message"`
	Digest         string    `json:"digest"`
	PublicKey      string    `json:"public_key"`
	StartTimestamp int64     `json:"start_timestamp"`
	NotBefore      time.Time `json:"not_before"`
	NotAfter       time.Time `json:"not_after"`
	Hardened       bool      `json:"hardened"`
}

// NewChallengeCommand creates the challenge command.
func NewChallengeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChallengeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Print the decryption challenge to sign",
		Long: `Print the message a wallet must sign before a score can be revealed,
together with its EIP-191 digest and validity window.

Pass the printed --start and --public-key to reveal along with the
signature, so that reveal checks the same challenge.

Example:
  fhetutor challenge
  fhetutor challenge --start 1700000000 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChallenge(opts, cmd)
		},
	}

	opts.WindowOptions.bind(cmd)

	return cmd
}

func runChallenge(opts *ChallengeOptions, cmd *cobra.Command) (err error) {
	app, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	p, err := app.protocol(opts.start(), opts.PublicKey)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create decrypt protocol", err)
	}

	attempt := p.NewAttempt()
	message, err := attempt.RequestChallenge()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to issue challenge", err)
	}
	params := p.Params()
	notBefore, notAfter := params.Window()
	digest := "0x" + hex.EncodeToString(authz.Digest(message))

	out := newFormatter(opts.RootOptions, cmd)
	if out.JSON() {
		return out.Success(ChallengeResult{
			Message:        message,
			Digest:         digest,
			PublicKey:      params.PublicKey,
			StartTimestamp: params.StartTimestamp,
			NotBefore:      notBefore,
			NotAfter:       notAfter,
			Hardened:       p.Hardened(),
		})
	}

	w := out.Writer
	fmt.Fprintln(w, "Sign this message with your wallet:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, message)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-11s %s\n", "Digest:", digest)
	fmt.Fprintf(w, "  %-11s %s\n", "Valid from:", notBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "  %-11s %s\n", "Valid to:", notAfter.Format(time.RFC3339))
	if !p.Hardened() {
		fmt.Fprintf(w, "  %s signatures are not verified\n", color.YellowString("!"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then reveal with:")
	fmt.Fprintf(w, "  fhetutor reveal <record-id> --start %d --public-key %s --signature <signature>\n",
		params.StartTimestamp, params.PublicKey)
	return nil
}

// RevealOptions holds flags for the reveal command.
type RevealOptions struct {
	*RootOptions
	WindowOptions
	Signature string
}

// RevealResult is the JSON payload of the reveal command.
type RevealResult struct {
	Message        string                  `json:"message"`
	ID             string                  `json:"id"`
	Subject        string                  `json:"subject"`
	Score          float64                 `json:"score"`
	Recommendation insights.Recommendation `json:"recommendation"`
}

// NewRevealCommand creates the reveal command.
func NewRevealCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RevealOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reveal <record-id>",
		Short: "Decrypt a score after signing the challenge",
		Long: `Authorize a decrypt attempt and reveal the plaintext score of a record.
The value is printed once and never written back to the ledger.

Without --signature the challenge is signed locally: with the configured
signer key when one is set, otherwise with the --as address.

Example:
  fhetutor reveal --as 0xA11ce 0195f3c2-...
  fhetutor reveal 0195f3c2-... --start 1700000000 --public-key 0x04... --signature 0x9f...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReveal(opts, cmd, args[0])
		},
	}

	opts.WindowOptions.bind(cmd)
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "signature over the challenge from an external wallet")

	return cmd
}

func runReveal(opts *RevealOptions, cmd *cobra.Command, id string) (err error) {
	if opts.Signature == "" && strings.TrimSpace(opts.As) == "" {
		return NewExitError(ExitCommandError, "--as or --signature is required")
	}

	app, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer closeApp(app, &err)

	ctx := commandContext(cmd)
	out := newFormatter(opts.RootOptions, cmd)

	r, err := app.service.Record(ctx, id)
	if err != nil {
		return fail(out, err)
	}

	p, err := app.protocol(opts.start(), opts.PublicKey)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create decrypt protocol", err)
	}
	dec := authz.NewDecryptor(p, app.signer(opts.Signature, opts.As), nil)

	status := newStatusLine(out)
	status.dispatch(appstate.RecordsLoaded{Records: []record.LearningRecord{r}})
	status.dispatch(appstate.RecordSelected{ID: r.ID})
	defer func() {
		dec.Session().LockAll()
		status.dispatch(appstate.SelectionCleared{})
		status.dispatch(appstate.ValueLocked{})
	}()

	if err := status.track(appstate.OpReveal, func() error {
		stop := startSpinner(out, "Waiting for decryption...")
		defer stop()
		v, err := dec.Reveal(ctx, r)
		if err != nil {
			return err
		}
		status.dispatch(appstate.ValueRevealed{ID: r.ID, Value: v})
		return nil
	}); err != nil {
		return err
	}

	score, _ := status.state.RevealedValue(r.ID)
	rec := insights.Recommend(score, r, app.pick)
	if out.JSON() {
		return out.Success(RevealResult{
			Message:        status.Message(),
			ID:             r.ID,
			Subject:        r.Subject,
			Score:          score,
			Recommendation: rec,
		})
	}

	w := out.Writer
	fmt.Fprintf(w, "  %s  %s  score %s\n", r.ID, r.Subject, color.New(color.Bold).Sprint(humanize.Ftoa(score)))
	fmt.Fprintf(w, "  Suggestion: focus on %s in %s for about %d hours.\n",
		rec.FocusArea, rec.Subject, rec.SuggestedHours)
	return nil
}

// startSpinner shows a spinner on the diagnostic writer while a text-mode
// command waits. The returned func stops it.
func startSpinner(out *OutputFormatter, suffix string) func() {
	if out.JSON() {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out.GetErrWriter()))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

// staticSigner answers every challenge with a signature obtained elsewhere.
type staticSigner string

func (s staticSigner) Sign(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", record.NewSignatureRejectedError("signing cancelled", err)
	}
	return string(s), nil
}
