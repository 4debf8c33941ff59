package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/fhetutor/internal/insights"
	"github.com/roach88/fhetutor/internal/record"
)

// Dashboard sizes.
const (
	topSubjects  = 5
	recentPoints = 5
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Owner string
}

// StatsResult is the JSON payload of the stats command.
type StatsResult struct {
	Summary     insights.Summary        `json:"summary"`
	Catalogue   int                     `json:"catalogue_subjects"`
	TopSubjects []insights.SubjectCount `json:"top_subjects"`
	Recent      []insights.Point        `json:"recent"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show learning statistics",
		Long: `Summarize the records on the ledger: counts per status, total study
hours, average score, the most studied subjects and recent performance.
Subjects counts the distinct subjects studied against the catalogue size.

Example:
  fhetutor stats
  fhetutor stats --owner 0xA11ce --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only records owned by this wallet")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) (err error) {
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

	records := all
	if opts.Owner != "" {
		records = make([]record.LearningRecord, 0, len(all))
		for _, r := range all {
			if record.SameOwner(r.Owner, opts.Owner) {
				records = append(records, r)
			}
		}
	}

	result := StatsResult{
		Summary:     insights.Summarize(records, app.codec),
		Catalogue:   app.service.Catalogue().Len(),
		TopSubjects: insights.TopSubjects(records, topSubjects),
		Recent:      insights.RecentPerformance(records, app.codec, recentPoints),
	}

	if out.JSON() {
		return out.Success(result)
	}

	w := out.Writer
	sum := result.Summary
	if sum.Total == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	fmt.Fprintf(w, "  %-12s %s (%d pending, %d analyzed, %d archived)\n", "Records:",
		humanize.Comma(int64(sum.Total)), sum.Pending, sum.Analyzed, sum.Archived)
	fmt.Fprintf(w, "  %-12s %s\n", "Study hours:", humanize.Ftoa(sum.StudyHours))
	fmt.Fprintf(w, "  %-12s %s\n", "Avg score:", humanize.FtoaWithDigits(sum.AverageScore, 1))
	fmt.Fprintf(w, "  %-12s %d of %d\n", "Subjects:", sum.Subjects, result.Catalogue)
	if sum.Unreadable > 0 {
		fmt.Fprintf(w, "  %-12s %d\n", "Unreadable:", sum.Unreadable)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Top subjects")
	for _, s := range result.TopSubjects {
		fmt.Fprintf(w, "  %-20s %3d  %3.0f%%\n", s.Subject, s.Count, s.Share*100)
	}

	if len(result.Recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent performance")
		for _, p := range result.Recent {
			fmt.Fprintf(w, "  %-20s %s\n", p.Subject, humanize.FtoaWithDigits(p.Score, 1))
		}
	}
	return nil
}
