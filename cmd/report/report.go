package report

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/notification"
	"github.com/tphakala/sleepmon/internal/session"
)

// scoreTolerance absorbs the two-decimal rounding of stored reports.
const scoreTolerance = 0.01

// Command creates the command that recomputes the report of a saved record.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Recompute the sleep report of a saved session record",
		Long: "Read a sleep_log_*.json record, score it again from its timestamps and events " +
			"and print the report. A stored report that differs from the recomputed one is flagged.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := datastore.ReadRecord(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			stored := rec.Report

			rec.Report, err = rec.Rescore()
			if err != nil {
				return fmt.Errorf("cannot score %s: %w", args[0], err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rec.Report)
			}

			n := notification.FormatReport("", rec)
			fmt.Fprintln(w, n.Title)
			fmt.Fprintln(w, n.Message)
			if stored != nil && !Matches(stored, rec.Report) {
				fmt.Fprintf(w, "Note: stored report differs, stored score %.2f\n", stored.SleepScore)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report in the record's JSON layout")
	return cmd
}

// Matches reports whether two reports agree within rounding.
func Matches(a, b *session.SleepReport) bool {
	return a.MotionEventCount == b.MotionEventCount &&
		a.SoundPeakCount == b.SoundPeakCount &&
		math.Abs(a.SleepScore-b.SleepScore) <= scoreTolerance &&
		math.Abs(a.MonitoringDurationHours-b.MonitoringDurationHours) <= scoreTolerance
}
