package sessions

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/notification"
)

const defaultRecent = 7

// Command creates the sessions command with its list, recent and show
// subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Query saved sleep sessions",
	}

	cmd.PersistentFlags().StringVar(&settings.Storage.LogDir, "logdir", viper.GetString("storage.logdir"), "Directory holding the session records")
	cmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")

	cmd.AddCommand(listCommand(settings), recentCommand(settings), showCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}
			return printSummaries(cmd, list)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of sessions to list, 0 for all")
	return cmd
}

func recentCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "recent [N]",
		Short: "Show the last N sessions, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := defaultRecent
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("invalid session count %q", args[0])
				}
				n = v
			}

			store, err := openStore(settings)
			if err != nil {
				return err
			}
			list, err := store.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printSummaries(cmd, list)
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show the full record of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec.Report == nil {
				if rec.Report, err = rec.Rescore(); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(w, rec)
			}

			n := notification.FormatReport(settings.Main.Name, rec)
			fmt.Fprintln(w, n.Title)
			fmt.Fprintf(w, "Session: %s\n", args[0])
			fmt.Fprintf(w, "From %s to %s\n", rec.StartTime.Format("2006-01-02 15:04:05"), rec.EndTime.Format("2006-01-02 15:04:05"))
			fmt.Fprintln(w, n.Message)
			return nil
		},
	}
}

func openStore(settings *conf.Settings) (*datastore.FileStore, error) {
	return datastore.NewFileStore(afero.NewOsFs(), settings.Storage.LogDir)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummaries(cmd *cobra.Command, list []datastore.Summary) error {
	w := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		if list == nil {
			list = []datastore.Summary{}
		}
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.ID,
			s.Date,
			s.StartTime.Format("15:04"),
			s.EndTime.Format("15:04"),
			s.MonitoringDuration,
			fmt.Sprintf("%.2f", s.SleepScore),
			strconv.Itoa(s.MovementEvents),
			strconv.Itoa(s.NoiseEvents),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SESSION", "DATE", "START", "END", "DURATION", "SCORE", "MOTION", "SOUND").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
