package index

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/datastore"
)

// Command creates the index command for maintaining the session database.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the session index database",
	}

	cmd.PersistentFlags().StringVar(&settings.Storage.Index.Type, "type", viper.GetString("storage.index.type"), "Index database type (sqlite or mysql)")
	cmd.PersistentFlags().StringVar(&settings.Storage.Index.SQLite.Path, "sqlite-path", viper.GetString("storage.index.sqlite.path"), "Path of the SQLite index")

	cmd.AddCommand(rebuildCommand(settings), statsCommand(settings))
	return cmd
}

func rebuildCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-index every record in the log directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.NewFileStore(nil, settings.Storage.LogDir)
			if err != nil {
				return err
			}
			idx, err := datastore.OpenIndex(settings.Storage.Index)
			if err != nil {
				return err
			}
			defer idx.Close()

			start := time.Now()
			n, err := idx.Rebuild(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d sessions from %s in %s\n", n, store.Dir(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func statsCommand(settings *conf.Settings) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics of indexed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("days must be positive, got %d", days)
			}
			idx, err := datastore.OpenIndex(settings.Storage.Index)
			if err != nil {
				return err
			}
			defer idx.Close()

			st, err := idx.Stats(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Sessions in the last %d days: %d\n", days, st.Sessions)
			if st.Sessions == 0 {
				return nil
			}
			fmt.Fprintf(w, "Sleep score: avg %.2f, min %.2f, max %.2f\n", st.AverageScore, st.MinScore, st.MaxScore)
			fmt.Fprintf(w, "Average duration: %.2f hours\n", st.AverageHours)
			fmt.Fprintf(w, "Motion events: %d, sound peaks: %d\n", st.MotionEvents, st.SoundPeaks)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days to aggregate")
	return cmd
}
