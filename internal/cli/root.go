package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scantrail/scantrail/internal/history"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "scantrail",
	Short: "Supply-chain artifact scan tracker",
	Long: `scantrail - Supply-chain artifact scan tracker

Drives batches of files through heuristic threat analysis, classifies each
file on a fixed severity scale, and keeps a durable, queryable history of
completed scan sessions.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Storage flags
	rootCmd.PersistentFlags().String("history", "scantrail.db", "History database path (SQLite)")
	rootCmd.PersistentFlags().Int("max-entries", history.DefaultMaxEntries, "Maximum retained history entries")

	// Output flags
	rootCmd.PersistentFlags().IntP("verbose", "v", 0, "Verbosity level (0-3)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scantrail %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// buildLogger maps the verbosity flag to slog levels, writing to stderr.
func buildLogger(verbose int) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbose >= 3:
		level = slog.LevelDebug
	case verbose >= 2:
		level = slog.LevelInfo
	case verbose >= 1:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore opens the history store using the shared persistent flags.
func openStore(cmd *cobra.Command, logger *slog.Logger) (history.Store, error) {
	path, _ := cmd.Flags().GetString("history")
	maxEntries, _ := cmd.Flags().GetInt("max-entries")

	store, err := history.NewSQLiteStore(path,
		history.WithMaxEntries(maxEntries),
		history.WithStoreLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %q: %w", path, err)
	}
	return store, nil
}
