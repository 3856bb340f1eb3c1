package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scantrail/scantrail/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query and manage recorded scan sessions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			printEntries(store.List(ctx))
			return nil
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search file names, classifications, tags, and notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			printEntries(store.Search(ctx, args[0]))
			return nil
		})
	},
}

var historyFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter sessions by threat level or date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		startRaw, _ := cmd.Flags().GetString("start")
		endRaw, _ := cmd.Flags().GetString("end")

		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			if startRaw != "" || endRaw != "" {
				start, end, err := parseDateFlags(startRaw, endRaw)
				if err != nil {
					return err
				}
				printEntries(store.FilterByDateRange(ctx, start, end))
				return nil
			}
			printEntries(store.FilterByThreatLevel(ctx, level))
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded session in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			for _, entry := range store.List(ctx) {
				if entry.ID == args[0] {
					printEntryDetail(entry)
					return nil
				}
			}
			return fmt.Errorf("history entry %q not found", args[0])
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one recorded session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			if err := store.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Println("History cleared")
			return nil
		})
	},
}

var historyNotesCmd = &cobra.Command{
	Use:   "notes <id> <text>",
	Short: "Set the notes on a recorded session (overwrites)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			return store.SetNotes(ctx, args[0], strings.Join(args[1:], " "))
		})
	},
}

var historyTagCmd = &cobra.Command{
	Use:   "tag <id> <tag>...",
	Short: "Add tags to a recorded session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			return store.AddTags(ctx, args[0], args[1:])
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full history as pretty-printed JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, _ := cmd.Flags().GetString("output")

		return withStore(cmd, func(ctx context.Context, store history.Store) error {
			out := os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output file %q: %w", outputPath, err)
				}
				defer f.Close()
				out = f
			}
			return store.ExportAll(ctx, out)
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(
		historyListCmd,
		historySearchCmd,
		historyFilterCmd,
		historyShowCmd,
		historyDeleteCmd,
		historyClearCmd,
		historyNotesCmd,
		historyTagCmd,
		historyExportCmd,
	)

	historyFilterCmd.Flags().String("level", history.LevelAll, "Threat level (clean, suspicious, malicious, critical, ALL)")
	historyFilterCmd.Flags().String("start", "", "Range start (YYYY-MM-DD or RFC 3339)")
	historyFilterCmd.Flags().String("end", "", "Range end (YYYY-MM-DD or RFC 3339)")

	historyExportCmd.Flags().StringP("output", "o", "", "Output file path (default stdout)")
}

// withStore opens the history store, runs fn, and closes the store.
func withStore(cmd *cobra.Command, fn func(context.Context, history.Store) error) error {
	verbose, _ := cmd.Flags().GetInt("verbose")
	store, err := openStore(cmd, buildLogger(verbose))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cmd.Context(), store)
}

// parseDateFlags accepts bare dates or full RFC 3339 timestamps. A bare
// end date extends to the end of that day so the bound stays inclusive.
func parseDateFlags(startRaw, endRaw string) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC().AddDate(100, 0, 0)

	parse := func(raw string) (time.Time, bool, error) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, false, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", raw)
		}
		return t, true, nil
	}

	if startRaw != "" {
		t, _, err := parse(startRaw)
		if err != nil {
			return start, end, err
		}
		start = t
	}
	if endRaw != "" {
		t, bare, err := parse(endRaw)
		if err != nil {
			return start, end, err
		}
		if bare {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = t
	}
	return start, end, nil
}

// printEntries renders a compact listing of history entries.
func printEntries(entries []*history.HistoricalScan) {
	if len(entries) == 0 {
		fmt.Println("No history entries.")
		return
	}

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	for _, e := range entries {
		verdict := green("clean")
		if e.ThreatsFound > 0 {
			verdict = red(fmt.Sprintf("%d threat(s)", e.ThreatsFound))
		}
		fmt.Printf("%s  %s  %d file(s)  %s  avg risk %d\n",
			e.ID,
			e.RecordedAt.Local().Format("2006-01-02 15:04"),
			e.TotalFiles,
			verdict,
			e.AvgRiskScore,
		)
	}
}

// printEntryDetail renders one entry in full.
func printEntryDetail(e *history.HistoricalScan) {
	fmt.Printf("Entry:     %s\n", e.ID)
	fmt.Printf("Session:   %s\n", e.SessionID)
	fmt.Printf("Recorded:  %s\n", e.RecordedAt.Local().Format(time.RFC1123))
	fmt.Printf("Files:     %d (%d threat(s), %d clean)\n", e.TotalFiles, e.ThreatsFound, e.CleanFiles)
	fmt.Printf("Avg risk:  %d/100\n", e.AvgRiskScore)
	fmt.Printf("Duration:  %ds\n", e.DurationSeconds)
	fmt.Printf("Tags:      %s\n", strings.Join(e.Tags, ", "))
	if e.Notes != "" {
		fmt.Printf("Notes:     %s\n", e.Notes)
	}
	for _, f := range e.Files {
		fmt.Printf("  %s  %s  risk %d  %s\n", f.Name, f.ThreatLevel, f.RiskScore, f.SHA256)
		for _, d := range f.Detections {
			fmt.Printf("    - [%s] %s\n", d.Category, d.Description)
		}
	}
}
