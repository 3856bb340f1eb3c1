package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scantrail/scantrail/internal/analyzer"
	"github.com/scantrail/scantrail/internal/report"
	"github.com/scantrail/scantrail/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>...",
	Short: "Scan a batch of files and record the session",
	Long: `Scan drives the given files through heuristic threat analysis in
submission order, prints a report, and records the completed session in the
history database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Duration("pace", 0, "Artificial delay between pipeline stages (cosmetic)")
	scanCmd.Flags().StringP("format", "f", "text", "Report format (text, json)")
	scanCmd.Flags().StringP("output", "o", "", "Report output file path")
	scanCmd.Flags().Bool("no-record", false, "Skip recording the session into history")
	scanCmd.Flags().Bool("progress", false, "Print per-file progress while scanning")
}

// runScan wires up the full pipeline: read inputs -> tracker -> report ->
// history record.
func runScan(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetInt("verbose")
	pace, _ := cmd.Flags().GetDuration("pace")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	showProgress, _ := cmd.Flags().GetBool("progress")

	logger := buildLogger(verbose)

	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	// CTRL+C aborts the batch gracefully at the next stage boundary.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tracker := scan.NewTracker(analyzer.New().Analyze,
		scan.WithPace(pace),
		scan.WithRecommender(analyzer.Recommend),
		scan.WithLogger(logger),
	)

	if showProgress || verbose > 0 {
		unsubscribe := tracker.Subscribe(progressPrinter())
		defer unsubscribe()
	}

	fmt.Printf("[*] Scanning %d file(s)\n", len(inputs))

	session, scanErr := tracker.StartSession(ctx, inputs)
	if scanErr != nil && session.State != scan.SessionAborted {
		return fmt.Errorf("scan error: %w", scanErr)
	}
	if session.State == scan.SessionAborted {
		fmt.Printf("[!] Scan aborted after %d/%d file(s)\n", session.Completed, session.Total)
	}

	// Record the completed session unless told otherwise. Aborted
	// sessions are not archived.
	if !noRecord && session.State == scan.SessionCompleted {
		store, err := openStore(cmd, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		entry, err := store.Record(ctx, session, session.Outcomes)
		if err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		fmt.Printf("[*] Recorded history entry %s\n", entry.ID)
	}

	reporter, err := report.New(format)
	if err != nil {
		return fmt.Errorf("unknown report format %q: %w", format, err)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", outputPath, err)
		}
		defer f.Close()
		out = f
		if text, ok := reporter.(*report.TextReporter); ok {
			text.NoColor = true
		}
	}

	if err := reporter.Generate(cmd.Context(), session, out); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Analyze a single file without creating a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck performs an ad hoc single-file analysis, bypassing session and
// history entirely.
func runCheck(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetInt("verbose")

	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	tracker := scan.NewTracker(analyzer.New().Analyze,
		scan.WithRecommender(analyzer.Recommend),
		scan.WithLogger(buildLogger(verbose)),
	)

	outcome, err := tracker.AnalyzeOne(cmd.Context(), inputs[0])
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Printf("%s: %s (risk %d/100)\n",
		outcome.File.Name, strings.ToUpper(outcome.ThreatLevel.String()), outcome.RiskScore)
	for _, det := range outcome.Detections {
		fmt.Printf("  - [%s] %s\n", det.Category, det.Description)
	}
	for _, rec := range outcome.Recommendations {
		fmt.Printf("  > %s\n", rec)
	}
	return nil
}

// readInputs loads the named files into FileInputs. The declared type is
// inferred from the extension; the tracker computes hashes.
func readInputs(paths []string) ([]scan.FileInput, error) {
	inputs := make([]scan.FileInput, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, err)
		}
		name := filepath.Base(path)
		inputs = append(inputs, scan.FileInput{
			Name:         name,
			Size:         int64(len(content)),
			DeclaredType: declaredType(name),
			Content:      content,
		})
	}
	return inputs, nil
}

// declaredType guesses a MIME type from the file extension, without the
// charset suffix TypeByExtension appends to text types.
func declaredType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if idx := strings.IndexByte(t, ';'); idx >= 0 {
		t = t[:idx]
	}
	return t
}

// progressPrinter returns a subscriber that prints per-file lifecycle
// lines with severity coloring.
func progressPrinter() scan.Subscriber {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	return func(ev scan.Event) {
		switch ev.Type {
		case scan.EventFileStarted:
			fmt.Printf("[*] %s: scanning\n", ev.Outcome.File.Name)
		case scan.EventFileCompleted:
			label := green("clean")
			if ev.Outcome.ThreatLevel != scan.LevelClean {
				label = red(ev.Outcome.ThreatLevel.String())
			}
			fmt.Printf("[*] %s: %s (risk %d)\n",
				ev.Outcome.File.Name, label, ev.Outcome.RiskScore)
		case scan.EventFileFailed:
			fmt.Printf("[!] %s: %s\n", ev.Outcome.File.Name, yellow("failed"))
		case scan.EventSessionCompleted:
			fmt.Printf("[*] Session %s completed: %d threat(s), %d clean\n",
				ev.Session.ID, ev.Session.Threats, ev.Session.Clean)
		}
	}
}
