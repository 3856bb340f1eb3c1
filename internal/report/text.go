package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/scantrail/scantrail/internal/scan"
)

const (
	doubleLine = "═" // ═
	singleLine = "─" // ─
	lineWidth  = 50
)

// Severity color functions for terminal output.
var (
	colorCritical   = color.New(color.FgRed, color.Bold).SprintFunc()
	colorMalicious  = color.New(color.FgRed).SprintFunc()
	colorSuspicious = color.New(color.FgYellow).SprintFunc()
	colorClean      = color.New(color.FgGreen).SprintFunc()
	colorFailed     = color.New(color.FgMagenta).SprintFunc()
)

// levelColor returns the color function for a threat level.
func levelColor(level scan.ThreatLevel) func(...interface{}) string {
	switch level {
	case scan.LevelCritical:
		return colorCritical
	case scan.LevelMalicious:
		return colorMalicious
	case scan.LevelSuspicious:
		return colorSuspicious
	default:
		return colorClean
	}
}

// TextReporter outputs plain terminal text with severity coloring.
type TextReporter struct {
	// NoColor disables ANSI colors (e.g., when writing to a file).
	NoColor bool
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes a formatted session summary to w.
func (r *TextReporter) Generate(ctx context.Context, session *scan.ScanSession, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.NoColor {
		prev := color.NoColor
		color.NoColor = true
		defer func() { color.NoColor = prev }()
	}

	b := &strings.Builder{}

	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "scantrail - Batch Scan Results")
	fmt.Fprintln(b, doubleBar)

	fmt.Fprintf(b, "Session:  %s\n", session.ID)
	fmt.Fprintf(b, "State:    %s\n", session.State)
	fmt.Fprintf(b, "Files:    %d total, %d completed\n", session.Total, session.Completed)
	fmt.Fprintf(b, "Threats:  %d\n", session.Threats)
	fmt.Fprintf(b, "Clean:    %d\n", session.Clean)
	if d := session.Duration(); d > 0 {
		fmt.Fprintf(b, "Duration: %.1fs\n", d.Seconds())
	}

	for _, out := range session.Outcomes {
		fmt.Fprintln(b, singleBar)
		if out.Status == scan.StatusFailed {
			fmt.Fprintf(b, "[%s] %s\n", colorFailed("FAILED"), out.File.Name)
			fmt.Fprintf(b, "  Error: %s\n", out.Error)
			continue
		}

		label := levelColor(out.ThreatLevel)(strings.ToUpper(out.ThreatLevel.String()))
		fmt.Fprintf(b, "[%s] %s\n", label, out.File.Name)
		fmt.Fprintf(b, "  Size:       %d bytes\n", out.File.Size)
		if out.File.SHA256 != "" {
			fmt.Fprintf(b, "  SHA-256:    %s\n", out.File.SHA256)
		}
		fmt.Fprintf(b, "  Risk score: %d/100\n", out.RiskScore)

		for _, det := range out.Detections {
			fmt.Fprintf(b, "  - [%s] %s (confidence %d%%)\n",
				det.Category, det.Description, det.Confidence)
		}
		if out.ThreatLevel != scan.LevelClean {
			for _, rec := range out.Recommendations {
				fmt.Fprintf(b, "  > %s\n", rec)
			}
		}
	}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d threat(s) across %d file(s)\n", session.Threats, session.Total)
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}
