// Package analyzer provides deterministic heuristic classification and
// risk scoring for file inputs. Rules are static: the same input always
// produces the same detections and score.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/scantrail/scantrail/internal/scan"
)

// maxScore caps the aggregate risk score.
const maxScore = 100

// Analyzer evaluates file inputs against the built-in rule tables.
type Analyzer struct{}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze evaluates a single file and returns its risk score in [0,100]
// together with the detections that contributed to it. It satisfies
// scan.AnalyzeFunc.
func (a *Analyzer) Analyze(ctx context.Context, input *scan.FileInput) (int, []scan.Detection, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if input == nil {
		return 0, nil, fmt.Errorf("analyzer: nil input")
	}

	var (
		score      int
		detections []scan.Detection
	)
	add := func(d scan.Detection, weight int) {
		score += weight
		detections = append(detections, d)
	}

	lowerName := strings.ToLower(input.Name)
	ext := fileExtension(lowerName)

	// Known-malicious name substrings.
	for _, rule := range namePatterns {
		if strings.Contains(lowerName, rule.pattern) {
			add(scan.Detection{
				Category:    CategoryFilename,
				Severity:    rule.severity,
				Description: fmt.Sprintf("file name contains known malicious pattern %q", rule.pattern),
				Evidence:    input.Name,
				Confidence:  rule.confidence,
			}, rule.weight)
		}
	}

	// Directly executable or script extension.
	if weight, ok := riskyExtensions[ext]; ok {
		add(scan.Detection{
			Category:    CategoryExtension,
			Severity:    scan.LevelSuspicious,
			Description: fmt.Sprintf("high-risk file extension .%s", ext),
			Evidence:    input.Name,
			Confidence:  65,
		}, weight)

		// Double extension, e.g. invoice.pdf.exe.
		if inner := fileExtension(strings.TrimSuffix(lowerName, "."+ext)); documentExtensions[inner] {
			add(scan.Detection{
				Category:    CategoryMasquerade,
				Severity:    scan.LevelMalicious,
				Description: fmt.Sprintf("executable masquerading as .%s document (double extension)", inner),
				Evidence:    input.Name,
				Confidence:  90,
			}, 35)
		}

		// Declared type claims a document while the extension executes.
		if documentTypes[strings.ToLower(input.DeclaredType)] {
			add(scan.Detection{
				Category:    CategoryMasquerade,
				Severity:    scan.LevelMalicious,
				Description: fmt.Sprintf("declared type %q does not match executable extension .%s", input.DeclaredType, ext),
				Evidence:    input.DeclaredType,
				Confidence:  80,
			}, 25)
		}

		// Anomalously small executables are typical of stub droppers.
		if input.Size > 0 && input.Size < tinyExecutableBytes {
			add(scan.Detection{
				Category:    CategorySize,
				Severity:    scan.LevelSuspicious,
				Description: fmt.Sprintf("executable is only %d bytes", input.Size),
				Evidence:    fmt.Sprintf("%d bytes", input.Size),
				Confidence:  55,
			}, 15)
		}
	}

	// Executable magic bytes behind a document extension.
	if documentExtensions[ext] {
		if kind := executableMagic(input.Content); kind != "" {
			add(scan.Detection{
				Category:    CategoryContent,
				Severity:    scan.LevelMalicious,
				Description: fmt.Sprintf("%s content behind document extension .%s", kind, ext),
				Evidence:    kind + " header",
				Confidence:  90,
			}, 40)
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return score, detections, nil
}

// fileExtension returns the lowercase extension of name without the dot,
// or "" when the name has none.
func fileExtension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// executableMagic identifies executable container formats from the leading
// bytes of content. Only the first few bytes are inspected.
func executableMagic(content []byte) string {
	switch {
	case len(content) >= 2 && content[0] == 'M' && content[1] == 'Z':
		return "PE executable"
	case len(content) >= 4 && bytes.Equal(content[:4], []byte{0x7f, 'E', 'L', 'F'}):
		return "ELF executable"
	case len(content) >= 2 && content[0] == '#' && content[1] == '!':
		return "script"
	default:
		return ""
	}
}
