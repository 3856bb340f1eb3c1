// Package testutil provides shared fixtures for scantrail tests.
package testutil

import (
	"testing"

	"github.com/scantrail/scantrail/internal/scan"
)

// TempDir wraps t.TempDir for consistency and future shared setup.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// CleanInput returns a file input that matches no heuristic rule.
func CleanInput(name string, size int64) scan.FileInput {
	return scan.FileInput{
		Name:    name,
		Size:    size,
		Content: []byte("plain text payload for tests"),
	}
}

// ThreatInput returns a file input that trips the filename and extension
// heuristics (classifies above clean).
func ThreatInput() scan.FileInput {
	return scan.FileInput{
		Name:    "backdoor.exe",
		Size:    2 * 1024,
		Content: []byte{'M', 'Z', 0x90, 0x00},
	}
}

// MixedBatch is the canonical three-file batch: two clean documents and
// one obviously malicious executable.
func MixedBatch() []scan.FileInput {
	return []scan.FileInput{
		CleanInput("doc.pdf", 50*1024),
		CleanInput("note.txt", 10*1024),
		ThreatInput(),
	}
}
