// Package snapshot captures content checksums of tracked files and detects
// changes against a previously captured baseline. Checksums are
// content-addressed, so re-saving a file with identical bytes never counts
// as a change.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// TimeFormat is the fixed-width UTC timestamp format used in snapshots.
// Zero-padded fields keep lexical ordering equal to chronological ordering.
const TimeFormat = time.RFC3339

// FileSnapshot records the state of a single file at capture time.
// Immutable once captured; used only for comparison.
type FileSnapshot struct {
	Filepath  string `json:"filepath"`
	Timestamp string `json:"timestamp"`
	Checksum  string `json:"checksum"`
	Size      int64  `json:"size"`
}

// Checksum computes the sha256 content checksum and byte size of the file at
// path.
func Checksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()

	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// Capture produces a FileSnapshot per readable path. Files that do not exist
// or cannot be read are omitted from the result; callers must treat a missing
// entry as "unknown", not as "unchanged".
func Capture(paths []string) map[string]FileSnapshot {
	now := time.Now().UTC().Format(TimeFormat)
	snapshots := make(map[string]FileSnapshot, len(paths))

	for _, path := range paths {
		checksum, size, err := Checksum(path)
		if err != nil {
			continue
		}

		snapshots[path] = FileSnapshot{
			Filepath:  path,
			Timestamp: now,
			Checksum:  checksum,
			Size:      size,
		}
	}

	return snapshots
}

// Checksums reduces a snapshot map to its filepath -> checksum pairs, the
// shape the workflow ledger stores per stage.
func Checksums(snapshots map[string]FileSnapshot) map[string]string {
	checksums := make(map[string]string, len(snapshots))
	for path, snap := range snapshots {
		checksums[path] = snap.Checksum
	}

	return checksums
}

// DetectChanges recomputes the checksum of every tracked path in the baseline
// and returns the paths whose content differs or which are now missing.
// Paths absent from the baseline are not considered: this answers "what
// changed among tracked files", not "what new files appeared". The result is
// sorted for deterministic output.
func DetectChanges(baseline map[string]string) []string {
	var changed []string

	for path, want := range baseline {
		got, _, err := Checksum(path)
		if err != nil || got != want {
			changed = append(changed, path)
		}
	}

	sort.Strings(changed)

	return changed
}
