// Package analyzer invokes the external code analyzer process and decodes
// the documentation items it reports. Parsing and complexity computation
// live entirely in that process; this package only owns the invocation
// contract.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"time"
)

// DefaultTimeout bounds a single analyzer invocation.
const DefaultTimeout = 60 * time.Second

// ErrNoCommand indicates the analyzer command is not configured.
var ErrNoCommand = errors.New("analyzer command not configured")

// Item is one documentation item reported by the analyzer: a named symbol in
// a source file, with whatever documentation it currently carries.
type Item struct {
	Filepath string `json:"filepath"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Doc      string `json:"doc,omitempty"`
}

// Runner executes the external analyzer.
type Runner struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner for the given command and base arguments.
// A non-positive timeout falls back to DefaultTimeout; a nil logger to
// slog.Default.
func NewRunner(command string, args []string, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{command: command, args: args, timeout: timeout, logger: logger}
}

// Run invokes the analyzer against root and decodes its stdout as a stream
// of JSON item objects, one per documentation item.
func (r *Runner) Run(ctx context.Context, root string) ([]Item, error) {
	if r.command == "" {
		return nil, ErrNoCommand
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.args...), root)
	cmd := exec.CommandContext(runCtx, r.command, args...)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("analyzer stdout: %w", err)
	}

	startErr := cmd.Start()
	if startErr != nil {
		return nil, fmt.Errorf("start analyzer: %w", startErr)
	}

	items, decodeErr := decodeItems(stdout)

	waitErr := cmd.Wait()
	if waitErr != nil {
		r.logger.Debug("analyzer stderr", "output", stderr.String())

		return nil, fmt.Errorf("analyzer %s: %w", r.command, waitErr)
	}

	if decodeErr != nil {
		return nil, decodeErr
	}

	r.logger.Debug("analyzer finished", "command", r.command, "items", len(items))

	return items, nil
}

// decodeItems reads a stream of JSON objects until EOF, matching the
// analyzer's one-object-per-item output contract.
func decodeItems(reader io.Reader) ([]Item, error) {
	decoder := json.NewDecoder(reader)

	var items []Item

	for {
		var item Item

		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parse analyzer output: %w", err)
		}

		items = append(items, item)
	}

	return items, nil
}

// Files returns the unique, sorted set of file paths referenced by items.
// This is the tracked-file set the checksum snapshotter captures.
func Files(items []Item) []string {
	seen := make(map[string]struct{}, len(items))

	var files []string

	for _, item := range items {
		if _, ok := seen[item.Filepath]; ok {
			continue
		}

		seen[item.Filepath] = struct{}{}
		files = append(files, item.Filepath)
	}

	sort.Strings(files)

	return files
}
