// Package workflow persists the workflow ledger: one file recording the last
// successful run of each pipeline stage, plus an append-only history of
// prior ledger snapshots archived before every overwrite.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/docfang/internal/atomicfile"
)

// Stage names the four pipeline stages.
type Stage string

// Pipeline stages, in execution order.
const (
	StageAnalyze Stage = "analyze"
	StageAudit   Stage = "audit"
	StagePlan    Stage = "plan"
	StageImprove Stage = "improve"
)

// Stages lists all pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageAnalyze, StageAudit, StagePlan, StageImprove}
}

// SchemaVersion is the current ledger format version.
const SchemaVersion = "1.0"

// File layout inside the project state directory.
const (
	ledgerFileName    = "workflow-state.json"
	historyDirName    = "history"
	historyFilePrefix = "workflow-state-"
	historyFileSuffix = ".json"
)

// historyStampFormat names history snapshots by capture time. Nanosecond
// precision keeps two saves within one process from colliding, and the
// fixed-width zero-padded layout makes lexical order chronological.
const historyStampFormat = "20060102T150405.000000000Z"

// Permissions for ledger state.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// StageRun records the last successful run of one pipeline stage.
type StageRun struct {
	Timestamp     string            `json:"timestamp"`
	ItemCount     int               `json:"item_count"`
	FileChecksums map[string]string `json:"file_checksums"`
}

// Ledger is the latest known-good state of each pipeline stage. A nil stage
// entry means the stage has never run. The ledger itself does not enforce
// stage ordering; the staleness validator does that at read time.
type Ledger struct {
	SchemaVersion string    `json:"schema_version"`
	Analyze       *StageRun `json:"analyze"`
	Audit         *StageRun `json:"audit"`
	Plan          *StageRun `json:"plan"`
	Improve       *StageRun `json:"improve"`
}

// NewLedger returns an all-nil ledger: no stage has ever run.
func NewLedger() *Ledger {
	return &Ledger{SchemaVersion: SchemaVersion}
}

// Stage returns the recorded run for the named stage, or nil.
func (l *Ledger) Stage(stage Stage) *StageRun {
	switch stage {
	case StageAnalyze:
		return l.Analyze
	case StageAudit:
		return l.Audit
	case StagePlan:
		return l.Plan
	case StageImprove:
		return l.Improve
	default:
		return nil
	}
}

// SetStage records a run for the named stage, overwriting any previous run.
func (l *Ledger) SetStage(stage Stage, run *StageRun) {
	switch stage {
	case StageAnalyze:
		l.Analyze = run
	case StageAudit:
		l.Audit = run
	case StagePlan:
		l.Plan = run
	case StageImprove:
		l.Improve = run
	}
}

// NewStageRun builds a StageRun stamped with the current time.
func NewStageRun(itemCount int, checksums map[string]string) *StageRun {
	return &StageRun{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ItemCount:     itemCount,
		FileChecksums: checksums,
	}
}

// Store reads and writes the canonical ledger file and its history.
type Store struct {
	stateDir string
}

// NewStore creates a ledger store rooted at the project state directory.
func NewStore(stateDir string) *Store {
	return &Store{stateDir: stateDir}
}

// Path returns the canonical ledger file path.
func (s *Store) Path() string {
	return filepath.Join(s.stateDir, ledgerFileName)
}

// HistoryDir returns the ledger history directory.
func (s *Store) HistoryDir() string {
	return filepath.Join(s.stateDir, historyDirName)
}

// Load reads the canonical ledger. A missing file means no stage has ever
// run and yields an all-nil ledger, not an error.
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewLedger(), nil
		}

		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var ledger Ledger

	unmarshalErr := json.Unmarshal(data, &ledger)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse ledger: %w", unmarshalErr)
	}

	return &ledger, nil
}

// Save archives the current ledger contents into the history directory, then
// atomically writes the new ledger. The archive happens first so the history
// always reflects the state that was about to be overwritten.
func (s *Store) Save(ledger *Ledger) error {
	mkdirErr := os.MkdirAll(s.stateDir, dirPerm)
	if mkdirErr != nil {
		return fmt.Errorf("create state dir: %w", mkdirErr)
	}

	archiveErr := s.archive()
	if archiveErr != nil {
		return archiveErr
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	writeErr := atomicfile.Write(s.Path(), data, filePerm)
	if writeErr != nil {
		return writeErr
	}

	return nil
}

// archive copies the current ledger bytes, if any, to a timestamp-named
// history entry.
func (s *Store) archive() error {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read ledger for archive: %w", err)
	}

	historyDir := s.HistoryDir()

	mkdirErr := os.MkdirAll(historyDir, dirPerm)
	if mkdirErr != nil {
		return fmt.Errorf("create history dir: %w", mkdirErr)
	}

	stamp := time.Now().UTC().Format(historyStampFormat)
	name := historyFilePrefix + stamp + historyFileSuffix

	writeErr := atomicfile.Write(filepath.Join(historyDir, name), data, filePerm)
	if writeErr != nil {
		return fmt.Errorf("archive ledger: %w", writeErr)
	}

	return nil
}

// ListHistory enumerates archived ledger snapshots, most recent first.
// A negative limit returns everything, zero returns an empty slice, and a
// limit larger than the available count simply returns everything.
func (s *Store) ListHistory(limit int) ([]string, error) {
	entries, err := os.ReadDir(s.HistoryDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read history dir: %w", err)
	}

	var names []string

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, historyFilePrefix) || !strings.HasSuffix(name, historyFileSuffix) {
			continue
		}

		names = append(names, name)
	}

	// Timestamp-named files: lexical descending is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if limit >= 0 && limit < len(names) {
		names = names[:limit]
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(s.HistoryDir(), name)
	}

	return paths, nil
}
