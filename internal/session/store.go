package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/docfang/internal/atomicfile"
)

// Directory and file permissions for session state.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// sessionFileSuffix is the extension of every persisted session record.
const sessionFileSuffix = ".json"

// ReportsDirName is the session-reports directory name inside the project
// state directory.
const ReportsDirName = "session-reports"

// ReportsDir returns the session-reports directory for a state directory.
func ReportsDir(stateDir string) string {
	return filepath.Join(stateDir, ReportsDirName)
}

// Store persists session records in a session-reports directory, one file per
// session, named {type}-session-{id}.json. Saves are atomic: the record is
// written to a temporary file and renamed onto the canonical path, so a
// reader never observes a partially written record and an interrupted save
// leaves the previous record untouched.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at the given session-reports directory.
// A nil logger falls back to slog.Default.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{dir: dir, logger: logger}
}

// Dir returns the session-reports directory.
func (s *Store) Dir() string { return s.dir }

// Filename returns the canonical file name for a session id and type.
func Filename(sessionType Type, sessionID string) string {
	return fmt.Sprintf("%s-session-%s%s", sessionType, sessionID, sessionFileSuffix)
}

// Save validates and atomically persists the record, returning its session
// id. Unknown fields captured at load time are written back out.
func (s *Store) Save(rec Record) (string, error) {
	sessionType := rec.Type()
	if !sessionType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}

	sessionID := rec.Meta().SessionID
	if sessionID == "" {
		return "", ErrMissingSessionID
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}

	mkdirErr := os.MkdirAll(s.dir, dirPerm)
	if mkdirErr != nil {
		return "", fmt.Errorf("create session dir: %w", mkdirErr)
	}

	writeErr := atomicfile.Write(filepath.Join(s.dir, Filename(sessionType, sessionID)), data, filePerm)
	if writeErr != nil {
		return "", writeErr
	}

	return sessionID, nil
}

// Load reads, parses and schema-validates a single session record.
// Missing file: ErrNotFound. Unparseable content: ErrCorrupt. Parseable but
// missing required fields: ErrValidation. Unknown fields are preserved in the
// record's passthrough bag.
func (s *Store) Load(sessionID string, sessionType Type) (Record, error) {
	if !sessionType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}

	path := filepath.Join(s.dir, Filename(sessionType, sessionID))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s session %s", ErrNotFound, sessionType, sessionID)
		}

		return nil, fmt.Errorf("read session file: %w", err)
	}

	return s.parse(data, sessionType, path)
}

func (s *Store) parse(data []byte, sessionType Type, path string) (Record, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, path)
	}

	validateErr := validateSchema(data, sessionType)
	if validateErr != nil {
		return nil, validateErr
	}

	var rec Record
	if sessionType == TypeImprove {
		rec = &ImproveRecord{}
	} else {
		rec = &AuditRecord{}
	}

	decodeErr := decodeRecord(data, rec)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, decodeErr)
	}

	return rec, nil
}

// List returns every loadable session of the given type, most recently
// started first. Files that fail to parse or validate are logged and
// skipped: one corrupt session must not block listing the others.
func (s *Store) List(sessionType Type) ([]Record, error) {
	if !sessionType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read session dir: %w", err)
	}

	prefix := string(sessionType) + "-session-"

	var records []Record

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, sessionFileSuffix) {
			continue
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), sessionFileSuffix)

		rec, loadErr := s.Load(id, sessionType)
		if loadErr != nil {
			s.logger.Warn("skipping unreadable session file", "file", name, "error", loadErr)

			continue
		}

		records = append(records, rec)
	}

	// started_at is fixed-width zero-padded UTC, so lexical order is
	// chronological order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Meta().StartedAt > records[j].Meta().StartedAt
	})

	return records, nil
}

// GetLatest returns the most recently started session of the given type, or
// nil when none exist.
func (s *Store) GetLatest(sessionType Type) (Record, error) {
	records, err := s.List(sessionType)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	return records[0], nil
}

// Delete removes the canonical session file. Deleting a session that does
// not exist is not an error; any other I/O failure propagates.
func (s *Store) Delete(sessionID string, sessionType Type) error {
	if !sessionType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}

	err := os.Remove(filepath.Join(s.dir, Filename(sessionType, sessionID)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete session file: %w", err)
	}

	return nil
}
