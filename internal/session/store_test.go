package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewStore(t.TempDir(), logger)
}

func testSnapshot() map[string]snapshot.FileSnapshot {
	return map[string]snapshot.FileSnapshot{
		"src/a.go": {
			Filepath:  "src/a.go",
			Timestamp: "2026-08-01T10:00:00Z",
			Checksum:  "abc123",
			Size:      42,
		},
	}
}

func TestStore_SaveLoad_AuditRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(2, testSnapshot())
	rating := 3
	rec.PartialRatings = map[string]map[string]*int{
		"src/a.go": {"Foo": &rating, "Bar": nil},
	}
	rec.CurrentIndex = 2

	id, err := store.Save(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, id)

	loaded, err := store.Load(id, TypeAudit)
	require.NoError(t, err)

	audit, ok := loaded.(*AuditRecord)
	require.True(t, ok)

	assert.Equal(t, rec.SessionID, audit.SessionID)
	assert.Equal(t, rec.StartedAt, audit.StartedAt)
	assert.Equal(t, 2, audit.CurrentIndex)
	assert.Equal(t, 2, audit.TotalItems)
	assert.Equal(t, rec.FileSnapshot, audit.FileSnapshot)
	assert.Nil(t, audit.CompletedAt)

	require.Contains(t, audit.PartialRatings, "src/a.go")
	require.NotNil(t, audit.PartialRatings["src/a.go"]["Foo"])
	assert.Equal(t, 3, *audit.PartialRatings["src/a.go"]["Foo"])

	// Explicitly skipped item round-trips as a present nil entry.
	skipped, present := audit.PartialRatings["src/a.go"]["Bar"]
	assert.True(t, present)
	assert.Nil(t, skipped)
}

func TestStore_SaveLoad_ImproveRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewImproveRecord(1, testSnapshot())
	rec.PreviousSessionID = "prior-session"
	rec.PartialImprovements = map[string]map[string]StatusRecord{
		"src/a.go": {
			"Foo": {Status: StatusAccepted, Timestamp: "2026-08-01T11:00:00Z", Suggestion: "better docs"},
		},
	}

	id, err := store.Save(rec)
	require.NoError(t, err)

	loaded, err := store.Load(id, TypeImprove)
	require.NoError(t, err)

	improve, ok := loaded.(*ImproveRecord)
	require.True(t, ok)

	assert.Equal(t, rec.TransactionID, improve.TransactionID)
	assert.Equal(t, "prior-session", improve.PreviousSessionID)
	assert.Equal(t, rec.PartialImprovements, improve.PartialImprovements)
}

func TestStore_Save_MissingSessionID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(1, nil)
	rec.SessionID = ""

	_, err := store.Save(rec)
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

type badTypeRecord struct {
	Envelope
}

func (r *badTypeRecord) Type() Type { return Type("bogus") }

func TestStore_Save_InvalidSessionType(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := &badTypeRecord{Envelope: newEnvelope(1, nil)}

	_, err := store.Save(rec)
	assert.ErrorIs(t, err, ErrInvalidSessionType)
}

func TestStore_Load_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Load("no-such-session", TypeAudit)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Load_InvalidSessionType(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Load("whatever", Type("bogus"))
	assert.ErrorIs(t, err, ErrInvalidSessionType)
}

func TestStore_Load_Corrupt(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	path := filepath.Join(store.Dir(), Filename(TypeAudit, "broken"))
	require.NoError(t, os.MkdirAll(store.Dir(), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load("broken", TypeAudit)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_Load_ValidationFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// Parseable JSON but missing required envelope fields.
	path := filepath.Join(store.Dir(), Filename(TypeAudit, "incomplete"))
	require.NoError(t, os.MkdirAll(store.Dir(), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(`{"started_at": "2026-08-01T10:00:00Z"}`), 0o600))

	_, err := store.Load("incomplete", TypeAudit)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStore_Load_ForwardCompatible(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	raw := `{
		"session_id": "future-1",
		"started_at": "2026-08-01T10:00:00Z",
		"current_index": 0,
		"total_items": 3,
		"file_snapshot": {},
		"completed_at": null,
		"partial_ratings": {},
		"schema_version": "2.0",
		"reviewer_notes": {"tone": "strict"}
	}`

	path := filepath.Join(store.Dir(), Filename(TypeAudit, "future-1"))
	require.NoError(t, os.MkdirAll(store.Dir(), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	loaded, err := store.Load("future-1", TypeAudit)
	require.NoError(t, err)

	assert.Equal(t, "future-1", loaded.Meta().SessionID)
	assert.Contains(t, loaded.Meta().Extra, "schema_version")
	assert.Contains(t, loaded.Meta().Extra, "reviewer_notes")

	// Unknown fields survive a save/load cycle instead of being dropped.
	_, err = store.Save(loaded)
	require.NoError(t, err)

	reloaded, err := store.Load("future-1", TypeAudit)
	require.NoError(t, err)

	assert.JSONEq(t, `"2.0"`, string(reloaded.Meta().Extra["schema_version"]))
	assert.JSONEq(t, `{"tone": "strict"}`, string(reloaded.Meta().Extra["reviewer_notes"]))
}

func TestStore_Load_BackwardCompatible(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// A minimal record written under an older shape: envelope only.
	raw := `{
		"session_id": "old-1",
		"started_at": "2025-01-01T00:00:00Z",
		"current_index": 1,
		"total_items": 2
	}`

	path := filepath.Join(store.Dir(), Filename(TypeImprove, "old-1"))
	require.NoError(t, os.MkdirAll(store.Dir(), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	loaded, err := store.Load("old-1", TypeImprove)
	require.NoError(t, err)

	improve, ok := loaded.(*ImproveRecord)
	require.True(t, ok)
	assert.Equal(t, 1, improve.CurrentIndex)
	assert.Empty(t, improve.TransactionID)
	assert.Nil(t, improve.PartialImprovements)
}

func TestStore_List_OrderedAndIsolatesCorruption(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	stamps := []string{
		"2026-08-01T10:00:00Z",
		"2026-08-03T10:00:00Z",
		"2026-08-02T10:00:00Z",
	}

	for i, stamp := range stamps {
		rec := NewAuditRecord(1, nil)
		rec.SessionID = "session-" + string(rune('a'+i))
		rec.StartedAt = stamp

		_, err := store.Save(rec)
		require.NoError(t, err)
	}

	// One corrupt file must not block listing the others.
	corrupt := filepath.Join(store.Dir(), Filename(TypeAudit, "corrupt"))
	require.NoError(t, os.WriteFile(corrupt, []byte("{{{"), 0o600))

	// Sessions of the other type are invisible to this listing.
	other := NewImproveRecord(1, nil)
	_, err := store.Save(other)
	require.NoError(t, err)

	records, err := store.List(TypeAudit)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "2026-08-03T10:00:00Z", records[0].Meta().StartedAt)
	assert.Equal(t, "2026-08-02T10:00:00Z", records[1].Meta().StartedAt)
	assert.Equal(t, "2026-08-01T10:00:00Z", records[2].Meta().StartedAt)
}

func TestStore_List_EmptyDir(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	records, err := store.List(TypeImprove)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_GetLatest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	latest, err := store.GetLatest(TypeAudit)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older := NewAuditRecord(1, nil)
	older.StartedAt = "2026-08-01T10:00:00Z"
	_, err = store.Save(older)
	require.NoError(t, err)

	newer := NewAuditRecord(1, nil)
	newer.StartedAt = "2026-08-02T10:00:00Z"
	_, err = store.Save(newer)
	require.NoError(t, err)

	latest, err = store.GetLatest(TypeAudit)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.SessionID, latest.Meta().SessionID)
}

func TestStore_Delete_Idempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(1, nil)
	id, err := store.Save(rec)
	require.NoError(t, err)

	require.NoError(t, store.Delete(id, TypeAudit))

	_, err = store.Load(id, TypeAudit)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(id, TypeAudit))
	assert.NoError(t, store.Delete("never-existed", TypeAudit))
}

func TestStore_Save_FailureLeavesCanonicalIntact(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(1, nil)
	id, err := store.Save(rec)
	require.NoError(t, err)

	// A record that cannot be serialized fails before touching the file.
	rec.Config = map[string]any{"bad": func() {}}

	_, err = store.Save(rec)
	require.Error(t, err)

	loaded, err := store.Load(id, TypeAudit)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.Meta().SessionID)
}

func TestStore_Save_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(1, testSnapshot())
	_, err := store.Save(rec)
	require.NoError(t, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp-"))
}

func TestStore_Load_IgnoresStrayTempFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewAuditRecord(1, nil)
	id, err := store.Save(rec)
	require.NoError(t, err)

	// A crash between temp write and rename leaves a stray temp file. It is
	// invisible under the canonical name and does not affect listing.
	stray := filepath.Join(store.Dir(), "."+Filename(TypeAudit, id)+".tmp-123")
	require.NoError(t, os.WriteFile(stray, []byte("half-written"), 0o600))

	loaded, err := store.Load(id, TypeAudit)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.Meta().SessionID)

	records, err := store.List(TypeAudit)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_UndoAfterCompletion(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rec := NewImproveRecord(1, nil)
	rec.PartialImprovements = map[string]map[string]StatusRecord{
		"src/a.go": {"add": {Status: StatusAccepted, Timestamp: "2026-08-01T11:00:00Z"}},
	}
	rec.CurrentIndex = 1
	completed := "2026-08-01T11:00:01Z"
	rec.CompletedAt = &completed

	id, err := store.Save(rec)
	require.NoError(t, err)

	// Simulate an undo: reset progress on the finalized record. The store
	// accepts post-completion writes.
	rec.PartialImprovements = map[string]map[string]StatusRecord{}
	rec.CurrentIndex = 0

	_, err = store.Save(rec)
	require.NoError(t, err)

	loaded, err := store.Load(id, TypeImprove)
	require.NoError(t, err)

	improve, ok := loaded.(*ImproveRecord)
	require.True(t, ok)
	assert.Empty(t, improve.PartialImprovements)
	assert.Equal(t, 0, improve.CurrentIndex)
}

func TestStatusRecord_ZeroValueMarshalsEmpty(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(StatusRecord{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestType_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, TypeAudit.Valid())
	assert.True(t, TypeImprove.Valid())
	assert.False(t, Type("plan").Valid())
	assert.False(t, Type("").Valid())
}
