// Package session persists interruptible audit and improve runs as
// schema-validated JSON records under a session-reports directory. Writes are
// atomic (write-then-rename), so an interrupted save leaves the previous
// record intact.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
)

// Type identifies the session variant. Audit and improve sessions share an
// envelope but carry different progress payloads.
type Type string

// Supported session types.
const (
	TypeAudit   Type = "audit"
	TypeImprove Type = "improve"
)

// Valid reports whether t is a supported session type.
func (t Type) Valid() bool {
	return t == TypeAudit || t == TypeImprove
}

// Envelope holds the fields shared by both session variants.
//
// CompletedAt stays null while the session is in progress and is set once on
// finalization. The store does not reject writes after completion: undo flows
// reset progress on a finalized record and save it again.
type Envelope struct {
	SessionID    string                           `json:"session_id"`
	StartedAt    string                           `json:"started_at"`
	CurrentIndex int                              `json:"current_index"`
	TotalItems   int                              `json:"total_items"`
	FileSnapshot map[string]snapshot.FileSnapshot `json:"file_snapshot"`
	Config       map[string]any                   `json:"config,omitempty"`
	CompletedAt  *string                          `json:"completed_at"`

	// Extra preserves fields written by newer schema versions so they
	// round-trip instead of being dropped. Known fields always win on save.
	Extra map[string]json.RawMessage `json:"-"`
}

// Meta returns the shared envelope.
func (e *Envelope) Meta() *Envelope { return e }

// Completed reports whether the session has been finalized.
func (e *Envelope) Completed() bool { return e.CompletedAt != nil }

// Record is a session record of either variant.
type Record interface {
	Meta() *Envelope
	Type() Type
}

// AuditRecord is the audit-session variant. Ratings are 1..4; an explicit
// nil entry means the item was presented and skipped.
type AuditRecord struct {
	Envelope

	PartialRatings map[string]map[string]*int `json:"partial_ratings"`
}

// Type implements Record.
func (r *AuditRecord) Type() Type { return TypeAudit }

// Status is the outcome of a single improve-session item.
type Status string

// Improve item outcomes.
const (
	StatusAccepted Status = "accepted"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// StatusRecord records one improve-item decision. The zero value marshals as
// an empty object, which is the wire representation for "no decision yet".
type StatusRecord struct {
	Status     Status `json:"status,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ImproveRecord is the improve-session variant. PreviousSessionID links
// continuation sessions.
type ImproveRecord struct {
	Envelope

	TransactionID       string                             `json:"transaction_id"`
	PartialImprovements map[string]map[string]StatusRecord `json:"partial_improvements"`
	PreviousSessionID   string                             `json:"previous_session_id,omitempty"`
}

// Type implements Record.
func (r *ImproveRecord) Type() Type { return TypeImprove }

// NewAuditRecord creates an in-progress audit record over the given file
// snapshot with a fresh session id.
func NewAuditRecord(totalItems int, files map[string]snapshot.FileSnapshot) *AuditRecord {
	return &AuditRecord{
		Envelope:       newEnvelope(totalItems, files),
		PartialRatings: make(map[string]map[string]*int),
	}
}

// NewImproveRecord creates an in-progress improve record over the given file
// snapshot with fresh session and transaction ids.
func NewImproveRecord(totalItems int, files map[string]snapshot.FileSnapshot) *ImproveRecord {
	return &ImproveRecord{
		Envelope:            newEnvelope(totalItems, files),
		TransactionID:       uuid.NewString(),
		PartialImprovements: make(map[string]map[string]StatusRecord),
	}
}

func newEnvelope(totalItems int, files map[string]snapshot.FileSnapshot) Envelope {
	return Envelope{
		SessionID:    uuid.NewString(),
		StartedAt:    time.Now().UTC().Format(snapshot.TimeFormat),
		CurrentIndex: 0,
		TotalItems:   totalItems,
		FileSnapshot: files,
		CompletedAt:  nil,
	}
}
