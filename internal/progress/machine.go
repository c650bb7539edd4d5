// Package progress drives a single audit or improve run item by item,
// checkpointing into the session store after every user decision so an
// interrupted run can resume exactly where it stopped.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
)

// Action is a user decision on a presented item.
type Action int

// Per-item actions. Edit and Regenerate loop back to presentation with
// updated content; Accept, Skip and Error are terminal for the item; Quit is
// terminal for the session.
const (
	ActionAccept Action = iota
	ActionSkip
	ActionEdit
	ActionRegenerate
	ActionError
	ActionQuit
)

// Rating bounds for audit decisions.
const (
	RatingMin = 1
	RatingMax = 4
)

// Item is one unit of work in a run: a named documentation item inside a
// source file, with the content currently on offer.
type Item struct {
	Filepath string
	Name     string
	Content  string
}

// Decision is the outcome of presenting an item. Rating applies to audit
// accepts, Suggestion to improve accepts, Content to edit/regenerate loops
// and Err to error outcomes.
type Decision struct {
	Action     Action
	Rating     int
	Suggestion string
	Content    string
	Err        error
}

// Presenter shows an item to the user and collects a decision. Attempt
// counts re-presentations of the same item caused by edit/regenerate loops,
// starting at zero.
type Presenter interface {
	Present(ctx context.Context, item Item, attempt int) (Decision, error)
}

// Saver persists checkpoint saves. *session.Store satisfies it.
type Saver interface {
	Save(rec session.Record) (string, error)
}

// Machine validation errors.
var (
	ErrNoItems         = errors.New("session has no items")
	ErrItemCount       = errors.New("item count does not match session total")
	ErrIndexOutOfRange = errors.New("session current index out of range")
	ErrInvalidRating   = errors.New("rating out of range")
)

// Machine runs the per-item state machine over a session record.
type Machine struct {
	store     Saver
	rec       session.Record
	items     []Item
	presenter Presenter
	now       func() time.Time
}

// NewMachine creates a machine over the full item list of the session. The
// record's current index decides where iteration resumes.
func NewMachine(store Saver, rec session.Record, items []Item, presenter Presenter) (*Machine, error) {
	meta := rec.Meta()

	if meta.TotalItems < 1 {
		return nil, ErrNoItems
	}

	if len(items) != meta.TotalItems {
		return nil, fmt.Errorf("%w: have %d items, session expects %d", ErrItemCount, len(items), meta.TotalItems)
	}

	if meta.CurrentIndex < 0 || meta.CurrentIndex > meta.TotalItems {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, meta.CurrentIndex, meta.TotalItems)
	}

	return &Machine{
		store:     store,
		rec:       rec,
		items:     items,
		presenter: presenter,
		now:       time.Now,
	}, nil
}

// SetClock overrides the machine's time source. Used by tests.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

// Run iterates from the session's current index to exhaustion, checkpointing
// after every terminal per-item decision. A Quit decision saves current
// progress with completed_at still null and returns nil. On exhaustion the
// record is finalized and saved one last time.
func (m *Machine) Run(ctx context.Context) error {
	meta := m.rec.Meta()

	for meta.CurrentIndex < meta.TotalItems {
		quit, err := m.runItem(ctx, m.items[meta.CurrentIndex])
		if err != nil {
			return err
		}

		if quit {
			return m.checkpoint()
		}
	}

	completedAt := m.now().UTC().Format(snapshot.TimeFormat)
	meta.CompletedAt = &completedAt

	return m.checkpoint()
}

// runItem presents one item until a terminal decision is made. Edit and
// regenerate decisions replace the item content and re-present without
// checkpointing, so intermediate states never flood the store.
func (m *Machine) runItem(ctx context.Context, item Item) (quit bool, err error) {
	for attempt := 0; ; attempt++ {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return false, ctxErr
		}

		decision, presentErr := m.presenter.Present(ctx, item, attempt)
		if presentErr != nil {
			return false, fmt.Errorf("present item %s/%s: %w", item.Filepath, item.Name, presentErr)
		}

		switch decision.Action {
		case ActionEdit, ActionRegenerate:
			item.Content = decision.Content

			continue

		case ActionQuit:
			// Halt without advancing past the current item.
			return true, nil

		case ActionAccept, ActionSkip, ActionError:
			recordErr := m.record(item, decision)
			if recordErr != nil {
				return false, recordErr
			}

			m.rec.Meta().CurrentIndex++

			return false, m.checkpoint()

		default:
			return false, fmt.Errorf("unknown action %d for item %s/%s", decision.Action, item.Filepath, item.Name)
		}
	}
}

// record writes the decision outcome into the variant payload.
func (m *Machine) record(item Item, decision Decision) error {
	switch rec := m.rec.(type) {
	case *session.AuditRecord:
		return recordRating(rec, item, decision)
	case *session.ImproveRecord:
		recordImprovement(rec, item, decision, m.now)

		return nil
	default:
		return fmt.Errorf("%w: %q", session.ErrInvalidSessionType, m.rec.Type())
	}
}

func recordRating(rec *session.AuditRecord, item Item, decision Decision) error {
	if rec.PartialRatings == nil {
		rec.PartialRatings = make(map[string]map[string]*int)
	}

	if rec.PartialRatings[item.Filepath] == nil {
		rec.PartialRatings[item.Filepath] = make(map[string]*int)
	}

	// Skips and errors both leave the item unrated; nil marks it as seen.
	if decision.Action != ActionAccept {
		rec.PartialRatings[item.Filepath][item.Name] = nil

		return nil
	}

	if decision.Rating < RatingMin || decision.Rating > RatingMax {
		return fmt.Errorf("%w: %d", ErrInvalidRating, decision.Rating)
	}

	rating := decision.Rating
	rec.PartialRatings[item.Filepath][item.Name] = &rating

	return nil
}

func recordImprovement(rec *session.ImproveRecord, item Item, decision Decision, now func() time.Time) {
	if rec.PartialImprovements == nil {
		rec.PartialImprovements = make(map[string]map[string]session.StatusRecord)
	}

	if rec.PartialImprovements[item.Filepath] == nil {
		rec.PartialImprovements[item.Filepath] = make(map[string]session.StatusRecord)
	}

	status := session.StatusRecord{
		Timestamp: now().UTC().Format(snapshot.TimeFormat),
	}

	switch decision.Action {
	case ActionAccept:
		status.Status = session.StatusAccepted
		status.Suggestion = decision.Suggestion
	case ActionError:
		status.Status = session.StatusError
	default:
		status.Status = session.StatusSkipped
	}

	rec.PartialImprovements[item.Filepath][item.Name] = status
}

func (m *Machine) checkpoint() error {
	_, err := m.store.Save(m.rec)
	if err != nil {
		return fmt.Errorf("checkpoint session: %w", err)
	}

	return nil
}
