package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/docfang/internal/session"
)

// scriptedPresenter replays a fixed decision sequence.
type scriptedPresenter struct {
	decisions []Decision
	calls     int
	attempts  []int
}

func (p *scriptedPresenter) Present(_ context.Context, _ Item, attempt int) (Decision, error) {
	if p.calls >= len(p.decisions) {
		return Decision{}, errors.New("presenter script exhausted")
	}

	p.attempts = append(p.attempts, attempt)
	decision := p.decisions[p.calls]
	p.calls++

	return decision, nil
}

// countingSaver wraps a store and counts checkpoint saves.
type countingSaver struct {
	inner *session.Store
	saves int
}

func (s *countingSaver) Save(rec session.Record) (string, error) {
	s.saves++

	return s.inner.Save(rec)
}

func newProgressStore(t *testing.T) *session.Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return session.NewStore(t.TempDir(), logger)
}

func twoItems() []Item {
	return []Item{
		{Filepath: "src/a.go", Name: "Foo", Content: "does foo"},
		{Filepath: "src/b.go", Name: "Bar", Content: "does bar"},
	}
}

func TestMachine_AuditRun_ResumeAcrossInterruption(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)
	rec := session.NewAuditRecord(2, nil)
	items := twoItems()

	// First run: rate the first item, then quit.
	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionAccept, Rating: 3},
		{Action: ActionQuit},
	}}

	machine, err := NewMachine(store, rec, items, presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	// Reload as a resuming process would.
	loaded, err := store.Load(rec.SessionID, session.TypeAudit)
	require.NoError(t, err)

	resumed, ok := loaded.(*session.AuditRecord)
	require.True(t, ok)

	assert.Equal(t, 1, resumed.CurrentIndex)
	assert.Nil(t, resumed.CompletedAt)
	require.NotNil(t, resumed.PartialRatings["src/a.go"]["Foo"])
	assert.Equal(t, 3, *resumed.PartialRatings["src/a.go"]["Foo"])

	// Second run picks up at the second item and finishes.
	presenter = &scriptedPresenter{decisions: []Decision{
		{Action: ActionAccept, Rating: 2},
	}}

	machine, err = NewMachine(store, resumed, items, presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	final, err := store.Load(rec.SessionID, session.TypeAudit)
	require.NoError(t, err)

	done, ok := final.(*session.AuditRecord)
	require.True(t, ok)

	assert.Equal(t, 2, done.CurrentIndex)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.PartialRatings["src/b.go"]["Bar"])
	assert.Equal(t, 2, *done.PartialRatings["src/b.go"]["Bar"])
}

func TestMachine_AuditRun_SkipLeavesNilRating(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)
	rec := session.NewAuditRecord(2, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionSkip},
		{Action: ActionAccept, Rating: 4},
	}}

	machine, err := NewMachine(store, rec, twoItems(), presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	rating, present := rec.PartialRatings["src/a.go"]["Foo"]
	assert.True(t, present)
	assert.Nil(t, rating)
	require.NotNil(t, rec.PartialRatings["src/b.go"]["Bar"])
	assert.Equal(t, 4, *rec.PartialRatings["src/b.go"]["Bar"])
}

func TestMachine_AuditRun_InvalidRating(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)
	rec := session.NewAuditRecord(1, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionAccept, Rating: 5},
	}}

	machine, err := NewMachine(store, rec, twoItems()[:1], presenter)
	require.NoError(t, err)

	runErr := machine.Run(context.Background())
	assert.ErrorIs(t, runErr, ErrInvalidRating)
}

func TestMachine_EditAndRegenerateDoNotCheckpoint(t *testing.T) {
	t.Parallel()

	saver := &countingSaver{inner: newProgressStore(t)}
	rec := session.NewImproveRecord(1, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionEdit, Content: "edited"},
		{Action: ActionRegenerate, Content: "regenerated"},
		{Action: ActionAccept, Suggestion: "regenerated"},
	}}

	machine, err := NewMachine(saver, rec, twoItems()[:1], presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	// One checkpoint for the terminal accept, one for completion.
	assert.Equal(t, 2, saver.saves)

	// Each loop re-presents the same item with an incremented attempt.
	assert.Equal(t, []int{0, 1, 2}, presenter.attempts)

	status := rec.PartialImprovements["src/a.go"]["Foo"]
	assert.Equal(t, session.StatusAccepted, status.Status)
	assert.Equal(t, "regenerated", status.Suggestion)
	assert.NotEmpty(t, status.Timestamp)
}

func TestMachine_QuitDoesNotAdvance(t *testing.T) {
	t.Parallel()

	saver := &countingSaver{inner: newProgressStore(t)}
	rec := session.NewImproveRecord(2, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionQuit},
	}}

	machine, err := NewMachine(saver, rec, twoItems(), presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	assert.Equal(t, 0, rec.CurrentIndex)
	assert.Nil(t, rec.CompletedAt)
	assert.Empty(t, rec.PartialImprovements)
	assert.Equal(t, 1, saver.saves)
}

func TestMachine_ImproveRun_ErrorAndSkipStatuses(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)
	rec := session.NewImproveRecord(2, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionError, Err: errors.New("generation failed")},
		{Action: ActionSkip},
	}}

	machine, err := NewMachine(store, rec, twoItems(), presenter)
	require.NoError(t, err)
	require.NoError(t, machine.Run(context.Background()))

	assert.Equal(t, session.StatusError, rec.PartialImprovements["src/a.go"]["Foo"].Status)
	assert.Equal(t, session.StatusSkipped, rec.PartialImprovements["src/b.go"]["Bar"].Status)
	require.NotNil(t, rec.CompletedAt)
}

func TestMachine_ContextCancellation(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)
	rec := session.NewAuditRecord(2, nil)

	presenter := &scriptedPresenter{decisions: []Decision{
		{Action: ActionAccept, Rating: 1},
		{Action: ActionAccept, Rating: 1},
	}}

	machine, err := NewMachine(store, rec, twoItems(), presenter)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runErr := machine.Run(ctx)
	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, 0, rec.CurrentIndex)
}

func TestNewMachine_Validation(t *testing.T) {
	t.Parallel()

	store := newProgressStore(t)

	empty := session.NewAuditRecord(0, nil)
	_, err := NewMachine(store, empty, nil, &scriptedPresenter{})
	assert.ErrorIs(t, err, ErrNoItems)

	mismatch := session.NewAuditRecord(3, nil)
	_, err = NewMachine(store, mismatch, twoItems(), &scriptedPresenter{})
	assert.ErrorIs(t, err, ErrItemCount)

	outOfRange := session.NewAuditRecord(2, nil)
	outOfRange.CurrentIndex = 5
	_, err = NewMachine(store, outOfRange, twoItems(), &scriptedPresenter{})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
