package analyzer

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_Run_DecodesItemStream(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	// The analysis root lands in $0, leaving the script output fixed.
	script := `printf '%s\n' '{"filepath":"src/a.go","name":"Foo","kind":"function","doc":"does foo"}' '{"filepath":"src/b.go","name":"Bar"}'`
	runner := NewRunner("sh", []string{"-c", script}, time.Minute, discardLogger())

	items, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, Item{Filepath: "src/a.go", Name: "Foo", Kind: "function", Doc: "does foo"}, items[0])
	assert.Equal(t, Item{Filepath: "src/b.go", Name: "Bar"}, items[1])
}

func TestRunner_Run_EmptyOutput(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewRunner("sh", []string{"-c", "true"}, time.Minute, discardLogger())

	items, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRunner_Run_NoCommand(t *testing.T) {
	t.Parallel()

	runner := NewRunner("", nil, 0, nil)

	_, err := runner.Run(context.Background(), ".")
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestRunner_Run_CommandFailure(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewRunner("sh", []string{"-c", "echo boom >&2; exit 3"}, time.Minute, discardLogger())

	_, err := runner.Run(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "analyzer"))
}

func TestRunner_Run_MalformedOutput(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewRunner("sh", []string{"-c", `echo '{"filepath": broken'`}, time.Minute, discardLogger())

	_, err := runner.Run(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestFiles_DedupesAndSorts(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Filepath: "src/b.go", Name: "B1"},
		{Filepath: "src/a.go", Name: "A1"},
		{Filepath: "src/b.go", Name: "B2"},
		{Filepath: "src/a.go", Name: "A2"},
	}

	assert.Equal(t, []string{"src/a.go", "src/b.go"}, Files(items))
	assert.Empty(t, Files(nil))
}
