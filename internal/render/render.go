// Package render turns the plain data values produced by the core
// (staleness results, session listings, diffs) into terminal output. It
// never makes control-flow decisions.
package render

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/staleness"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// StaleWarning renders an informational staleness warning with the suggested
// next command. Staleness never blocks; the caller proceeds regardless.
func StaleWarning(w io.Writer, stage workflow.Stage, result staleness.Result, suggestion string) {
	if !result.IsStale {
		return
	}

	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "Warning: %d tracked file(s) changed since the inputs for %s were produced.\n",
		result.ChangedCount, stage)

	if suggestion != "" {
		fmt.Fprintf(w, "Consider re-running: %s\n", suggestion)
	}
}

// PrereqFailure renders a failed prerequisite check with its fix-it
// suggestion.
func PrereqFailure(w io.Writer, check staleness.Check) {
	red := color.New(color.FgRed)
	red.Fprintf(w, "Error: %s\n", check.Error)

	if check.Suggestion != "" {
		fmt.Fprintf(w, "Run first: %s\n", check.Suggestion)
	}
}

// SessionsTable renders session records as a table, most recent first, with
// humanized ages and progress counters.
func SessionsTable(w io.Writer, records []session.Record) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"Session", "Type", "Started", "Progress", "Status"})

	for _, rec := range records {
		meta := rec.Meta()

		status := "in progress"
		if meta.Completed() {
			status = "completed"
		}

		tbl.AppendRow(table.Row{
			meta.SessionID,
			rec.Type(),
			humanizeStamp(meta.StartedAt),
			fmt.Sprintf("%d/%d", meta.CurrentIndex, meta.TotalItems),
			status,
		})
	}

	tbl.Render()
}

// HistoryEntry is one archived ledger snapshot prepared for display.
type HistoryEntry struct {
	Name     string
	Modified time.Time
	Size     int64
}

// HistoryTable renders archived ledger snapshots with ages and sizes.
func HistoryTable(w io.Writer, entries []HistoryEntry) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"Snapshot", "Age", "Size"})

	for _, entry := range entries {
		tbl.AppendRow(table.Row{
			entry.Name,
			humanize.Time(entry.Modified),
			humanize.Bytes(uint64(entry.Size)),
		})
	}

	tbl.Render()
}

// StatusTable renders the per-stage ledger state with staleness columns.
func StatusTable(w io.Writer, ledger *workflow.Ledger, stale map[workflow.Stage]staleness.Result) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"Stage", "Last Run", "Items", "Fresh"})

	for _, stage := range workflow.Stages() {
		run := ledger.Stage(stage)
		if run == nil {
			tbl.AppendRow(table.Row{stage, "never", "-", "-"})

			continue
		}

		fresh := "yes"
		if result, ok := stale[stage]; ok && result.IsStale {
			fresh = fmt.Sprintf("no (%d changed)", result.ChangedCount)
		}

		tbl.AppendRow(table.Row{stage, humanizeStamp(run.Timestamp), run.ItemCount, fresh})
	}

	tbl.Render()
}

// DiffPreview renders a colored inline diff between the current and
// suggested documentation text.
func DiffPreview(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}

func humanizeStamp(stamp string) string {
	parsed, err := time.Parse(snapshot.TimeFormat, stamp)
	if err != nil {
		return stamp
	}

	return humanize.Time(parsed)
}
