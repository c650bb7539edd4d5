// Package staleness decides whether a pipeline stage may run: whether its
// prerequisite stages have run at all, and whether tracked source files
// changed since the upstream stage recorded its checksums. Staleness never
// blocks execution; it only yields data the caller may render as a warning.
package staleness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// sessionReportsDir holds stage output artifacts inside the state directory.
const sessionReportsDir = "session-reports"

// Stage output artifacts whose presence the prerequisite check reads. Their
// internal structure is owned by the commands that write them.
var artifactNames = map[workflow.Stage]string{
	workflow.StageAnalyze: "analyze-latest.json",
	workflow.StageAudit:   "audit.json",
	workflow.StagePlan:    "plan.json",
}

// upstream maps each stage to the stage whose recorded checksums its inputs
// were built from.
var upstream = map[workflow.Stage]workflow.Stage{
	workflow.StageAudit:   workflow.StageAnalyze,
	workflow.StagePlan:    workflow.StageAnalyze,
	workflow.StageImprove: workflow.StagePlan,
}

// prerequisites maps each stage to every stage that must have run before it.
var prerequisites = map[workflow.Stage][]workflow.Stage{
	workflow.StageAudit:   {workflow.StageAnalyze},
	workflow.StagePlan:    {workflow.StageAnalyze, workflow.StageAudit},
	workflow.StageImprove: {workflow.StagePlan},
}

// Result reports staleness of a stage's inputs. ChangedCount is for
// user-facing messaging only, never for control flow.
type Result struct {
	IsStale      bool
	ChangedCount int
}

// Check is the outcome of a prerequisite validation. Error and Suggestion
// are plain data for the display collaborator; a failed check is not a Go
// error.
type Check struct {
	Valid      bool
	Error      string
	Suggestion string
}

// Validator evaluates stage freshness against the workflow ledger.
type Validator struct {
	ledger   *workflow.Store
	stateDir string
}

// NewValidator creates a validator over the given ledger store and project
// state directory.
func NewValidator(ledger *workflow.Store, stateDir string) *Validator {
	return &Validator{ledger: ledger, stateDir: stateDir}
}

// IsStale reports whether tracked files changed since the stage's upstream
// dependency ran. A stage with no upstream, or an upstream that never ran,
// is never stale; the prerequisite check covers the latter. Only ledger-read
// I/O failures surface as errors.
func (v *Validator) IsStale(stage workflow.Stage) (Result, error) {
	up, ok := upstream[stage]
	if !ok {
		return Result{}, nil
	}

	ledger, err := v.ledger.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load ledger: %w", err)
	}

	run := ledger.Stage(up)
	if run == nil || len(run.FileChecksums) == 0 {
		return Result{}, nil
	}

	changed := snapshot.DetectChanges(run.FileChecksums)

	return Result{
		IsStale:      len(changed) > 0,
		ChangedCount: len(changed),
	}, nil
}

// ValidatePrerequisites checks that every upstream stage has run: its ledger
// entry is non-nil and its output artifact exists. With skip set the check
// is bypassed entirely; callers still surface staleness as an informational
// warning.
func (v *Validator) ValidatePrerequisites(stage workflow.Stage, skip bool) (Check, error) {
	if skip {
		return Check{Valid: true}, nil
	}

	ledger, err := v.ledger.Load()
	if err != nil {
		return Check{}, fmt.Errorf("load ledger: %w", err)
	}

	for _, required := range prerequisites[stage] {
		if ledger.Stage(required) == nil {
			return missingPrerequisite(stage, required), nil
		}

		if name, tracked := artifactNames[required]; tracked {
			path := filepath.Join(v.stateDir, sessionReportsDir, name)
			if _, statErr := os.Stat(path); statErr != nil {
				return missingPrerequisite(stage, required), nil
			}
		}
	}

	return Check{Valid: true}, nil
}

func missingPrerequisite(stage, required workflow.Stage) Check {
	return Check{
		Valid:      false,
		Error:      fmt.Sprintf("%s requires a completed %s run", stage, required),
		Suggestion: fmt.Sprintf("docfang %s", required),
	}
}

// ArtifactPath returns the output artifact path for a stage inside the state
// directory, or empty when the stage produces none.
func ArtifactPath(stateDir string, stage workflow.Stage) string {
	name, ok := artifactNames[stage]
	if !ok {
		return ""
	}

	return filepath.Join(stateDir, sessionReportsDir, name)
}
