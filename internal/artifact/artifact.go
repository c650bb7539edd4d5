// Package artifact reads and writes the final-output files each pipeline
// stage leaves behind in the session-reports directory. The staleness
// validator only checks their presence; the structures here are owned by the
// commands that produce them.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/docfang/internal/analyzer"
	"github.com/Sumatoshi-tech/docfang/internal/atomicfile"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/staleness"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// Permissions for artifact files.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Analysis is the analyze stage's output: the documentation items the
// external analyzer reported.
type Analysis struct {
	GeneratedAt string          `json:"generated_at"`
	Items       []analyzer.Item `json:"items"`
}

// Audit is the audit stage's output: the aggregated ratings of a completed
// audit session.
type Audit struct {
	GeneratedAt string                     `json:"generated_at"`
	SessionID   string                     `json:"session_id"`
	Ratings     map[string]map[string]*int `json:"ratings"`
}

// PlanItem is one item scheduled for improvement.
type PlanItem struct {
	Filepath string `json:"filepath"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Doc      string `json:"doc,omitempty"`
	Rating   int    `json:"rating"`
}

// Plan is the plan stage's output: the ordered list of items the improve
// stage will work through.
type Plan struct {
	GeneratedAt string     `json:"generated_at"`
	Threshold   int        `json:"threshold"`
	Items       []PlanItem `json:"items"`
}

// Write atomically persists an artifact for the given stage.
func Write(stateDir string, stage workflow.Stage, value any) error {
	path := staleness.ArtifactPath(stateDir, stage)
	if path == "" {
		return fmt.Errorf("stage %s has no artifact", stage)
	}

	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPerm)
	if mkdirErr != nil {
		return fmt.Errorf("create session-reports dir: %w", mkdirErr)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", stage, err)
	}

	writeErr := atomicfile.Write(path, data, filePerm)
	if writeErr != nil {
		return fmt.Errorf("write %s artifact: %w", stage, writeErr)
	}

	return nil
}

// Read loads an artifact for the given stage into value.
func Read(stateDir string, stage workflow.Stage, value any) error {
	path := staleness.ArtifactPath(stateDir, stage)
	if path == "" {
		return fmt.Errorf("stage %s has no artifact", stage)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s artifact: %w", stage, err)
	}

	unmarshalErr := json.Unmarshal(data, value)
	if unmarshalErr != nil {
		return fmt.Errorf("parse %s artifact: %w", stage, unmarshalErr)
	}

	return nil
}

// Now returns the artifact timestamp for the current time.
func Now() string {
	return time.Now().UTC().Format(snapshot.TimeFormat)
}
