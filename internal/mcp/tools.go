package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// Tool name constants.
const (
	ToolNameStatus    = "docfang_status"
	ToolNameSessions  = "docfang_sessions"
	ToolNameStaleness = "docfang_staleness"
)

// Tool descriptions.
const (
	statusToolDescription = "Report the last successful run of each docfang " +
		"pipeline stage (analyze, audit, plan, improve) with staleness information."
	sessionsToolDescription = "List persisted audit or improve sessions with " +
		"their progress and completion state."
	stalenessToolDescription = "Check whether a pipeline stage's inputs are " +
		"stale and whether its prerequisites are satisfied."
)

// Sentinel errors for tool input validation.
var (
	// ErrUnknownStage indicates the stage parameter names no pipeline stage.
	ErrUnknownStage = errors.New("stage must be one of analyze, audit, plan, improve")
	// ErrUnknownSessionType indicates the type parameter is invalid.
	ErrUnknownSessionType = errors.New("type must be audit or improve")
)

// StatusInput is the input schema for the docfang_status tool.
type StatusInput struct{}

// SessionsInput is the input schema for the docfang_sessions tool.
type SessionsInput struct {
	Type string `json:"type" jsonschema:"session type: audit or improve"`
}

// StalenessInput is the input schema for the docfang_staleness tool.
type StalenessInput struct {
	Stage string `json:"stage" jsonschema:"pipeline stage: analyze, audit, plan or improve"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// stageStatus is one row of the status tool response.
type stageStatus struct {
	Stage        string `json:"stage"`
	LastRun      string `json:"last_run,omitempty"`
	ItemCount    int    `json:"item_count"`
	IsStale      bool   `json:"is_stale"`
	ChangedCount int    `json:"changed_count"`
}

// sessionSummary is one row of the sessions tool response.
type sessionSummary struct {
	SessionID    string `json:"session_id"`
	Type         string `json:"type"`
	StartedAt    string `json:"started_at"`
	CurrentIndex int    `json:"current_index"`
	TotalItems   int    `json:"total_items"`
	Completed    bool   `json:"completed"`
}

func (s *Server) handleStatus(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ StatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	ledger, err := s.deps.Ledger.Load()
	if err != nil {
		return errorResult(fmt.Errorf("load ledger: %w", err))
	}

	statuses := make([]stageStatus, 0, len(workflow.Stages()))

	for _, stage := range workflow.Stages() {
		status := stageStatus{Stage: string(stage)}

		if run := ledger.Stage(stage); run != nil {
			status.LastRun = run.Timestamp
			status.ItemCount = run.ItemCount

			result, staleErr := s.deps.Validator.IsStale(stage)
			if staleErr != nil {
				return errorResult(staleErr)
			}

			status.IsStale = result.IsStale
			status.ChangedCount = result.ChangedCount
		}

		statuses = append(statuses, status)
	}

	return jsonResult(statuses)
}

func (s *Server) handleSessions(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SessionsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	sessionType := session.Type(input.Type)
	if !sessionType.Valid() {
		return errorResult(ErrUnknownSessionType)
	}

	records, err := s.deps.Sessions.List(sessionType)
	if err != nil {
		return errorResult(err)
	}

	summaries := make([]sessionSummary, 0, len(records))

	for _, rec := range records {
		meta := rec.Meta()
		summaries = append(summaries, sessionSummary{
			SessionID:    meta.SessionID,
			Type:         string(rec.Type()),
			StartedAt:    meta.StartedAt,
			CurrentIndex: meta.CurrentIndex,
			TotalItems:   meta.TotalItems,
			Completed:    meta.Completed(),
		})
	}

	return jsonResult(summaries)
}

func (s *Server) handleStaleness(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input StalenessInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	stage := workflow.Stage(input.Stage)
	if !validStage(stage) {
		return errorResult(ErrUnknownStage)
	}

	result, err := s.deps.Validator.IsStale(stage)
	if err != nil {
		return errorResult(err)
	}

	check, err := s.deps.Validator.ValidatePrerequisites(stage, false)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"is_stale":      result.IsStale,
		"changed_count": result.ChangedCount,
		"prerequisites": check,
	})
}

func validStage(stage workflow.Stage) bool {
	for _, known := range workflow.Stages() {
		if stage == known {
			return true
		}
	}

	return false
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
