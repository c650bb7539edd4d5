package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/analyzer"
	"github.com/Sumatoshi-tech/docfang/internal/artifact"
	"github.com/Sumatoshi-tech/docfang/internal/progress"
	"github.com/Sumatoshi-tech/docfang/internal/render"
	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// ErrNoItemsToAudit indicates the analyze stage reported nothing to rate.
var ErrNoItemsToAudit = errors.New("no documentation items to audit; re-run analyze")

// AuditCommand holds the flags for the audit command.
type AuditCommand struct {
	skipChecks bool
	fresh      bool
}

// NewAuditCommand creates and configures the audit command.
func NewAuditCommand() *cobra.Command {
	cmd := &AuditCommand{}

	cobraCmd := &cobra.Command{
		Use:   "audit",
		Short: "Rate documentation quality item by item",
		Long: `Walk the documentation items reported by analyze and rate each from
1 (poor) to 4 (excellent). Progress is checkpointed after every rating, so an
interrupted audit resumes exactly where it stopped.`,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.skipChecks, "skip-checks", false, "bypass prerequisite validation")
	cobraCmd.Flags().BoolVar(&cmd.fresh, "fresh", false, "start a new session instead of resuming")

	return cobraCmd
}

// Run executes the audit command.
func (c *AuditCommand) Run(cmd *cobra.Command, _ []string) error {
	env, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	check, err := env.validator.ValidatePrerequisites(workflow.StageAudit, c.skipChecks)
	if err != nil {
		return err
	}

	if !check.Valid {
		render.PrereqFailure(cmd.ErrOrStderr(), check)

		return errors.New(check.Error)
	}

	stale, err := env.validator.IsStale(workflow.StageAudit)
	if err != nil {
		return err
	}

	render.StaleWarning(cmd.OutOrStdout(), workflow.StageAudit, stale, "docfang analyze")

	var analysis artifact.Analysis

	readErr := artifact.Read(env.cfg.StateDir, workflow.StageAnalyze, &analysis)
	if readErr != nil {
		return readErr
	}

	if len(analysis.Items) == 0 {
		return ErrNoItemsToAudit
	}

	rec, err := c.openSession(env, analysis.Items)
	if err != nil {
		return err
	}

	items := make([]progress.Item, len(analysis.Items))
	for i, item := range analysis.Items {
		items[i] = progress.Item{Filepath: item.Filepath, Name: item.Name, Content: item.Doc}
	}

	machine, err := progress.NewMachine(env.sessions, rec, items, newAuditPresenter(cmd.InOrStdin(), cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	runErr := machine.Run(cmd.Context())
	if runErr != nil {
		return runErr
	}

	if !rec.Completed() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nAudit paused at item %d of %d. Re-run `docfang audit` to resume.\n",
			rec.CurrentIndex, rec.TotalItems)

		return nil
	}

	return c.finalize(cmd, env, rec)
}

// openSession resumes the most recent in-progress audit session when its
// item count still matches, otherwise starts a new one.
func (c *AuditCommand) openSession(env *env, items []analyzer.Item) (*session.AuditRecord, error) {
	if !c.fresh {
		latest, err := env.sessions.GetLatest(session.TypeAudit)
		if err != nil {
			return nil, err
		}

		if latest != nil && !latest.Meta().Completed() && latest.Meta().TotalItems == len(items) {
			rec, ok := latest.(*session.AuditRecord)
			if ok {
				env.logger.Info("resuming audit session",
					"session_id", rec.SessionID, "at", rec.CurrentIndex, "of", rec.TotalItems)

				return rec, nil
			}
		}
	}

	files := analyzer.Files(items)

	rec := session.NewAuditRecord(len(items), snapshot.Capture(files))

	_, err := env.sessions.Save(rec)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// finalize writes the audit artifact and records the stage in the ledger.
func (c *AuditCommand) finalize(cmd *cobra.Command, env *env, rec *session.AuditRecord) error {
	writeErr := artifact.Write(env.cfg.StateDir, workflow.StageAudit, artifact.Audit{
		GeneratedAt: artifact.Now(),
		SessionID:   rec.SessionID,
		Ratings:     rec.PartialRatings,
	})
	if writeErr != nil {
		return writeErr
	}

	ledger, err := env.ledger.Load()
	if err != nil {
		return err
	}

	ledger.SetStage(workflow.StageAudit, workflow.NewStageRun(rec.TotalItems, snapshot.Checksums(rec.FileSnapshot)))

	saveErr := env.ledger.Save(ledger)
	if saveErr != nil {
		return saveErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nAudit complete: %d item(s) reviewed.\n", rec.TotalItems)

	return nil
}
