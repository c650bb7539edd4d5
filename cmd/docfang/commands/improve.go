package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/artifact"
	"github.com/Sumatoshi-tech/docfang/internal/generate"
	"github.com/Sumatoshi-tech/docfang/internal/progress"
	"github.com/Sumatoshi-tech/docfang/internal/render"
	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// ErrEmptyPlan indicates the plan stage scheduled nothing to improve.
var ErrEmptyPlan = errors.New("plan is empty; nothing to improve")

// ImproveCommand holds the flags for the improve command.
type ImproveCommand struct {
	skipChecks bool
	fresh      bool
}

// NewImproveCommand creates and configures the improve command.
func NewImproveCommand() *cobra.Command {
	cmd := &ImproveCommand{}

	cobraCmd := &cobra.Command{
		Use:   "improve",
		Short: "Draft and review improved documentation",
		Long: `Walk the planned items, draft an improved documentation comment for
each via the configured language model, and record every accept/skip decision.
Progress is checkpointed after every decision.`,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.skipChecks, "skip-checks", false, "bypass prerequisite validation")
	cobraCmd.Flags().BoolVar(&cmd.fresh, "fresh", false, "start a new session instead of resuming")

	return cobraCmd
}

// Run executes the improve command.
func (c *ImproveCommand) Run(cmd *cobra.Command, _ []string) error {
	env, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	check, err := env.validator.ValidatePrerequisites(workflow.StageImprove, c.skipChecks)
	if err != nil {
		return err
	}

	if !check.Valid {
		render.PrereqFailure(cmd.ErrOrStderr(), check)

		return errors.New(check.Error)
	}

	stale, err := env.validator.IsStale(workflow.StageImprove)
	if err != nil {
		return err
	}

	render.StaleWarning(cmd.OutOrStdout(), workflow.StageImprove, stale, "docfang plan")

	var plan artifact.Plan

	readErr := artifact.Read(env.cfg.StateDir, workflow.StagePlan, &plan)
	if readErr != nil {
		return readErr
	}

	if len(plan.Items) == 0 {
		return ErrEmptyPlan
	}

	generator, err := generate.NewModel(generate.Options{
		Provider:   env.cfg.LLM.Provider,
		Model:      env.cfg.LLM.Model,
		APIKey:     env.cfg.LLM.APIKey,
		OllamaHost: env.cfg.LLM.OllamaHost,
	})
	if err != nil {
		return err
	}

	rec, err := c.openSession(env, plan)
	if err != nil {
		return err
	}

	presenter := newImprovePresenter(cmd.InOrStdin(), cmd.OutOrStdout(), generator)

	items := make([]progress.Item, len(plan.Items))
	for i, item := range plan.Items {
		presenter.track(item.Filepath, item.Name, item.Kind, item.Doc)
		items[i] = progress.Item{Filepath: item.Filepath, Name: item.Name, Content: item.Doc}
	}

	machine, err := progress.NewMachine(env.sessions, rec, items, presenter)
	if err != nil {
		return err
	}

	runErr := machine.Run(cmd.Context())
	if runErr != nil {
		return runErr
	}

	if !rec.Completed() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nImprove paused at item %d of %d. Re-run `docfang improve` to resume.\n",
			rec.CurrentIndex, rec.TotalItems)

		return nil
	}

	return finalizeImprove(cmd, env, rec)
}

// openSession resumes the most recent in-progress improve session when its
// item count still matches. A new session links back to the last completed
// one so continuation chains stay traceable.
func (c *ImproveCommand) openSession(env *env, plan artifact.Plan) (*session.ImproveRecord, error) {
	latest, err := env.sessions.GetLatest(session.TypeImprove)
	if err != nil {
		return nil, err
	}

	if !c.fresh && latest != nil && !latest.Meta().Completed() && latest.Meta().TotalItems == len(plan.Items) {
		rec, ok := latest.(*session.ImproveRecord)
		if ok {
			env.logger.Info("resuming improve session",
				"session_id", rec.SessionID, "at", rec.CurrentIndex, "of", rec.TotalItems)

			return rec, nil
		}
	}

	files := make([]string, 0, len(plan.Items))
	for _, item := range plan.Items {
		files = append(files, item.Filepath)
	}

	rec := session.NewImproveRecord(len(plan.Items), snapshot.Capture(files))

	if latest != nil && latest.Meta().Completed() {
		rec.PreviousSessionID = latest.Meta().SessionID
	}

	_, saveErr := env.sessions.Save(rec)
	if saveErr != nil {
		return nil, saveErr
	}

	return rec, nil
}

// finalizeImprove records the stage in the ledger.
func finalizeImprove(cmd *cobra.Command, env *env, rec *session.ImproveRecord) error {
	ledger, err := env.ledger.Load()
	if err != nil {
		return err
	}

	ledger.SetStage(workflow.StageImprove, workflow.NewStageRun(rec.TotalItems, snapshot.Checksums(rec.FileSnapshot)))

	saveErr := env.ledger.Save(ledger)
	if saveErr != nil {
		return saveErr
	}

	accepted := 0

	for _, byItem := range rec.PartialImprovements {
		for _, status := range byItem {
			if status.Status == session.StatusAccepted {
				accepted++
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nImprove complete: %d of %d suggestion(s) accepted.\n", accepted, rec.TotalItems)

	return nil
}
