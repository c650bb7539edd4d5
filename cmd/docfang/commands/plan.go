package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/artifact"
	"github.com/Sumatoshi-tech/docfang/internal/render"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// PlanCommand holds the flags for the plan command.
type PlanCommand struct {
	skipChecks bool
	threshold  int
}

// NewPlanCommand creates and configures the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &PlanCommand{}

	cobraCmd := &cobra.Command{
		Use:   "plan",
		Short: "Schedule low-rated documentation items for improvement",
		Long: `Combine the analyze inventory with audit ratings and schedule every
item rated at or below the threshold for the improve stage.`,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.skipChecks, "skip-checks", false, "bypass prerequisite validation")
	cobraCmd.Flags().IntVar(&cmd.threshold, "threshold", 0, "highest rating still scheduled (default from config)")

	return cobraCmd
}

// Run executes the plan command.
func (c *PlanCommand) Run(cmd *cobra.Command, _ []string) error {
	env, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	check, err := env.validator.ValidatePrerequisites(workflow.StagePlan, c.skipChecks)
	if err != nil {
		return err
	}

	if !check.Valid {
		render.PrereqFailure(cmd.ErrOrStderr(), check)

		return errors.New(check.Error)
	}

	stale, err := env.validator.IsStale(workflow.StagePlan)
	if err != nil {
		return err
	}

	render.StaleWarning(cmd.OutOrStdout(), workflow.StagePlan, stale, "docfang analyze")

	threshold := c.threshold
	if threshold == 0 {
		threshold = env.cfg.Audit.PlanThreshold
	}

	plan, err := buildPlan(env.cfg.StateDir, threshold)
	if err != nil {
		return err
	}

	writeErr := artifact.Write(env.cfg.StateDir, workflow.StagePlan, plan)
	if writeErr != nil {
		return writeErr
	}

	files := make([]string, 0, len(plan.Items))
	for _, item := range plan.Items {
		files = append(files, item.Filepath)
	}

	checksums := snapshot.Checksums(snapshot.Capture(files))

	ledger, err := env.ledger.Load()
	if err != nil {
		return err
	}

	ledger.SetStage(workflow.StagePlan, workflow.NewStageRun(len(plan.Items), checksums))

	saveErr := env.ledger.Save(ledger)
	if saveErr != nil {
		return saveErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Planned %d item(s) rated %d or below.\n", len(plan.Items), threshold)

	return nil
}

// buildPlan selects every analyzed item whose audit rating is at or below
// the threshold. Skipped (unrated) items are left out: the auditor saw them
// and declined to rate.
func buildPlan(stateDir string, threshold int) (artifact.Plan, error) {
	var analysis artifact.Analysis

	analysisErr := artifact.Read(stateDir, workflow.StageAnalyze, &analysis)
	if analysisErr != nil {
		return artifact.Plan{}, analysisErr
	}

	var audit artifact.Audit

	auditErr := artifact.Read(stateDir, workflow.StageAudit, &audit)
	if auditErr != nil {
		return artifact.Plan{}, auditErr
	}

	plan := artifact.Plan{
		GeneratedAt: artifact.Now(),
		Threshold:   threshold,
	}

	for _, item := range analysis.Items {
		rating, rated := audit.Ratings[item.Filepath][item.Name]
		if !rated || rating == nil || *rating > threshold {
			continue
		}

		plan.Items = append(plan.Items, artifact.PlanItem{
			Filepath: item.Filepath,
			Name:     item.Name,
			Kind:     item.Kind,
			Doc:      item.Doc,
			Rating:   *rating,
		})
	}

	// Worst-rated first, then stable by location.
	sort.SliceStable(plan.Items, func(i, j int) bool {
		if plan.Items[i].Rating != plan.Items[j].Rating {
			return plan.Items[i].Rating < plan.Items[j].Rating
		}

		if plan.Items[i].Filepath != plan.Items[j].Filepath {
			return plan.Items[i].Filepath < plan.Items[j].Filepath
		}

		return plan.Items[i].Name < plan.Items[j].Name
	})

	return plan, nil
}
