package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/render"
	"github.com/Sumatoshi-tech/docfang/internal/staleness"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each pipeline stage's last run and freshness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ledger, err := env.ledger.Load()
			if err != nil {
				return err
			}

			stale := make(map[workflow.Stage]staleness.Result)

			for _, stage := range workflow.Stages() {
				if ledger.Stage(stage) == nil {
					continue
				}

				result, staleErr := env.validator.IsStale(stage)
				if staleErr != nil {
					return staleErr
				}

				stale[stage] = result
			}

			render.StatusTable(cmd.OutOrStdout(), ledger, stale)

			return nil
		},
	}
}
