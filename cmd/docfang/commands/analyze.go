package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/analyzer"
	"github.com/Sumatoshi-tech/docfang/internal/artifact"
	"github.com/Sumatoshi-tech/docfang/internal/snapshot"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	path string
}

// NewAnalyzeCommand creates and configures the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	cmd := &AnalyzeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Inventory documentation items in the source tree",
		Long: `Invoke the external analyzer over the source tree, record the
documentation items it reports, and snapshot the checksums of every tracked
file so downstream stages can detect staleness.`,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().StringVarP(&cmd.path, "path", "p", ".", "source tree root")

	return cobraCmd
}

// Run executes the analyze command.
func (c *AnalyzeCommand) Run(cmd *cobra.Command, _ []string) error {
	env, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	runner := analyzer.NewRunner(
		env.cfg.Analyzer.Command,
		env.cfg.Analyzer.Args,
		env.cfg.AnalyzerTimeout(),
		env.logger,
	)

	items, err := runner.Run(cmd.Context(), c.path)
	if err != nil {
		return err
	}

	writeErr := artifact.Write(env.cfg.StateDir, workflow.StageAnalyze, artifact.Analysis{
		GeneratedAt: artifact.Now(),
		Items:       items,
	})
	if writeErr != nil {
		return writeErr
	}

	files := analyzer.Files(items)
	checksums := snapshot.Checksums(snapshot.Capture(files))

	ledger, err := env.ledger.Load()
	if err != nil {
		return err
	}

	ledger.SetStage(workflow.StageAnalyze, workflow.NewStageRun(len(items), checksums))

	saveErr := env.ledger.Save(ledger)
	if saveErr != nil {
		return saveErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d documentation item(s) across %d file(s)\n", len(items), len(files))

	return nil
}
