package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/render"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived workflow ledger snapshots",
		Long: `List the ledger snapshots archived before each workflow state
overwrite, most recent first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			paths, err := env.ledger.ListHistory(limit)
			if err != nil {
				return err
			}

			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No ledger history yet.")

				return nil
			}

			entries := make([]render.HistoryEntry, 0, len(paths))

			for _, path := range paths {
				info, statErr := os.Stat(path)
				if statErr != nil {
					env.logger.Warn("skipping unreadable history entry", "file", path, "error", statErr)

					continue
				}

				entries = append(entries, render.HistoryEntry{
					Name:     filepath.Base(path),
					Modified: info.ModTime(),
					Size:     info.Size(),
				})
			}

			render.HistoryTable(cmd.OutOrStdout(), entries)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", -1, "maximum snapshots to list (negative for all)")

	return cmd
}
