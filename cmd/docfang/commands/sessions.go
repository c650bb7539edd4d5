package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/render"
	"github.com/Sumatoshi-tech/docfang/internal/session"
)

// NewSessionsCommand creates the sessions command group.
func NewSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up persisted sessions",
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsCleanupCommand())

	return cmd
}

func sessionTypes(selected string) []session.Type {
	switch session.Type(selected) {
	case session.TypeAudit:
		return []session.Type{session.TypeAudit}
	case session.TypeImprove:
		return []session.Type{session.TypeImprove}
	default:
		return []session.Type{session.TypeAudit, session.TypeImprove}
	}
}

func newSessionsListCommand() *cobra.Command {
	var sessionType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var records []session.Record

			for _, typ := range sessionTypes(sessionType) {
				typed, listErr := env.sessions.List(typ)
				if listErr != nil {
					return listErr
				}

				records = append(records, typed...)
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")

				return nil
			}

			render.SessionsTable(cmd.OutOrStdout(), records)

			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionType, "type", "t", "", "session type: audit or improve (default both)")

	return cmd
}

func newSessionsCleanupCommand() *cobra.Command {
	var (
		sessionType string
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed sessions",
		Long: `Delete completed session records. With --all, in-progress sessions are
deleted as well. The store never deletes sessions on its own.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			deleted := 0

			for _, typ := range sessionTypes(sessionType) {
				records, listErr := env.sessions.List(typ)
				if listErr != nil {
					return listErr
				}

				for _, rec := range records {
					if !all && !rec.Meta().Completed() {
						continue
					}

					deleteErr := env.sessions.Delete(rec.Meta().SessionID, typ)
					if deleteErr != nil {
						return deleteErr
					}

					deleted++
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d session(s).\n", deleted)

			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionType, "type", "t", "", "session type: audit or improve (default both)")
	cmd.Flags().BoolVar(&all, "all", false, "also delete in-progress sessions")

	return cmd
}
