package commands

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/altos-data/chmig/common/bootstrap"
	"github.com/altos-data/chmig/common/models"
)

func newStatusCommand(flags *globalFlags) *cobra.Command {
	var (
		showPending bool
		showFailed  bool
		byChangelog string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded apply attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			root, err := flags.projectRoot()
			if err != nil {
				return err
			}

			components, err := bootstrap.Setup(ctx, root, flags.environment)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			records, err := fetchAttempts(ctx, components, showPending, showFailed, byChangelog)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				components.Logger.Info("no attempts on record")
				return nil
			}

			printAttempts(records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPending, "pending", false, "only attempts still marked pending")
	cmd.Flags().BoolVar(&showFailed, "failed", false, "only failed attempts")
	cmd.Flags().StringVar(&byChangelog, "changelog-path", "", "only attempts recorded for one changelog file")

	return cmd
}

func fetchAttempts(ctx context.Context, components *bootstrap.Components, pending, failed bool, changelogPath string) ([]*models.AppliedRecord, error) {
	switch {
	case pending:
		return components.History.PendingAttempts(ctx)
	case failed:
		return components.History.FailedAttempts(ctx)
	case changelogPath != "":
		return components.History.AttemptsByChangelog(ctx, changelogPath)
	default:
		return components.History.AllAttempts(ctx)
	}
}

func printAttempts(records []*models.AppliedRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Change", "Changelog", "Status", "Started", "Finished", "Error"})

	for _, record := range records {
		t.AppendRow(table.Row{
			record.ChangeID,
			record.ChangelogPath,
			record.Status,
			record.StartedAt.Format(time.RFC3339),
			formatFinished(record),
			record.ErrorMessage,
		})
	}

	t.Render()
}

func formatFinished(record *models.AppliedRecord) string {
	if record.Status == models.StatusPending {
		return "-"
	}
	return record.FinishedAt.Format(time.RFC3339)
}
