package commands

import (
	"github.com/spf13/cobra"

	"github.com/altos-data/chmig/common/bootstrap"
)

func newInitCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the history state table if it does not exist",
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

			if err := components.History.EnsureSchema(ctx); err != nil {
				return err
			}

			components.Logger.Info("state table ready",
				"table", components.Config.Database.StateTable,
				"database", components.Config.Database.Database,
			)
			return nil
		},
	}
}
