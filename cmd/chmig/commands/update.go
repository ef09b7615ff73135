package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/altos-data/chmig/common/bootstrap"
	"github.com/altos-data/chmig/common/changelog"
	"github.com/altos-data/chmig/common/executor"
	"github.com/altos-data/chmig/common/plan"
	"github.com/altos-data/chmig/common/render"
	"github.com/altos-data/chmig/common/resolver"
)

func newUpdateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Apply all pending changes in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), flags, false)
		},
	}
}

func newDryRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Report pending changes without applying them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), flags, true)
		},
	}
}

// runPipeline is the shared load -> diff -> resolve -> execute sequence. A
// dry run walks the identical pipeline but previews statements and leaves the
// history untouched.
func runPipeline(ctx context.Context, flags *globalFlags, dry bool) error {
	master, err := flags.masterPath()
	if err != nil {
		return err
	}
	root, err := flags.projectRoot()
	if err != nil {
		return err
	}

	components, err := bootstrap.Setup(ctx, root, flags.environment)
	if err != nil {
		return err
	}
	defer components.Shutdown(ctx)
	log := components.Logger

	if err := components.History.EnsureSchema(ctx); err != nil {
		return err
	}

	loader, err := changelog.NewLoader(master, log)
	if err != nil {
		return err
	}
	all, err := loader.Load()
	if err != nil {
		return err
	}

	result := plan.Calculate(ctx, all, components.History)
	if result.Degraded != nil {
		log.Warn("history unavailable, assuming nothing has been applied", "error", result.Degraded)
	}

	if len(result.Pending) == 0 {
		log.Info("no new changes to apply")
		return nil
	}

	resolved, err := resolver.Resolve(result.Pending, plan.Universe(all), result.Applied)
	if err != nil {
		return err
	}

	renderer := render.New(loader.ProjectRoot(), components.Config.Service.MacrosDir, log)
	exec := executor.New(components.History, renderer, components.DB, components.Variables, log)

	if dry {
		report, err := exec.DryRun(ctx, resolved)
		if err != nil {
			return err
		}
		log.Info("dry run complete", "pending", len(report.Applied), "skipped", len(report.Skipped))
		return nil
	}

	report, err := exec.Run(ctx, resolved)
	if err != nil {
		return err
	}

	if len(report.Applied) == 0 {
		log.Info("no new changes to apply", "skipped", len(report.Skipped))
	} else {
		log.Info("update complete", "applied", len(report.Applied), "skipped", len(report.Skipped))
	}
	return nil
}
