package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

const cliVersion = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	changelog   string
	environment string
}

// NewRootCommand builds the chmig command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "chmig",
		Short:         "Schema-change orchestrator for ClickHouse",
		Long:          "chmig discovers YAML changelog files, resolves declared dependencies and applies the pending SQL changes to ClickHouse with a durable audit trail.",
		Version:       cliVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.changelog, "changelog", "master-changelogs.yaml", "path to the master changelog file")
	root.PersistentFlags().StringVar(&flags.environment, "env", "dev", "environment name, selects variables/<env>.yaml")

	root.AddCommand(
		newInitCommand(flags),
		newUpdateCommand(flags),
		newDryRunCommand(flags),
		newStatusCommand(flags),
	)

	return root
}

// masterPath returns the absolute master changelog path.
func (f *globalFlags) masterPath() (string, error) {
	return filepath.Abs(f.changelog)
}

// projectRoot is the directory containing the master changelog; config.yaml
// and the variables overlay are looked up there.
func (f *globalFlags) projectRoot() (string, error) {
	abs, err := f.masterPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}
