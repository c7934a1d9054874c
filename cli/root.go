package cli

import (
	"context"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd/data"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd/events"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd/extract"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd/realtime"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd/workflow"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/version"
	"github.com/spf13/cobra"
)

// RootCmd returns the kadoa command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kadoa",
		Short: "Kadoa command line client",
		Long: `Manage Kadoa extraction workflows: start runs, wait for completion, fetch data
and follow realtime events. Configuration is read from defaults, the config file,
KADOA_* environment variables and flags, in increasing order of precedence.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return SetupGlobalConfig(c)
		},
		PersistentPostRunE: func(c *cobra.Command, _ []string) error {
			return closeGlobalConfig(c)
		},
	}
	pf := root.PersistentFlags()
	pf.String("config", "kadoa.yaml", "Path to the config file")
	pf.String("env-file", ".env", "Path to the environment variables file")
	addConfigFlags(pf)

	root.AddCommand(
		ConfigCmd(),
		workflow.Cmd(),
		data.Cmd(),
		extract.Cmd(),
		realtime.Cmd(),
		events.Cmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, func(
				_ context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				info := version.Get()
				return executor.Output().Write(info, func(tw *helpers.TextWriter) {
					tw.Field("Version", info.Version)
					tw.Field("Commit", info.CommitHash)
					tw.Field("Built", info.BuildDate)
					tw.Field("Go", info.GoVersion)
				})
			}, args)
		},
	}
}
