// Package extract implements `kadoa extract`.
package extract

import (
	"context"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/extraction"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
	"github.com/spf13/cobra"
)

type flags struct {
	name       string
	schemaID   string
	navigation string
	interval   string
	schedules  []string
	tags       []string
	prompt     string
	submit     bool
}

// Cmd returns the extract command.
func Cmd() *cobra.Command {
	f := &flags{}
	command := &cobra.Command{
		Use:   "extract <url>...",
		Short: "Create and start an extraction",
		Long: `Create a workflow for the given URLs and start it. Without --schema-id the
platform detects the entity from the first URL. The command waits until the run
state is terminal and prints the first page of data; --submit returns as soon
as the workflow exists.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				return run(ctx, executor, f, args)
			}, args)
		},
	}
	fs := command.Flags()
	fs.StringVar(&f.name, "name", extraction.DefaultName, "Workflow name")
	fs.StringVar(&f.schemaID, "schema-id", "", "Extract with a stored schema")
	fs.StringVar(&f.navigation, "navigation-mode", workflow.NavigationSinglePage, "Navigation mode")
	fs.StringVar(&f.interval, "interval", "", "Update interval, e.g. DAILY")
	fs.StringArrayVar(&f.schedules, "schedule", nil, "Cron schedule (repeatable, sets the interval to CUSTOM)")
	fs.StringSliceVar(&f.tags, "tag", nil, "Workflow tag (repeatable)")
	fs.StringVar(&f.prompt, "prompt", "", "Instructions for agentic navigation")
	fs.BoolVar(&f.submit, "submit", false, "Return once the workflow is created without waiting")
	return command
}

func run(ctx context.Context, executor *cmd.CommandExecutor, f *flags, urls []string) error {
	kadoa := executor.Client()
	b := kadoa.Extract(urls...).
		WithName(f.name).
		WithNavigationMode(f.navigation).
		WithTags(f.tags...)
	if f.schemaID != "" {
		b = b.WithSchemaID(f.schemaID)
	}
	if len(f.schedules) > 0 {
		b = b.WithSchedules(f.schedules...)
	} else if f.interval != "" {
		b = b.WithInterval(f.interval)
	}
	if f.prompt != "" {
		b = b.WithUserPrompt(f.prompt)
	}
	opts, err := b.Build(ctx)
	if err != nil {
		return err
	}
	mode := extraction.ModeRun
	if f.submit {
		mode = extraction.ModeSubmit
	}
	result, err := kadoa.Extraction().Extract(ctx, opts, mode)
	if err != nil {
		return err
	}
	return executor.Output().Write(result, func(tw *helpers.TextWriter) {
		if f.submit {
			tw.Line("Submitted workflow %s", result.WorkflowID)
			return
		}
		tw.Title("Workflow " + result.WorkflowID)
		tw.Field("Run state", tw.State(result.Status.RunState))
		tw.Field("Records", len(result.Data))
		if p := result.Pagination; p != nil && p.TotalPages > 1 {
			tw.Line("Showing page %d of %d, use `kadoa data %s --all` for everything",
				p.Page, p.TotalPages, result.WorkflowID)
		}
	})
}
