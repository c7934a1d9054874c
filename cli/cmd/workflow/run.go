package workflow

import (
	"context"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/extraction"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		vars  []string
		limit int
		wait  bool
	)
	command := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Start a job of an existing workflow",
		Long: `Start a job of an existing workflow. With --wait the command waits for the
job to finish and prints the first page of extracted data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				variables, err := helpers.ParseVariables(vars)
				if err != nil {
					return err
				}
				kadoa := executor.Client()
				if wait {
					result, err := kadoa.Extraction().Run(ctx, args[0], extraction.RunOptions{
						Variables: variables,
						Limit:     limit,
						Polling:   kadoa.Polling(),
					})
					if err != nil {
						return err
					}
					return writeResult(executor.Output(), result)
				}
				job, err := kadoa.Workflows().Run(ctx, args[0], workflow.RunInput{Variables: variables, Limit: limit})
				if err != nil {
					return err
				}
				return executor.Output().Write(job, func(tw *helpers.TextWriter) {
					tw.Line("Started job %s of workflow %s", job.JobID, args[0])
				})
			}, args)
		},
	}
	fs := command.Flags()
	fs.StringArrayVar(&vars, "var", nil, "Workflow variable as key=value (repeatable)")
	fs.IntVar(&limit, "limit", 0, "Maximum number of records to extract")
	fs.BoolVar(&wait, "wait", false, "Wait for the job and print its data")
	return command
}

// writeResult prints an extraction result: JSON as is, text as a summary.
func writeResult(out *helpers.OutputWriter, result *extraction.Result) error {
	return out.Write(result, func(tw *helpers.TextWriter) {
		tw.Title("Workflow " + result.WorkflowID)
		tw.Field("Job", result.JobID)
		tw.Field("Run state", tw.State(result.Status.RunState))
		tw.Field("Records", len(result.Data))
		if result.Pagination != nil && result.Pagination.TotalPages > 1 {
			tw.Line("Showing page %d of %d, use `kadoa data %s --all` for everything",
				result.Pagination.Page, result.Pagination.TotalPages, result.WorkflowID)
		}
	})
}

func cancelCmd() *cobra.Command {
	return lifecycleCmd("cancel", "Cancel a workflow", "Cancelled",
		func(ctx context.Context, s *workflow.Service, id string) error { return s.Cancel(ctx, id) })
}

func resumeCmd() *cobra.Command {
	return lifecycleCmd("resume", "Resume a paused workflow", "Resumed",
		func(ctx context.Context, s *workflow.Service, id string) error { return s.Resume(ctx, id) })
}

type lifecycleOutput struct {
	WorkflowID string `json:"workflowId"`
	Action     string `json:"action"`
	Success    bool   `json:"success"`
}

func lifecycleCmd(use, short, done string, action func(context.Context, *workflow.Service, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <workflow-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				if err := action(ctx, executor.Client().Workflows(), args[0]); err != nil {
					return err
				}
				return executor.Output().Write(lifecycleOutput{WorkflowID: args[0], Action: use, Success: true},
					func(tw *helpers.TextWriter) { tw.Line("%s workflow %s", done, args[0]) })
			}, args)
		},
	}
}
