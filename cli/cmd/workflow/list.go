package workflow

import (
	"context"
	"fmt"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
	"github.com/spf13/cobra"
)

const (
	defaultWorkflowLimit = 50
	maxWorkflowLimit     = 1000
	nameColumnWidth      = 40
)

// Cmd returns the workflow command group.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"workflows", "wf"},
		Short:   "Manage and wait for Kadoa workflows",
	}
	command.AddCommand(
		listCmd(),
		getCmd(),
		statusCmd(),
		waitCmd(),
		runCmd(),
		cancelCmd(),
		resumeCmd(),
		jobCmd(),
	)
	return command
}

func listCmd() *cobra.Command {
	var filters workflow.ListFilters
	command := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				if filters.Limit < 1 || filters.Limit > maxWorkflowLimit {
					return helpers.NewCliError(helpers.CodeInvalid,
						fmt.Sprintf("limit must be between 1 and %d", maxWorkflowLimit))
				}
				items, err := executor.Client().Workflows().List(ctx, filters)
				if err != nil {
					return err
				}
				return executor.Output().Write(items, func(tw *helpers.TextWriter) {
					if len(items) == 0 {
						tw.Line("No workflows found")
						return
					}
					rows := make([][]string, 0, len(items))
					for _, wf := range items {
						status := wf.Status()
						rows = append(rows, []string{
							wf.ID,
							helpers.Truncate(wf.Name, nameColumnWidth),
							tw.State(status.State),
							tw.State(status.RunState),
							helpers.FormatTime(wf.LastRun),
						})
					}
					tw.Table([]string{"ID", "NAME", "STATE", "RUN STATE", "LAST RUN"}, rows)
					tw.Line("%d %s", len(items), helpers.Pluralize(len(items), "workflow", "workflows"))
				})
			}, args)
		},
	}
	fs := command.Flags()
	fs.StringVar(&filters.Search, "search", "", "Filter by name or URL")
	fs.StringVar(&filters.State, "state", "", "Filter by workflow state")
	fs.StringSliceVar(&filters.Tags, "tag", nil, "Filter by tag (repeatable)")
	fs.IntVar(&filters.Skip, "skip", 0, "Number of workflows to skip")
	fs.IntVar(&filters.Limit, "limit", defaultWorkflowLimit, "Maximum number of workflows to return")
	fs.BoolVar(&filters.IncludeDeleted, "include-deleted", false, "Include deleted workflows")
	return command
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Show a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				wf, err := executor.Client().Workflows().Get(ctx, args[0])
				if err != nil {
					return err
				}
				return executor.Output().Write(wf, func(tw *helpers.TextWriter) {
					status := wf.Status()
					tw.Title(wf.Name)
					tw.Field("ID", wf.ID)
					tw.Field("State", tw.State(status.State))
					tw.Field("Run state", tw.State(status.RunState))
					tw.Field("Display", wf.DisplayState)
					tw.Field("Schema", wf.SchemaID)
					tw.Field("Interval", wf.UpdateInterval)
					for _, u := range wf.URLs {
						tw.Field("URL", u)
					}
					if wf.TotalRecords > 0 {
						tw.Field("Records", wf.TotalRecords)
					}
					if !wf.LastRun.IsZero() {
						tw.Field("Last run", helpers.FormatTime(wf.LastRun))
					}
				})
			}, args)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Fetch the current state and run state of a workflow once",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				status, err := executor.Client().Workflows().FetchStatus(ctx, args[0])
				if err != nil {
					return err
				}
				terminal := executor.Client().Workflows().Watcher().TerminalStates().Contains(status.RunState)
				out := statusOutput{WorkflowID: args[0], Status: status, Terminal: terminal}
				return executor.Output().Write(out, func(tw *helpers.TextWriter) {
					tw.Line("%s  %s/%s", args[0], tw.State(status.State), tw.State(status.RunState))
				})
			}, args)
		},
	}
}

type statusOutput struct {
	WorkflowID string `json:"workflowId"`
	workflow.Status
	Terminal bool `json:"terminal"`
}
