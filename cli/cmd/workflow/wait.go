package workflow

import (
	"context"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
	"github.com/spf13/cobra"
)

type waitOutput struct {
	WorkflowID string                 `json:"workflowId"`
	Status     workflow.Status        `json:"status"`
	Changes    []events.StatusChanged `json:"changes"`
	Elapsed    string                 `json:"elapsed"`
}

func waitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <workflow-id>",
		Short: "Poll a workflow until its run state is terminal",
		Long: `Poll a workflow every --poll-interval until it reaches a terminal run state
or --max-wait elapses. Each change of the (state, run state) pair is printed as
it is observed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, runWait, args)
		},
	}
}

func runWait(ctx context.Context, _ *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	kadoa := executor.Client()
	out := executor.Output()
	id := args[0]
	var changes []events.StatusChanged
	stop := kadoa.Events().Subscribe(events.TypeStatusChanged, func(_ context.Context, e events.Event) {
		change, ok := e.Payload.(events.StatusChanged)
		if !ok || change.WorkflowID != id {
			return
		}
		changes = append(changes, change)
		if out.Mode() == helpers.ModeText {
			_ = out.WriteLine(change, formatChange(out, change))
		}
	})
	defer stop()
	started := time.Now()
	status, err := kadoa.WaitForCompletion(ctx, id)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)
	result := waitOutput{WorkflowID: id, Status: status, Changes: changes, Elapsed: elapsed.Round(time.Millisecond).String()}
	return out.Write(result, func(tw *helpers.TextWriter) {
		tw.Line("%s finished with %s after %s", id, tw.State(status.RunState), helpers.FormatDuration(elapsed))
	})
}

func formatChange(out *helpers.OutputWriter, change events.StatusChanged) string {
	current := out.State(change.CurrentState) + "/" + out.State(change.CurrentRunState)
	if change.PreviousState == "" && change.PreviousRunState == "" {
		return "→ " + current
	}
	return out.State(change.PreviousState) + "/" + out.State(change.PreviousRunState) + " → " + current
}

func jobCmd() *cobra.Command {
	var wait bool
	command := &cobra.Command{
		Use:   "job <workflow-id> <job-id>",
		Short: "Show the state of a workflow job",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				args []string,
			) error {
				kadoa := executor.Client()
				var (
					job *workflow.Job
					err error
				)
				if wait {
					job, err = kadoa.Workflows().WaitForJobCompletion(ctx, args[0], args[1], kadoa.Polling())
				} else {
					job, err = kadoa.Workflows().GetJobStatus(ctx, args[0], args[1])
				}
				if err != nil {
					return err
				}
				return executor.Output().Write(job, func(tw *helpers.TextWriter) {
					tw.Title("Job " + job.JobID)
					tw.Field("Workflow", job.WorkflowID)
					tw.Field("State", tw.State(job.State))
					if !job.StartedAt.IsZero() {
						tw.Field("Started", helpers.FormatTime(job.StartedAt))
					}
					if !job.CompletedAt.IsZero() {
						tw.Field("Completed", helpers.FormatTime(job.CompletedAt))
					}
				})
			}, args)
		},
	}
	command.Flags().BoolVar(&wait, "wait", false, "Wait until the job reaches a terminal state")
	return command
}
