// Package events implements `kadoa events`.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/spf13/cobra"
)

// Cmd returns the events command group.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "events",
		Short: "Read SDK events forwarded to Redis",
	}
	command.AddCommand(tailCmd())
	return command
}

type flags struct {
	after    int64
	limit    int
	follow   bool
	workflow string
}

func tailCmd() *cobra.Command {
	f := &flags{}
	command := &cobra.Command{
		Use:   "tail",
		Short: "Print stored events and optionally follow new ones",
		Long: `Print the events stored under events.redis_channel with an id greater than
--after. With --follow the command keeps printing events as they are broadcast
until interrupted. Requires events.redis_url.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				return tail(ctx, executor, f)
			}, args)
		},
	}
	fs := command.Flags()
	fs.Int64Var(&f.after, "after", 0, "Only print events with an id greater than this")
	fs.IntVar(&f.limit, "limit", 100, "Maximum number of stored events to print")
	fs.BoolVarP(&f.follow, "follow", "f", false, "Keep printing new events")
	fs.StringVar(&f.workflow, "workflow", "", "Only print events of this workflow")
	return command
}

func tail(ctx context.Context, executor *cmd.CommandExecutor, f *flags) error {
	cfg := executor.Config()
	url := cfg.Events.RedisURL.Value()
	if url == "" {
		return helpers.NewCliError(helpers.CodeInvalid, "events.redis_url is not configured",
			"set events.redis_url in the config file or KADOA_EVENTS_REDIS_URL")
	}
	publisher, err := events.DialRedisPublisher(ctx, url, &events.RedisOptions{Channel: cfg.Events.RedisChannel})
	if err != nil {
		return helpers.NewCliError(helpers.CodeTransport, "cannot reach the event store", err.Error())
	}
	defer publisher.Close()
	out := executor.Output()
	last := f.after
	write := func(e events.Envelope) error {
		if e.ID <= last || (f.workflow != "" && e.WorkflowID != f.workflow) {
			return nil
		}
		last = e.ID
		return out.WriteLine(e, formatEnvelope(e))
	}
	backlog, err := publisher.Replay(ctx, f.after, f.limit)
	if err != nil {
		return err
	}
	for _, e := range backlog {
		if err := write(e); err != nil {
			return err
		}
	}
	if !f.follow {
		return nil
	}
	logger.FromContext(ctx).Debug("following events", "channel", publisher.Channel(), "after", last)
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if err := publisher.Listen(ctx, func(e events.Envelope) {
		if err := write(e); err != nil {
			cancel(err)
		}
	}); err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func formatEnvelope(e events.Envelope) string {
	line := fmt.Sprintf("%d %s %s", e.ID, helpers.FormatTime(e.Timestamp), e.Type)
	if e.WorkflowID != "" {
		line += " workflow=" + e.WorkflowID
	}
	return line + " " + string(e.Data)
}
