// Package realtime implements `kadoa realtime`.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/realtime"
	"github.com/spf13/cobra"
)

// Cmd returns the realtime command group.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "realtime",
		Short: "Work with the realtime event channel",
	}
	command.AddCommand(listenCmd())
	return command
}

type flags struct {
	types []string
	count int
}

type frame struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func listenCmd() *cobra.Command {
	f := &flags{}
	command := &cobra.Command{
		Use:   "listen",
		Short: "Print realtime events until interrupted",
		Long: `Connect to the realtime channel and print every event. Heartbeats are
consumed silently and the connection is re-established when it drops. Changes to
the runtime section of the config file (for example runtime.log_level) are
applied without restarting.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireClient: true}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				return listen(ctx, executor, f)
			}, args)
		},
	}
	fs := command.Flags()
	fs.StringSliceVar(&f.types, "type", nil, "Only print events of this type (repeatable)")
	fs.IntVar(&f.count, "count", 0, "Exit after this many events; 0 listens until interrupted")
	return command
}

func listen(ctx context.Context, executor *cmd.CommandExecutor, f *flags) error {
	log := logger.FromContext(ctx)
	if manager := config.ManagerFromContext(ctx); manager != nil {
		manager.OnChange(func(cfg *config.Config) {
			logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
			logger.FromContext(ctx).Info("applied configuration change", "log_level", cfg.Runtime.LogLevel)
		})
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	out := executor.Output()
	var (
		mu   sync.Mutex
		seen int
	)
	rt, err := executor.Client().ConnectRealtime(ctx)
	if err != nil {
		return err
	}
	defer rt.OnEvent(func(msg realtime.Message) {
		if len(f.types) > 0 && !slices.ContainsFunc(f.types, func(t string) bool { return strings.EqualFold(t, msg.Type) }) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if f.count > 0 && seen >= f.count {
			return
		}
		seen++
		line := msg.Type
		if msg.ID != "" {
			line += " " + msg.ID
		}
		if wf := msg.Get("data.workflowId"); wf.Exists() {
			line += " workflow=" + wf.String()
		}
		if err := out.WriteLine(frame{ID: msg.ID, Type: msg.Type, Data: msg.Raw}, line); err != nil {
			cancel(err)
			return
		}
		if f.count > 0 && seen >= f.count {
			cancel(nil)
		}
	})()
	defer rt.OnConnection(func(connected bool, reason string) {
		if !connected {
			log.Warn("realtime connection lost", "reason", reason)
		}
	})()
	defer rt.OnError(func(err error) {
		if errors.Is(err, realtime.ErrReconnectsExhausted) {
			cancel(err)
			return
		}
		log.Warn("realtime error", "error", err)
	})()
	log.Info("listening for realtime events", "connected", rt.IsConnected())
	<-ctx.Done()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if out.Mode() == helpers.ModeText {
		mu.Lock()
		defer mu.Unlock()
		log.Info("stopped listening", "events", seen)
	}
	return nil
}
