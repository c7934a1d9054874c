package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/client"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// CommandExecutor handles common setup and execution patterns for CLI commands:
// configuration lookup, output mode detection, client creation and error reporting.
type CommandExecutor struct {
	mode    helpers.Mode
	cfg     *config.Config
	out     *helpers.OutputWriter
	client  *client.Client
	metrics *metricsServer
}

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ExecutorOptions allows customization of the command executor
type ExecutorOptions struct {
	RequireClient bool
}

// NewCommandExecutor creates a new command executor with all necessary setup.
func NewCommandExecutor(cmd *cobra.Command, opts ExecutorOptions) (*CommandExecutor, error) {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	cfg := config.FromContext(ctx)
	mode := helpers.ModeFor(cfg)
	log.Debug("detected output mode", "mode", mode)
	executor := &CommandExecutor{
		mode: mode,
		cfg:  cfg,
		out:  helpers.NewOutputWriter(cmd.OutOrStdout(), mode, helpers.UseColor(cfg)),
	}
	if !opts.RequireClient {
		return executor, nil
	}
	if cfg.API.Key.Value() == "" {
		return nil, helpers.NewCliError(helpers.CodeAuth, "API key is required",
			"set api.key in the config file, the KADOA_API_KEY environment variable, or use --api-key")
	}
	var clientOpts []client.Option
	if cfg.Metrics.Enabled {
		srv, err := startMetrics(ctx, cfg.Metrics)
		if err != nil {
			return nil, err
		}
		executor.metrics = srv
		clientOpts = append(clientOpts, func(b client.Builder) client.Builder {
			return b.WithMetrics(srv.sdk)
		})
	}
	c, err := client.FromConfig(ctx, cfg, clientOpts...)
	if err != nil {
		executor.Close(ctx)
		return nil, err
	}
	executor.client = c
	return executor, nil
}

// Execute runs handler and releases the executor's resources afterwards.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handler HandlerFunc, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer e.Close(ctx)
	return handler(ctx, cmd, e, args)
}

// Close shuts down the client and the metrics endpoint.
func (e *CommandExecutor) Close(ctx context.Context) {
	log := logger.FromContext(ctx)
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			log.Warn("failed to close client", "error", err)
		}
		e.client = nil
	}
	if e.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := e.metrics.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to stop metrics endpoint", "error", err)
		}
		e.metrics = nil
	}
}

// Client returns the Kadoa client; nil unless RequireClient was set.
func (e *CommandExecutor) Client() *client.Client {
	return e.client
}

func (e *CommandExecutor) Output() *helpers.OutputWriter {
	return e.out
}

func (e *CommandExecutor) Mode() helpers.Mode {
	return e.mode
}

func (e *CommandExecutor) Config() *config.Config {
	return e.cfg
}

// ExecuteCommand is a convenience function that combines executor creation and execution.
func ExecuteCommand(cmd *cobra.Command, opts ExecutorOptions, handler HandlerFunc, args []string) error {
	executor, err := NewCommandExecutor(cmd, opts)
	if err != nil {
		return HandleCommonErrors(cmd, err, helpers.DetectMode(cmd))
	}
	return HandleCommonErrors(cmd, executor.Execute(cmd.Context(), cmd, handler, args), executor.Mode())
}

// reportedError marks an error already written to stderr.
type reportedError struct {
	err error
}

func (r *reportedError) Error() string {
	return r.err.Error()
}

func (r *reportedError) Unwrap() error {
	return r.err
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// HandleCommonErrors provides consistent error handling across all commands.
func HandleCommonErrors(cmd *cobra.Command, err error, mode helpers.Mode) error {
	if err == nil {
		return nil
	}
	cfg := config.FromContext(cmd.Context())
	helpers.OutputError(cmd.ErrOrStderr(), err, mode, helpers.UseColor(cfg))
	if cliErr := helpers.Categorize(err); cliErr != nil {
		return &reportedError{err: cliErr}
	}
	return &reportedError{err: err}
}
