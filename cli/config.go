package cli

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/spf13/cobra"
)

// SetupGlobalConfig loads the .env file and the configuration of cmd, configures
// the process logger and stores the configuration manager in the command context.
func SetupGlobalConfig(command *cobra.Command) error {
	if _, err := loadEnvFile(command); err != nil {
		return err
	}
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	flags := make(map[string]any)
	extractCLIFlags(command, flags)
	sources := []config.Source{config.NewDefaultProvider()}
	if path, err := command.Flags().GetString("config"); err == nil && path != "" {
		sources = append(sources, config.NewYAMLProvider(path))
	}
	sources = append(sources, config.NewEnvProvider(), config.NewCLIProvider(flags))
	manager := config.NewManager(ctx, config.NewService())
	cfg, err := manager.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	// PersistentPostRunE is skipped when a command fails.
	context.AfterFunc(ctx, func() { _ = manager.Close(context.WithoutCancel(ctx)) })
	command.SetContext(config.ContextWithManager(ctx, manager))
	return nil
}

func closeGlobalConfig(command *cobra.Command) error {
	if manager := config.ManagerFromContext(command.Context()); manager != nil {
		return manager.Close(command.Context())
	}
	return nil
}

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	command.AddCommand(configShowCmd(), configEnvCmd())
	return command
}

type configEntry struct {
	Key    string            `json:"key"`
	Value  string            `json:"value"`
	Source config.SourceType `json:"source,omitempty"`
}

func configShowCmd() *cobra.Command {
	var showSources bool
	command := &cobra.Command{
		Use:   "show",
		Short: "Show configuration values and, optionally, where each came from",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, func(
				ctx context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				entries := configEntries(executor.Config())
				if showSources {
					if manager := config.ManagerFromContext(ctx); manager != nil {
						for i := range entries {
							entries[i].Source = manager.Service.GetSource(entries[i].Key)
						}
					}
				}
				return executor.Output().Write(entries, func(tw *helpers.TextWriter) {
					headers := []string{"KEY", "VALUE"}
					if showSources {
						headers = append(headers, "SOURCE")
					}
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						row := []string{e.Key, helpers.Truncate(e.Value, 60)}
						if showSources {
							row = append(row, string(e.Source))
						}
						rows = append(rows, row)
					}
					tw.Table(headers, rows)
				})
			}, args)
		},
	}
	command.Flags().BoolVarP(&showSources, "sources", "s", false, "Show configuration sources")
	return command
}

func configEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables read by kadoa",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, func(
				_ context.Context,
				_ *cobra.Command,
				executor *cmd.CommandExecutor,
				_ []string,
			) error {
				mappings := config.GenerateEnvMappings()
				sort.Slice(mappings, func(i, j int) bool { return mappings[i].EnvVar < mappings[j].EnvVar })
				return executor.Output().Write(mappings, func(tw *helpers.TextWriter) {
					rows := make([][]string, 0, len(mappings))
					for _, m := range mappings {
						sensitive := ""
						if config.IsSensitiveConfigPath(m.ConfigPath) {
							sensitive = "yes"
						}
						rows = append(rows, []string{m.EnvVar, m.ConfigPath, sensitive})
					}
					tw.Table([]string{"VARIABLE", "KEY", "SENSITIVE"}, rows)
				})
			}, args)
		},
	}
}

// configEntries flattens cfg into dotted keys; secrets stay redacted.
func configEntries(cfg *config.Config) []configEntry {
	out := make([]configEntry, 0, 48)
	collectEntries(reflect.ValueOf(cfg).Elem(), "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func collectEntries(v reflect.Value, prefix string, out *[]configEntry) {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		value := v.Field(i)
		if value.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			collectEntries(value, key, out)
			continue
		}
		*out = append(*out, configEntry{Key: key, Value: fmt.Sprint(value.Interface())})
	}
}
