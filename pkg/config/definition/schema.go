package definition

import (
	"reflect"
	"time"
)

// flagFields lists every configuration key that the kadoa CLI exposes as a
// flag. Keys missing here are only settable from YAML or the environment.
var flagFields = []FieldDef{
	{Path: "api.key", Default: "", CLIFlag: "api-key", EnvVar: "KADOA_API_KEY",
		Help: "Kadoa API key"},
	{Path: "api.base_url", Default: "https://api.kadoa.com", CLIFlag: "base-url", EnvVar: "KADOA_PUBLIC_API_URI",
		Help: "Kadoa public API base URL"},

	{Path: "http.timeout", Default: 30 * time.Second, CLIFlag: "timeout", EnvVar: "KADOA_HTTP_TIMEOUT",
		Help: "HTTP request timeout"},
	{Path: "http.retry_count", Default: 0, CLIFlag: "retry-count", EnvVar: "KADOA_HTTP_RETRY_COUNT",
		Help: "Retries for transient HTTP failures (status polling never retries)"},
	{Path: "http.rate_limit", Default: float64(0), CLIFlag: "rate-limit", EnvVar: "KADOA_HTTP_RATE_LIMIT",
		Help: "Maximum requests per second, 0 disables limiting"},

	{Path: "polling.interval", Default: 5 * time.Second, CLIFlag: "poll-interval", EnvVar: "KADOA_POLL_INTERVAL",
		Help: "Interval between workflow status polls"},
	{Path: "polling.max_wait", Default: 5 * time.Minute, CLIFlag: "max-wait", EnvVar: "KADOA_MAX_WAIT",
		Help: "Maximum time to wait for a workflow to finish"},

	{Path: "metrics.enabled", Default: false, CLIFlag: "metrics", EnvVar: "KADOA_METRICS_ENABLED",
		Help: "Serve Prometheus metrics while long-running commands execute"},
	{Path: "metrics.addr", Default: "127.0.0.1:9464", CLIFlag: "metrics-addr", EnvVar: "KADOA_METRICS_ADDR",
		Help: "Listen address of the metrics endpoint"},

	{Path: "runtime.log_level", Default: "info", CLIFlag: "log-level", EnvVar: "KADOA_LOG_LEVEL",
		Help: "Log level (debug, info, warn, error, disabled)"},
	{Path: "runtime.log_json", Default: false, CLIFlag: "log-json", EnvVar: "KADOA_LOG_JSON",
		Help: "Emit logs as JSON"},
	{Path: "runtime.log_source", Default: false, CLIFlag: "log-source", EnvVar: "KADOA_LOG_SOURCE",
		Help: "Include caller information in logs"},

	{Path: "cli.output", Default: "auto", CLIFlag: "output", Shorthand: "o", EnvVar: "KADOA_OUTPUT",
		Help: "Output format (auto, json, text)"},
	{Path: "cli.no_color", Default: false, CLIFlag: "no-color", EnvVar: "KADOA_NO_COLOR",
		Help: "Disable colored output"},
}

// CreateRegistry returns a registry holding every flag-backed field. The
// flag type is taken from the default value.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	for _, f := range flagFields {
		f.Type = reflect.TypeOf(f.Default)
		registry.Register(&f)
	}
	return registry
}
