// Package logger provides the structured logger shared by the SDK and the
// kadoa CLI. Loggers travel through context.Context; code that finds none
// falls back to the process default installed by Init.
package logger

import (
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level names a verbosity threshold as it appears in configuration.
type Level string

const (
	DebugLevel    Level = "debug"
	InfoLevel     Level = "info"
	WarnLevel     Level = "warn"
	ErrorLevel    Level = "error"
	DisabledLevel Level = "disabled"
)

// above every level charm emits
const silent charmlog.Level = 1000

var charmLevels = map[Level]charmlog.Level{
	DebugLevel:    charmlog.DebugLevel,
	InfoLevel:     charmlog.InfoLevel,
	WarnLevel:     charmlog.WarnLevel,
	ErrorLevel:    charmlog.ErrorLevel,
	DisabledLevel: silent,
}

func (l Level) String() string { return string(l) }

func (l Level) charm() charmlog.Level {
	if lvl, ok := charmLevels[l]; ok {
		return lvl
	}
	return charmlog.InfoLevel
}

// ParseLevel maps a level name to a Level. Unknown names mean info.
func ParseLevel(name string) Level {
	lvl := Level(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := charmLevels[lvl]; ok {
		return lvl
	}
	return InfoLevel
}

// Logger is the logging surface used across the module.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmAdapter struct {
	l *charmlog.Logger
}

func (a *charmAdapter) Debug(msg string, keyvals ...any) { a.l.Debug(msg, keyvals...) }
func (a *charmAdapter) Info(msg string, keyvals ...any) { a.l.Info(msg, keyvals...) }
func (a *charmAdapter) Warn(msg string, keyvals ...any) { a.l.Warn(msg, keyvals...) }
func (a *charmAdapter) Error(msg string, keyvals ...any) { a.l.Error(msg, keyvals...) }

func (a *charmAdapter) With(keyvals ...any) Logger {
	return &charmAdapter{l: a.l.With(keyvals...)}
}

// Config controls how New renders log lines.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

const defaultTimeFormat = "15:04:05"

// Quiet returns a configuration that drops every line.
func Quiet() *Config {
	return &Config{Level: DisabledLevel, Output: io.Discard, TimeFormat: defaultTimeFormat}
}

// New builds a charm backed Logger. A nil cfg logs info to stderr, or
// nothing at all inside a test binary.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Output: os.Stderr, TimeFormat: defaultTimeFormat}
		if runningUnderTest() {
			cfg = Quiet()
		}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	cl := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.charm(),
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
	})
	if cfg.JSON {
		cl.SetFormatter(charmlog.JSONFormatter)
	} else {
		cl.SetStyles(kadoaStyles())
	}
	return &charmAdapter{l: cl}
}

// Nop returns a logger that produces no output.
func Nop() Logger {
	return New(Quiet())
}

func runningUnderTest() bool {
	if len(os.Args) == 0 {
		return false
	}
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}
