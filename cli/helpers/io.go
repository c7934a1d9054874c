package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	stateStyle = map[string]lipgloss.Style{
		"FINISHED":  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		"SUCCESS":   lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		"FAILED":    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		"ERROR":     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		"CANCELLED": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
		"STOPPED":   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
	}
)

// OutputWriter renders command results as JSON or styled text.
type OutputWriter struct {
	writer io.Writer
	mode   Mode
	color  bool
}

// NewOutputWriter creates a new output writer
func NewOutputWriter(writer io.Writer, mode Mode, color bool) *OutputWriter {
	return &OutputWriter{writer: writer, mode: mode, color: color && mode == ModeText}
}

func (ow *OutputWriter) Mode() Mode {
	return ow.mode
}

// Write emits data as indented JSON in JSON mode; in text mode it calls text.
func (ow *OutputWriter) Write(data any, text func(*TextWriter)) error {
	if ow.mode == ModeJSON || text == nil {
		return ow.WriteJSON(data)
	}
	tw := &TextWriter{out: ow.writer, color: ow.color}
	text(tw)
	return tw.err
}

// WriteJSON writes data as JSON regardless of the mode.
func (ow *OutputWriter) WriteJSON(data any) error {
	encoder := json.NewEncoder(ow.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteLine writes one JSON document per line in JSON mode, or the text line otherwise.
func (ow *OutputWriter) WriteLine(data any, line string) error {
	if ow.mode == ModeJSON {
		return json.NewEncoder(ow.writer).Encode(data)
	}
	_, err := fmt.Fprintln(ow.writer, line)
	return err
}

// State renders a run state, colored when styling is enabled.
func (ow *OutputWriter) State(state string) string {
	return renderState(state, ow.color)
}

// TextWriter accumulates the first write error of a text rendering.
type TextWriter struct {
	out   io.Writer
	color bool
	err   error
}

func (t *TextWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.out, format, args...)
}

func (t *TextWriter) Title(title string) {
	if t.color {
		title = titleStyle.Render(title)
	}
	t.printf("%s\n", title)
}

// Field prints an aligned key/value line; empty values are skipped.
func (t *TextWriter) Field(key string, value any) {
	s := fmt.Sprint(value)
	if s == "" {
		return
	}
	label := fmt.Sprintf("%-14s", key+":")
	if t.color {
		label = keyStyle.Render(label)
	}
	t.printf("  %s %s\n", label, s)
}

func (t *TextWriter) Line(format string, args ...any) {
	t.printf(format+"\n", args...)
}

// State renders a run state, colored when styling is enabled.
func (t *TextWriter) State(state string) string {
	return renderState(state, t.color)
}

// Table prints rows under headers in aligned columns.
func (t *TextWriter) Table(headers []string, rows [][]string) {
	if t.err != nil {
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	head := strings.Join(headers, "\t")
	if t.color {
		head = titleStyle.Render(head)
	}
	fmt.Fprintln(w, head)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	t.err = w.Flush()
}

func renderState(state string, color bool) string {
	if state == "" {
		return "-"
	}
	if !color {
		return state
	}
	if style, ok := stateStyle[strings.ToUpper(state)]; ok {
		return style.Render(state)
	}
	return state
}
