// Package ui formats command output: status lines, error blocks and tables
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a block of output with a headline and hints
type Message struct {
	Level Level
	// Context is shown upper-cased before the problem, e.g. "CONFIGURATION ERROR"
	Context     string
	Problem     string
	Suggestions []string
	NoColor     bool
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Format renders m:
//
//	❌ CONFIGURATION ERROR: auth.secret is required outside development mode
//	   → Set CONDUIT_ADMIN_AUTH_SECRET
func Format(m Message) string {
	var b strings.Builder

	var c *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		c, symbol = paint(m.NoColor, color.FgYellow, color.Bold), "⚠️"
	case LevelInfo:
		c, symbol = paint(m.NoColor, color.FgCyan, color.Bold), "ℹ️"
	default:
		c, symbol = paint(m.NoColor, color.FgRed, color.Bold), "❌"
	}

	if m.Context != "" {
		c.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		c.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	hint := paint(m.NoColor, color.FgCyan)
	for _, s := range m.Suggestions {
		hint.Fprintf(&b, "   → %s\n", s)
	}
	return b.String()
}

// Error writes an error block for err
func Error(w io.Writer, context string, err error, noColor bool, suggestions ...string) {
	fmt.Fprint(w, Format(Message{Level: LevelError, Context: context, Problem: err.Error(), Suggestions: suggestions, NoColor: noColor}))
}

// Warning writes a warning line
func Warning(w io.Writer, message string, noColor bool) {
	fmt.Fprint(w, Format(Message{Level: LevelWarning, Problem: message, NoColor: noColor}))
}

// Success writes a check-marked line
func Success(w io.Writer, message string, noColor bool) {
	paint(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// Table collects rows and prints them aligned under bold headers
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{writer: w, headers: headers, noColor: noColor}
}

// AddRow adds a row; cells past the header count are dropped
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := paint(t.noColor, color.Bold, color.FgCyan)
	gray := paint(t.noColor, color.FgHiBlack)

	cells := make([]string, len(t.headers))
	for i, h := range t.headers {
		cells[i] = bold.Sprint(padRight(h, widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))

	for i, w := range widths {
		cells[i] = gray.Sprint(strings.Repeat("─", w))
	}
	fmt.Fprintln(t.writer, strings.Join(cells, "  "))

	for _, row := range t.rows {
		line := make([]string, 0, len(widths))
		for i := range widths {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			line = append(line, padRight(cell, widths[i]))
		}
		fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}

// KeyValues prints "key: value" lines with the values aligned
func KeyValues(w io.Writer, noColor bool, pairs ...[2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	key := paint(noColor, color.FgCyan, color.Bold)
	for _, p := range pairs {
		key.Fprint(w, padRight(p[0]+":", width+1))
		fmt.Fprintf(w, " %s\n", p[1])
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
