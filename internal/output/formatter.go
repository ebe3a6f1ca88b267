// Package output renders pruning results as text tables, markdown, or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Format selects the report serialization.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Renderable is report data that knows how to render itself per format.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the underlying data for JSON serialization.
	RenderData() any
}

// Formatter writes reports to stdout or a file in one configured format.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter. A non-empty output path redirects the
// report to that file and disables color.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	f := &Formatter{format: format, writer: os.Stdout, colored: colored}

	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		f.writer = file
		f.file = file
		f.colored = false
	}
	return f, nil
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Output writes data in the configured format. Non-Renderable values are
// serialized as JSON regardless of format.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	if !ok {
		return f.writeJSON(data)
	}

	switch f.format {
	case FormatJSON:
		return f.writeJSON(r.RenderData())
	case FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	default:
		return r.RenderText(f.writer, f.colored)
	}
}

func (f *Formatter) writeJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Table is a Renderable with headers, rows, and an optional footer. Data,
// when set, replaces the row grid in JSON output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
	Data    any
}

func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Footer: footer, Data: data}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	grid := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		grid[i] = m
	}
	return grid
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		if colored {
			color.New(color.Bold).Fprintln(w, t.Title)
		} else {
			fmt.Fprintln(w, t.Title)
		}
		fmt.Fprintln(w, strings.Repeat("=", len(t.Title)))
		fmt.Fprintln(w)
	}

	grid := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Footer: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)

	grid.Header(t.Headers)
	for _, row := range t.Rows {
		grid.Append(row)
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		grid.Footer(cells...)
	}
	grid.Render()
	fmt.Fprintln(w)
	return nil
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}

	fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))

	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range t.Rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
	}
	if len(t.Footer) > 0 {
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Footer, " | "))
	}

	fmt.Fprintln(w)
	return nil
}
