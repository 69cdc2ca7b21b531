package core

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// TableWriter renders rows as a plain ASCII table without external dependencies.
type TableWriter struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

// NewTableWriter creates a table writer targeting w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{writer: w}
}

// Header sets the table headers.
func (t *TableWriter) Header(headers []string) {
	t.headers = headers
}

// Bulk adds multiple rows.
func (t *TableWriter) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

// Render writes the formatted table.
func (t *TableWriter) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.columnWidths()
	separator := t.separator(widths)

	fmt.Fprintln(t.writer, separator)
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, t.formatRow(t.headers, widths))
		fmt.Fprintln(t.writer, separator)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, t.formatRow(row, widths))
	}
	fmt.Fprintln(t.writer, separator)
}

func (t *TableWriter) columnWidths() []int {
	numCols := len(t.headers)
	for _, row := range t.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for i, h := range t.headers {
		if len(h) > widths[i] {
			widths[i] = len(h)
		}
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < numCols && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for i := range widths {
		if widths[i] < 1 {
			widths[i] = 1
		}
	}
	return widths
}

func (t *TableWriter) separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

func (t *TableWriter) formatRow(row []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		parts[i] = " " + cell + strings.Repeat(" ", w-len(cell)+1)
	}
	return "|" + strings.Join(parts, "|") + "|"
}

// Display prints the frame to stdout followed by a row-count line.
func (f *Frame) Display() {
	f.Fdisplay(os.Stdout)
}

// Fdisplay prints the frame to the given writer.
func (f *Frame) Fdisplay(w io.Writer) {
	if len(f.Rows) > 0 {
		table := NewTableWriter(w)
		table.Header(f.ColumnNames())
		table.Bulk(f.StringRows())
		table.Render()
	}
	fmt.Fprintf(w, "%d rows\n", len(f.Rows))
}
