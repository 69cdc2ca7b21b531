package core

import (
	"database/sql"
	"fmt"
	"time"
)

// Column describes one named, typed column of a Frame. Type holds the
// DuckDB type name as reported by the driver (e.g. "INTEGER", "VARCHAR",
// "TIMESTAMP").
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Frame is one in-memory tabular slice: an ordered sequence of rows over
// named, typed columns. Frames are treated as immutable once produced.
// A Frame with zero rows is valid and carries its column schema.
type Frame struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ScanFrame drains an entire result set into a Frame and closes it.
// Column names and type names are captured from the result metadata, so an
// empty result still yields a usable schema.
func ScanFrame(rows *sql.Rows) (*Frame, error) {
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	frame := &Frame{Columns: make([]Column, len(types))}
	for i, ct := range types {
		frame.Columns[i] = Column{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frame, nil
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// ColumnNames returns the column names in declaration order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	return names
}

// Col returns all values of the named column in row order.
func (f *Frame) Col(name string) ([]any, error) {
	for i, col := range f.Columns {
		if col.Name == name {
			values := make([]any, len(f.Rows))
			for j, row := range f.Rows {
				values[j] = row[i]
			}
			return values, nil
		}
	}
	return nil, fmt.Errorf("frame has no column %q", name)
}

// FormatValue renders a single cell value for display or wire output.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// StringRows converts the frame's rows to display strings, one slice per row.
func (f *Frame) StringRows() [][]string {
	out := make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatValue(v)
		}
		out[i] = cells
	}
	return out
}
