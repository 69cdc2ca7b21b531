// Package core provides core types used throughout SliceDB.
//
// The package defines the Frame type (one in-memory tabular slice), its
// Column schema, the Identity of snapshot authors, and a plain-text table
// renderer for displaying frames.
//
// # Frame
//
// A Frame is the unit of data exchanged with the session layer. Iterators
// yield frames, the sink consumes them, and callers may build frames by hand
// to register them as queryable tables:
//
//	frame := &core.Frame{
//	    Columns: []core.Column{
//	        {Name: "id", Type: "INTEGER"},
//	        {Name: "name", Type: "VARCHAR"},
//	    },
//	    Rows: [][]any{
//	        {int64(1), "Alice"},
//	        {int64(2), "Bob"},
//	    },
//	}
//
// Column types are DuckDB type names as reported by the driver. A nil cell
// value maps to SQL NULL in both directions.
//
// # Scanning
//
// ScanFrame drains a database/sql result set into a Frame, capturing the
// column schema from the result metadata so that empty results remain
// usable:
//
//	rows, _ := conn.QueryContext(ctx, "SELECT * FROM emp")
//	frame, err := core.ScanFrame(rows)
package core
