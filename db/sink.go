package db

import (
	"fmt"
	"strings"

	"github.com/nickyhof/SliceDB/core"
)

// Push appends the frame's rows to table, creating table from the frame's
// shape first if no table of that name exists (matched case-insensitively).
// The frame is staged under a transient uniquely named table which is
// dropped again whichever branch ran. There is no partial-write recovery:
// if the copy fails midway, the surrounding transaction's rollback is the
// only safety net.
func (s *Session) Push(frame *core.Frame, table string) error {
	tables, err := s.tableNames()
	if err != nil {
		return err
	}

	staging := "temp_frame_" + token()
	if err := s.Register(staging, frame); err != nil {
		return err
	}
	defer func() { _ = s.Unregister(staging) }()

	if !tables[strings.ToLower(table)] {
		return s.Exec(fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", table, staging))
	}
	return s.Exec(fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", table, staging))
}

// tableNames returns the lowercased names of the tables visible in the
// current schema.
func (s *Session) tableNames() (map[string]bool, error) {
	frame, err := s.QueryFrame("SHOW TABLES")
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(frame.Rows))
	for _, row := range frame.Rows {
		if name, ok := row[0].(string); ok {
			names[strings.ToLower(name)] = true
		}
	}
	return names, nil
}
