package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nickyhof/SliceDB/core"
)

// jsMacro packs a column's values across the current group or window into a
// JSON array of text, so a JSON-codec UDF can consume the whole column as
// one list argument. Column identifiers inside the macro body are
// case-sensitive.
const jsMacro = `CREATE OR REPLACE MACRO js(x) AS to_json(list(x))`

// Session is a transaction-scoped handle on one exclusive DuckDB
// connection. Sessions exist only inside Run; every SQL operation performed
// through a Session belongs to exactly one transaction, with the single
// exception of Regfn (a documented commit point).
type Session struct {
	ctx  context.Context
	conn *sql.Conn
}

// Run opens the DuckDB database at path on a dedicated connection, installs
// the js macro, begins a transaction and invokes fn. If fn returns nil the
// transaction is committed; if fn returns an error or panics the
// transaction is rolled back and the original error (or panic) is
// propagated unchanged. The connection is closed either way.
func Run(ctx context.Context, path string, fn func(*Session) error) (err error) {
	pool, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", path, err)
	}
	defer pool.Close()

	conn, err := pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &Session{ctx: ctx, conn: conn}

	if err := s.Exec(jsMacro); err != nil {
		return err
	}
	if err := s.begin(); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback()
			panic(p)
		}
		if err != nil {
			s.rollback()
			return
		}
		err = s.commit()
	}()

	return fn(s)
}

// Exec runs a single SQL statement with optional placeholder arguments.
// It is the raw-statement escape hatch: arbitrary DDL and DML pass through
// to the engine unmodified.
func (s *Session) Exec(query string, args ...any) error {
	_, err := s.conn.ExecContext(s.ctx, query, args...)
	return err
}

// QueryFrame runs a query and materializes the full result as a Frame.
func (s *Session) QueryFrame(query string, args ...any) (*core.Frame, error) {
	rows, err := s.conn.QueryContext(s.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return core.ScanFrame(rows)
}

// Register exposes an in-memory frame as a queryable transient table under
// name, usable in SQL from this point in the transaction onward.
func (s *Session) Register(name string, frame *core.Frame) error {
	if frame == nil || len(frame.Columns) == 0 {
		return fmt.Errorf("%w: frame must have at least one column", ErrInvalidArgument)
	}

	defs := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		typ := col.Type
		if typ == "" {
			typ = "VARCHAR"
		}
		defs[i] = col.Name + " " + typ
	}
	if err := s.Exec(fmt.Sprintf("CREATE TEMP TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return err
	}
	if len(frame.Rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(frame.Columns)), ", ")
	stmt, err := s.conn.PrepareContext(s.ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range frame.Rows {
		if _, err := stmt.ExecContext(s.ctx, row...); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a table previously registered with Register.
func (s *Session) Unregister(name string) error {
	return s.Exec("DROP TABLE IF EXISTS " + name)
}

func (s *Session) begin() error {
	return s.Exec("BEGIN TRANSACTION")
}

func (s *Session) commit() error {
	return s.Exec("COMMIT")
}

func (s *Session) rollback() {
	// Rollback runs on paths that already carry an error; its own failure
	// has nowhere useful to go.
	_ = s.Exec("ROLLBACK")
}

// token returns a collision-resistant suffix for generated object names.
// Uniqueness is the requirement, not unpredictability.
func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "_")
}
