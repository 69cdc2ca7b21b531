package db

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/nickyhof/SliceDB/core"
)

// ErrInvalidArgument marks contract violations detected before any SQL is
// issued.
var ErrInvalidArgument = errors.New("invalid argument")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateColumns rejects anything that is not a list of explicit column
// names. SQL expressions are a hard error, not a convenience gap.
func validateColumns(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: at least one column name is required", ErrInvalidArgument)
	}
	for _, col := range columns {
		if !identPattern.MatchString(col) {
			return fmt.Errorf("%w: %q is not an explicit column name", ErrInvalidArgument, col)
		}
	}
	return nil
}

// createIndex builds an ephemeral index over the given columns. The name
// carries a unique token so repeated or interleaved iterations cannot
// collide.
func (s *Session) createIndex(table string, columns []string) (string, error) {
	name := "temp_index_" + token()
	if err := s.Exec(fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, strings.Join(columns, ", "))); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Session) dropIndex(name string) {
	// Best effort. The index only exists inside the session's transaction,
	// so a failed drop is undone by rollback anyway.
	_ = s.Exec("DROP INDEX IF EXISTS " + name)
}

// IterGroup yields one frame per distinct combination of the given columns
// of table, in ascending lexicographic key order. Each frame holds exactly
// the rows matching its key tuple, so groups are never empty. The group set
// reflects the table at enumeration time; mutating the table mid-iteration
// is unsupported.
//
// The ephemeral index backing the enumeration is dropped when iteration
// stops, on every exit path including early break.
func (s *Session) IterGroup(table string, columns []string) iter.Seq2[*core.Frame, error] {
	return func(yield func(*core.Frame, error) bool) {
		if err := validateColumns(columns); err != nil {
			yield(nil, err)
			return
		}

		index, err := s.createIndex(table, columns)
		if err != nil {
			yield(nil, err)
			return
		}
		defer s.dropIndex(index)

		cols := strings.Join(columns, ", ")
		keys, err := s.QueryFrame(fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s ORDER BY %s", cols, table, cols))
		if err != nil {
			yield(nil, err)
			return
		}

		conditions := make([]string, len(columns))
		for i, col := range columns {
			conditions[i] = col + " = ?"
		}
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, strings.Join(conditions, " AND "))

		for _, key := range keys.Rows {
			frame, err := s.QueryFrame(query, key...)
			if !yield(frame, err) || err != nil {
				return
			}
		}
	}
}

// Stride is the amount by which a window bound advances. Numeric reference
// columns use Number; timestamp columns use the calendar fields and
// Duration. A stride that cannot move the bound forward is an error, since
// the window loop would never terminate.
type Stride struct {
	Number   float64
	Months   int
	Days     int
	Duration time.Duration
}

// ByNumber returns a stride for numeric reference columns.
func ByNumber(n float64) Stride { return Stride{Number: n} }

// ByMonths returns a calendar stride of n months.
func ByMonths(n int) Stride { return Stride{Months: n} }

// ByDays returns a calendar stride of n days.
func ByDays(n int) Stride { return Stride{Days: n} }

// ByDuration returns a sub-day stride for timestamp reference columns.
func ByDuration(d time.Duration) Stride { return Stride{Duration: d} }

func (st Stride) isZero() bool { return st == Stride{} }

// advance adds the stride to a bound value from the reference column's
// domain. Mismatches between the stride flavor and the bound's type surface
// as errors, mirroring type mismatches inside the engine.
func (st Stride) advance(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		if st.Months == 0 && st.Days == 0 && st.Duration == 0 {
			return nil, fmt.Errorf("stride %+v cannot advance a timestamp bound", st)
		}
		return t.AddDate(0, st.Months, st.Days).Add(st.Duration), nil
	}

	n, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("cannot advance %T bound by a stride", v)
	}
	if st.Number == 0 {
		return nil, fmt.Errorf("stride %+v cannot advance a numeric bound", st)
	}
	return n + st.Number, nil
}

// WindowSpec configures IterWindow. Step defaults to Size (adjacent,
// non-overlapping windows); Start and End default to the minimum and
// maximum of Column at enumeration time.
type WindowSpec struct {
	Table  string
	Column string
	Size   Stride
	Step   Stride
	Start  any
	End    any
}

// IterWindow yields one frame per window tick over the half-open interval
// [current, current+Size), ordered ascending by the reference column,
// advancing by Step until current passes End. Empty frames are yielded:
// callers get exactly one frame per tick even when no rows fall inside it.
func (s *Session) IterWindow(spec WindowSpec) iter.Seq2[*core.Frame, error] {
	return func(yield func(*core.Frame, error) bool) {
		if err := validateColumns([]string{spec.Column}); err != nil {
			yield(nil, err)
			return
		}
		if spec.Size.isZero() {
			yield(nil, fmt.Errorf("%w: window size stride is zero", ErrInvalidArgument))
			return
		}
		step := spec.Step
		if step.isZero() {
			step = spec.Size
		}

		index, err := s.createIndex(spec.Table, []string{spec.Column})
		if err != nil {
			yield(nil, err)
			return
		}
		defer s.dropIndex(index)

		start, end := spec.Start, spec.End
		if start == nil || end == nil {
			lo, hi, err := s.columnBounds(spec.Table, spec.Column)
			if err != nil {
				yield(nil, err)
				return
			}
			if start == nil {
				start = lo
			}
			if end == nil {
				end = hi
			}
		}
		if start == nil || end == nil {
			yield(nil, fmt.Errorf("window bounds of %s.%s are unknown: table is empty and no explicit bounds were given",
				spec.Table, spec.Column))
			return
		}

		query := fmt.Sprintf("SELECT * FROM %s WHERE %s >= ? AND %s < ? ORDER BY %s",
			spec.Table, spec.Column, spec.Column, spec.Column)

		current := start
		for {
			within, err := lessEq(current, end)
			if err != nil {
				yield(nil, err)
				return
			}
			if !within {
				return
			}

			windowEnd, err := spec.Size.advance(current)
			if err != nil {
				yield(nil, err)
				return
			}

			frame, err := s.QueryFrame(query, current, windowEnd)
			if !yield(frame, err) || err != nil {
				return
			}

			current, err = step.advance(current)
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// IterChunk yields frames of up to chunkSize rows keyed on the table's
// intrinsic rowid, in ascending rowid order. The final chunk may be
// shorter. A chunk whose rowid range happens to contain no rows (after
// deletes left gaps) is still yielded as an empty frame.
func (s *Session) IterChunk(table string, chunkSize int64) iter.Seq2[*core.Frame, error] {
	return func(yield func(*core.Frame, error) bool) {
		if chunkSize < 1 {
			yield(nil, fmt.Errorf("%w: chunk size must be positive", ErrInvalidArgument))
			return
		}

		lo, hi, err := s.columnBounds(table, "rowid")
		if err != nil {
			yield(nil, err)
			return
		}
		if lo == nil || hi == nil {
			// Empty table: no identifier domain to enumerate.
			return
		}

		start, okLo := toInt64(lo)
		end, okHi := toInt64(hi)
		if !okLo || !okHi {
			yield(nil, fmt.Errorf("unexpected rowid bound types %T, %T", lo, hi))
			return
		}

		query := fmt.Sprintf("SELECT * FROM %s WHERE rowid >= ? AND rowid < ? ORDER BY rowid", table)

		for current := start; current <= end; current += chunkSize {
			frame, err := s.QueryFrame(query, current, current+chunkSize)
			if !yield(frame, err) || err != nil {
				return
			}
		}
	}
}

// columnBounds returns MIN and MAX of a column, nil for an empty table.
func (s *Session) columnBounds(table, column string) (any, any, error) {
	row := s.conn.QueryRowContext(s.ctx,
		fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", column, column, table))
	var lo, hi any
	if err := row.Scan(&lo, &hi); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

// lessEq compares two bound values of the same domain.
func lessEq(a, b any) (bool, error) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return false, fmt.Errorf("cannot compare timestamp bound with %T", b)
		}
		return !at.After(bt), nil
	}

	af, okA := toFloat(a)
	bf, okB := toFloat(b)
	if !okA || !okB {
		return false, fmt.Errorf("cannot compare %T and %T bounds", a, b)
	}
	return af <= bf, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
