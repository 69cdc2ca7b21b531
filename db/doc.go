// Package db provides the transaction-scoped session layer of SliceDB.
//
// A Session wraps one exclusive DuckDB connection for the duration of a
// single transaction and is the only way SliceDB touches the engine. The
// session exposes a fixed capability surface (Exec, QueryFrame, Register,
// Push, Regfn and the three iterators) rather than forwarding arbitrary
// operations to the underlying connection, so the contract is statically
// checkable; Exec is the escape hatch for raw statements.
//
// # Session Scope
//
//	err := db.Run(ctx, "sample.duckdb", func(s *db.Session) error {
//	    if err := s.Register("src", frame); err != nil {
//	        return err
//	    }
//	    return s.Exec("CREATE TABLE t AS SELECT * FROM src")
//	})
//
// Run commits when fn returns nil and rolls back when it returns an error
// or panics, re-raising the original failure unchanged. The js macro is
// installed on entry.
//
// # Iterators
//
// The three iterators partition a table into an ordered sequence of
// bounded in-memory frames, for working with tables larger than available
// memory:
//
//	for frame, err := range s.IterGroup("emp", []string{"deptno", "job"}) {
//	    if err != nil {
//	        return err
//	    }
//	    out := transform(frame)
//	    if err := s.Push(out, "emp_out"); err != nil {
//	        return err
//	    }
//	}
//
// Reach for an iterator only when the problem cannot be expressed inside
// DuckDB itself and the data does not fit in RAM; otherwise either stay in
// SQL or load the whole table at once.
//
// # JSON-Codec UDFs
//
// Regfn registers Go functions as SQL scalar functions. List values cross
// the SQL boundary as JSON text; pair a UDF with the js macro to hand an
// entire group's column to the function as a single list:
//
//	s.Regfn(db.UDF{
//	    Name: "remove_top_n",
//	    Args: []duckdb.Type{duckdb.TYPE_VARCHAR, duckdb.TYPE_INTEGER},
//	    Ret:  duckdb.TYPE_VARCHAR,
//	    Fn:   removeTopN,
//	})
//	s.QueryFrame("SELECT deptno, remove_top_n(js(mgr), 1) FROM emp GROUP BY deptno")
//
// Regfn is a commit point; see its documentation.
package db
