package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/duckdb/duckdb-go/v2"
)

// UDF describes a scalar SQL function backed by a Go function operating on
// native values. Arguments that arrive as JSON envelopes (typically built
// with the js macro) are decoded to native lists before Fn runs, and a
// list result is re-encoded as a JSON envelope on the way back. Scalar
// values pass through in both directions.
type UDF struct {
	Name string
	Args []duckdb.Type
	Ret  duckdb.Type
	Fn   func(args []any) (any, error)
}

// Regfn registers a JSON-codec scalar function on the session's connection.
//
// Function registration is a connection-level, non-transactional operation
// in DuckDB, so Regfn is a commit point: the open transaction is committed
// before registering and a fresh one is begun afterwards. Work done before
// a Regfn call stays durable even if the session scope later fails.
func (s *Session) Regfn(udf UDF) error {
	if udf.Name == "" || udf.Fn == nil {
		return fmt.Errorf("%w: udf needs a name and a function", ErrInvalidArgument)
	}

	scalar := &jsonScalar{fn: udf.Fn}
	for _, t := range udf.Args {
		info, err := duckdb.NewTypeInfo(t)
		if err != nil {
			return err
		}
		scalar.inputs = append(scalar.inputs, info)
	}
	result, err := duckdb.NewTypeInfo(udf.Ret)
	if err != nil {
		return err
	}
	scalar.result = result

	if err := s.commit(); err != nil {
		return err
	}
	if err := duckdb.RegisterScalarUDF(s.conn, udf.Name, scalar); err != nil {
		return err
	}
	return s.begin()
}

// jsonScalar adapts a UDF to the driver's scalar function interface.
type jsonScalar struct {
	inputs []duckdb.TypeInfo
	result duckdb.TypeInfo
	fn     func([]any) (any, error)
}

func (u *jsonScalar) Config() duckdb.ScalarFuncConfig {
	return duckdb.ScalarFuncConfig{
		InputTypeInfos: u.inputs,
		ResultTypeInfo: u.result,
		// NULL arguments must reach the wrapped function; list arguments
		// legitimately contain or accompany NULLs.
		SpecialNullHandling: true,
	}
}

func (u *jsonScalar) Executor() duckdb.ScalarFuncExecutor {
	return duckdb.ScalarFuncExecutor{RowExecutor: wrapJSON(u.fn)}
}

// wrapJSON is the codec combinator. Each textual argument is
// opportunistically decoded as JSON; a value that is not a syntactically
// valid encoding is passed through as the original text, never an error. A
// slice result is JSON-encoded; any other result is handed back unchanged.
func wrapJSON(fn func([]any) (any, error)) func(values []driver.Value) (any, error) {
	return func(values []driver.Value) (any, error) {
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = decodeArg(v)
		}

		result, err := fn(args)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}

		rv := reflect.ValueOf(result)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			data, err := json.Marshal(result)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}
		return result, nil
	}
}

func decodeArg(v driver.Value) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}
