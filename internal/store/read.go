package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/queryir"
)

// SubmitQuery compiles q, runs it, and returns its rows as positional
// ir values in the order of q.Columns.
//
// Returns an empty slice (not nil) if no rows match.
func (s *Store) SubmitQuery(ctx context.Context, q queryir.Select) ([][]ir.IRValue, error) {
	query, params, err := s.compiler.CompileSelect(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From.Name, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From.Name, err)
	}
	return result, nil
}

// SubmitCount returns the number of rows (or groups) q matches, ignoring
// its columns, order, and page.
func (s *Store) SubmitCount(ctx context.Context, q queryir.Select) (int64, error) {
	query, params, err := s.compiler.CompileCount(q)
	if err != nil {
		return 0, fmt.Errorf("compile count: %w", err)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.From.Name, err)
	}
	return n, nil
}

func scanRows(rows *sql.Rows) ([][]ir.IRValue, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := [][]ir.IRValue{}
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]ir.IRValue, len(cols))
		for i, v := range raw {
			val, err := sqlValueToIR(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i], err)
			}
			row[i] = val
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// sqlValueToIR converts a value scanned from SQLite into an ir.IRValue.
func sqlValueToIR(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case int64:
		return ir.IRInt(val), nil
	case float64:
		return ir.IRFloat(val), nil
	case string:
		return ir.IRString(val), nil
	case []byte:
		return ir.IRString(string(val)), nil
	case bool:
		return ir.IRBool(val), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}
