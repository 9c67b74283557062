package store

import "fmt"

// TabularResult is the shape of a raw query result: column names plus
// row values, no interpretation.
type TabularResult struct {
	Columns []string
	Rows    [][]any
}

// Query is the pass-through escape hatch to the relational engine. The
// core never builds on it; it exists for callers that need arbitrary SQL.
func (s *Store) Query(queryText string) (*TabularResult, error) {
	rows, err := s.db.Query(queryText)
	if err != nil {
		return nil, fmt.Errorf("raw query: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("raw query columns: %w", err)
	}

	result := &TabularResult{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("raw query scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	return result, rows.Err()
}
