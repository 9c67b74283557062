// Package store wraps the relational engine behind an explicit handle:
// one Store holds the schema model, the database connection, and the
// derived table orderings. Nothing in here is process-global; every
// operation takes the Store it works on.
package store

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/order"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an entity key resolves to no anchor row.
var ErrNotFound = errors.New("entity not found")

// ErrAmbiguous is returned by ResolveOne when a query matches more than
// one entity and the caller requires exactly one.
var ErrAmbiguous = errors.New("ambiguous name")

// Store is the single handle to one catalog database.
type Store struct {
	db     *sql.DB
	schema *api.Schema

	insertOrder []string
	deleteOrder []string

	// paths maps each table to its FK chain toward the anchor; see paths.go.
	paths map[string][]api.ForeignKey
}

// Open validates the schema, derives the table orderings and anchor
// chains, and opens the SQLite database at path with foreign-key
// enforcement on. The schema is treated as immutable from here on.
func Open(path string, schema *api.Schema) (*Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	insertOrder, err := order.Insert(schema)
	if err != nil {
		return nil, err
	}
	deleteOrder, err := order.Delete(schema)
	if err != nil {
		return nil, err
	}

	// _pragma applies per connection, so every pooled connection enforces FKs.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Single-writer model: one connection sidesteps SQLITE_BUSY between the
	// load transaction and ordinary reads.
	db.SetMaxOpenConns(1)

	return &Store{
		db:          db,
		schema:      schema,
		insertOrder: insertOrder,
		deleteOrder: deleteOrder,
		paths:       anchorPaths(schema),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Schema() *api.Schema { return s.schema }

// InsertOrder returns the FK-safe insertion order of all tables.
func (s *Store) InsertOrder() []string { return s.insertOrder }

// DeleteOrder is the exact reverse of InsertOrder.
func (s *Store) DeleteOrder() []string { return s.deleteOrder }

// ReferenceTables lists tables with no FK chain to the anchor (shared
// lookup tables like Publications). They are dumped once per save rather
// than per entity.
func (s *Store) ReferenceTables() []string {
	var refs []string
	for _, name := range s.insertOrder {
		if name == s.schema.Anchor.Table {
			continue
		}
		if _, ok := s.paths[name]; !ok {
			refs = append(refs, name)
		}
	}
	return refs
}

// DirectFK returns the table's FK column that points straight at the
// anchor key, or nil. Rows of such tables omit this column in entity
// documents; load re-attaches it.
func (s *Store) DirectFK(table string) *api.ForeignKey {
	chain, ok := s.paths[table]
	if !ok || len(chain) != 1 {
		return nil
	}
	if chain[0].RefColumn != s.schema.Anchor.Key {
		return nil
	}
	fk := chain[0]
	return &fk
}

// AnchorKeys returns every entity key, ordered.
func (s *Store) AnchorKeys() ([]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		quoteIdent(s.schema.Anchor.Key), quoteIdent(s.schema.Anchor.Table), quoteIdent(s.schema.Anchor.Key))
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("list entity keys: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan entity key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// TableRows returns the full contents of a table in deterministic order.
func (s *Store) TableRows(table string) ([]document.Row, error) {
	t := s.schema.Table(table)
	if t == nil {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		selectList("", t), quoteIdent(t.Name), selectList("", t))
	return s.queryRows(t, q)
}

// InsertTx inserts one row inside the given transaction. The row's
// columns drive the column list, so partial rows (nullable columns
// omitted in a document) insert cleanly.
func (s *Store) InsertTx(tx *sql.Tx, table string, row document.Row) error {
	t := s.schema.Table(table)
	if t == nil {
		return fmt.Errorf("unknown table %q", table)
	}

	// Deterministic column order: schema declaration order, filtered to
	// the columns present in the row.
	var cols []string
	var args []any
	for _, c := range t.Columns {
		v, ok := row[c.Name]
		if !ok {
			continue
		}
		dv, err := denormalize(c, v)
		if err != nil {
			return fmt.Errorf("table %s column %s: %w", table, c.Name, err)
		}
		cols = append(cols, quoteIdent(c.Name))
		args = append(args, dv)
	}
	for name := range row {
		if t.Column(name) == nil {
			return fmt.Errorf("table %s has no column %q", table, name)
		}
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %s: empty row", table)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := tx.Exec(q, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// ClearTx deletes every row of a table inside the given transaction.
// Callers are responsible for ordering (DeleteOrder) so FK enforcement
// never trips.
func (s *Store) ClearTx(tx *sql.Tx, table string) error {
	if s.schema.Table(table) == nil {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, err := tx.Exec("DELETE FROM " + quoteIdent(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// queryRows runs q and scans every result into a normalized Row.
func (s *Store) queryRows(t *api.Table, q string, args ...any) ([]document.Row, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []document.Row
	vals := make([]any, len(t.Columns))
	ptrs := make([]any, len(t.Columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.Name, err)
		}
		row := make(document.Row, len(t.Columns))
		for i, c := range t.Columns {
			row[c.Name] = normalize(c, vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalize maps engine scan values to document values: text as string,
// booleans as bool, blobs as base64 strings (JSON has no byte type).
func normalize(c api.Column, v any) any {
	if v == nil {
		return nil
	}
	switch c.Type {
	case api.ColumnBoolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case api.ColumnBlob:
		if b, ok := v.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b)
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// denormalize is the inverse of normalize, mapping document values back
// to engine arguments.
func denormalize(c api.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if c.Type == api.ColumnBlob {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("blob value is %T, want base64 string", v)
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return nil, fmt.Errorf("decode blob: %w", err)
		}
		return b, nil
	}
	return v, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectList renders the column list for a SELECT, optionally qualified
// with a table alias.
func selectList(alias string, t *api.Table) string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if alias == "" {
			parts[i] = quoteIdent(c.Name)
		} else {
			parts[i] = alias + "." + quoteIdent(c.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
