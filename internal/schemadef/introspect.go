package schemadef

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/astrocat/api"
)

// Introspect reflects the schema model out of an existing SQLite database
// using PRAGMA table_info and PRAGMA foreign_key_list. The anchor
// designation cannot be recovered from DDL, so the caller supplies it.
func Introspect(db *sql.DB, anchor api.Anchor) (*api.Schema, error) {
	names, err := tableNames(db)
	if err != nil {
		return nil, err
	}

	s := &api.Schema{Anchor: anchor}
	for _, name := range names {
		table, err := introspectTable(db, name)
		if err != nil {
			return nil, fmt.Errorf("introspect table %s: %w", name, err)
		}
		s.Tables = append(s.Tables, *table)
	}

	// A FK declared without an explicit target column references the
	// target table's primary key.
	for i := range s.Tables {
		for j := range s.Tables[i].ForeignKeys {
			fk := &s.Tables[i].ForeignKeys[j]
			if fk.RefColumn != "" {
				continue
			}
			ref := s.Table(fk.RefTable)
			if ref == nil || len(ref.PrimaryKey) != 1 {
				return nil, fmt.Errorf("table %s: cannot resolve implicit foreign key target for column %s",
					s.Tables[i].Name, fk.Column)
			}
			fk.RefColumn = ref.PrimaryKey[0]
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func introspectTable(db *sql.DB, name string) (*api.Table, error) {
	table := &api.Table{Name: name}

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	// pk position → column name; sorted afterwards to restore composite
	// key declaration order.
	pkCols := make(map[int]string)
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		table.Columns = append(table.Columns, api.Column{
			Name:     colName,
			Type:     typeTag(colType),
			Nullable: notNull == 0 && pk == 0,
		})
		if pk > 0 {
			pkCols[pk] = colName
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	positions := make([]int, 0, len(pkCols))
	for p := range pkCols {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	for _, p := range positions {
		table.PrimaryKey = append(table.PrimaryKey, pkCols[p])
	}

	fks, err := db.Query(fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = fks.Close() }() // safe to ignore

	for fks.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		table.ForeignKeys = append(table.ForeignKeys, api.ForeignKey{
			Column:    from,
			RefTable:  refTable,
			RefColumn: to.String, // empty for implicit PK references, fixed up below
		})
	}
	return table, fks.Err()
}

// typeTag maps a SQLite declared type to the semantic tag. SQLite type
// affinity is loose; this follows the same buckets.
func typeTag(declared string) api.ColumnType {
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "INT"), strings.Contains(d, "REAL"),
		strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DECIMAL"):
		return api.ColumnNumber
	case strings.Contains(d, "BOOL"):
		return api.ColumnBoolean
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return api.ColumnDate
	case strings.Contains(d, "BLOB"), d == "":
		return api.ColumnBlob
	default:
		return api.ColumnText
	}
}
