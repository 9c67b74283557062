package store

import (
	"fmt"

	"github.com/agentic-research/astrocat/internal/document"
)

// Inventory collects every row, across every table, whose FK chain
// resolves to the given entity key. The anchor row appears under the
// anchor table's name; tables with no rows for this entity are omitted.
// Rows of tables holding a direct FK to the anchor key omit that column;
// its value is the entity key by construction, and load re-attaches it.
//
// An unknown key returns ErrNotFound.
func (s *Store) Inventory(key string) (document.Document, error) {
	anchorRows, err := s.EntityRows(s.schema.Anchor.Table, key)
	if err != nil {
		return nil, err
	}
	if len(anchorRows) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	doc := document.Document{s.schema.Anchor.Table: anchorRows}
	for _, table := range s.insertOrder {
		if table == s.schema.Anchor.Table {
			continue
		}
		if _, ok := s.paths[table]; !ok {
			continue // reference table, not part of any entity
		}
		rows, err := s.EntityRows(table, key)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		if fk := s.DirectFK(table); fk != nil {
			for _, row := range rows {
				delete(row, fk.Column)
			}
		}
		doc[table] = rows
	}
	return doc, nil
}

// EntityRows returns the rows of one table belonging to the entity,
// complete (no column dropped) and in deterministic order. For the
// anchor table this is the entity's own row.
func (s *Store) EntityRows(table, key string) ([]document.Row, error) {
	t := s.schema.Table(table)
	if t == nil {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	if table == s.schema.Anchor.Table {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			selectList("", t), quoteIdent(t.Name), quoteIdent(s.schema.Anchor.Key))
		return s.queryRows(t, q, key)
	}

	chain, ok := s.paths[table]
	if !ok {
		return nil, fmt.Errorf("table %q is not linked to %s", table, s.schema.Anchor.Table)
	}

	// One JOIN per chain hop: t0 is the table itself, the last alias is
	// the anchor, and the WHERE pins its key.
	q := fmt.Sprintf("SELECT %s FROM %s AS t0", selectList("t0", t), quoteIdent(t.Name))
	for i, fk := range chain {
		q += fmt.Sprintf(" JOIN %s AS t%d ON t%d.%s = t%d.%s",
			quoteIdent(fk.RefTable), i+1, i+1, quoteIdent(fk.RefColumn), i, quoteIdent(fk.Column))
	}
	q += fmt.Sprintf(" WHERE t%d.%s = ? ORDER BY %s",
		len(chain), quoteIdent(s.schema.Anchor.Key), selectList("t0", t))

	return s.queryRows(t, q, key)
}
