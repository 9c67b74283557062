package mirror

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/store"
)

// Load replaces the store's entire content with the directory's. Every
// document is read and merged first, so a row referenced by several
// documents (a shared publication, say) deduplicates by primary key, and
// a conflicting duplicate is an IntegrityError before anything touches
// the database. Then, inside one transaction: all tables are emptied in
// delete order and the merged rows inserted in insert order. Any failure
// rolls the whole transaction back, so readers only ever observe the
// pre-load or the fully loaded state.
func Load(st *store.Store, fsys billy.Filesystem, dir string) error {
	merged, err := mergeDirectory(st, fsys, dir)
	if err != nil {
		return err
	}

	tx, err := st.DB().Begin()
	if err != nil {
		return fmt.Errorf("load: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore

	for _, table := range st.DeleteOrder() {
		if err := st.ClearTx(tx, table); err != nil {
			return fmt.Errorf("load: %w", err)
		}
	}
	for _, table := range st.InsertOrder() {
		rows := merged[table]
		// Deterministic insertion order within a table.
		fps := make([]string, 0, len(rows))
		for fp := range rows {
			fps = append(fps, fp)
		}
		sort.Strings(fps)
		for _, fp := range fps {
			if err := st.InsertTx(tx, table, rows[fp]); err != nil {
				return &IntegrityError{Table: table, Msg: "insert rejected", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load: commit: %w", err)
	}
	return nil
}

// mergeDirectory reads every document in dir and merges rows per table,
// keyed by primary-key fingerprint.
func mergeDirectory(st *store.Store, fsys billy.Filesystem, dir string) (map[string]map[string]document.Row, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	merged := make(map[string]map[string]document.Row)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := fsys.Join(dir, entry.Name())
		data, err := util.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("load: read %s: %w", path, err)
		}
		doc, err := document.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("load: %s: %w", entry.Name(), err)
		}
		if err := mergeDocument(st, merged, doc, entry.Name()); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func mergeDocument(st *store.Store, merged map[string]map[string]document.Row, doc document.Document, file string) error {
	schema := st.Schema()

	// An entity document carries its anchor row; its satellite rows may
	// omit the anchor key column, which is re-attached here (the save
	// side strips it, the value being implied by the document).
	var entityKey string
	if rows, ok := doc[schema.Anchor.Table]; ok {
		if len(rows) != 1 {
			return &IntegrityError{
				Table: schema.Anchor.Table, File: file,
				Msg: fmt.Sprintf("entity document must hold exactly one anchor row, found %d", len(rows)),
			}
		}
		key, ok := rows[0][schema.Anchor.Key].(string)
		if !ok || key == "" {
			return &IntegrityError{
				Table: schema.Anchor.Table, File: file,
				Msg: fmt.Sprintf("anchor row has no %q key", schema.Anchor.Key),
			}
		}
		entityKey = key
	}

	// Table order within one document does not matter for merging, but a
	// deterministic walk keeps error reporting stable.
	tables := make([]string, 0, len(doc))
	for table := range doc {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		t := schema.Table(table)
		if t == nil {
			return &IntegrityError{Table: table, File: file, Msg: "unknown table"}
		}
		fk := st.DirectFK(table)
		for _, row := range doc[table] {
			if fk != nil && entityKey != "" {
				if _, ok := row[fk.Column]; !ok {
					row[fk.Column] = entityKey
				}
			}
			if err := mergeRow(t, merged, row, file); err != nil {
				return err
			}
		}
	}
	return nil
}

func mergeRow(t *api.Table, merged map[string]map[string]document.Row, row document.Row, file string) error {
	fp, err := fingerprint(t, row)
	if err != nil {
		return &IntegrityError{Table: t.Name, File: file, Msg: err.Error()}
	}
	rows, ok := merged[t.Name]
	if !ok {
		rows = make(map[string]document.Row)
		merged[t.Name] = rows
	}
	if prev, ok := rows[fp]; ok {
		// Identical duplicates collapse (shared rows dumped by several
		// documents); disagreeing ones are fatal.
		if !reflect.DeepEqual(prev, row) {
			return &IntegrityError{
				Table: t.Name, File: file,
				Msg: fmt.Sprintf("conflicting rows for primary key %s", fp),
			}
		}
		return nil
	}
	rows[fp] = row
	return nil
}

// fingerprint identifies a row by its primary-key values; tables without
// a declared primary key fall back to all columns, so exact duplicates
// still collapse.
func fingerprint(t *api.Table, row document.Row) (string, error) {
	cols := t.PrimaryKey
	if len(cols) == 0 {
		cols = make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name)
		}
	}
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		v, ok := row[col]
		if !ok && len(t.PrimaryKey) > 0 {
			return "", fmt.Errorf("row missing primary key column %q", col)
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "\x1f"), nil
}
