package mirror

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/store"
)

// Save dumps the whole database into dir: the directory is cleared
// first (so entities deleted from the store leave no stale file behind),
// then each reference table with rows is written to its fixed-name file,
// then one document per entity.
//
// There is no filesystem transaction: a failure part-way is returned as
// an error and the directory is left in that reported partial state. No
// rollback is attempted.
func Save(st *store.Store, fsys billy.Filesystem, dir string) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save: create %s: %w", dir, err)
	}
	if err := clear(fsys, dir); err != nil {
		return fmt.Errorf("save: clear %s: %w", dir, err)
	}

	for _, table := range st.ReferenceTables() {
		rows, err := st.TableRows(table)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		if len(rows) == 0 {
			continue // empty reference tables get no file
		}
		data, err := document.Encode(document.Document{table: rows})
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		name := fsys.Join(dir, document.RefFilename(table))
		if err := util.WriteFile(fsys, name, data, 0o644); err != nil {
			return fmt.Errorf("save: write %s: %w", name, err)
		}
	}

	keys, err := st.AnchorKeys()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	for _, key := range keys {
		if err := writeEntity(st, fsys, dir, key); err != nil {
			return err
		}
	}
	return nil
}

// SaveEntity writes (or overwrites) the single document for one entity.
// The rest of the directory is untouched.
func SaveEntity(st *store.Store, key string, fsys billy.Filesystem, dir string) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save entity: create %s: %w", dir, err)
	}
	return writeEntity(st, fsys, dir, key)
}

func writeEntity(st *store.Store, fsys billy.Filesystem, dir, key string) error {
	// Entity documents and reference dumps share the directory; a key whose
	// file name shadows a dump would silently overwrite it.
	name := document.Filename(key)
	for _, table := range st.ReferenceTables() {
		if name == document.RefFilename(table) {
			return fmt.Errorf("save entity %q: file %s collides with the %s reference dump", key, name, table)
		}
	}

	doc, err := st.Inventory(key)
	if err != nil {
		return fmt.Errorf("save entity %q: %w", key, err)
	}
	data, err := document.Encode(doc)
	if err != nil {
		return fmt.Errorf("save entity %q: %w", key, err)
	}
	path := fsys.Join(dir, name)
	if err := util.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("save entity %q: write %s: %w", key, path, err)
	}
	return nil
}

// clear removes every entry of dir, recursively. Stale entity files are
// the whole reason: a save must exactly reflect the store.
func clear(fsys billy.Filesystem, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := fsys.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := util.RemoveAll(fsys, name); err != nil {
				return err
			}
			continue
		}
		if err := fsys.Remove(name); err != nil {
			return err
		}
	}
	return nil
}
