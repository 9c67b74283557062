package mirror

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/schemadef"
	"github.com/agentic-research/astrocat/internal/store"
)

func testSchema() *api.Schema {
	text := func(name string) api.Column { return api.Column{Name: name, Type: api.ColumnText} }

	return &api.Schema{
		Anchor: api.Anchor{Table: "Sources", Key: "source", NamesTable: "Names", NamesColumn: "other_name"},
		Tables: []api.Table{
			{
				Name: "Sources",
				Columns: []api.Column{
					text("source"),
					{Name: "ra", Type: api.ColumnNumber, Nullable: true},
					{Name: "thumbnail", Type: api.ColumnBlob, Nullable: true},
				},
				PrimaryKey: []string{"source"},
			},
			{
				Name:        "Names",
				Columns:     []api.Column{text("source"), text("other_name")},
				PrimaryKey:  []string{"source", "other_name"},
				ForeignKeys: []api.ForeignKey{{Column: "source", RefTable: "Sources", RefColumn: "source"}},
			},
			{
				Name: "Publications",
				Columns: []api.Column{
					text("reference"),
					{Name: "doi", Type: api.ColumnText, Nullable: true},
				},
				PrimaryKey: []string{"reference"},
			},
			{
				Name: "Photometry",
				Columns: []api.Column{
					{Name: "id", Type: api.ColumnNumber}, text("source"), text("band"),
					{Name: "reference", Type: api.ColumnText, Nullable: true},
				},
				PrimaryKey: []string{"id"},
				ForeignKeys: []api.ForeignKey{
					{Column: "source", RefTable: "Sources", RefColumn: "source"},
					{Column: "reference", RefTable: "Publications", RefColumn: "reference"},
				},
			},
		},
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	schema := testSchema()
	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	stmts, err := schemadef.CreateSQL(schema)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return st
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	for _, stmt := range []string{
		`INSERT INTO "Publications" (reference, doi) VALUES ('Cruz18', '10.0/abc')`,
		`INSERT INTO "Sources" (source, ra) VALUES ('X1', 12.5)`,
		`INSERT INTO "Sources" (source, ra, thumbnail) VALUES ('TWA 27', 181.889, X'00ff10')`,
		`INSERT INTO "Names" (source, other_name) VALUES ('X1', 'Fake 1')`,
		`INSERT INTO "Photometry" (id, source, band, reference) VALUES (1, 'X1', 'W1', 'Cruz18')`,
		`INSERT INTO "Photometry" (id, source, band) VALUES (2, 'TWA 27', 'J')`,
	} {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}
}

func listFiles(t *testing.T, fsys billy.Filesystem, dir string) []string {
	t.Helper()
	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestSave(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	fsys := memfs.New()

	require.NoError(t, Save(st, fsys, "data"))

	t.Run("one file per entity plus reference dumps", func(t *testing.T) {
		assert.Equal(t, []string{"Publications.json", "TWA_27.json", "X1.json"}, listFiles(t, fsys, "data"))
	})

	t.Run("idempotent byte output", func(t *testing.T) {
		first, err := util.ReadFile(fsys, "data/X1.json")
		require.NoError(t, err)
		require.NoError(t, Save(st, fsys, "data"))
		second, err := util.ReadFile(fsys, "data/X1.json")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("stale files are wiped", func(t *testing.T) {
		_, err := st.DB().Exec(`DELETE FROM "Names" WHERE source = 'X1'`)
		require.NoError(t, err)
		_, err = st.DB().Exec(`DELETE FROM "Photometry" WHERE source = 'X1'`)
		require.NoError(t, err)
		_, err = st.DB().Exec(`DELETE FROM "Sources" WHERE source = 'X1'`)
		require.NoError(t, err)

		require.NoError(t, Save(st, fsys, "data"))
		assert.NotContains(t, listFiles(t, fsys, "data"), "X1.json")
	})
}

func TestSaveEntity(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	fsys := memfs.New()

	require.NoError(t, SaveEntity(st, "X1", fsys, "data"))
	assert.Equal(t, []string{"X1.json"}, listFiles(t, fsys, "data"))

	err := SaveEntity(st, "ghost", fsys, "data")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveRejectsKeyShadowingReferenceDump(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	// An entity literally named after a reference table would produce the
	// dump's own file name and overwrite it.
	_, err := st.DB().Exec(`INSERT INTO "Sources" (source) VALUES ('Publications')`)
	require.NoError(t, err)

	fsys := memfs.New()
	err = Save(st, fsys, "data")
	assert.ErrorContains(t, err, "Publications")

	err = SaveEntity(st, "Publications", fsys, "data")
	assert.ErrorContains(t, err, "reference dump")
}

func TestLoadRoundTrip(t *testing.T) {
	src := openStore(t)
	seed(t, src)
	fsys := memfs.New()
	require.NoError(t, Save(src, fsys, "data"))

	dst := openStore(t)
	require.NoError(t, Load(dst, fsys, "data"))

	for _, table := range []string{"Sources", "Names", "Publications", "Photometry"} {
		want, err := src.TableRows(table)
		require.NoError(t, err)
		got, err := dst.TableRows(table)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "table %s", table)
	}
}

func TestLoadReplacesExistingContent(t *testing.T) {
	src := openStore(t)
	seed(t, src)
	fsys := memfs.New()
	require.NoError(t, Save(src, fsys, "data"))

	dst := openStore(t)
	_, err := dst.DB().Exec(`INSERT INTO "Sources" (source) VALUES ('Leftover')`)
	require.NoError(t, err)

	require.NoError(t, Load(dst, fsys, "data"))
	_, err = dst.Inventory("Leftover")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadIntegrity(t *testing.T) {
	writeDoc := func(t *testing.T, fsys billy.Filesystem, name, content string) {
		t.Helper()
		require.NoError(t, util.WriteFile(fsys, "data/"+name, []byte(content), 0o644))
	}

	t.Run("conflicting duplicate primary key", func(t *testing.T) {
		st := openStore(t)
		fsys := memfs.New()
		writeDoc(t, fsys, "a.json", `{
			"Sources": [{"source": "A"}],
			"Publications": [{"doi": "10.0/abc", "reference": "Cruz18"}]
		}`)
		writeDoc(t, fsys, "b.json", `{
			"Sources": [{"source": "B"}],
			"Publications": [{"doi": "10.0/DIFFERENT", "reference": "Cruz18"}]
		}`)

		err := Load(st, fsys, "data")
		var ierr *IntegrityError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "Publications", ierr.Table)
	})

	t.Run("identical duplicates collapse", func(t *testing.T) {
		st := openStore(t)
		fsys := memfs.New()
		writeDoc(t, fsys, "a.json", `{
			"Sources": [{"source": "A"}],
			"Publications": [{"doi": "10.0/abc", "reference": "Cruz18"}]
		}`)
		writeDoc(t, fsys, "b.json", `{
			"Sources": [{"source": "B"}],
			"Publications": [{"doi": "10.0/abc", "reference": "Cruz18"}]
		}`)

		require.NoError(t, Load(st, fsys, "data"))
		rows, err := st.TableRows("Publications")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("unknown table", func(t *testing.T) {
		st := openStore(t)
		fsys := memfs.New()
		writeDoc(t, fsys, "a.json", `{"Sources": [{"source": "A"}], "Astrometry": []}`)

		err := Load(st, fsys, "data")
		var ierr *IntegrityError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "Astrometry", ierr.Table)
	})

	t.Run("foreign key violation rolls everything back", func(t *testing.T) {
		st := openStore(t)
		seed(t, st)
		before, err := st.TableRows("Sources")
		require.NoError(t, err)

		fsys := memfs.New()
		writeDoc(t, fsys, "a.json", `{
			"Sources": [{"source": "A"}],
			"Photometry": [{"band": "W1", "id": 1, "reference": "MissingPub"}]
		}`)

		err = Load(st, fsys, "data")
		var ierr *IntegrityError
		require.ErrorAs(t, err, &ierr)

		// Pre-load content intact, including rows the delete phase touched.
		after, err := st.TableRows("Sources")
		require.NoError(t, err)
		assert.ElementsMatch(t, before, after)
	})

	t.Run("missing primary key column", func(t *testing.T) {
		st := openStore(t)
		fsys := memfs.New()
		writeDoc(t, fsys, "a.json", `{"Sources": [{"source": "A"}], "Photometry": [{"band": "W1"}]}`)

		err := Load(st, fsys, "data")
		var ierr *IntegrityError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "Photometry", ierr.Table)
	})
}

func TestLoadSatelliteRowsReattachAnchorKey(t *testing.T) {
	st := openStore(t)
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "data/TWA_27.json", []byte(`{
		"Names": [{"other_name": "2M1207"}],
		"Sources": [{"ra": 181.889, "source": "TWA 27"}]
	}`), 0o644))

	require.NoError(t, Load(st, fsys, "data"))
	rows, err := st.TableRows("Names")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TWA 27", rows[0]["source"])
}

func TestLoadIgnoresForeignFiles(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	fsys := memfs.New()
	require.NoError(t, Save(st, fsys, "data"))
	require.NoError(t, util.WriteFile(fsys, "data/README.md", []byte("# notes\n"), 0o644))

	dst := openStore(t)
	require.NoError(t, Load(dst, fsys, "data"))
}
