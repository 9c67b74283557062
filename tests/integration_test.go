package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/mirror"
	"github.com/agentic-research/astrocat/internal/schemadef"
	"github.com/agentic-research/astrocat/internal/store"
)

// The schema mirrors a small observation catalog: Sources is the anchor,
// Names holds alternate identifiers, Telescopes is shared reference data,
// and Photometry hangs off both Sources and Telescopes.
const catalogSchema = `
anchor {
  table        = "Sources"
  key          = "source"
  names_table  = "Names"
  names_column = "other_name"
}

table "Sources" {
  column "source" { type = "text" }
  column "ra" {
    type     = "number"
    nullable = true
  }
  column "dec" {
    type     = "number"
    nullable = true
  }
  primary_key = ["source"]
}

table "Names" {
  column "source" { type = "text" }
  column "other_name" { type = "text" }
  primary_key = ["source", "other_name"]

  foreign_key {
    column     = "source"
    references = "Sources.source"
  }
}

table "Telescopes" {
  column "name" { type = "text" }
  column "aperture" {
    type     = "number"
    nullable = true
  }
  primary_key = ["name"]
}

table "Photometry" {
  column "source" { type = "text" }
  column "band" { type = "text" }
  column "magnitude" {
    type     = "number"
    nullable = true
  }
  column "telescope" {
    type     = "text"
    nullable = true
  }
  primary_key = ["source", "band"]

  foreign_key {
    column     = "source"
    references = "Sources.source"
  }
  foreign_key {
    column     = "telescope"
    references = "Telescopes.name"
  }
}
`

// testCatalog bundles a populated database and the directory it syncs to.
type testCatalog struct {
	st  *store.Store
	dir string
}

func setup(t *testing.T) *testCatalog {
	t.Helper()

	schema, err := schemadef.Decode("catalog.hcl", []byte(catalogSchema))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	st, err := store.Open(dbPath, schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ddl, err := schemadef.CreateSQL(schema)
	require.NoError(t, err)
	for _, stmt := range ddl {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}

	tx, err := st.DB().Begin()
	require.NoError(t, err)
	for _, ins := range []struct {
		table string
		row   document.Row
	}{
		{"Sources", document.Row{"source": "TWA 27", "ra": 165.466, "dec": -39.548}},
		{"Sources", document.Row{"source": "X1", "ra": nil, "dec": nil}},
		{"Names", document.Row{"source": "TWA 27", "other_name": "2MASS J11013205-3942209"}},
		{"Names", document.Row{"source": "TWA 27", "other_name": "TWA 27"}},
		{"Telescopes", document.Row{"name": "Keck", "aperture": 10.0}},
		{"Photometry", document.Row{"source": "TWA 27", "band": "K", "magnitude": 11.95, "telescope": "Keck"}},
		{"Photometry", document.Row{"source": "TWA 27", "band": "J", "magnitude": 13.0, "telescope": nil}},
	} {
		require.NoError(t, st.InsertTx(tx, ins.table, ins.row))
	}
	require.NoError(t, tx.Commit())

	return &testCatalog{st: st, dir: t.TempDir()}
}

func (c *testCatalog) save(t *testing.T) {
	t.Helper()
	require.NoError(t, mirror.Save(c.st, osfs.New(c.dir), "."))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := setup(t)
	c.save(t)

	// Entity documents plus one dump per reference table.
	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"Telescopes.json", "TWA_27.json", "X1.json"}, names)

	// Load into a fresh database built from the same definition.
	schema, err := schemadef.Decode("catalog.hcl", []byte(catalogSchema))
	require.NoError(t, err)
	dst, err := store.Open(filepath.Join(t.TempDir(), "copy.db"), schema)
	require.NoError(t, err)
	defer func() { _ = dst.Close() }() // safe to ignore

	ddl, err := schemadef.CreateSQL(schema)
	require.NoError(t, err)
	for _, stmt := range ddl {
		_, err := dst.DB().Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, mirror.Load(dst, osfs.New(c.dir), "."))

	for _, table := range schema.Tables {
		want, err := c.st.TableRows(table.Name)
		require.NoError(t, err)
		got, err := dst.TableRows(table.Name)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "table %s", table.Name)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	c := setup(t)
	c.save(t)

	first, err := os.ReadFile(filepath.Join(c.dir, "TWA_27.json"))
	require.NoError(t, err)

	c.save(t)
	second, err := os.ReadFile(filepath.Join(c.dir, "TWA_27.json"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSaveRemovesStaleDocuments(t *testing.T) {
	c := setup(t)
	stale := filepath.Join(c.dir, "Deleted_Entity.json")
	require.NoError(t, os.WriteFile(stale, []byte("{}\n"), 0o644))

	c.save(t)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadIsTransactional(t *testing.T) {
	c := setup(t)
	c.save(t)

	// A document whose satellite row points at a nonexistent entity must
	// leave the database exactly as it was.
	bad := `{
    "Photometry": [
        {
            "band": "H",
            "magnitude": 1.0
        }
    ],
    "Sources": [
        {
            "dec": null,
            "ra": null,
            "source": "Ghost"
        }
    ],
    "Names": [
        {
            "other_name": "Ghost",
            "source": "Missing"
        }
    ]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "Ghost.json"), []byte(bad), 0o644))

	before, err := c.st.AnchorKeys()
	require.NoError(t, err)

	err = mirror.Load(c.st, osfs.New(c.dir), ".")
	require.Error(t, err)
	var ierr *mirror.IntegrityError
	require.ErrorAs(t, err, &ierr)

	after, err := c.st.AnchorKeys()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolveThenInventory(t *testing.T) {
	c := setup(t)

	ctx := context.Background()
	key, err := c.st.ResolveOne(ctx, "2mass j11013205", store.ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "TWA 27", key)

	doc, err := c.st.Inventory(key)
	require.NoError(t, err)

	require.Len(t, doc["Sources"], 1)
	assert.Equal(t, "TWA 27", doc["Sources"][0]["source"])

	// Satellite rows carry no redundant anchor column inside the document.
	require.Len(t, doc["Photometry"], 2)
	for _, row := range doc["Photometry"] {
		_, present := row["source"]
		assert.False(t, present)
	}

	_, err = c.st.Inventory("No Such Star")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
