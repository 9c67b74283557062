package order

import (
	"testing"

	"github.com/agentic-research/astrocat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tbl(name string, fks ...api.ForeignKey) api.Table {
	return api.Table{
		Name:        name,
		Columns:     []api.Column{{Name: "id", Type: api.ColumnText}},
		PrimaryKey:  []string{"id"},
		ForeignKeys: fks,
	}
}

func fk(col, refTable, refCol string) api.ForeignKey {
	return api.ForeignKey{Column: col, RefTable: refTable, RefColumn: refCol}
}

func TestInsertOrder(t *testing.T) {
	t.Run("targets precede referencing tables", func(t *testing.T) {
		s := &api.Schema{Tables: []api.Table{
			tbl("Photometry", fk("id", "Sources", "id"), fk("id", "Telescopes", "id")),
			tbl("Names", fk("id", "Sources", "id")),
			tbl("Sources"),
			tbl("Telescopes"),
		}}
		got, err := Insert(s)
		require.NoError(t, err)
		require.Len(t, got, 4)

		pos := make(map[string]int)
		for i, name := range got {
			pos[name] = i
		}
		for _, table := range s.Tables {
			for _, f := range table.ForeignKeys {
				assert.Less(t, pos[f.RefTable], pos[table.Name],
					"%s must precede %s", f.RefTable, table.Name)
			}
		}
	})

	t.Run("deterministic tie-break", func(t *testing.T) {
		s := &api.Schema{Tables: []api.Table{
			tbl("Zeta"), tbl("Alpha"), tbl("Mid"),
		}}
		got, err := Insert(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, got)
	})

	t.Run("multi-hop chain", func(t *testing.T) {
		s := &api.Schema{Tables: []api.Table{
			tbl("C", fk("id", "B", "id")),
			tbl("B", fk("id", "A", "id")),
			tbl("A"),
		}}
		got, err := Insert(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, got)
	})

	t.Run("self-reference is not a cycle", func(t *testing.T) {
		s := &api.Schema{Tables: []api.Table{
			tbl("Sources", fk("id", "Sources", "id")),
			tbl("Names", fk("id", "Sources", "id")),
		}}
		got, err := Insert(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"Sources", "Names"}, got)
	})

	t.Run("cycle is fatal and names the members", func(t *testing.T) {
		s := &api.Schema{Tables: []api.Table{
			tbl("A", fk("id", "B", "id")),
			tbl("B", fk("id", "A", "id")),
			tbl("Lone"),
		}}
		_, err := Insert(s)
		var cerr *CycleError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, []string{"A", "B"}, cerr.Tables)
	})
}

func TestDeleteOrder(t *testing.T) {
	s := &api.Schema{Tables: []api.Table{
		tbl("Names", fk("id", "Sources", "id")),
		tbl("Sources"),
		tbl("Photometry", fk("id", "Sources", "id")),
	}}
	ins, err := Insert(s)
	require.NoError(t, err)
	del, err := Delete(s)
	require.NoError(t, err)

	require.Len(t, del, len(ins))
	for i := range ins {
		assert.Equal(t, ins[i], del[len(del)-1-i])
	}
}
