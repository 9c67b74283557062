package store

import (
	"sort"

	"github.com/agentic-research/astrocat/api"
)

// anchorPaths computes, for every table that can reach the anchor over
// foreign keys, the shortest FK chain toward it. chain[0] is a FK of the
// table itself; each following element is a FK of the previous target;
// the last element points into the anchor table on its key column.
//
// Tables without a chain are reference tables. The anchor itself has no
// entry. Shortest chain wins; among equal-length chains the walk order
// is deterministic, so the same schema always yields the same chains.
func anchorPaths(s *api.Schema) map[string][]api.ForeignKey {
	paths := make(map[string][]api.ForeignKey)

	// Breadth-first from the anchor, walking FK edges backwards. dist is
	// in chain hops; the anchor sits at zero with an empty chain.
	dist := map[string]int{s.Anchor.Table: 0}
	frontier := []string{s.Anchor.Table}

	for len(frontier) > 0 {
		var next []string
		for _, target := range frontier {
			for _, cand := range referencing(s, target) {
				t := cand.table
				if t.Name == s.Anchor.Table {
					continue
				}
				// Edges into the anchor only count on its key column;
				// chains must resolve to the entity key.
				if target == s.Anchor.Table && cand.fk.RefColumn != s.Anchor.Key {
					continue
				}
				d := dist[target] + 1
				if have, ok := dist[t.Name]; ok && have <= d {
					continue
				}
				dist[t.Name] = d
				paths[t.Name] = append([]api.ForeignKey{cand.fk}, paths[target]...)
				next = append(next, t.Name)
			}
		}
		frontier = next
	}
	return paths
}

type edge struct {
	table *api.Table
	fk    api.ForeignKey
}

// referencing returns every non-self FK edge pointing at target, in
// deterministic order.
func referencing(s *api.Schema, target string) []edge {
	var edges []edge
	for i := range s.Tables {
		t := &s.Tables[i]
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != target || t.SelfReferencing(fk) {
				continue
			}
			edges = append(edges, edge{table: t, fk: fk})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].table.Name != edges[j].table.Name {
			return edges[i].table.Name < edges[j].table.Name
		}
		return edges[i].fk.Column < edges[j].fk.Column
	})
	return edges
}
