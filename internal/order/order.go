// Package order derives safe table orderings from the schema's
// foreign-key graph. Inserting in insert order (and deleting in its exact
// reverse) never violates referential integrity, provided the graph is
// acyclic.
package order

import (
	"sort"
	"strings"

	"github.com/agentic-research/astrocat/api"
)

// CycleError reports a foreign-key cycle. No safe ordering exists; the
// schema must be fixed before the database can be saved or loaded.
type CycleError struct {
	Tables []string // members of the cycle, sorted
}

func (e *CycleError) Error() string {
	return "schema dependency cycle between tables: " + strings.Join(e.Tables, ", ")
}

// Insert returns the table names ordered so that every foreign-key target
// precedes the tables referencing it. Ties are broken lexicographically,
// so the ordering is deterministic for a given schema.
//
// Self-referencing foreign keys are legal length-one cycles and are
// excluded from both ordering and cycle detection. Rows of such tables
// may need a two-phase insert; that is a documented limitation, not
// handled here.
func Insert(s *api.Schema) ([]string, error) {
	// Kahn's algorithm. dependents[target] lists the tables that must wait
	// for target; indegree counts distinct FK targets per table.
	dependents := make(map[string][]string, len(s.Tables))
	indegree := make(map[string]int, len(s.Tables))
	for i := range s.Tables {
		indegree[s.Tables[i].Name] = 0
	}
	for i := range s.Tables {
		t := &s.Tables[i]
		targets := make(map[string]bool)
		for _, fk := range t.ForeignKeys {
			if t.SelfReferencing(fk) {
				continue
			}
			targets[fk.RefTable] = true
		}
		for ref := range targets {
			dependents[ref] = append(dependents[ref], t.Name)
			indegree[t.Name]++
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(s.Tables))
	for len(ready) > 0 {
		// Pop the lexicographically smallest ready table.
		name := ready[0]
		ready = ready[1:]
		out = append(out, name)

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(out) != len(s.Tables) {
		var cycle []string
		for name, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, &CycleError{Tables: cycle}
	}
	return out, nil
}

// Delete returns the exact reverse of Insert: referencing tables are
// emptied before the tables they point at.
func Delete(s *api.Schema) ([]string, error) {
	ins, err := Insert(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ins))
	for i, name := range ins {
		out[len(ins)-1-i] = name
	}
	return out, nil
}

func insertSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
