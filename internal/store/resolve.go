package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/agentic-research/astrocat/internal/resolver"
)

// ResolveOptions tunes name resolution. The zero value searches the
// local store only.
type ResolveOptions struct {
	// Resolver, when set, is consulted for externally known alternate
	// identifiers of the query (e.g. a name service).
	Resolver resolver.Resolver
	// RequireExternal turns an external resolver failure into a hard
	// error instead of degrading to local-only matching.
	RequireExternal bool
}

// ResolveName fuzzy-matches a free-text query against the anchor key
// column and the alternate-names table. Matching is case-insensitive
// substring containment; every hit is returned, sorted. Ambiguity is
// the caller's concern, not an error here.
//
// When an external resolver is configured, its alternate identifiers for
// the query are matched against the local names as well. An external
// failure only logs and degrades to local matching, unless
// RequireExternal is set.
func (s *Store) ResolveName(ctx context.Context, query string, opts ResolveOptions) ([]string, error) {
	names, err := s.localNames()
	if err != nil {
		return nil, err
	}

	hits := make(map[string]bool)
	matchLocal(names, query, hits)

	if opts.Resolver != nil {
		ids, err := opts.Resolver.Resolve(ctx, query)
		if err != nil {
			if opts.RequireExternal {
				return nil, fmt.Errorf("external name resolution for %q: %w", query, err)
			}
			log.Printf("external name resolution for %q unavailable, using local names only: %v", query, err)
		}
		for _, id := range ids {
			matchExternal(names, id, hits)
		}
	}

	keys := make([]string, 0, len(hits))
	for key := range hits {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ResolveOne is ResolveName for callers that need exactly one entity:
// zero hits is ErrNotFound, more than one is ErrAmbiguous.
func (s *Store) ResolveOne(ctx context.Context, query string, opts ResolveOptions) (string, error) {
	keys, err := s.ResolveName(ctx, query, opts)
	if err != nil {
		return "", err
	}
	switch len(keys) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrNotFound, query)
	case 1:
		return keys[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %s", ErrAmbiguous, query, strings.Join(keys, ", "))
	}
}

// namedKey pairs one searchable designation with the entity it names.
type namedKey struct {
	name string // lowercased
	key  string
}

// localNames gathers every designation in the store: each anchor key
// names itself, plus every alternate name row. Catalog name tables are
// small; matching in memory keeps substring semantics exact instead of
// fighting LIKE escaping.
func (s *Store) localNames() ([]namedKey, error) {
	keys, err := s.AnchorKeys()
	if err != nil {
		return nil, err
	}
	names := make([]namedKey, 0, len(keys))
	for _, key := range keys {
		names = append(names, namedKey{name: strings.ToLower(key), key: key})
	}

	a := s.schema.Anchor
	if a.NamesTable == "" {
		return names, nil
	}
	fk := s.DirectFK(a.NamesTable)
	if fk == nil {
		return nil, fmt.Errorf("names table %q has no direct foreign key to %s.%s",
			a.NamesTable, a.Table, a.Key)
	}

	q := fmt.Sprintf("SELECT %s, %s FROM %s",
		quoteIdent(a.NamesColumn), quoteIdent(fk.Column), quoteIdent(a.NamesTable))
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query alternate names: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		// The name column may be nullable; a NULL designation names nothing.
		var name sql.NullString
		var key string
		if err := rows.Scan(&name, &key); err != nil {
			return nil, fmt.Errorf("scan alternate name: %w", err)
		}
		if !name.Valid {
			continue
		}
		names = append(names, namedKey{name: strings.ToLower(name.String), key: key})
	}
	return names, rows.Err()
}

// matchLocal records a hit for every designation containing the query.
func matchLocal(names []namedKey, query string, hits map[string]bool) {
	q := strings.ToLower(query)
	if q == "" {
		return
	}
	for _, n := range names {
		if strings.Contains(n.name, q) {
			hits[n.key] = true
		}
	}
}

// matchExternal matches an externally resolved identifier against local
// designations in both directions, since the service may return a longer
// canonical form of a designation the catalog stores abbreviated.
func matchExternal(names []namedKey, id string, hits map[string]bool) {
	q := strings.ToLower(id)
	if q == "" {
		return
	}
	for _, n := range names {
		if strings.Contains(n.name, q) || strings.Contains(q, n.name) {
			hits[n.key] = true
		}
	}
}
