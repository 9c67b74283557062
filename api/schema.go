package api

import "fmt"

// ColumnType is the semantic type tag of a column. The relational engine
// maps these to its own storage classes; documents use them to round-trip
// values losslessly.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnNumber  ColumnType = "number"
	ColumnBoolean ColumnType = "boolean"
	ColumnDate    ColumnType = "date"
	ColumnBlob    ColumnType = "blob"
)

// Schema is the static description of the catalog database: its tables,
// their foreign-key edges, and the anchor designation. It is built once
// (from an HCL file or by introspection) and treated as immutable.
type Schema struct {
	// Tables of the database, in declaration order.
	Tables []Table `json:"tables"`
	// Anchor designates the table whose primary key names top-level entities.
	Anchor Anchor `json:"anchor"`
}

// Anchor designates the entity table and its name columns.
type Anchor struct {
	// Table is the anchor table name (e.g. "Sources").
	Table string `json:"table"`
	// Key is the anchor table's single primary-key column (e.g. "source").
	Key string `json:"key"`
	// NamesTable optionally names the alternate-designation table (e.g. "Names").
	NamesTable string `json:"names_table,omitempty"`
	// NamesColumn is the alternate-name column within NamesTable.
	NamesColumn string `json:"names_column,omitempty"`
}

// Table describes one relational table.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Column describes one column.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable,omitempty"`
}

// ForeignKey is one FK edge: Column of the owning table references
// RefColumn of RefTable.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Table returns the named table, or nil if the schema has no such table.
// This is the explicit registry; there is no dynamic attribute lookup.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// SelfReferencing reports whether fk points back at its owning table.
func (t *Table) SelfReferencing(fk ForeignKey) bool {
	return fk.RefTable == t.Name
}

// Validate checks internal consistency: column references in primary and
// foreign keys resolve, FK targets exist, the anchor table exists and has
// a single-column primary key matching Anchor.Key.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		if t.Name == "" {
			return fmt.Errorf("schema: table %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		seen[t.Name] = true
		if len(t.Columns) == 0 {
			return fmt.Errorf("schema: table %q has no columns", t.Name)
		}
		for _, pk := range t.PrimaryKey {
			if t.Column(pk) == nil {
				return fmt.Errorf("schema: table %q: primary key column %q not declared", t.Name, pk)
			}
		}
	}
	for i := range s.Tables {
		t := &s.Tables[i]
		for _, fk := range t.ForeignKeys {
			if t.Column(fk.Column) == nil {
				return fmt.Errorf("schema: table %q: foreign key column %q not declared", t.Name, fk.Column)
			}
			ref := s.Table(fk.RefTable)
			if ref == nil {
				return fmt.Errorf("schema: table %q: foreign key references unknown table %q", t.Name, fk.RefTable)
			}
			if ref.Column(fk.RefColumn) == nil {
				return fmt.Errorf("schema: table %q: foreign key references unknown column %q.%q",
					t.Name, fk.RefTable, fk.RefColumn)
			}
		}
	}

	anchor := s.Table(s.Anchor.Table)
	if anchor == nil {
		return fmt.Errorf("schema: anchor table %q not declared", s.Anchor.Table)
	}
	if len(anchor.PrimaryKey) != 1 || anchor.PrimaryKey[0] != s.Anchor.Key {
		return fmt.Errorf("schema: anchor table %q must have the single primary key column %q",
			s.Anchor.Table, s.Anchor.Key)
	}
	if s.Anchor.NamesTable != "" {
		nt := s.Table(s.Anchor.NamesTable)
		if nt == nil {
			return fmt.Errorf("schema: names table %q not declared", s.Anchor.NamesTable)
		}
		if nt.Column(s.Anchor.NamesColumn) == nil {
			return fmt.Errorf("schema: names table %q has no column %q", s.Anchor.NamesTable, s.Anchor.NamesColumn)
		}
	}
	return nil
}
