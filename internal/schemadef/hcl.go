// Package schemadef builds the immutable schema model, either from an HCL
// definition file or by introspecting an existing SQLite database. It also
// generates the DDL needed to create an empty database from the model.
package schemadef

import (
	"fmt"
	"strings"

	"github.com/agentic-research/astrocat/api"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// HCL wire format. Example:
//
//	anchor {
//	  table        = "Sources"
//	  key          = "source"
//	  names_table  = "Names"
//	  names_column = "other_name"
//	}
//
//	table "Names" {
//	  column "source" { type = "text" }
//	  column "other_name" { type = "text" }
//	  primary_key = ["source", "other_name"]
//	  foreign_key {
//	    column     = "source"
//	    references = "Sources.source"
//	  }
//	}
type schemaHCL struct {
	Anchor anchorHCL  `hcl:"anchor,block"`
	Tables []tableHCL `hcl:"table,block"`
}

type anchorHCL struct {
	Table       string `hcl:"table"`
	Key         string `hcl:"key"`
	NamesTable  string `hcl:"names_table,optional"`
	NamesColumn string `hcl:"names_column,optional"`
}

type tableHCL struct {
	Name        string      `hcl:"name,label"`
	Columns     []columnHCL `hcl:"column,block"`
	PrimaryKey  []string    `hcl:"primary_key,optional"`
	ForeignKeys []fkHCL     `hcl:"foreign_key,block"`
}

type columnHCL struct {
	Name     string `hcl:"name,label"`
	Type     string `hcl:"type"`
	Nullable bool   `hcl:"nullable,optional"`
}

type fkHCL struct {
	Column string `hcl:"column"`
	// References is "Table.column".
	References string `hcl:"references"`
}

// Load reads and validates a schema definition file.
func Load(path string) (*api.Schema, error) {
	var raw schemaHCL
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	return convert(&raw)
}

// Decode parses schema definition bytes. The filename only selects the
// HCL syntax (it must end in .hcl) and labels diagnostics.
func Decode(filename string, src []byte) (*api.Schema, error) {
	var raw schemaHCL
	if err := hclsimple.Decode(filename, src, nil, &raw); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", filename, err)
	}
	return convert(&raw)
}

func convert(raw *schemaHCL) (*api.Schema, error) {
	s := &api.Schema{
		Anchor: api.Anchor{
			Table:       raw.Anchor.Table,
			Key:         raw.Anchor.Key,
			NamesTable:  raw.Anchor.NamesTable,
			NamesColumn: raw.Anchor.NamesColumn,
		},
	}
	for _, t := range raw.Tables {
		table := api.Table{Name: t.Name, PrimaryKey: t.PrimaryKey}
		for _, c := range t.Columns {
			ct, err := columnType(c.Type)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", t.Name, c.Name, err)
			}
			table.Columns = append(table.Columns, api.Column{Name: c.Name, Type: ct, Nullable: c.Nullable})
		}
		for _, f := range t.ForeignKeys {
			refTable, refCol, ok := strings.Cut(f.References, ".")
			if !ok {
				return nil, fmt.Errorf("table %q foreign key %q: references must be \"Table.column\", got %q",
					t.Name, f.Column, f.References)
			}
			table.ForeignKeys = append(table.ForeignKeys, api.ForeignKey{
				Column:    f.Column,
				RefTable:  refTable,
				RefColumn: refCol,
			})
		}
		s.Tables = append(s.Tables, table)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func columnType(tag string) (api.ColumnType, error) {
	switch api.ColumnType(tag) {
	case api.ColumnText, api.ColumnNumber, api.ColumnBoolean, api.ColumnDate, api.ColumnBlob:
		return api.ColumnType(tag), nil
	}
	return "", fmt.Errorf("unknown column type %q", tag)
}
