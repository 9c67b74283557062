package schemadef

import (
	"fmt"
	"strings"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/order"
)

// CreateSQL returns one CREATE TABLE statement per table, in dependency
// order so the statements can be executed as-is against an empty
// database.
func CreateSQL(s *api.Schema) ([]string, error) {
	insertOrder, err := order.Insert(s)
	if err != nil {
		return nil, err
	}

	stmts := make([]string, 0, len(s.Tables))
	for _, name := range insertOrder {
		stmts = append(stmts, createTableSQL(s.Table(name)))
	}
	return stmts, nil
}

func createTableSQL(t *api.Table) string {
	var defs []string
	for _, c := range t.Columns {
		def := quoteIdent(c.Name) + " " + sqlType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteAll(t.PrimaryKey)+")")
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(fk.Column), quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quoteIdent(t.Name), strings.Join(defs, ",\n    "))
}

func sqlType(ct api.ColumnType) string {
	switch ct {
	case api.ColumnNumber:
		return "NUMERIC"
	case api.ColumnBoolean:
		return "BOOLEAN"
	case api.ColumnDate:
		return "DATE"
	case api.ColumnBlob:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
