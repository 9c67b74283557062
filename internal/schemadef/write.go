package schemadef

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/astrocat/api"
)

// WriteHCL renders a schema model back to definition-file syntax, so an
// introspected database can be turned into a checked-in schema file.
// Decode(WriteHCL(s)) reproduces s.
func WriteHCL(s *api.Schema) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	anchor := root.AppendNewBlock("anchor", nil).Body()
	anchor.SetAttributeValue("table", cty.StringVal(s.Anchor.Table))
	anchor.SetAttributeValue("key", cty.StringVal(s.Anchor.Key))
	if s.Anchor.NamesTable != "" {
		anchor.SetAttributeValue("names_table", cty.StringVal(s.Anchor.NamesTable))
		anchor.SetAttributeValue("names_column", cty.StringVal(s.Anchor.NamesColumn))
	}

	for _, t := range s.Tables {
		root.AppendNewline()
		body := root.AppendNewBlock("table", []string{t.Name}).Body()
		for _, c := range t.Columns {
			col := body.AppendNewBlock("column", []string{c.Name}).Body()
			col.SetAttributeValue("type", cty.StringVal(string(c.Type)))
			if c.Nullable {
				col.SetAttributeValue("nullable", cty.True)
			}
		}
		if len(t.PrimaryKey) > 0 {
			vals := make([]cty.Value, len(t.PrimaryKey))
			for i, pk := range t.PrimaryKey {
				vals[i] = cty.StringVal(pk)
			}
			body.SetAttributeValue("primary_key", cty.ListVal(vals))
		}
		for _, fk := range t.ForeignKeys {
			blk := body.AppendNewBlock("foreign_key", nil).Body()
			blk.SetAttributeValue("column", cty.StringVal(fk.Column))
			blk.SetAttributeValue("references", cty.StringVal(fk.RefTable+"."+fk.RefColumn))
		}
	}
	return f.Bytes()
}
