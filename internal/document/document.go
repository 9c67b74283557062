// Package document converts the rows belonging to one logical entity to
// and from canonical JSON bytes. Canonical means: object keys sorted
// lexicographically at every level, fixed indentation, trailing newline.
// Two encodes of the same data are byte-identical, which keeps the saved
// directory diff-friendly under version control.
package document

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Row is an entity row: column name → scalar value.
type Row = map[string]any

// Document maps table name → rows belonging to one entity (or, for a
// reference dump, the full table contents). Tables with no rows are not
// present at all.
type Document map[string][]Row

// writeOptions sorts object keys so tables and columns serialize in
// lexicographic order regardless of map iteration order.
var writeOptions = ojg.Options{Sort: true, Indent: 4}

// Encode renders doc as canonical JSON bytes.
func Encode(doc Document) ([]byte, error) {
	// Decay to plain maps/slices so the writer treats it as generic data.
	plain := make(map[string]any, len(doc))
	for table, rows := range doc {
		list := make([]any, len(rows))
		for i, row := range rows {
			list[i] = row
		}
		plain[table] = list
	}
	data, err := oj.Marshal(plain, &writeOptions)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}

// Decode parses canonical (or hand-edited) JSON bytes back into a
// Document. Integral numbers come back as int64, others as float64.
func Decode(data []byte) (Document, error) {
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	top, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse document: top level is %T, want object", parsed)
	}

	doc := make(Document, len(top))
	for table, v := range top {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("parse document: table %q is %T, want array of rows", table, v)
		}
		rows := make([]Row, 0, len(list))
		for i, item := range list {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("parse document: table %q row %d is %T, want object", table, i, item)
			}
			rows = append(rows, row)
		}
		doc[table] = rows
	}
	return doc, nil
}

// Filename maps an entity key to a filesystem-safe file name. Letters,
// digits, '.' and '-' pass through, spaces become underscores, and every
// other byte (including '_' and '=') is hex-escaped as "=XX". The mapping
// is deterministic and injective, so distinct keys never collide.
func Filename(key string) string {
	var b strings.Builder
	b.Grow(len(key) + len(".json"))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('_')
		default:
			fmt.Fprintf(&b, "=%02x", c)
		}
	}
	b.WriteString(".json")
	return b.String()
}

// RefFilename is the fixed file name for a reference-table dump.
func RefFilename(table string) string {
	return table + ".json"
}
