// Package mirror synchronizes the relational store with its on-disk
// document directory: Save materializes every entity (plus shared
// reference tables) as canonical JSON files, Load wipes the store and
// rebuilds it from those files inside one transaction.
//
// The directory is reached through a billy.Filesystem so the whole
// package works identically against the real OS filesystem and the
// in-memory one used in tests.
package mirror

import (
	"fmt"
	"strings"
)

// IntegrityError reports merged rows that cannot form a consistent
// database: two documents disagreeing on a primary key, a document
// naming an unknown table, or an engine constraint violation during the
// load transaction. The load is rolled back; the store keeps its
// pre-load content.
type IntegrityError struct {
	Table string
	File  string // offending document, when known
	Msg   string
	Err   error // underlying engine error, when any
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	b.WriteString("integrity: ")
	if e.Table != "" {
		fmt.Fprintf(&b, "table %s: ", e.Table)
	}
	b.WriteString(e.Msg)
	if e.File != "" {
		fmt.Fprintf(&b, " (in %s)", e.File)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() error { return e.Err }
