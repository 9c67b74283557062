// Package cmd wires the astrocat CLI: thin cobra commands over the
// store, mirror, and schemadef packages.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/schemadef"
	"github.com/agentic-research/astrocat/internal/store"
)

const version = "0.3.0"

var (
	dbPath     string
	schemaPath string
)

var rootCmd = &cobra.Command{
	Use:     "astrocat",
	Short:   "Catalog database versioned as a directory of JSON documents",
	Version: version,
	Long: `astrocat keeps a relational catalog (an anchor table of named entities
plus satellite tables linked by foreign keys) in sync with a directory of
canonical JSON documents: one file per entity, shared reference tables
dumped once. The directory is the version-controlled form; the SQLite
database is the queryable form.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "Path to the schema definition (.hcl)")
}

// loadSchema reads the --schema file.
func loadSchema() (*api.Schema, error) {
	if schemaPath == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	return schemadef.Load(schemaPath)
}

// openStore loads the schema and opens the database named by --db.
func openStore() (*store.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath, schema)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
