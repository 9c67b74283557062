package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/astrocat/api"
	"github.com/agentic-research/astrocat/internal/schemadef"
)

var introspectAnchor string

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Generate a schema definition from an existing database",
	Long: `Reflects tables, primary keys and foreign keys out of the database
and prints them in schema-definition syntax. The anchor designation is
not recoverable from DDL, so pass it as --anchor Table.key (optionally
with the names table: Table.key,NamesTable.column).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		anchor, err := parseAnchor(introspectAnchor)
		if err != nil {
			return err
		}

		db, err := sql.Open("sqlite", "file:"+dbPath)
		if err != nil {
			return fmt.Errorf("open sqlite %s: %w", dbPath, err)
		}
		defer func() { _ = db.Close() }() // safe to ignore

		schema, err := schemadef.Introspect(db, anchor)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(schemadef.WriteHCL(schema))
		return err
	},
}

func parseAnchor(arg string) (api.Anchor, error) {
	main, names, _ := strings.Cut(arg, ",")
	table, key, ok := strings.Cut(main, ".")
	if !ok || table == "" || key == "" {
		return api.Anchor{}, fmt.Errorf("--anchor must be Table.key, got %q", arg)
	}
	anchor := api.Anchor{Table: table, Key: key}
	if names != "" {
		nt, nc, ok := strings.Cut(names, ".")
		if !ok || nt == "" || nc == "" {
			return api.Anchor{}, fmt.Errorf("names part of --anchor must be NamesTable.column, got %q", names)
		}
		anchor.NamesTable = nt
		anchor.NamesColumn = nc
	}
	return anchor, nil
}

func init() {
	introspectCmd.Flags().StringVar(&introspectAnchor, "anchor", "", "Anchor designation, Table.key[,NamesTable.column]")
	_ = introspectCmd.MarkFlagRequired("anchor") // safe to ignore
	rootCmd.AddCommand(introspectCmd)
}
