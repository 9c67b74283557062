package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/schemadef"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty database from the schema definition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("%s already exists", dbPath)
		}

		schema, err := loadSchema()
		if err != nil {
			return err
		}
		stmts, err := schemadef.CreateSQL(schema)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		for _, stmt := range stmts {
			if _, err := st.DB().Exec(stmt); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
		}
		fmt.Printf("Created %s with %d tables.\n", dbPath, len(stmts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
