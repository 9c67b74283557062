package cmd

import (
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/mirror"
)

var loadCmd = &cobra.Command{
	Use:   "load [directory]",
	Short: "Rebuild the database from a document directory",
	Long: `Replaces the database content wholesale with the directory's
documents, inside one transaction: on any failure the database keeps its
previous content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		if err := mirror.Load(st, osfs.New(args[0]), "."); err != nil {
			return err
		}
		fmt.Printf("Loaded %s into %s.\n", args[0], dbPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
