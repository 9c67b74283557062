package cmd

import (
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/mirror"
)

var saveEntityFlag string

var saveCmd = &cobra.Command{
	Use:   "save [directory]",
	Short: "Dump the database as one JSON document per entity",
	Long: `Clears the directory, then writes every reference table and every
entity document. With --entity, writes that single entity's document and
leaves the rest of the directory alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		// Root the filesystem at the target so the wipe cannot step
		// outside the document directory.
		fsys := osfs.New(args[0])
		if saveEntityFlag != "" {
			return mirror.SaveEntity(st, saveEntityFlag, fsys, ".")
		}
		return mirror.Save(st, fsys, ".")
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveEntityFlag, "entity", "", "Save only this entity's document")
	rootCmd.AddCommand(saveCmd)
}
