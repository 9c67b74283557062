package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/document"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory [entity key]",
	Short: "Show every row linked to one entity, grouped by table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		doc, err := st.Inventory(args[0])
		if err != nil {
			return err
		}
		data, err := document.Encode(doc)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
}
