package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/resolver"
	"github.com/agentic-research/astrocat/internal/store"
)

var (
	searchTable       string
	searchResolverURL string
	searchRequireExt  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Fuzzy-match a name against the catalog",
	Long: `Case-insensitive substring search over the anchor keys and the
alternate-names table. With --resolver-url, the external name service's
alternate identifiers for the query are matched too; if the service is
down the search silently falls back to local names (unless
--require-external).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		opts := store.ResolveOptions{RequireExternal: searchRequireExt}
		if searchResolverURL != "" {
			opts.Resolver = resolver.NewHTTP(searchResolverURL, 10*time.Second)
		}

		keys, err := st.ResolveName(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		for _, key := range keys {
			if searchTable == "" {
				fmt.Println(key)
				continue
			}
			rows, err := st.EntityRows(searchTable, key)
			if err != nil {
				return err
			}
			data, err := document.Encode(document.Document{searchTable: rows})
			if err != nil {
				return err
			}
			fmt.Printf("%s:\n%s", key, data)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTable, "table", "", "Also print each match's rows from this table")
	searchCmd.Flags().StringVar(&searchResolverURL, "resolver-url", "", "External name-resolution service base URL")
	searchCmd.Flags().BoolVar(&searchRequireExt, "require-external", false, "Fail when the external service is unavailable")
	rootCmd.AddCommand(searchCmd)
}
