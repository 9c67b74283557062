package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/astrocat/internal/document"
	"github.com/agentic-research/astrocat/internal/resolver"
	"github.com/agentic-research/astrocat/internal/store"
)

var serveResolverURL string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the catalog to agents as MCP tools over stdio",
	Long: `Runs an MCP server with three tools: search (fuzzy name resolution),
inventory (an entity's full cross-table footprint) and query (raw SQL).
Point an agent at this process and it can explore the catalog without
knowing the schema.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }() // safe to ignore

		return server.ServeStdio(newMCPServer(st))
	},
}

func newMCPServer(st *store.Store) *server.MCPServer {
	s := server.NewMCPServer("astrocat", version, server.WithToolCapabilities(false))

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Fuzzy-match a free-text name against the catalog; returns matching entity keys."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Name or partial name to look up")),
		mcp.WithBoolean("external", mcp.Description("Also consult the external name-resolution service")),
	)
	s.AddTool(searchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts := store.ResolveOptions{}
		if request.GetBool("external", false) && serveResolverURL != "" {
			opts.Resolver = resolver.NewHTTP(serveResolverURL, 10*time.Second)
		}
		keys, err := st.ResolveName(ctx, query, opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(keys) == 0 {
			return mcp.NewToolResultText("no matches"), nil
		}
		return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
	})

	inventoryTool := mcp.NewTool("inventory",
		mcp.WithDescription("Return every row linked to one entity, grouped by table, as JSON."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Exact entity key (use search first)")),
	)
	s.AddTool(inventoryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := request.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		doc, err := st.Inventory(key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := document.Encode(doc)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Run a raw SQL query against the catalog database."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL text, SQLite dialect")),
	)
	s.AddTool(queryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := request.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := st.Query(sqlText)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var b strings.Builder
		b.WriteString(strings.Join(res.Columns, "\t") + "\n")
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%v", v)
			}
			b.WriteString(strings.Join(cells, "\t") + "\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	return s
}

func init() {
	serveCmd.Flags().StringVar(&serveResolverURL, "resolver-url", "", "External name-resolution service base URL")
	rootCmd.AddCommand(serveCmd)
}
