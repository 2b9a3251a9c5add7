package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"clara/internal/chunker"
	"clara/internal/rag"
	"clara/internal/vectorstore"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing search and Q&A over --path",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	mode, err := vectorstore.ParseSearchMode(cfg.Index.SearchType)
	if err != nil {
		return err
	}

	srv := mcpserver.NewMCPServer("clara", "1.0.0", mcpserver.WithToolCapabilities(false))
	srv.AddTool(searchCodebaseTool(), makeSearchHandler(s.index.Store, mode))
	srv.AddTool(askCodebaseTool(), makeAskHandler(s.orch))

	return mcpserver.ServeStdio(srv)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed codebase. Returns whole functions and classes, file skeletons, or raw text windows with their file paths."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query to search the codebase"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 6)"),
		),
	)
}

func askCodebaseTool() mcp.Tool {
	return mcp.NewTool("ask_codebase",
		mcp.WithDescription("Answer a question about the codebase using retrieved code as context. Follow-up questions see earlier questions of this session."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(st vectorstore.Store, mode vectorstore.SearchMode) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", cfg.Index.K)
		if k <= 0 {
			k = cfg.Index.K
		}

		chunks, err := st.SimilaritySearch(ctx, query, k, mode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, chunks)), nil
	}
}

func makeAskHandler(orch *rag.Orchestrator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}
		res, err := orch.Ask(ctx, question)
		if err != nil {
			return mcp.NewToolResultError(describeQueryError(err)), nil
		}

		var sb strings.Builder
		sb.WriteString(res.Answer)
		if len(res.Sources) > 0 {
			sb.WriteString("\n\nSources:\n")
			seen := make(map[string]bool)
			for _, c := range res.Sources {
				if seen[c.SourcePath] {
					continue
				}
				seen[c.SourcePath] = true
				fmt.Fprintf(&sb, "- %s\n", c.SourcePath)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, chunks []chunker.Chunk) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(chunks))

	for i, c := range chunks {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.SourcePath)
		fmt.Fprintf(&sb, "**Kind:** %s", c.Kind)
		if name := c.Metadata[chunker.MetaName]; name != "" {
			fmt.Fprintf(&sb, "  \n**Name:** %s", name)
		}
		if start := c.Metadata[chunker.MetaStartLine]; start != "" {
			fmt.Fprintf(&sb, "  \n**Lines:** %s-%s", start, c.Metadata[chunker.MetaEndLine])
		}
		if c.Language != "" {
			fmt.Fprintf(&sb, "  \n**Language:** %s", c.Language)
		}
		fmt.Fprintf(&sb, "\n\n```%s\n%s\n```\n\n", fenceLang(c.Language), c.Content)
	}

	return sb.String()
}

// fenceLang maps a chunk language to a Markdown fence tag.
func fenceLang(l chunker.Language) string {
	switch l {
	case chunker.LangNotebook:
		return "markdown"
	case chunker.LangTSX:
		return "tsx"
	}
	return string(l)
}
