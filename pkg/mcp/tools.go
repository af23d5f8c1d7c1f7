package mcp

import "github.com/mark3labs/mcp-go/mcp"

func movePathTool() mcp.Tool {
	return mcp.NewTool("move_path",
		mcp.WithDescription("Move a file or directory and rewrite every import specifier that reaches it or leaves it. Paths may be relative to the workspace root."),
		mcp.WithString("source", mcp.Required(), mcp.Description("File or directory to move")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Destination path; must not exist")),
	)
}

func moveBatchTool() mcp.Tool {
	return mcp.NewTool("move_batch",
		mcp.WithDescription("Move several independent paths in order. All items are validated before anything is changed; the first failure stops the batch."),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description("Moves to perform"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source": map[string]any{"type": "string"},
					"target": map[string]any{"type": "string"},
				},
				"required": []string{"source", "target"},
			}),
		),
		mcp.WithBoolean("synthesize_index", mcp.Description("Write index.ts next to each target lacking one (default from settings)")),
	)
}

func moveSiblingsTool() mcp.Tool {
	return mcp.NewTool("move_siblings",
		mcp.WithDescription("Move entries of one directory into another directory together. Imports between the moved entries are kept."),
		mcp.WithArray("sources", mcp.Required(), mcp.Description("Entries sharing one parent directory"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("target_dir", mcp.Required(), mcp.Description("Directory receiving the entries")),
	)
}

func componentizeTool() mcp.Tool {
	return mcp.NewTool("componentize",
		mcp.WithDescription("Move every PascalCase .tsx file under a directory into its own folder with an index.ts"),
		mcp.WithString("dir", mcp.Required(), mcp.Description("Directory to reorganize")),
	)
}

func reindexTool() mcp.Tool {
	return mcp.NewTool("reindex",
		mcp.WithDescription("Rescan configuration and sources and rebuild the reference graph"),
	)
}

func getReferencesTool() mcp.Tool {
	return mcp.NewTool("get_references",
		mcp.WithDescription("List the files that import a file, or that import anything inside a directory from outside it"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File or directory")),
	)
}

func listSpecifiersTool() mcp.Tool {
	return mcp.NewTool("list_specifiers",
		mcp.WithDescription("List the module specifiers of a file with byte and UTF-16 offsets and their resolved targets"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source file")),
	)
}

// RegisteredTools returns the MCP tool definitions in registration order.
func RegisteredTools() []mcp.Tool {
	return []mcp.Tool{
		movePathTool(),
		moveBatchTool(),
		moveSiblingsTool(),
		componentizeTool(),
		reindexTool(),
		getReferencesTool(),
		listSpecifiersTool(),
	}
}
