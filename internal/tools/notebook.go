package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jupyter-rtc/collab-mcp/internal/rtc"
)

// RegisterNotebookTools adds the notebook collaboration tools.
func RegisterNotebookTools(r *Registry, adapter *rtc.Adapter) {
	r.Register(Operation{
		Tool: mcp.NewTool("list_notebooks",
			mcp.WithDescription("List available notebooks for collaboration."),
			mcp.WithString("path_prefix", mcp.Description("Only include notebooks under this path prefix")),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of notebooks to return")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			notebooks := adapter.ListNotebooks(argString(args, "path_prefix", ""), argInt(args, "max_results", 0))
			return map[string]any{
				"description": fmt.Sprintf("Found %d notebooks available for collaboration", len(notebooks)),
				"notebooks":   notebooks,
			}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_notebook",
			mcp.WithDescription("Get a notebook's content including cells and collaboration metadata."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
			mcp.WithBoolean("include_collaboration_state", mcp.Description("Include live collaboration state (default true)")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.GetNotebook(ctx, argString(args, "path", ""), argBool(args, "include_collaboration_state", true))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("create_notebook_session",
			mcp.WithDescription("Create or retrieve a collaboration session for a notebook."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.CreateNotebookSession(ctx, argString(args, "path", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("update_notebook_cell",
			mcp.WithDescription("Update a notebook cell's content; the change is synchronized with all collaborators."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
			mcp.WithString("cell_id", mcp.Required(), mcp.Description("ID of the cell to update")),
			mcp.WithString("content", mcp.Required(), mcp.Description("New cell content")),
			mcp.WithString("cell_type", mcp.Description("New cell type, unchanged when omitted")),
		),
		Required: []string{"path", "cell_id", "content"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.UpdateNotebookCell(ctx,
				argString(args, "path", ""),
				argString(args, "cell_id", ""),
				argString(args, "content", ""),
				argString(args, "cell_type", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("insert_notebook_cell",
			mcp.WithDescription("Insert a new cell into a notebook at the given position."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Content for the new cell")),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("0-based insertion index")),
			mcp.WithString("cell_type", mcp.Description("Cell type, defaults to code")),
		),
		Required: []string{"path", "content", "position"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.InsertNotebookCell(ctx,
				argString(args, "path", ""),
				argString(args, "content", ""),
				argInt(args, "position", 0),
				argString(args, "cell_type", "code"))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("delete_notebook_cell",
			mcp.WithDescription("Delete a cell from a notebook."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
			mcp.WithString("cell_id", mcp.Required(), mcp.Description("ID of the cell to delete")),
		),
		Required: []string{"path", "cell_id"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.DeleteNotebookCell(ctx, argString(args, "path", ""), argString(args, "cell_id", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("execute_notebook_cell",
			mcp.WithDescription("Execute a code cell and return its outputs."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the notebook")),
			mcp.WithString("cell_id", mcp.Required(), mcp.Description("ID of the cell to execute")),
			mcp.WithNumber("timeout", mcp.Description("Execution timeout in seconds, defaults to 30")),
		),
		Required: []string{"path", "cell_id"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			timeout := time.Duration(argInt(args, "timeout", 30)) * time.Second
			return adapter.ExecuteNotebookCell(ctx, argString(args, "path", ""), argString(args, "cell_id", ""), timeout)
		},
	})
}
