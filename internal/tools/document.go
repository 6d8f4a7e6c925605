package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jupyter-rtc/collab-mcp/internal/rtc"
)

// RegisterDocumentTools adds the text-document collaboration tools.
func RegisterDocumentTools(r *Registry, adapter *rtc.Adapter) {
	r.Register(Operation{
		Tool: mcp.NewTool("list_documents",
			mcp.WithDescription("List available documents for collaboration."),
			mcp.WithString("path_filter", mcp.Description("Only include documents whose path contains this filter")),
			mcp.WithString("file_type", mcp.Description("Only include documents of this file type (markdown, text)")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			docs := adapter.ListDocuments(argString(args, "path_filter", ""), rtc.FileType(argString(args, "file_type", "")))
			return map[string]any{
				"description": fmt.Sprintf("Found %d documents available for collaboration", len(docs)),
				"documents":   docs,
			}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_document",
			mcp.WithDescription("Get a document's content and collaboration metadata."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithBoolean("include_collaboration_state", mcp.Description("Include live collaboration state (default true)")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.GetDocument(ctx, argString(args, "path", ""), argBool(args, "include_collaboration_state", true))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("create_document_session",
			mcp.WithDescription("Create or retrieve a collaboration session for a document."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("file_type", mcp.Description("Document file type, sniffed from the path when omitted")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.CreateDocumentSession(ctx, argString(args, "path", ""), rtc.FileType(argString(args, "file_type", "")))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("update_document",
			mcp.WithDescription("Update a document's content at a position, or replace the whole body."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
			mcp.WithNumber("position", mcp.Description("Start of the replaced range, -1 replaces the whole body (default -1)")),
			mcp.WithNumber("length", mcp.Description("Length of the replaced range (default 0)")),
		),
		Required: []string{"path", "content"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.UpdateDocument(ctx,
				argString(args, "path", ""),
				argString(args, "content", ""),
				argInt(args, "position", -1),
				argInt(args, "length", 0))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("insert_text",
			mcp.WithDescription("Insert text into a document at a position."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text to insert")),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("0-based insertion offset")),
		),
		Required: []string{"path", "text", "position"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.InsertText(ctx,
				argString(args, "path", ""),
				argString(args, "text", ""),
				argInt(args, "position", 0))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("delete_text",
			mcp.WithDescription("Delete a range of text from a document."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("0-based start of the deleted range")),
			mcp.WithNumber("length", mcp.Required(), mcp.Description("Number of characters to delete")),
		),
		Required: []string{"path", "position", "length"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.DeleteText(ctx,
				argString(args, "path", ""),
				argInt(args, "position", 0),
				argInt(args, "length", 0))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_document_history",
			mcp.WithDescription("Get a document's version history, newest first."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of versions to return, defaults to 10")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path := argString(args, "path", "")
			history, err := adapter.DocumentHistory(ctx, path, argInt(args, "limit", 10))
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": path, "history": history}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("restore_document_version",
			mcp.WithDescription("Restore a document to a previous version."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("version_id", mcp.Required(), mcp.Description("Version to restore")),
		),
		Required: []string{"path", "version_id"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.RestoreDocumentVersion(ctx, argString(args, "path", ""), argString(args, "version_id", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("fork_document",
			mcp.WithDescription("Create a fork of a document for parallel editing."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("title", mcp.Description("Fork title, defaults to 'Fork of <path>'")),
			mcp.WithString("description", mcp.Description("Fork description")),
			mcp.WithBoolean("synchronize", mcp.Description("Keep the fork after merging (default false)")),
		),
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.ForkDocument(ctx,
				argString(args, "path", ""),
				argString(args, "title", ""),
				argString(args, "description", ""),
				argBool(args, "synchronize", false))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("merge_document_fork",
			mcp.WithDescription("Merge a fork's content back into the original document."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the original document")),
			mcp.WithString("fork_id", mcp.Required(), mcp.Description("ID of the fork to merge")),
		),
		Required: []string{"path", "fork_id"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return adapter.MergeDocumentFork(ctx, argString(args, "path", ""), argString(args, "fork_id", ""))
		},
	})
}
