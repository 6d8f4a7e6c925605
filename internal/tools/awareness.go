package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jupyter-rtc/collab-mcp/internal/protocol"
	"github.com/jupyter-rtc/collab-mcp/internal/rtc"
)

// RegisterAwarenessTools adds the presence, cursor, activity and
// document-session tools.
func RegisterAwarenessTools(r *Registry, adapter *rtc.Adapter) {
	r.Register(Operation{
		Tool: mcp.NewTool("get_online_users",
			mcp.WithDescription("List users currently online in the collaboration space."),
			mcp.WithString("document_path", mcp.Description("Only include users present in this document")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			users := adapter.OnlineUsers(argString(args, "document_path", ""))
			return map[string]any{"users": users, "count": len(users)}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_user_presence",
			mcp.WithDescription("Get presence information for a specific user."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user")),
			mcp.WithString("document_path", mcp.Description("Check presence in this document only")),
		),
		Required: []string{"user_id"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return adapter.UserPresence(argString(args, "user_id", ""), argString(args, "document_path", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("set_user_presence",
			mcp.WithDescription("Set the calling user's presence status."),
			mcp.WithString("status", mcp.Description("Presence status (online, away, busy), defaults to online")),
			mcp.WithString("message", mcp.Description("Optional status message")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return adapter.SetUserPresence(argString(args, "status", "online"), argString(args, "message", "")), nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_user_cursors",
			mcp.WithDescription("Get cursor positions of users in a document."),
			mcp.WithString("document_path", mcp.Required(), mcp.Description("Path to the document")),
		),
		Required: []string{"document_path"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			cursors := adapter.UserCursors(argString(args, "document_path", ""))
			return map[string]any{"cursors": cursors, "count": len(cursors)}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("update_cursor_position",
			mcp.WithDescription("Publish the calling user's cursor position in a document."),
			mcp.WithString("document_path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithObject("position", mcp.Required(), mcp.Description("Cursor position with line and column")),
			mcp.WithObject("selection", mcp.Description("Optional selection range with start and end positions")),
		),
		Required: []string{"document_path", "position"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			position := argMap(args, "position")
			if position == nil {
				return nil, protocol.InvalidParams("position must be an object with line and column")
			}
			return adapter.UpdateCursorPosition(
				argString(args, "document_path", ""),
				cursorPosition(position),
				cursorSelection(argMap(args, "selection"))), nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_user_activity",
			mcp.WithDescription("Get recent user activity in the collaboration space, newest first."),
			mcp.WithString("document_path", mcp.Description("Only include activity for this document")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries, defaults to 20")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			activities := adapter.UserActivity(argString(args, "document_path", ""), argInt(args, "limit", 20))
			return map[string]any{"activities": activities, "count": len(activities)}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("broadcast_user_activity",
			mcp.WithDescription("Broadcast an activity entry to other collaborators."),
			mcp.WithString("activity_type", mcp.Required(), mcp.Description("Type of activity (edit, view, execute)")),
			mcp.WithString("description", mcp.Required(), mcp.Description("Human-readable activity description")),
			mcp.WithString("document_path", mcp.Description("Document the activity relates to")),
			mcp.WithObject("metadata", mcp.Description("Additional activity metadata")),
		),
		Required: []string{"activity_type", "description"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return adapter.BroadcastActivity(
				argString(args, "activity_type", ""),
				argString(args, "description", ""),
				argString(args, "document_path", ""),
				argMap(args, "metadata")), nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("get_active_sessions",
			mcp.WithDescription("List active document collaboration sessions."),
			mcp.WithString("document_path", mcp.Description("Only include sessions for this document")),
		),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			sessions := adapter.ActiveSessions(argString(args, "document_path", ""))
			return map[string]any{"sessions": sessions, "count": len(sessions)}, nil
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("join_session",
			mcp.WithDescription("Join a document collaboration session."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session to join")),
		),
		Required: []string{"session_id"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return adapter.JoinSession(argString(args, "session_id", ""))
		},
	})

	r.Register(Operation{
		Tool: mcp.NewTool("leave_session",
			mcp.WithDescription("Leave a document collaboration session."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session to leave")),
		),
		Required: []string{"session_id"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return adapter.LeaveSession(argString(args, "session_id", ""))
		},
	})
}

// RegisterAll wires every tool set into the registry.
func RegisterAll(r *Registry, adapter *rtc.Adapter) {
	RegisterNotebookTools(r, adapter)
	RegisterDocumentTools(r, adapter)
	RegisterAwarenessTools(r, adapter)
}
