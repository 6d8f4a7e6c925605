// Package rtc bridges MCP tool calls to the collaborative-document engine.
//
// The engine itself (CRDT merge, awareness wire protocol) is an external
// collaborator reached through the narrow Engine/Room interfaces below; a
// production deployment points them at the Jupyter YDoc service, while the
// in-memory implementation in this package keeps the server runnable and
// testable standalone.
package rtc

import (
	"context"
	"strings"
	"time"
)

// FileType classifies a collaborative document.
type FileType string

const (
	FileTypeNotebook FileType = "notebook"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
)

// SniffFileType determines a document's type from its path extension.
func SniffFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".ipynb"):
		return FileTypeNotebook
	case strings.HasSuffix(path, ".md"):
		return FileTypeMarkdown
	default:
		return FileTypeText
	}
}

// Cell is one notebook cell.
type Cell struct {
	ID             string           `json:"id"`
	CellType       string           `json:"cell_type"`
	Source         string           `json:"source"`
	ExecutionCount int              `json:"execution_count,omitempty"`
	Outputs        []map[string]any `json:"outputs,omitempty"`
}

// ExecutionResult is the outcome of running a code cell.
type ExecutionResult struct {
	ExecutionCount int              `json:"execution_count"`
	Outputs        []map[string]any `json:"outputs"`
}

// Version is one entry in a document's change history.
type Version struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Changes   string    `json:"changes"`
}

// RoomInfo summarizes a live room.
type RoomInfo struct {
	Path          string    `json:"path"`
	FileType      FileType  `json:"file_type"`
	Version       int       `json:"version"`
	LastModified  time.Time `json:"last_modified"`
	Collaborators int       `json:"collaborators"`
}

// CursorPosition is a line/column location in a document.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// CursorSelection is a range between two positions.
type CursorSelection struct {
	Start CursorPosition `json:"start"`
	End   CursorPosition `json:"end"`
}

// AwarenessState is one user's live presence as reported by the engine.
type AwarenessState struct {
	UserID          string           `json:"user_id"`
	Status          string           `json:"status"`
	Message         string           `json:"message,omitempty"`
	CurrentDocument string           `json:"current_document,omitempty"`
	Cursor          *CursorPosition  `json:"cursor,omitempty"`
	Selection       *CursorSelection `json:"selection,omitempty"`
	LastActivity    time.Time        `json:"last_activity"`
}

// Room is a single collaborative document. Text operations apply to
// markdown/text rooms; cell operations apply to notebook rooms.
type Room interface {
	Path() string
	FileType() FileType
	Version() int

	// Text returns the document body for text-like rooms.
	Text() string
	// SetText replaces content. position -1 replaces the whole body;
	// otherwise length characters at position are replaced.
	SetText(content string, position, length int) error
	// InsertText inserts at position and returns the new body length.
	InsertText(text string, position int) (int, error)
	// DeleteText removes length characters at position and returns the
	// new body length.
	DeleteText(position, length int) (int, error)

	// Cells returns the notebook cells for notebook rooms.
	Cells() []Cell
	UpdateCell(cellID, source, cellType string) error
	// InsertCell adds a cell at position and returns its id.
	InsertCell(source string, position int, cellType string) (string, error)
	DeleteCell(cellID string) error
	// ExecuteCell runs a code cell. The timeout is forwarded to the
	// kernel; the room enforces no deadline of its own.
	ExecuteCell(ctx context.Context, cellID string, timeout time.Duration) (ExecutionResult, error)

	// History returns up to limit most recent versions, newest first.
	History(limit int) []Version
	RestoreVersion(versionID string) error
}

// Engine is the get-or-create-room boundary to the collaboration service.
type Engine interface {
	// GetRoom returns the room for path, creating it if absent.
	GetRoom(ctx context.Context, path string, fileType FileType) (Room, error)
	// ListRooms enumerates live rooms.
	ListRooms() []RoomInfo
	// AwarenessStates returns live presence, filtered to one document
	// when path is non-empty.
	AwarenessStates(path string) []AwarenessState
	// SetAwareness publishes a user's presence into the awareness
	// protocol.
	SetAwareness(state AwarenessState)
}
