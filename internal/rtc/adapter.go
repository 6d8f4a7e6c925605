package rtc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/event"
	"github.com/jupyter-rtc/collab-mcp/internal/logging"
)

// maxActivityEntries bounds the in-memory activity feed.
const maxActivityEntries = 200

// currentUserID identifies the agent on whose behalf tool calls run.
// Per-caller identity would come from the auth layer; the MCP endpoint
// authenticates with a single shared token, so there is one logical user.
const currentUserID = "current_user"

// DocSession is a collaboration session on one document. Distinct from
// the MCP transport session: these are value records addressable by id
// and forwarded opaquely to callers.
type DocSession struct {
	ID        string    `json:"session_id"`
	RoomID    string    `json:"room_id"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	FileType  FileType  `json:"file_type,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	JoinedAt  time.Time `json:"joined_at,omitzero"`
	LeftAt    time.Time `json:"left_at,omitzero"`
}

// Fork is a parallel-editing copy of a document.
type Fork struct {
	ID           string    `json:"fork_id"`
	OriginalPath string    `json:"original_path"`
	ForkPath     string    `json:"fork_path"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Synchronize  bool      `json:"synchronize"`
	CreatedAt    time.Time `json:"created_at"`
}

// Activity is one entry in the collaboration activity feed.
type Activity struct {
	UserID       string         `json:"user_id"`
	ActivityType string         `json:"activity_type"`
	Description  string         `json:"description"`
	DocumentPath string         `json:"document_path,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Adapter exposes collaboration operations to the tool facade, forwarding
// document work to the Engine and keeping the lightweight value records
// (document sessions, forks, activity feed) the engine does not own.
type Adapter struct {
	engine Engine
	bus    *event.Bus

	mu         sync.Mutex
	sessions   map[string]*DocSession
	forks      map[string]*Fork
	activities []Activity

	now func() time.Time
	log zerolog.Logger
}

// NewAdapter creates an Adapter over the given engine and bus.
func NewAdapter(engine Engine, bus *event.Bus) *Adapter {
	return &Adapter{
		engine:   engine,
		bus:      bus,
		sessions: make(map[string]*DocSession),
		forks:    make(map[string]*Fork),
		now:      time.Now,
		log:      logging.Component("rtc"),
	}
}

// Engine returns the underlying collaboration engine.
func (a *Adapter) Engine() Engine { return a.engine }

// Notebook operations

// ListNotebooks enumerates notebook rooms, optionally limited to paths
// with the given prefix and to maxResults entries.
func (a *Adapter) ListNotebooks(pathPrefix string, maxResults int) []RoomInfo {
	var notebooks []RoomInfo
	for _, info := range a.engine.ListRooms() {
		if info.FileType != FileTypeNotebook {
			continue
		}
		if pathPrefix != "" && !strings.HasPrefix(info.Path, pathPrefix) {
			continue
		}
		notebooks = append(notebooks, info)
	}
	if maxResults > 0 && len(notebooks) > maxResults {
		notebooks = notebooks[:maxResults]
	}
	return notebooks
}

// GetNotebook returns a notebook's cells and optional collaboration state.
func (a *Adapter) GetNotebook(ctx context.Context, path string, includeState bool) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, FileTypeNotebook)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"path":    path,
		"type":    "notebook",
		"format":  "json",
		"content": map[string]any{"cells": room.Cells(), "nbformat": 4, "nbformat_minor": 4},
	}
	if includeState {
		result["collaboration_state"] = a.collaborationState(room)
	}
	return result, nil
}

// CreateNotebookSession creates or retrieves a collaboration session for
// a notebook.
func (a *Adapter) CreateNotebookSession(ctx context.Context, path string) (*DocSession, error) {
	return a.createSession(ctx, path, "notebook", FileTypeNotebook)
}

// UpdateNotebookCell replaces a cell's source.
func (a *Adapter) UpdateNotebookCell(ctx context.Context, path, cellID, content, cellType string) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, FileTypeNotebook)
	if err != nil {
		return nil, err
	}
	if err := room.UpdateCell(cellID, content, cellType); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "cell_id": cellID, "timestamp": a.now()}, nil
}

// InsertNotebookCell adds a cell at position and returns its id.
func (a *Adapter) InsertNotebookCell(ctx context.Context, path, content string, position int, cellType string) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, FileTypeNotebook)
	if err != nil {
		return nil, err
	}
	cellID, err := room.InsertCell(content, position, cellType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "cell_id": cellID, "position": position, "timestamp": a.now()}, nil
}

// DeleteNotebookCell removes a cell.
func (a *Adapter) DeleteNotebookCell(ctx context.Context, path, cellID string) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, FileTypeNotebook)
	if err != nil {
		return nil, err
	}
	if err := room.DeleteCell(cellID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "cell_id": cellID, "timestamp": a.now()}, nil
}

// ExecuteNotebookCell runs a code cell, forwarding the caller's timeout
// to the kernel.
func (a *Adapter) ExecuteNotebookCell(ctx context.Context, path, cellID string, timeout time.Duration) (ExecutionResult, error) {
	room, err := a.engine.GetRoom(ctx, path, FileTypeNotebook)
	if err != nil {
		return ExecutionResult{}, err
	}
	return room.ExecuteCell(ctx, cellID, timeout)
}

// Document operations

// ListDocuments enumerates non-notebook rooms with optional path and
// file-type filters.
func (a *Adapter) ListDocuments(pathFilter string, fileType FileType) []RoomInfo {
	var docs []RoomInfo
	for _, info := range a.engine.ListRooms() {
		if info.FileType == FileTypeNotebook {
			continue
		}
		if pathFilter != "" && !strings.Contains(info.Path, pathFilter) {
			continue
		}
		if fileType != "" && info.FileType != fileType {
			continue
		}
		docs = append(docs, info)
	}
	return docs
}

// GetDocument returns a document's content and optional collaboration
// state.
func (a *Adapter) GetDocument(ctx context.Context, path string, includeState bool) (map[string]any, error) {
	fileType := SniffFileType(path)
	room, err := a.engine.GetRoom(ctx, path, fileType)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"path":      path,
		"type":      "document",
		"file_type": fileType,
		"content":   room.Text(),
	}
	if includeState {
		result["collaboration_state"] = a.collaborationState(room)
	}
	return result, nil
}

// CreateDocumentSession creates or retrieves a collaboration session for
// a document, sniffing the file type when not supplied.
func (a *Adapter) CreateDocumentSession(ctx context.Context, path string, fileType FileType) (*DocSession, error) {
	if fileType == "" {
		fileType = SniffFileType(path)
	}
	return a.createSession(ctx, path, "document", fileType)
}

// UpdateDocument replaces document content. position -1 replaces the
// whole body; otherwise length characters at position are replaced.
func (a *Adapter) UpdateDocument(ctx context.Context, path, content string, position, length int) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, SniffFileType(path))
	if err != nil {
		return nil, err
	}
	if err := room.SetText(content, position, length); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path, "version": room.Version(), "timestamp": a.now()}, nil
}

// InsertText inserts text at a position.
func (a *Adapter) InsertText(ctx context.Context, path, text string, position int) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, SniffFileType(path))
	if err != nil {
		return nil, err
	}
	newLen, err := room.InsertText(text, position)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path, "new_length": newLen, "timestamp": a.now()}, nil
}

// DeleteText removes text at a position.
func (a *Adapter) DeleteText(ctx context.Context, path string, position, length int) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, SniffFileType(path))
	if err != nil {
		return nil, err
	}
	newLen, err := room.DeleteText(position, length)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path, "new_length": newLen, "timestamp": a.now()}, nil
}

// DocumentHistory returns a document's version history, newest first.
func (a *Adapter) DocumentHistory(ctx context.Context, path string, limit int) ([]Version, error) {
	room, err := a.engine.GetRoom(ctx, path, SniffFileType(path))
	if err != nil {
		return nil, err
	}
	return room.History(limit), nil
}

// RestoreDocumentVersion restores a document to an earlier version.
func (a *Adapter) RestoreDocumentVersion(ctx context.Context, path, versionID string) (map[string]any, error) {
	room, err := a.engine.GetRoom(ctx, path, SniffFileType(path))
	if err != nil {
		return nil, err
	}
	if err := room.RestoreVersion(versionID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path, "version_id": versionID, "timestamp": a.now()}, nil
}

// ForkDocument copies a document into a new fork room for parallel
// editing.
func (a *Adapter) ForkDocument(ctx context.Context, path, title, description string, synchronize bool) (*Fork, error) {
	fileType := SniffFileType(path)
	room, err := a.engine.GetRoom(ctx, path, fileType)
	if err != nil {
		return nil, err
	}

	forkID := ulid.Make().String()
	forkPath := fmt.Sprintf("%s.fork-%s", path, forkID)

	forkRoom, err := a.engine.GetRoom(ctx, forkPath, fileType)
	if err != nil {
		return nil, err
	}
	if err := forkRoom.SetText(room.Text(), -1, 0); err != nil {
		return nil, err
	}

	if title == "" {
		title = "Fork of " + path
	}
	fork := &Fork{
		ID:           forkID,
		OriginalPath: path,
		ForkPath:     forkPath,
		Title:        title,
		Description:  description,
		Synchronize:  synchronize,
		CreatedAt:    a.now(),
	}

	a.mu.Lock()
	a.forks[forkID] = fork
	a.mu.Unlock()

	a.bus.Publish(event.Event{
		Type: event.DocumentForked,
		Data: event.DocumentForkedData{Path: path, ForkID: forkID},
	})
	return fork, nil
}

// MergeDocumentFork copies a fork's content back into the original
// document. Non-synchronized forks are discarded after the merge.
func (a *Adapter) MergeDocumentFork(ctx context.Context, path, forkID string) (map[string]any, error) {
	a.mu.Lock()
	fork, ok := a.forks[forkID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fork not found: %s", forkID)
	}
	if fork.OriginalPath != path {
		return nil, fmt.Errorf("fork %s does not belong to document %s", forkID, path)
	}

	fileType := SniffFileType(path)
	original, err := a.engine.GetRoom(ctx, path, fileType)
	if err != nil {
		return nil, err
	}
	forkRoom, err := a.engine.GetRoom(ctx, fork.ForkPath, fileType)
	if err != nil {
		return nil, err
	}

	if err := original.SetText(forkRoom.Text(), -1, 0); err != nil {
		return nil, err
	}

	if !fork.Synchronize {
		a.mu.Lock()
		delete(a.forks, forkID)
		a.mu.Unlock()
	}

	return map[string]any{"success": true, "path": path, "fork_id": forkID, "timestamp": a.now()}, nil
}

// Awareness operations

// OnlineUsers returns live presence, optionally scoped to one document.
func (a *Adapter) OnlineUsers(documentPath string) []AwarenessState {
	return a.engine.AwarenessStates(documentPath)
}

// UserPresence returns one user's presence. Unknown users report as
// offline rather than erroring.
func (a *Adapter) UserPresence(userID, documentPath string) (AwarenessState, error) {
	for _, st := range a.engine.AwarenessStates("") {
		if st.UserID != userID {
			continue
		}
		if documentPath != "" && st.CurrentDocument != documentPath {
			return AwarenessState{}, fmt.Errorf("user %s not present in %s", userID, documentPath)
		}
		return st, nil
	}
	return AwarenessState{UserID: userID, Status: "offline"}, nil
}

// SetUserPresence publishes the calling user's presence status.
func (a *Adapter) SetUserPresence(status, message string) map[string]any {
	a.engine.SetAwareness(AwarenessState{
		UserID:       currentUserID,
		Status:       status,
		Message:      message,
		LastActivity: a.now(),
	})
	return map[string]any{"success": true, "user_id": currentUserID, "status": status, "timestamp": a.now()}
}

// UserCursors returns cursor positions of users in a document.
func (a *Adapter) UserCursors(documentPath string) []AwarenessState {
	var out []AwarenessState
	for _, st := range a.engine.AwarenessStates(documentPath) {
		if st.Cursor != nil {
			out = append(out, st)
		}
	}
	return out
}

// UpdateCursorPosition publishes the calling user's cursor location.
func (a *Adapter) UpdateCursorPosition(documentPath string, position CursorPosition, selection *CursorSelection) map[string]any {
	a.engine.SetAwareness(AwarenessState{
		UserID:          currentUserID,
		Status:          "online",
		CurrentDocument: documentPath,
		Cursor:          &position,
		Selection:       selection,
		LastActivity:    a.now(),
	})
	a.bus.Publish(event.Event{
		Type: event.CursorMoved,
		Data: event.CursorMovedData{
			Path:   documentPath,
			UserID: currentUserID,
			Line:   position.Line,
			Column: position.Column,
		},
	})
	return map[string]any{
		"success":       true,
		"user_id":       currentUserID,
		"document_path": documentPath,
		"position":      position,
		"timestamp":     a.now(),
	}
}

// UserActivity returns the recent activity feed, newest first,
// optionally scoped to one document.
func (a *Adapter) UserActivity(documentPath string, limit int) []Activity {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Activity
	for i := len(a.activities) - 1; i >= 0; i-- {
		act := a.activities[i]
		if documentPath != "" && act.DocumentPath != documentPath {
			continue
		}
		out = append(out, act)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// BroadcastActivity appends to the activity feed and notifies
// collaborators.
func (a *Adapter) BroadcastActivity(activityType, description, documentPath string, metadata map[string]any) Activity {
	act := Activity{
		UserID:       currentUserID,
		ActivityType: activityType,
		Description:  description,
		DocumentPath: documentPath,
		Metadata:     metadata,
		Timestamp:    a.now(),
	}

	a.mu.Lock()
	a.activities = append(a.activities, act)
	if len(a.activities) > maxActivityEntries {
		a.activities = a.activities[len(a.activities)-maxActivityEntries:]
	}
	a.mu.Unlock()

	a.bus.Publish(event.Event{
		Type: event.ActivityPosted,
		Data: event.ActivityPostedData{
			UserID:       act.UserID,
			ActivityType: activityType,
			Description:  description,
			DocumentPath: documentPath,
		},
	})
	return act
}

// ActiveSessions lists document collaboration sessions, optionally
// scoped to one document.
func (a *Adapter) ActiveSessions(documentPath string) []*DocSession {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*DocSession
	for _, s := range a.sessions {
		if documentPath != "" && s.Path != documentPath {
			continue
		}
		out = append(out, s)
	}
	return out
}

// JoinSession marks a document session joined.
func (a *Adapter) JoinSession(sessionID string) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	s.JoinedAt = a.now()
	return map[string]any{"success": true, "session_id": sessionID, "timestamp": s.JoinedAt}, nil
}

// LeaveSession marks a document session left.
func (a *Adapter) LeaveSession(sessionID string) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	s.LeftAt = a.now()
	return map[string]any{"success": true, "session_id": sessionID, "timestamp": s.LeftAt}, nil
}

func (a *Adapter) createSession(ctx context.Context, path, kind string, fileType FileType) (*DocSession, error) {
	if _, err := a.engine.GetRoom(ctx, path, fileType); err != nil {
		return nil, err
	}

	s := &DocSession{
		ID:        ulid.Make().String(),
		RoomID:    fmt.Sprintf("%s:%s", kind, path),
		Path:      path,
		Type:      kind,
		FileType:  fileType,
		Status:    "active",
		CreatedAt: a.now(),
	}

	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()

	a.bus.Publish(event.Event{
		Type: event.SessionStarted,
		Data: event.SessionStartedData{SessionID: s.ID, Path: path, FileType: string(fileType)},
	})
	a.log.Debug().Str("sessionID", s.ID).Str("path", path).Msg("created document session")
	return s, nil
}

func (a *Adapter) collaborationState(room Room) map[string]any {
	return map[string]any{
		"collaborators": len(a.engine.AwarenessStates(room.Path())),
		"version":       room.Version(),
		"last_activity": a.now(),
	}
}
