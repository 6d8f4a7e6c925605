package event

// DocumentUpdatedData is the data for document.updated events.
type DocumentUpdatedData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// DocumentForkedData is the data for document.forked events.
type DocumentForkedData struct {
	Path   string `json:"path"`
	ForkID string `json:"forkId"`
}

// CellUpdatedData is the data for cell.updated events.
type CellUpdatedData struct {
	Path   string `json:"path"`
	CellID string `json:"cellId"`
}

// CellInsertedData is the data for cell.inserted events.
type CellInsertedData struct {
	Path     string `json:"path"`
	CellID   string `json:"cellId"`
	Position int    `json:"position"`
}

// CellDeletedData is the data for cell.deleted events.
type CellDeletedData struct {
	Path   string `json:"path"`
	CellID string `json:"cellId"`
}

// CellExecutedData is the data for cell.executed events.
type CellExecutedData struct {
	Path           string `json:"path"`
	CellID         string `json:"cellId"`
	ExecutionCount int    `json:"executionCount"`
}

// PresenceChangedData is the data for presence.changed events.
type PresenceChangedData struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// CursorMovedData is the data for cursor.moved events.
type CursorMovedData struct {
	Path   string `json:"path"`
	UserID string `json:"userId"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ActivityPostedData is the data for activity.posted events.
type ActivityPostedData struct {
	UserID       string `json:"userId"`
	ActivityType string `json:"activityType"`
	Description  string `json:"description"`
	DocumentPath string `json:"documentPath,omitempty"`
}

// SessionStartedData is the data for session.started events.
type SessionStartedData struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	FileType  string `json:"fileType"`
}

// SessionEndedData is the data for session.ended events.
type SessionEndedData struct {
	SessionID string `json:"sessionId"`
}
