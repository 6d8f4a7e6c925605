package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jupyter-rtc/collab-mcp/internal/event"
)

// MemoryEngine is an in-memory Engine. It stands in for the external
// collaboration service when the server runs standalone, and backs the
// test suites. Mutations publish change events on the bus so connected
// SSE clients observe edits the same way they would from the real engine.
type MemoryEngine struct {
	mu        sync.Mutex
	rooms     map[string]*memoryRoom
	awareness map[string]AwarenessState
	bus       *event.Bus
	now       func() time.Time
}

// NewMemoryEngine creates an empty in-memory engine publishing on bus.
func NewMemoryEngine(bus *event.Bus) *MemoryEngine {
	return &MemoryEngine{
		rooms:     make(map[string]*memoryRoom),
		awareness: make(map[string]AwarenessState),
		bus:       bus,
		now:       time.Now,
	}
}

// GetRoom returns the room for path, creating it with default content if
// absent. The fileType of an existing room wins over the requested one.
func (e *MemoryEngine) GetRoom(_ context.Context, path string, fileType FileType) (Room, error) {
	if path == "" {
		return nil, fmt.Errorf("room path is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if room, ok := e.rooms[path]; ok {
		return room, nil
	}

	room := newMemoryRoom(path, fileType, e.bus, e.now)
	e.rooms[path] = room
	return room, nil
}

// ListRooms enumerates live rooms.
func (e *MemoryEngine) ListRooms() []RoomInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos := make([]RoomInfo, 0, len(e.rooms))
	for _, room := range e.rooms {
		infos = append(infos, room.info())
	}
	return infos
}

// AwarenessStates returns live presence, filtered to one document when
// path is non-empty.
func (e *MemoryEngine) AwarenessStates(path string) []AwarenessState {
	e.mu.Lock()
	defer e.mu.Unlock()

	states := make([]AwarenessState, 0, len(e.awareness))
	for _, st := range e.awareness {
		if path != "" && st.CurrentDocument != path {
			continue
		}
		states = append(states, st)
	}
	return states
}

// SetAwareness records a user's presence state.
func (e *MemoryEngine) SetAwareness(state AwarenessState) {
	e.mu.Lock()
	if state.LastActivity.IsZero() {
		state.LastActivity = e.now()
	}
	e.awareness[state.UserID] = state
	e.mu.Unlock()

	e.bus.Publish(event.Event{
		Type: event.PresenceChanged,
		Data: event.PresenceChangedData{UserID: state.UserID, Status: state.Status},
	})
}

// memoryRoom holds one document. A notebook room keeps cells; text-like
// rooms keep a body string.
type memoryRoom struct {
	mu       sync.Mutex
	path     string
	fileType FileType
	text     string
	cells    []Cell
	version  int
	modified time.Time
	history  []Version
	bus      *event.Bus
	now      func() time.Time
}

func newMemoryRoom(path string, fileType FileType, bus *event.Bus, now func() time.Time) *memoryRoom {
	r := &memoryRoom{
		path:     path,
		fileType: fileType,
		version:  1,
		modified: now(),
		bus:      bus,
		now:      now,
	}
	if fileType == FileTypeNotebook {
		r.cells = []Cell{{
			ID:       ulid.Make().String(),
			CellType: "code",
			Source:   "print('Hello, World!')",
		}}
	} else {
		r.text = "# Default Document\n\nThis is a default document.\n"
	}
	r.history = []Version{{Version: 1, Timestamp: r.modified, Changes: "initial content"}}
	return r
}

func (r *memoryRoom) Path() string       { return r.path }
func (r *memoryRoom) FileType() FileType { return r.fileType }

func (r *memoryRoom) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

func (r *memoryRoom) info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		Path:         r.path,
		FileType:     r.fileType,
		Version:      r.version,
		LastModified: r.modified,
	}
}

// bump records a new version under the room lock.
func (r *memoryRoom) bump(changes string) {
	r.version++
	r.modified = r.now()
	r.history = append(r.history, Version{Version: r.version, Timestamp: r.modified, Changes: changes})
}

func (r *memoryRoom) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

func (r *memoryRoom) SetText(content string, position, length int) error {
	r.mu.Lock()
	if position < 0 {
		r.text = content
	} else {
		if position > len(r.text) {
			r.mu.Unlock()
			return fmt.Errorf("position %d past end of document (%d)", position, len(r.text))
		}
		end := position + length
		if end > len(r.text) {
			end = len(r.text)
		}
		r.text = r.text[:position] + content + r.text[end:]
	}
	r.bump("content updated")
	version := r.version
	r.mu.Unlock()

	r.publishUpdated(version)
	return nil
}

func (r *memoryRoom) InsertText(text string, position int) (int, error) {
	r.mu.Lock()
	if position < 0 || position > len(r.text) {
		r.mu.Unlock()
		return 0, fmt.Errorf("position %d out of range (0..%d)", position, len(r.text))
	}
	r.text = r.text[:position] + text + r.text[position:]
	r.bump("text inserted")
	newLen, version := len(r.text), r.version
	r.mu.Unlock()

	r.publishUpdated(version)
	return newLen, nil
}

func (r *memoryRoom) DeleteText(position, length int) (int, error) {
	r.mu.Lock()
	if position < 0 || position > len(r.text) {
		r.mu.Unlock()
		return 0, fmt.Errorf("position %d out of range (0..%d)", position, len(r.text))
	}
	end := position + length
	if end > len(r.text) {
		end = len(r.text)
	}
	r.text = r.text[:position] + r.text[end:]
	r.bump("text deleted")
	newLen, version := len(r.text), r.version
	r.mu.Unlock()

	r.publishUpdated(version)
	return newLen, nil
}

func (r *memoryRoom) Cells() []Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

func (r *memoryRoom) UpdateCell(cellID, source, cellType string) error {
	r.mu.Lock()
	idx := r.cellIndexLocked(cellID)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("cell not found: %s", cellID)
	}
	r.cells[idx].Source = source
	if cellType != "" {
		r.cells[idx].CellType = cellType
	}
	r.bump("cell updated")
	r.mu.Unlock()

	r.bus.Publish(event.Event{
		Type: event.CellUpdated,
		Data: event.CellUpdatedData{Path: r.path, CellID: cellID},
	})
	return nil
}

func (r *memoryRoom) InsertCell(source string, position int, cellType string) (string, error) {
	if cellType == "" {
		cellType = "code"
	}

	r.mu.Lock()
	if position < 0 || position > len(r.cells) {
		r.mu.Unlock()
		return "", fmt.Errorf("position %d out of range (0..%d)", position, len(r.cells))
	}
	cell := Cell{ID: ulid.Make().String(), CellType: cellType, Source: source}
	r.cells = append(r.cells, Cell{})
	copy(r.cells[position+1:], r.cells[position:])
	r.cells[position] = cell
	r.bump("cell inserted")
	r.mu.Unlock()

	r.bus.Publish(event.Event{
		Type: event.CellInserted,
		Data: event.CellInsertedData{Path: r.path, CellID: cell.ID, Position: position},
	})
	return cell.ID, nil
}

func (r *memoryRoom) DeleteCell(cellID string) error {
	r.mu.Lock()
	idx := r.cellIndexLocked(cellID)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("cell not found: %s", cellID)
	}
	r.cells = append(r.cells[:idx], r.cells[idx+1:]...)
	r.bump("cell deleted")
	r.mu.Unlock()

	r.bus.Publish(event.Event{
		Type: event.CellDeleted,
		Data: event.CellDeletedData{Path: r.path, CellID: cellID},
	})
	return nil
}

func (r *memoryRoom) ExecuteCell(_ context.Context, cellID string, _ time.Duration) (ExecutionResult, error) {
	r.mu.Lock()
	idx := r.cellIndexLocked(cellID)
	if idx < 0 {
		r.mu.Unlock()
		return ExecutionResult{}, fmt.Errorf("cell not found: %s", cellID)
	}
	r.cells[idx].ExecutionCount++
	count := r.cells[idx].ExecutionCount
	result := ExecutionResult{
		ExecutionCount: count,
		Outputs: []map[string]any{{
			"output_type": "stream",
			"name":        "stdout",
			"text":        "Hello, World!\n",
		}},
	}
	r.cells[idx].Outputs = result.Outputs
	r.bump("cell executed")
	r.mu.Unlock()

	r.bus.Publish(event.Event{
		Type: event.CellExecuted,
		Data: event.CellExecutedData{Path: r.path, CellID: cellID, ExecutionCount: count},
	})
	return result, nil
}

func (r *memoryRoom) History(limit int) []Version {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Version, 0, len(r.history))
	// Newest first.
	for i := len(r.history) - 1; i >= 0; i-- {
		out = append(out, r.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r *memoryRoom) RestoreVersion(versionID string) error {
	r.mu.Lock()
	found := false
	for _, v := range r.history {
		if fmt.Sprintf("%d", v.Version) == versionID {
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return fmt.Errorf("version not found: %s", versionID)
	}
	r.bump("restored version " + versionID)
	version := r.version
	r.mu.Unlock()

	r.publishUpdated(version)
	return nil
}

func (r *memoryRoom) cellIndexLocked(cellID string) int {
	for i, c := range r.cells {
		if c.ID == cellID {
			return i
		}
	}
	return -1
}

func (r *memoryRoom) publishUpdated(version int) {
	r.bus.Publish(event.Event{
		Type: event.DocumentUpdated,
		Data: event.DocumentUpdatedData{Path: r.path, Version: version},
	})
}
