package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupyter-rtc/collab-mcp/internal/event"
)

func TestSniffFileType(t *testing.T) {
	assert.Equal(t, FileTypeNotebook, SniffFileType("analysis.ipynb"))
	assert.Equal(t, FileTypeMarkdown, SniffFileType("notes/README.md"))
	assert.Equal(t, FileTypeText, SniffFileType("data.csv"))
	assert.Equal(t, FileTypeText, SniffFileType("Makefile"))
}

func TestGetRoomCreatesWithDefaults(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())
	ctx := context.Background()

	nb, err := e.GetRoom(ctx, "a.ipynb", FileTypeNotebook)
	require.NoError(t, err)
	cells := nb.Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, "code", cells[0].CellType)
	assert.Contains(t, cells[0].Source, "Hello, World!")

	doc, err := e.GetRoom(ctx, "b.md", FileTypeMarkdown)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Default Document")
	assert.Equal(t, 1, doc.Version())

	// Same path returns the same room.
	again, err := e.GetRoom(ctx, "a.ipynb", FileTypeNotebook)
	require.NoError(t, err)
	assert.Equal(t, nb, again)

	_, err = e.GetRoom(ctx, "", FileTypeText)
	assert.Error(t, err)
}

func TestTextOperations(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())
	room, err := e.GetRoom(context.Background(), "doc.txt", FileTypeText)
	require.NoError(t, err)

	require.NoError(t, room.SetText("hello world", -1, 0))
	assert.Equal(t, "hello world", room.Text())
	assert.Equal(t, 2, room.Version())

	newLen, err := room.InsertText("big ", 6)
	require.NoError(t, err)
	assert.Equal(t, len("hello big world"), newLen)
	assert.Equal(t, "hello big world", room.Text())

	newLen, err = room.DeleteText(5, 4)
	require.NoError(t, err)
	assert.Equal(t, "hello world", room.Text())
	assert.Equal(t, len("hello world"), newLen)

	// Partial replacement.
	require.NoError(t, room.SetText("WORLD", 6, 5))
	assert.Equal(t, "hello WORLD", room.Text())

	_, err = room.InsertText("x", 999)
	assert.Error(t, err)
	_, err = room.DeleteText(-1, 3)
	assert.Error(t, err)
	assert.Error(t, room.SetText("x", 999, 0))
}

func TestCellOperations(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())
	room, err := e.GetRoom(context.Background(), "nb.ipynb", FileTypeNotebook)
	require.NoError(t, err)

	first := room.Cells()[0]
	require.NoError(t, room.UpdateCell(first.ID, "x = 1", ""))
	assert.Equal(t, "x = 1", room.Cells()[0].Source)
	assert.Equal(t, "code", room.Cells()[0].CellType)

	require.NoError(t, room.UpdateCell(first.ID, "# heading", "markdown"))
	assert.Equal(t, "markdown", room.Cells()[0].CellType)

	id, err := room.InsertCell("y = 2", 0, "")
	require.NoError(t, err)
	cells := room.Cells()
	require.Len(t, cells, 2)
	assert.Equal(t, id, cells[0].ID)
	assert.Equal(t, "code", cells[0].CellType)
	assert.Equal(t, first.ID, cells[1].ID)

	_, err = room.InsertCell("z", 5, "")
	assert.Error(t, err)

	require.NoError(t, room.DeleteCell(id))
	require.Len(t, room.Cells(), 1)
	assert.Error(t, room.DeleteCell("missing"))
	assert.Error(t, room.UpdateCell("missing", "x", ""))
}

func TestExecuteCell(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())
	room, err := e.GetRoom(context.Background(), "nb.ipynb", FileTypeNotebook)
	require.NoError(t, err)

	cellID := room.Cells()[0].ID
	res, err := room.ExecuteCell(context.Background(), cellID, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExecutionCount)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "stream", res.Outputs[0]["output_type"])

	res, err = room.ExecuteCell(context.Background(), cellID, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExecutionCount)

	_, err = room.ExecuteCell(context.Background(), "missing", time.Second)
	assert.Error(t, err)
}

func TestHistoryAndRestore(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())
	room, err := e.GetRoom(context.Background(), "doc.md", FileTypeMarkdown)
	require.NoError(t, err)

	require.NoError(t, room.SetText("one", -1, 0))
	require.NoError(t, room.SetText("two", -1, 0))

	history := room.History(0)
	require.Len(t, history, 3)
	// Newest first.
	assert.Equal(t, 3, history[0].Version)
	assert.Equal(t, 1, history[2].Version)

	limited := room.History(2)
	require.Len(t, limited, 2)
	assert.Equal(t, 3, limited[0].Version)

	require.NoError(t, room.RestoreVersion("1"))
	assert.Equal(t, 4, room.Version())
	assert.Error(t, room.RestoreVersion("99"))
}

func TestAwareness(t *testing.T) {
	e := NewMemoryEngine(event.NewBus())

	e.SetAwareness(AwarenessState{UserID: "alice", Status: "online", CurrentDocument: "a.md"})
	e.SetAwareness(AwarenessState{UserID: "bob", Status: "away", CurrentDocument: "b.md"})

	all := e.AwarenessStates("")
	assert.Len(t, all, 2)
	for _, st := range all {
		assert.False(t, st.LastActivity.IsZero())
	}

	scoped := e.AwarenessStates("a.md")
	require.Len(t, scoped, 1)
	assert.Equal(t, "alice", scoped[0].UserID)

	// Re-setting replaces the previous state for that user.
	e.SetAwareness(AwarenessState{UserID: "alice", Status: "busy", CurrentDocument: "b.md"})
	assert.Empty(t, e.AwarenessStates("a.md"))
}

func TestMutationsPublishEvents(t *testing.T) {
	bus := event.NewBus()
	got := make(chan event.Event, 8)
	bus.SubscribeAll(func(ev event.Event) { got <- ev })

	e := NewMemoryEngine(bus)
	room, err := e.GetRoom(context.Background(), "doc.txt", FileTypeText)
	require.NoError(t, err)
	require.NoError(t, room.SetText("published", -1, 0))

	select {
	case ev := <-got:
		assert.Equal(t, event.DocumentUpdated, ev.Type)
		data, ok := ev.Data.(event.DocumentUpdatedData)
		require.True(t, ok)
		assert.Equal(t, "doc.txt", data.Path)
		assert.Equal(t, 2, data.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}
