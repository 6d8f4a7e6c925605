package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances manually so idle pruning and LRU ordering are
// deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStoreAndGet(t *testing.T) {
	s := New(Options{})

	id1 := s.StoreEvent("s1", map[string]any{"a": 1})
	id2 := s.StoreEvent("s1", map[string]any{"a": 2})

	events := s.StreamEvents("s1", 0)
	require.Len(t, events, 2)
	assert.Equal(t, id1, events[0].ID)
	assert.Equal(t, id2, events[1].ID)

	ev, ok := s.GetEvent(id1)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1}, ev.Payload)
	assert.Equal(t, "s1", ev.StreamID)

	_, ok = s.GetEvent("nope")
	assert.False(t, ok)
}

func TestPerStreamCapacityEviction(t *testing.T) {
	s := New(Options{MaxEventsPerStream: 2})

	first := s.StoreEvent("s1", "e1")
	second := s.StoreEvent("s1", "e2")
	third := s.StoreEvent("s1", "e3")

	events := s.StreamEvents("s1", 0)
	require.Len(t, events, 2)
	assert.Equal(t, second, events[0].ID)
	assert.Equal(t, third, events[1].ID)

	// Evicted record must also leave the global index.
	_, ok := s.GetEvent(first)
	assert.False(t, ok)

	// EventCount tracks insertions, not window occupancy.
	meta, ok := s.StreamMetadata("s1")
	require.True(t, ok)
	assert.Equal(t, 3, meta.EventCount)
}

func TestCapacityInvariantHolds(t *testing.T) {
	const capacity = 5
	s := New(Options{MaxEventsPerStream: capacity})

	for i := 0; i < 50; i++ {
		s.StoreEvent(fmt.Sprintf("s%d", i%3), i)
	}

	stats := s.Stats()
	assert.Equal(t, 3, stats.StreamCount)
	assert.Equal(t, 3*capacity, stats.TotalEvents)
	// Index holds exactly the union of live records, no orphans.
	assert.Equal(t, stats.TotalEvents, stats.IndexSize)
}

func TestGlobalStreamCapEvictsLRU(t *testing.T) {
	clock := newFakeClock()
	s := New(Options{MaxStreams: 2, Clock: clock.Now})

	s.StoreEvent("old", 1)
	clock.Advance(time.Minute)
	s.StoreEvent("fresh", 1)
	clock.Advance(time.Minute)
	s.StoreEvent("old", 2) // touch "old" so "fresh" is now the LRU
	clock.Advance(time.Minute)

	s.StoreEvent("new", 1)

	stats := s.Stats()
	assert.Equal(t, 2, stats.StreamCount)
	assert.Empty(t, s.StreamEvents("fresh", 0))
	assert.Len(t, s.StreamEvents("old", 0), 2)
	assert.Len(t, s.StreamEvents("new", 0), 1)
	assert.Equal(t, stats.TotalEvents, stats.IndexSize)
}

func TestReplayAfter(t *testing.T) {
	s := New(Options{})

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, s.StoreEvent("s1", i))
	}

	// Every cursor position yields exactly the suffix, in order.
	for k := 0; k < len(ids)-1; k++ {
		var got []string
		last, ok := s.ReplayAfter(ids[k], func(ev Event) error {
			got = append(got, ev.ID)
			return nil
		})
		require.True(t, ok, "cursor at %d", k)
		assert.Equal(t, ids[k+1:], got)
		assert.Equal(t, ids[len(ids)-1], last)
	}

	// Cursor at the tail emits nothing.
	_, ok := s.ReplayAfter(ids[len(ids)-1], func(Event) error {
		t.Fatal("unexpected emit")
		return nil
	})
	assert.False(t, ok)

	// Unknown cursor emits nothing and does not panic.
	_, ok = s.ReplayAfter("unknown", func(Event) error {
		t.Fatal("unexpected emit")
		return nil
	})
	assert.False(t, ok)
}

func TestReplayStopsOnEmitError(t *testing.T) {
	s := New(Options{})

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, s.StoreEvent("s1", i))
	}

	calls := 0
	last, ok := s.ReplayAfter(ids[0], func(ev Event) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("client went away")
		}
		return nil
	})
	require.True(t, ok)
	assert.Equal(t, 2, calls)
	assert.Equal(t, ids[1], last)
}

func TestRemoveStream(t *testing.T) {
	s := New(Options{})

	id := s.StoreEvent("s1", "x")
	assert.True(t, s.RemoveStream("s1"))
	assert.Empty(t, s.StreamEvents("s1", 0))

	_, ok := s.GetEvent(id)
	assert.False(t, ok)

	assert.False(t, s.RemoveStream("s1"))
	assert.False(t, s.RemoveStream("never-existed"))
}

func TestPruneIdle(t *testing.T) {
	clock := newFakeClock()
	s := New(Options{Clock: clock.Now})

	s.StoreEvent("stale", 1)
	clock.Advance(2 * time.Hour)
	s.StoreEvent("busy", 1)

	removed := s.PruneIdle(time.Hour)
	assert.Equal(t, 1, removed)
	assert.Empty(t, s.StreamEvents("stale", 0))
	assert.Len(t, s.StreamEvents("busy", 0), 1)

	stats := s.Stats()
	assert.Equal(t, stats.TotalEvents, stats.IndexSize)
}

func TestCreateStream(t *testing.T) {
	s := New(Options{})

	id, err := s.CreateStream("explicit", map[string]any{"topic": "broadcast"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	meta, ok := s.StreamMetadata("explicit")
	require.True(t, ok)
	assert.Equal(t, "broadcast", meta.Extra["topic"])
	assert.Zero(t, meta.EventCount)

	_, err = s.CreateStream("explicit", nil)
	assert.ErrorIs(t, err, ErrStreamExists)

	minted, err := s.CreateStream("", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, minted)
}

func TestUpdateStreamMetadata(t *testing.T) {
	clock := newFakeClock()
	s := New(Options{Clock: clock.Now})

	s.StoreEvent("s1", 1)
	before, _ := s.StreamMetadata("s1")

	clock.Advance(time.Minute)
	assert.True(t, s.UpdateStreamMetadata("s1", map[string]any{"owner": "agent"}))

	after, _ := s.StreamMetadata("s1")
	assert.Equal(t, "agent", after.Extra["owner"])
	assert.True(t, after.LastActivity.After(before.LastActivity))

	assert.False(t, s.UpdateStreamMetadata("missing", nil))
}

func TestStreamEventsLimit(t *testing.T) {
	s := New(Options{})

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, s.StoreEvent("s1", i))
	}

	got := s.StreamEvents("s1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, ids[3], got[0].ID)
	assert.Equal(t, ids[4], got[1].ID)

	assert.Len(t, s.StreamEvents("s1", 0), 5)
	assert.Len(t, s.StreamEvents("s1", 99), 5)
}

func TestConcurrentStores(t *testing.T) {
	s := New(Options{MaxEventsPerStream: 10, MaxStreams: 8})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			stream := fmt.Sprintf("s%d", g%4)
			for i := 0; i < 100; i++ {
				s.StoreEvent(stream, i)
			}
		}(g)
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, 4, stats.StreamCount)
	assert.Equal(t, stats.TotalEvents, stats.IndexSize)
	for g := 0; g < 4; g++ {
		assert.Len(t, s.StreamEvents(fmt.Sprintf("s%d", g), 0), 10)
	}
}
