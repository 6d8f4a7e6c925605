package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	sent   []string
	closed int
}

func (f *fakeEmitter) SendEvent(eventType string, data any, eventID string) error {
	f.sent = append(f.sent, eventType)
	return nil
}

func (f *fakeEmitter) Close() { f.closed++ }

func TestGetOrCreateMintsAndReuses(t *testing.T) {
	r := NewRegistry()

	s := r.GetOrCreate("")
	require.NotEmpty(t, s.ID)
	assert.Equal(t, StatusActive, s.Status)
	assert.False(t, s.CreatedAt.IsZero())

	again := r.GetOrCreate(s.ID)
	assert.Same(t, s, again)

	presented := r.GetOrCreate("client-chosen-id")
	assert.Equal(t, "client-chosen-id", presented.ID)
}

func TestEndedIDIsNotReactivated(t *testing.T) {
	r := NewRegistry()

	s := r.GetOrCreate("sid-1")
	r.End(s.ID)

	replacement := r.GetOrCreate("sid-1")
	assert.NotEqual(t, "sid-1", replacement.ID)
	assert.Equal(t, StatusActive, replacement.Status)

	ended, ok := r.Get("sid-1")
	require.True(t, ok)
	assert.Equal(t, StatusEnded, ended.Status)
	assert.False(t, ended.EndedAt.IsZero())
}

func TestEndIsIdempotent(t *testing.T) {
	r := NewRegistry()

	s := r.GetOrCreate("")
	em := &fakeEmitter{}
	require.True(t, r.AttachEmitter(s.ID, em))

	r.End(s.ID)
	first, _ := r.Get(s.ID)
	endedAt := first.EndedAt

	r.End(s.ID)          // second end: no-op
	r.End("never-there") // unknown id: no-op

	after, _ := r.Get(s.ID)
	assert.Equal(t, StatusEnded, after.Status)
	assert.Equal(t, endedAt, after.EndedAt)
	assert.Equal(t, 1, em.closed)

	_, ok := r.Emitter(s.ID)
	assert.False(t, ok)
}

func TestListActiveAndEndAll(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate("")
	b := r.GetOrCreate("")
	r.End(a.ID)

	active := r.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0])

	r.EndAll()
	assert.Empty(t, r.ListActive())
}

func TestAttachReplacesPreviousEmitter(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("")

	first := &fakeEmitter{}
	second := &fakeEmitter{}
	require.True(t, r.AttachEmitter(s.ID, first))
	require.True(t, r.AttachEmitter(s.ID, second))

	assert.Equal(t, 1, first.closed)

	got, ok := r.Emitter(s.ID)
	require.True(t, ok)
	assert.Same(t, Emitter(second), got)
}

func TestAttachToEndedSessionClosesEmitter(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("")
	r.End(s.ID)

	em := &fakeEmitter{}
	assert.False(t, r.AttachEmitter(s.ID, em))
	assert.Equal(t, 1, em.closed)
}

func TestDetachOnlyRemovesSameEmitter(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("")

	stale := &fakeEmitter{}
	current := &fakeEmitter{}
	r.AttachEmitter(s.ID, stale)
	r.AttachEmitter(s.ID, current)

	// Stale disconnect must not evict the newer channel.
	r.DetachEmitter(s.ID, stale)
	got, ok := r.Emitter(s.ID)
	require.True(t, ok)
	assert.Same(t, Emitter(current), got)

	r.DetachEmitter(s.ID, current)
	_, ok = r.Emitter(s.ID)
	assert.False(t, ok)
}
