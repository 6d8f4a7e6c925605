// Package eventlog implements the bounded in-memory event store backing
// MCP stream resumability. Events are grouped into streams (one per MCP
// session or broadcast topic); each stream keeps a capped, insertion-ordered
// window of records, and a global index allows O(1) lookup by event id.
//
// A disconnected client presents the last event id it processed and gets
// every record stored since, in order, with no gaps and no duplicates.
package eventlog

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/logging"
)

// ErrStreamExists is returned by CreateStream on a live stream id collision.
var ErrStreamExists = errors.New("stream already exists")

// Defaults for Options.
const (
	DefaultMaxEventsPerStream = 100
	DefaultMaxStreams         = 1000
	DefaultIdleAge            = time.Hour
)

// Event is an immutable record stored in a stream.
type Event struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"streamId"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata describes a stream.
type Metadata struct {
	CreatedAt    time.Time      `json:"createdAt"`
	LastActivity time.Time      `json:"lastActivity"`
	EventCount   int            `json:"eventCount"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Stats summarizes store occupancy.
type Stats struct {
	StreamCount        int `json:"streamCount"`
	TotalEvents        int `json:"totalEvents"`
	MaxEventsPerStream int `json:"maxEventsPerStream"`
	MaxStreams         int `json:"maxStreams"`
	IndexSize          int `json:"indexSize"`
}

// Options configures a Store.
type Options struct {
	// MaxEventsPerStream bounds each stream's window; older records are
	// evicted oldest-first.
	MaxEventsPerStream int
	// MaxStreams bounds the number of live streams; admitting a new stream
	// past the cap evicts the least-recently-active one.
	MaxStreams int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

type stream struct {
	id     string
	events []*Event
	meta   Metadata
}

// Store is the event log. All reads and writes go through one mutex:
// stream contents, metadata, and the global index mutate together and
// must be observed atomically.
type Store struct {
	mu      sync.Mutex
	streams map[string]*stream
	index   map[string]*Event

	maxEventsPerStream int
	maxStreams         int
	now                func() time.Time
	log                zerolog.Logger
}

// New creates a Store with the given options.
func New(opts Options) *Store {
	if opts.MaxEventsPerStream <= 0 {
		opts.MaxEventsPerStream = DefaultMaxEventsPerStream
	}
	if opts.MaxStreams <= 0 {
		opts.MaxStreams = DefaultMaxStreams
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		streams:            make(map[string]*stream),
		index:              make(map[string]*Event),
		maxEventsPerStream: opts.MaxEventsPerStream,
		maxStreams:         opts.MaxStreams,
		now:                opts.Clock,
		log:                logging.Component("eventlog"),
	}
}

// StoreEvent appends a record to the named stream, creating the stream if
// needed, and returns the new event id. If the store is at its global
// stream cap and the stream is new, the least-recently-active stream is
// evicted first.
func (s *Store) StoreEvent(streamID string, payload any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if _, ok := s.streams[streamID]; !ok {
		s.evictForAdmissionLocked()
		s.streams[streamID] = &stream{
			id:   streamID,
			meta: Metadata{CreatedAt: now, LastActivity: now},
		}
	}

	st := s.streams[streamID]
	ev := &Event{
		ID:        ulid.Make().String(),
		StreamID:  streamID,
		Payload:   payload,
		Timestamp: now,
	}

	// Capacity eviction removes the oldest record and its index entry in
	// the same critical section, so the index never dangles.
	if len(st.events) == s.maxEventsPerStream {
		oldest := st.events[0]
		delete(s.index, oldest.ID)
		copy(st.events, st.events[1:])
		st.events = st.events[:len(st.events)-1]
	}

	st.events = append(st.events, ev)
	s.index[ev.ID] = ev
	st.meta.LastActivity = now
	st.meta.EventCount++

	s.log.Debug().Str("eventID", ev.ID).Str("streamID", streamID).Msg("stored event")
	return ev.ID
}

// GetEvent looks up a single record by id.
func (s *Store) GetEvent(eventID string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[eventID]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}

// StreamEvents returns up to limit most recent records of a stream in
// insertion order. A non-positive limit returns all records. An unknown
// stream returns an empty slice.
func (s *Store) StreamEvents(streamID string, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[streamID]
	if !ok {
		return nil
	}

	events := st.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = *ev
	}
	return out
}

// ReplayAfter invokes emit once per record stored after lastEventID in its
// owning stream, strictly in insertion order, and returns the id of the
// last record emitted. An unknown cursor is a recoverable client resync
// failure: it logs a warning and returns ("", false) without calling emit.
// Emission stops at the first emit error.
func (s *Store) ReplayAfter(lastEventID string, emit func(Event) error) (string, bool) {
	s.mu.Lock()

	last, ok := s.index[lastEventID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("eventID", lastEventID).Msg("replay cursor not found")
		return "", false
	}

	st := s.streams[last.StreamID]
	var pending []Event
	for i, ev := range st.events {
		if ev.ID == lastEventID {
			for _, rest := range st.events[i+1:] {
				pending = append(pending, *rest)
			}
			break
		}
	}
	s.mu.Unlock()

	// Emit outside the lock; the snapshot preserves order and the callback
	// may write to a network connection.
	lastEmitted := ""
	for _, ev := range pending {
		if err := emit(ev); err != nil {
			s.log.Warn().Err(err).Str("eventID", ev.ID).Msg("replay emit failed")
			break
		}
		lastEmitted = ev.ID
	}

	if lastEmitted == "" {
		return "", false
	}
	return lastEmitted, true
}

// CreateStream registers a stream with no events yet. An empty id mints
// one. Colliding with a live stream returns ErrStreamExists.
func (s *Store) CreateStream(streamID string, extra map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if streamID == "" {
		streamID = ulid.Make().String()
	}
	if _, ok := s.streams[streamID]; ok {
		return "", ErrStreamExists
	}

	s.evictForAdmissionLocked()

	now := s.now()
	s.streams[streamID] = &stream{
		id:   streamID,
		meta: Metadata{CreatedAt: now, LastActivity: now, Extra: extra},
	}
	s.log.Info().Str("streamID", streamID).Msg("created stream")
	return streamID, nil
}

// RemoveStream deletes a stream and purges its records from the global
// index. Returns false if the stream does not exist.
func (s *Store) RemoveStream(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeStreamLocked(streamID)
}

// PruneIdle removes every stream whose last activity is older than maxAge
// and returns the number removed. The caller decides cadence; the store
// never schedules sweeps itself.
func (s *Store) PruneIdle(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	var stale []string
	for id, st := range s.streams {
		if st.meta.LastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		s.removeStreamLocked(id)
	}
	if len(stale) > 0 {
		s.log.Info().Int("count", len(stale)).Msg("pruned idle streams")
	}
	return len(stale)
}

// UpdateStreamMetadata merges extra metadata into a stream and refreshes
// its last activity. Returns false if the stream does not exist.
func (s *Store) UpdateStreamMetadata(streamID string, extra map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[streamID]
	if !ok {
		return false
	}
	if st.meta.Extra == nil {
		st.meta.Extra = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		st.meta.Extra[k] = v
	}
	st.meta.LastActivity = s.now()
	return true
}

// StreamMetadata returns a stream's metadata.
func (s *Store) StreamMetadata(streamID string) (Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[streamID]
	if !ok {
		return Metadata{}, false
	}
	return st.meta, true
}

// ListStreams returns the ids of all live streams.
func (s *Store) ListStreams() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns occupancy counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, st := range s.streams {
		total += len(st.events)
	}
	return Stats{
		StreamCount:        len(s.streams),
		TotalEvents:        total,
		MaxEventsPerStream: s.maxEventsPerStream,
		MaxStreams:         s.maxStreams,
		IndexSize:          len(s.index),
	}
}

// evictForAdmissionLocked makes room for one new stream when the store is
// at its global cap, evicting the least-recently-active stream.
func (s *Store) evictForAdmissionLocked() {
	if len(s.streams) < s.maxStreams {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, st := range s.streams {
		if oldestID == "" || st.meta.LastActivity.Before(oldest) {
			oldestID = id
			oldest = st.meta.LastActivity
		}
	}
	s.removeStreamLocked(oldestID)
}

func (s *Store) removeStreamLocked(streamID string) bool {
	st, ok := s.streams[streamID]
	if !ok {
		return false
	}
	for _, ev := range st.events {
		delete(s.index, ev.ID)
	}
	delete(s.streams, streamID)
	s.log.Info().Str("streamID", streamID).Int("events", len(st.events)).Msg("removed stream")
	return true
}
