// Package session tracks MCP session lifecycles. Session ids arrive in the
// Mcp-Session-Id header and are trusted as-is; there is no cryptographic
// binding between a session and its caller. Hardening that is an explicit
// deployment decision, not something this registry does silently.
package session

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/logging"
)

// Status is a session lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is one logical client interaction lifetime spanning multiple
// HTTP requests.
type Session struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Emitter is the live output channel attached to a session, implemented by
// the transport's SSE writer. At most one emitter is attached at a time.
type Emitter interface {
	// SendEvent writes one event frame. eventID may be empty for frames
	// that should not advance the client's resume cursor.
	SendEvent(eventType string, data any, eventID string) error
	// Close tears the channel down; subsequent sends are no-ops.
	Close()
}

// Registry maps session ids to session records and live emitters.
// One Registry exists per server process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	emitters map[string]Emitter
	now      func() time.Time
	log      zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		emitters: make(map[string]Emitter),
		now:      time.Now,
		log:      logging.Component("session"),
	}
}

// GetOrCreate resolves a client-presented session id. An id naming an
// active session is reused. An empty id, or an id naming an ended session,
// mints a fresh session: ended ids are never reactivated.
func (r *Registry) GetOrCreate(presentedID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if presentedID != "" {
		if s, ok := r.sessions[presentedID]; ok && s.Status == StatusActive {
			return s
		}
	}

	id := presentedID
	if id == "" {
		id = ulid.Make().String()
	} else if _, taken := r.sessions[id]; taken {
		// Presented id belongs to an ended session; mint a new one.
		id = ulid.Make().String()
	}

	s := &Session{ID: id, Status: StatusActive, CreatedAt: r.now()}
	r.sessions[id] = s
	r.log.Info().Str("sessionID", id).Msg("session started")
	return s
}

// Get returns the session record for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// End marks a session ended and closes any attached emitter. Ending an
// unknown or already-ended session is a no-op.
func (r *Registry) End(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Status == StatusEnded {
		r.mu.Unlock()
		return
	}
	s.Status = StatusEnded
	s.EndedAt = r.now()
	emitter := r.emitters[id]
	delete(r.emitters, id)
	r.mu.Unlock()

	if emitter != nil {
		emitter.Close()
	}
	r.log.Info().Str("sessionID", id).Msg("session ended")
}

// EndAll terminates every active session, used at server shutdown.
func (r *Registry) EndAll() {
	for _, id := range r.ListActive() {
		r.End(id)
	}
}

// ListActive returns the ids of all active sessions.
func (r *Registry) ListActive() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// AttachEmitter binds a live output channel to an active session,
// replacing (and closing) any previous one. Attaching to an ended or
// unknown session closes the emitter immediately and reports false.
func (r *Registry) AttachEmitter(id string, e Emitter) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Status != StatusActive {
		r.mu.Unlock()
		e.Close()
		return false
	}
	prev := r.emitters[id]
	r.emitters[id] = e
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return true
}

// DetachEmitter removes the emitter bound to id if it is the given one.
// Called by the transport when a client disconnects, so a newer channel
// attached in the meantime is left alone.
func (r *Registry) DetachEmitter(id string, e Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emitters[id] == e {
		delete(r.emitters, id)
	}
}

// Emitter returns the live output channel bound to id.
func (r *Registry) Emitter(id string) (Emitter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.emitters[id]
	return e, ok
}

// Emitters returns every attached emitter keyed by session id, for
// broadcast delivery.
func (r *Registry) Emitters() map[string]Emitter {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Emitter, len(r.emitters))
	for id, e := range r.emitters {
		out[id] = e
	}
	return out
}
