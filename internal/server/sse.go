package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/eventlog"
	"github.com/jupyter-rtc/collab-mcp/internal/logging"
)

var errStreamClosed = errors.New("sse stream closed")

// frame is one pending SSE event. An empty id produces a frame without an
// id line, so it does not advance the client's resume cursor.
type frame struct {
	id        string
	eventType string
	data      any
}

// sseStream is the live output channel of one session. SendEvent may be
// called from any goroutine; a single write loop owns the response writer
// and interleaves frames with heartbeats until the request context or the
// session ends.
type sseStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	flusher http.Flusher

	frames    chan frame
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// newSSEStream wraps a response writer for SSE output.
func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseStream{
		w:       w,
		rc:      http.NewResponseController(w),
		flusher: flusher,
		frames:  make(chan frame, 32),
		done:    make(chan struct{}),
		log:     logging.Component("sse"),
	}, nil
}

// SendEvent queues one event frame. It blocks while the channel is full
// and fails once the stream is closed.
func (s *sseStream) SendEvent(eventType string, data any, eventID string) error {
	f := frame{id: eventID, eventType: eventType, data: data}
	select {
	case <-s.done:
		return errStreamClosed
	case s.frames <- f:
		return nil
	}
}

// Close tears the stream down. The write loop exits and queued frames are
// discarded; subsequent sends fail.
func (s *sseStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// serve runs the write loop until the client disconnects or the stream is
// closed, emitting a comment heartbeat on every idle interval.
func (s *sseStream) serve(ctx context.Context, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case f := <-s.frames:
			if err := s.writeFrame(f); err != nil {
				s.log.Debug().Err(err).Msg("sse write failed")
				return
			}
		case <-ticker.C:
			if err := s.writeHeartbeat(); err != nil {
				return
			}
		}
	}
}

// writeFrame emits `id:`/`event:`/`data:` lines followed by a blank line.
func (s *sseStream) writeFrame(f frame) error {
	payload, err := json.Marshal(f.data)
	if err != nil {
		return err
	}

	if f.id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", f.id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", f.eventType, payload); err != nil {
		return err
	}

	s.flush()
	return nil
}

// writeHeartbeat emits a comment-only frame carrying no id or event type.
func (s *sseStream) writeHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseStream) flush() {
	// ResponseController flushes through middleware wrappers; fall back to
	// the plain Flusher if it cannot.
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// handleStream establishes the SSE channel for a session: replay first
// when a resume cursor is presented, then the session_info event, then
// live events until disconnect.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.GetOrCreate(r.Header.Get(SessionHeader))

	if _, err := s.events.CreateStream(sess.ID, nil); err != nil && !errors.Is(err, eventlog.ErrStreamExists) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(SessionHeader, sess.ID)

	stream, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	stream.flush()

	if !s.sessions.AttachEmitter(sess.ID, stream) {
		return
	}
	defer s.sessions.DetachEmitter(sess.ID, stream)

	// Replay and session_info are written directly: the write loop is not
	// running yet, and live events arriving meanwhile queue up behind them.
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		_, _ = s.events.ReplayAfter(lastEventID, func(e eventlog.Event) error {
			return stream.writeFrame(frame{id: e.ID, eventType: "message", data: e.Payload})
		})
	}

	if err := stream.writeFrame(frame{eventType: "session_info", data: map[string]any{
		"session_id": sess.ID,
		"status":     string(sess.Status),
	}}); err != nil {
		return
	}

	stream.serve(r.Context(), s.config.HeartbeatInterval)
}
