package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jupyter-rtc/collab-mcp/internal/protocol"
	"github.com/jupyter-rtc/collab-mcp/internal/session"
)

// handleMessage processes one JSON-RPC exchange. Malformed bodies are
// rejected before dispatch; everything past parsing produces either a
// correlated envelope or, for notifications, an empty acknowledgement.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusBadRequest, "unsupported content type")
		return
	}

	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess := s.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, sess.ID)

	resp := s.dispatch(r.Context(), sess, &req)

	// Notifications never receive a response envelope, success or error.
	if req.IsNotification() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
		return
	}

	// Prefer the live SSE channel when one is attached; the HTTP body is
	// then just an acknowledgement.
	if emitter, ok := s.sessions.Emitter(sess.ID); ok {
		eventType := "mcp_response"
		if req.Method == "tools/call" {
			eventType = "tool_result"
		}
		if resp.Error != nil {
			eventType = "error"
		}
		if err := emitter.SendEvent(eventType, resp, ""); err == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// dispatch routes one parsed message. It returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Response {
	if req.Method == "tools/call" {
		return s.dispatchToolCall(ctx, sess, req)
	}

	// Non-tool messages are appended to the session's stream before they
	// are answered, so a resuming client sees the full exchange.
	s.events.StoreEvent(sess.ID, map[string]any{
		"type": "mcp_message",
		"data": req,
	})

	if req.IsNotification() {
		return nil
	}

	switch req.Method {
	case "initialize":
		return protocol.NewResult(req.ID, map[string]any{
			"protocolVersion": protocol.Version,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": true}},
			"serverInfo":      map[string]any{"name": "collab-mcp", "version": "0.1.0"},
		})
	case "tools/list":
		return protocol.NewResult(req.ID, map[string]any{"tools": s.tools.Tools()})
	case "ping":
		return protocol.NewResult(req.ID, map[string]any{})
	default:
		// Lenient default: unrecognized methods are acknowledged, not
		// rejected.
		s.log.Debug().Str("method", req.Method).Msg("unrecognized method")
		return protocol.NewResult(req.ID, map[string]any{"status": "ok"})
	}
}

// dispatchToolCall invokes one tool through the facade and records the
// exchange in the session's event stream.
func (s *Server) dispatchToolCall(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Response {
	fail := func(err error) *protocol.Response {
		if req.IsNotification() {
			// Notification failures are swallowed; the caller has no id
			// to correlate an error envelope with.
			s.log.Debug().Err(err).Msg("tool call notification failed")
			return nil
		}
		perr := protocol.AsError(err)
		return protocol.NewError(req.ID, perr.Code, perr.Message)
	}

	var params protocol.CallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail(protocol.InvalidParams("invalid tools/call params: %v", err))
		}
	}
	if params.Name == "" {
		return fail(protocol.InvalidParams("tool name is required"))
	}

	result, err := s.tools.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		return fail(err)
	}

	s.events.StoreEvent(sess.ID, map[string]any{
		"type":      "tool_call",
		"tool_name": params.Name,
		"arguments": params.Arguments,
		"result":    result,
	})

	if req.IsNotification() {
		return nil
	}
	return protocol.NewResult(req.ID, result)
}

// handleEndSession terminates the session named by the request header.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.sessions.End(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "Session ended"})
}
