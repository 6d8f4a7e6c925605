package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupyter-rtc/collab-mcp/internal/event"
)

// sseFrame is one parsed event from a test stream.
type sseFrame struct {
	ID    string
	Event string
	Data  string
}

// readFrame consumes lines up to the next blank separator, skipping
// comment-only heartbeats unless wantHeartbeat is set, in which case a
// heartbeat is returned with Event ":".
func readFrame(t *testing.T, reader *bufio.Reader, wantHeartbeat bool) sseFrame {
	t.Helper()

	var f sseFrame
	seen := false
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "":
			if seen {
				return f
			}
		case strings.HasPrefix(line, ": "):
			if wantHeartbeat {
				return sseFrame{Event: ":", Data: strings.TrimPrefix(line, ": ")}
			}
		case strings.HasPrefix(line, "id: "):
			f.ID = strings.TrimPrefix(line, "id: ")
			seen = true
		case strings.HasPrefix(line, "event: "):
			f.Event = strings.TrimPrefix(line, "event: ")
			seen = true
		case strings.HasPrefix(line, "data: "):
			f.Data = strings.TrimPrefix(line, "data: ")
			seen = true
		}
	}
}

// openStream issues a GET against a live test server and returns the
// response plus a line reader over its body.
func openStream(t *testing.T, ts *httptest.Server, headers map[string]string) (*http.Response, *bufio.Reader) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp, bufio.NewReader(resp.Body)
}

func TestStreamSendsSessionInfoFirst(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp, reader := openStream(t, ts, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	sessionID := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, sessionID)

	f := readFrame(t, reader, false)
	assert.Equal(t, "session_info", f.Event)
	assert.Empty(t, f.ID)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.Data), &info))
	assert.Equal(t, sessionID, info["session_id"])
	assert.Equal(t, "active", info["status"])
}

func TestStreamHeartbeat(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) { cfg.HeartbeatInterval = 20 * time.Millisecond })
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	_, reader := openStream(t, ts, nil)

	readFrame(t, reader, false) // session_info

	f := readFrame(t, reader, true)
	assert.Equal(t, ":", f.Event)
	assert.Equal(t, "heartbeat", f.Data)
}

func TestStreamReplaysAfterCursor(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	// Seed the session's stream with an exchange the client half-missed.
	sess := srv.sessions.GetOrCreate("resume-me")
	id1 := srv.events.StoreEvent(sess.ID, map[string]any{"seq": 1})
	id2 := srv.events.StoreEvent(sess.ID, map[string]any{"seq": 2})
	id3 := srv.events.StoreEvent(sess.ID, map[string]any{"seq": 3})

	_, reader := openStream(t, ts, map[string]string{
		SessionHeader:   sess.ID,
		"Last-Event-ID": id1,
	})

	f := readFrame(t, reader, false)
	assert.Equal(t, "message", f.Event)
	assert.Equal(t, id2, f.ID)
	assert.Contains(t, f.Data, `"seq":2`)

	f = readFrame(t, reader, false)
	assert.Equal(t, id3, f.ID)
	assert.Contains(t, f.Data, `"seq":3`)

	// Live stream resumes with session_info after the replayed backlog.
	f = readFrame(t, reader, false)
	assert.Equal(t, "session_info", f.Event)
}

func TestStreamUnknownCursorEmitsNothing(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	_, reader := openStream(t, ts, map[string]string{"Last-Event-ID": "no-such-event"})

	// The stream skips replay entirely and goes straight to session_info.
	f := readFrame(t, reader, false)
	assert.Equal(t, "session_info", f.Event)
}

func TestPostResponseDeliveredOverStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp, reader := openStream(t, ts, nil)
	sessionID := resp.Header.Get(SessionHeader)
	readFrame(t, reader, false) // session_info

	body := `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"list_notebooks","arguments":{}}}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, sessionID)

	post, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusOK, post.StatusCode)

	f := readFrame(t, reader, false)
	assert.Equal(t, "tool_result", f.Event)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.Data), &envelope))
	assert.Equal(t, float64(9), envelope["id"])
	assert.Contains(t, envelope, "result")
}

func TestBusEventsBroadcastToStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	_, reader := openStream(t, ts, nil)
	readFrame(t, reader, false) // session_info

	srv.bus.Publish(event.Event{
		Type: event.DocumentUpdated,
		Data: event.DocumentUpdatedData{Path: "doc.md", Version: 2},
	})

	f := readFrame(t, reader, false)
	assert.Equal(t, string(event.DocumentUpdated), f.Event)
	assert.NotEmpty(t, f.ID, "broadcast frames carry an event-log id")
	assert.Contains(t, f.Data, `"doc.md"`)

	// The broadcast was also recorded for replay.
	events := srv.events.StreamEvents("broadcast", 0)
	require.Len(t, events, 1)
}

func TestEndingSessionClosesStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp, reader := openStream(t, ts, nil)
	sessionID := resp.Header.Get(SessionHeader)
	readFrame(t, reader, false) // session_info

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, sessionID)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)

	// The server side tears the channel down; the body reaches EOF.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after session end")
	}
}
