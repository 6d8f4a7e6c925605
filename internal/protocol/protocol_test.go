package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"with numeric id", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, false},
		{"with string id", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, false},
		{"without id", `{"jsonrpc":"2.0","method":"ping"}`, true},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.IsNotification())
		})
	}
}

func TestResponseEnvelopes(t *testing.T) {
	id := json.RawMessage(`42`)

	ok := NewResult(id, map[string]string{"status": "ok"})
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":42,"result":{"status":"ok"}}`, string(data))

	fail := NewError(id, CodeMethodNotFound, "no such method")
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":42,"error":{"code":-32601,"message":"no such method"}}`, string(data))
}

func TestAsError(t *testing.T) {
	perr := AsError(InvalidParams("path is required"))
	assert.Equal(t, CodeInvalidParams, perr.Code)

	wrapped := AsError(errors.New("disk on fire"))
	assert.Equal(t, CodeInternalError, wrapped.Code)
	assert.Equal(t, "disk on fire", wrapped.Message)
}

func TestCallParamsDecoding(t *testing.T) {
	var req Request
	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"get_document","arguments":{"path":"/a.md"}}}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	var params CallParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "get_document", params.Name)
	assert.Equal(t, "/a.md", params.Arguments["path"])
}
