// Package protocol defines the JSON-RPC 2.0 envelope used by the MCP
// transport, along with the error taxonomy surfaced to clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the MCP protocol version this server speaks.
const Version = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an inbound JSON-RPC 2.0 request or notification.
// A nil ID marks a notification: no response envelope is ever produced
// for it, not even on failure.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
// JSON `null` counts as absent, matching the wire contract.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// CallParams are the params of a tools/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response is an outbound JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the error member of a JSON-RPC response.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResult builds a success envelope correlated to the given id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewError builds an error envelope correlated to the given id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ErrorDetail{Code: code, Message: message},
	}
}

// Error is a protocol-level failure carrying a JSON-RPC error code.
// The transport adapter translates it into an error envelope; everything
// else that escapes dispatch becomes CodeInternalError.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// InvalidParams returns an InvalidParams-class error.
func InvalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// MethodNotFound returns a MethodNotFound-class error.
func MethodNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal returns an InternalError-class error.
func Internal(format string, args ...any) *Error {
	return &Error{Code: CodeInternalError, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a *Error from err, wrapping unexpected failures as
// internal errors so nothing escapes the transport without a code.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
