// Package tools is the dispatch facade between the MCP transport and the
// collaboration adapter. Each tool is a named Operation with declared
// metadata; the registry validates arguments and wraps results into MCP
// content blocks.
package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/jupyter-rtc/collab-mcp/internal/logging"
	"github.com/jupyter-rtc/collab-mcp/internal/protocol"
)

// Handler executes one tool call. The returned value is JSON-encoded into
// the result's text content block.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Operation binds a tool definition to its handler. Required lists the
// argument names that must be present before the handler runs.
type Operation struct {
	Tool     mcp.Tool
	Required []string
	Handler  Handler
}

// Registry is a flat name-to-operation table. It is populated once at
// startup and read-only afterwards, so calls need no locking.
type Registry struct {
	ops   map[string]Operation
	order []string
	log   zerolog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		ops: make(map[string]Operation),
		log: logging.Component("tools"),
	}
}

// Register adds an operation, replacing any previous one with the same name.
func (r *Registry) Register(op Operation) {
	name := op.Tool.Name
	if _, exists := r.ops[name]; !exists {
		r.order = append(r.order, name)
	}
	r.ops[name] = op
}

// Tools returns every registered tool definition in registration order.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.ops[name].Tool)
	}
	return out
}

// Call dispatches one tool invocation. Unknown names and missing required
// arguments are protocol errors; handler failures become error results so
// the client sees them as tool output rather than transport faults.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, protocol.MethodNotFound("unknown tool: %s", name)
	}

	if args == nil {
		args = map[string]any{}
	}
	for _, key := range op.Required {
		if _, present := args[key]; !present {
			return nil, protocol.InvalidParams("missing required argument: %s", key)
		}
	}

	result, err := op.Handler(ctx, args)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, err
		}
		r.log.Warn().Str("tool", name).Err(err).Msg("tool call failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, protocol.Internal("encoding %s result: %v", name, err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
