package tools

import (
	"encoding/json"

	"github.com/jupyter-rtc/collab-mcp/internal/rtc"
)

// Argument accessors. Presence of required arguments is enforced by the
// registry before the handler runs; these coerce JSON-decoded values and
// fall back to the default when the type does not match.

func argString(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func argMap(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

func cursorPosition(m map[string]any) rtc.CursorPosition {
	return rtc.CursorPosition{
		Line:   argInt(m, "line", 0),
		Column: argInt(m, "column", 0),
	}
}

func cursorSelection(m map[string]any) *rtc.CursorSelection {
	if m == nil {
		return nil
	}
	return &rtc.CursorSelection{
		Start: cursorPosition(argMap(m, "start")),
		End:   cursorPosition(argMap(m, "end")),
	}
}
