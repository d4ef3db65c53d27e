package tools

import (
	"context"
	"encoding/json"
)

// ToolSpec is the model-facing description of a tool.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema object
}

// Handler runs a tool with its raw JSON arguments. A result that is a JSON
// object is forwarded to the model as JSON, anything else as text.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// ToolDefinition pairs a spec with its handler.
type ToolDefinition struct {
	ToolSpec
	Function Handler
}
