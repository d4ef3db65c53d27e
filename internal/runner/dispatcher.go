package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/internal/telemetry"
	"github.com/petasbytes/converse-router/tools"
)

// Dispatcher turns a model tool_use request into the user message carrying
// its result.
type Dispatcher struct {
	Registry *tools.Registry
}

func NewDispatcher(reg *tools.Registry) *Dispatcher {
	return &Dispatcher{Registry: reg}
}

// Dispatch runs the requested tool and wraps the outcome in a role=user
// message with exactly one tool result for use.ID. Failures are reported to
// the model as error content; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, use conversation.ToolUseBlock) conversation.Message {
	turnID, _ := telemetry.TurnIDFromContext(ctx)

	emit := func(durationMs int64, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   use.Name,
			"duration_ms": durationMs,
			"input_size":  len(use.Input),
			"output_size": outputSize,
			"turn_id":     turnID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}

	start := time.Now()
	out, err := d.Registry.Invoke(ctx, use.Name, use.Input)
	if err != nil {
		// Generic label only; the detailed message goes back to the model.
		emit(time.Since(start).Milliseconds(), 0, errorLabel(err))
		return conversation.ToolResultMessage(use.ID, []conversation.ToolResultContent{conversation.TextContent(err.Error())}, true)
	}
	emit(time.Since(start).Milliseconds(), len(out), "")
	return conversation.ToolResultMessage(use.ID, []conversation.ToolResultContent{resultContent(out)}, false)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return "tool not found"
	case errors.Is(err, tools.ErrInvalidArguments):
		return "invalid arguments"
	default:
		return "tool error"
	}
}

// resultContent sends JSON objects as structured content and anything else as text.
func resultContent(out string) conversation.ToolResultContent {
	trimmed := bytes.TrimSpace([]byte(out))
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return conversation.JSONContent(json.RawMessage(trimmed))
	}
	return conversation.TextContent(out)
}
