package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/internal/runner"
	"github.com/petasbytes/converse-router/tools"
)

func newDispatcher(t *testing.T, defs ...tools.ToolDefinition) *runner.Dispatcher {
	t.Helper()
	reg, err := tools.NewRegistryFrom(defs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return runner.NewDispatcher(reg)
}

func echoTool(name string, out string, err error) tools.ToolDefinition {
	return tools.ToolDefinition{
		ToolSpec: tools.ToolSpec{Name: name, Description: "test tool", InputSchema: tools.SearchInputSchema},
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			return out, err
		},
	}
}

func TestDispatch_ResultShape(t *testing.T) {
	cases := []struct {
		name     string
		def      tools.ToolDefinition
		use      conversation.ToolUseBlock
		wantErr  bool
		wantJSON bool
	}{
		{
			name: "TextResult",
			def:  echoTool("t", "plain text", nil),
			use:  conversation.ToolUseBlock{ID: "a1", Name: "t", Input: json.RawMessage(`{"query":"x"}`)},
		},
		{
			name:     "JSONObjectResult",
			def:      echoTool("t", ` {"answer": 42} `, nil),
			use:      conversation.ToolUseBlock{ID: "a2", Name: "t", Input: json.RawMessage(`{"query":"x"}`)},
			wantJSON: true,
		},
		{
			name: "JSONArrayStaysText",
			def:  echoTool("t", `[1,2]`, nil),
			use:  conversation.ToolUseBlock{ID: "a3", Name: "t", Input: json.RawMessage(`{"query":"x"}`)},
		},
		{
			name:    "HandlerError",
			def:     echoTool("t", "", errors.New("boom")),
			use:     conversation.ToolUseBlock{ID: "a4", Name: "t", Input: json.RawMessage(`{"query":"x"}`)},
			wantErr: true,
		},
		{
			name:    "UnknownTool",
			def:     echoTool("t", "x", nil),
			use:     conversation.ToolUseBlock{ID: "a5", Name: "other", Input: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "SchemaViolation",
			def:     echoTool("t", "x", nil),
			use:     conversation.ToolUseBlock{ID: "a6", Name: "t", Input: json.RawMessage(`{"query":7}`)},
			wantErr: true,
		},
		{
			name:    "MalformedJSON",
			def:     echoTool("t", "x", nil),
			use:     conversation.ToolUseBlock{ID: "a7", Name: "t", Input: json.RawMessage(`{"query":`)},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := newDispatcher(t, tc.def).Dispatch(context.Background(), tc.use)
			if msg.Role != conversation.RoleUser {
				t.Fatalf("role: want user, got %s", msg.Role)
			}
			if err := msg.Validate(); err != nil {
				t.Fatalf("invalid message: %v", err)
			}
			if len(msg.Content) != 1 || msg.Content[0].ToolResult == nil {
				t.Fatalf("want exactly one tool result, got %+v", msg.Content)
			}
			tr := msg.Content[0].ToolResult
			if tr.ToolUseID != tc.use.ID {
				t.Fatalf("id: want %q, got %q", tc.use.ID, tr.ToolUseID)
			}
			if tr.IsError() != tc.wantErr {
				t.Fatalf("error status: want %v, got %v", tc.wantErr, tr.IsError())
			}
			if len(tr.Content) != 1 {
				t.Fatalf("want one content item, got %d", len(tr.Content))
			}
			if got := tr.Content[0].JSON != nil; got != tc.wantJSON {
				t.Fatalf("json content: want %v, got %v", tc.wantJSON, got)
			}
		})
	}
}

func TestDispatch_Telemetry_ErrorLabels(t *testing.T) {
	dir := observe(t)
	d := newDispatcher(t, echoTool("t", "", errors.New("__SECRET_ERR__")))

	d.Dispatch(context.Background(), conversation.ToolUseBlock{ID: "1", Name: "t", Input: json.RawMessage(`{"query":"x"}`)})
	d.Dispatch(context.Background(), conversation.ToolUseBlock{ID: "2", Name: "missing", Input: json.RawMessage(`{}`)})
	d.Dispatch(context.Background(), conversation.ToolUseBlock{ID: "3", Name: "t", Input: json.RawMessage(`{}`)})

	execs := eventsNamed(readEvents(t, dir), "tool_exec")
	if len(execs) != 3 {
		t.Fatalf("want 3 tool_exec events, got %d", len(execs))
	}
	want := []string{"tool error", "tool not found", "invalid arguments"}
	for i, e := range execs {
		if e["error"] != want[i] {
			t.Errorf("event %d: error label want %q, got %v", i, want[i], e["error"])
		}
		if v, ok := e["output_size"].(float64); !ok || v != 0 {
			t.Errorf("event %d: output_size should be 0, got %v", i, e["output_size"])
		}
	}
}

func TestDispatch_Telemetry_Success(t *testing.T) {
	dir := observe(t)
	d := newDispatcher(t, echoTool("t", "hello", nil))
	d.Dispatch(context.Background(), conversation.ToolUseBlock{ID: "1", Name: "t", Input: json.RawMessage(`{"query":"x"}`)})

	execs := eventsNamed(readEvents(t, dir), "tool_exec")
	if len(execs) != 1 {
		t.Fatalf("want 1 tool_exec, got %d", len(execs))
	}
	e := execs[0]
	if e["tool_name"] != "t" || e["error"] != nil {
		t.Fatalf("unexpected event: %#v", e)
	}
	if v, ok := e["output_size"].(float64); !ok || v != 5 {
		t.Fatalf("output_size: want 5, got %v", e["output_size"])
	}
	if v, ok := e["input_size"].(float64); !ok || v != float64(len(`{"query":"x"}`)) {
		t.Fatalf("input_size: got %v", e["input_size"])
	}
}

func TestDispatch_Gating_Off_NoWrites(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROUTER_ARTIFACTS_DIR", dir)
	if os.Getenv("ROUTER_OBSERVE_JSON") == "1" {
		t.Skip("observation forced on by environment")
	}
	d := newDispatcher(t, echoTool("t", "hello", nil))
	d.Dispatch(context.Background(), conversation.ToolUseBlock{ID: "1", Name: "t", Input: json.RawMessage(`{"query":"x"}`)})

	if _, err := os.Stat(filepath.Join(dir, "events.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no events.jsonl when observation is off")
	}
}
