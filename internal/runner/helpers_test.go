package runner_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/internal/gateway"
	"github.com/petasbytes/converse-router/internal/search"
	"github.com/petasbytes/converse-router/tools"
)

// fakeGateway replays scripted responses and records every request.
type fakeGateway struct {
	replies  []*gateway.Response
	err      error
	requests []gateway.Request
}

func (f *fakeGateway) Converse(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.requests) > len(f.replies) {
		return nil, errors.New("fakeGateway: unexpected extra call")
	}
	return f.replies[len(f.requests)-1], nil
}

type fakeGuardrail struct {
	result *gateway.GuardrailResult
	err    error
	calls  int
}

func (f *fakeGuardrail) Check(ctx context.Context, text string) (*gateway.GuardrailResult, error) {
	f.calls++
	return f.result, f.err
}

func endTurn(text string) *gateway.Response {
	return &gateway.Response{
		StopReason: gateway.StopEndTurn,
		Message:    conversation.Message{Role: conversation.RoleAssistant, Content: []conversation.ContentBlock{conversation.TextBlock(text)}},
		Usage:      gateway.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		LatencyMs:  20,
	}
}

func toolUse(uses ...conversation.ContentBlock) *gateway.Response {
	return &gateway.Response{
		StopReason: gateway.StopToolUse,
		Message:    conversation.Message{Role: conversation.RoleAssistant, Content: uses},
		Usage:      gateway.Usage{InputTokens: 8, OutputTokens: 4, TotalTokens: 12},
		LatencyMs:  30,
	}
}

func registry(t *testing.T, webText string) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistryFrom(tools.Defaults(search.Static{Text: webText}, search.Static{Text: "wiki"})...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

// observe turns on telemetry into a fresh directory and returns its path.
func observe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ROUTER_ARTIFACTS_DIR", dir)
	t.Setenv("ROUTER_OBSERVE_JSON", "1")
	return dir
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()
	var out []map[string]any
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func eventsNamed(events []map[string]any, name string) []map[string]any {
	var out []map[string]any
	for _, e := range events {
		if e["event"] == name {
			out = append(out, e)
		}
	}
	return out
}
