package telemetry_test

import (
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/converse-router/internal/telemetry"
)

// enable turns emission on into a fresh artifacts dir.
func enable(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ROUTER_ARTIFACTS_DIR", dir)
	t.Setenv("ROUTER_OBSERVE_JSON", "1")
	return dir
}

func readLines(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("read events.jsonl: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmit_Gating(t *testing.T) {
	// Subprocess so the startup read of ROUTER_OBSERVE_JSON sees it off.
	tmpDir := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=TestEmitGatingProbe")
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"ROUTER_OBSERVE_JSON=0",
		"ROUTER_ARTIFACTS_DIR="+tmpDir,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("subprocess error: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "no_file=true") {
		t.Fatalf("expected no_file=true, got output:\n%s", out)
	}
}

func TestEmitGatingProbe(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	telemetry.Emit("converse_round", map[string]any{"round": 1})
	if _, err := os.Stat(filepath.Join(telemetry.ArtifactsDir(), "events.jsonl")); os.IsNotExist(err) {
		println("no_file=true")
	} else {
		println("no_file=false")
	}
}

func TestEmit_HappyPath(t *testing.T) {
	dir := enable(t)
	telemetry.Emit("converse_round", map[string]any{"stop_reason": "tool_use", "round": 1})

	lines := readLines(t, dir)
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d", len(lines))
	}
	ev := lines[0]
	if ev["event"] != "converse_round" || ev["stop_reason"] != "tool_use" || ev["round"] != float64(1) {
		t.Fatalf("unexpected event: %#v", ev)
	}
	ts, ok := ev["time"].(string)
	if !ok {
		t.Fatalf("time missing: %v", ev["time"])
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t.Fatalf("time not RFC3339Nano: %v", err)
	}
	if d := time.Since(parsed); d < 0 || d > time.Minute {
		t.Fatalf("time out of range: %s", ts)
	}
}

func TestEmit_AppendsInOrder(t *testing.T) {
	dir := enable(t)
	for _, name := range []string{"local_features", "converse_round", "tool_exec"} {
		telemetry.Emit(name, nil)
	}
	lines := readLines(t, dir)
	want := []string{"local_features", "converse_round", "tool_exec"}
	if len(lines) != len(want) {
		t.Fatalf("want %d lines, got %d", len(want), len(lines))
	}
	for i, ev := range lines {
		if ev["event"] != want[i] {
			t.Errorf("line %d: want %s, got %v", i, want[i], ev["event"])
		}
	}
}

func TestEmit_MapIsolation(t *testing.T) {
	enable(t)
	fields := map[string]any{"tool_name": "websearch"}
	telemetry.Emit("tool_exec", fields)
	if len(fields) != 1 {
		t.Fatalf("caller map mutated: %#v", fields)
	}
}

func TestEmit_MarshalError_NoFile(t *testing.T) {
	dir := enable(t)
	telemetry.Emit("bad", map[string]any{"x": math.NaN()})
	if _, err := os.Stat(filepath.Join(dir, "events.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no events file on marshal error, got err=%v", err)
	}
}

func TestEmit_ReadOnlyDir_NoPanic(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	parent := t.TempDir()
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })
	t.Setenv("ROUTER_ARTIFACTS_DIR", filepath.Join(parent, "artifacts"))
	t.Setenv("ROUTER_OBSERVE_JSON", "1")

	telemetry.Emit("converse_round", map[string]any{"round": 1})
}

func TestArtifactsDir_Default(t *testing.T) {
	t.Setenv("ROUTER_ARTIFACTS_DIR", "")
	if got := telemetry.ArtifactsDir(); got != ".router" {
		t.Fatalf("want .router, got %s", got)
	}
}
