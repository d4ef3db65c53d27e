package telemetry

import (
	"os"
)

const defaultArtifactsDir = ".router"

var observeEnabled bool

func init() {
	// Read once at process start; ObserveEnabled still honours a later explicit "1".
	observeEnabled = os.Getenv("ROUTER_OBSERVE_JSON") == "1"
}

// ObserveEnabled reports whether JSONL emission is on.
func ObserveEnabled() bool {
	if os.Getenv("ROUTER_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// ArtifactsDir is where events.jsonl is written (ROUTER_ARTIFACTS_DIR, default .router).
func ArtifactsDir() string {
	if v := os.Getenv("ROUTER_ARTIFACTS_DIR"); v != "" {
		return v
	}
	return defaultArtifactsDir
}
