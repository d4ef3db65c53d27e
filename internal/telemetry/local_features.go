package telemetry

import (
	"context"

	"github.com/petasbytes/converse-router/internal/metrics"
)

// EmitLocalFeatures records size features of the user query, never the text.
func EmitLocalFeatures(ctx context.Context, user string) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	f := metrics.QueryFeatures(user)
	Emit("local_features", map[string]any{
		"turn_id":          turnID,
		"features_version": "2",
		"user": map[string]any{
			"bytes":     f.Bytes,
			"runes":     f.Runes,
			"words":     f.Words,
			"lines":     f.Lines,
			"questions": f.Questions,
			"digits":    f.Digits,
		},
	})
}
