package metrics

// Tally accumulates token usage and latency across converse rounds of one run.
// The zero value is ready to use.
type Tally struct {
	Rounds       int
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	LatencyMs    int64
}

// Add records one round.
func (t *Tally) Add(input, output, total, latencyMs int64) {
	t.Rounds++
	t.InputTokens += input
	t.OutputTokens += output
	if total == 0 {
		total = input + output
	}
	t.TotalTokens += total
	t.LatencyMs += latencyMs
}

// Fields renders the tally for a telemetry event.
func (t Tally) Fields() map[string]any {
	return map[string]any{
		"rounds":        t.Rounds,
		"input_tokens":  t.InputTokens,
		"output_tokens": t.OutputTokens,
		"total_tokens":  t.TotalTokens,
		"latency_ms":    t.LatencyMs,
	}
}
