package gateway

import (
	"fmt"
)

// TransportError wraps a failed remote call (network, auth, throttling, API
// rejection). The cause is kept for errors.As.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response shape this package does not understand.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "decode converse response: " + e.Reason }

// GuardrailBlockedError is returned when the input guardrail intervened. No
// model call has been made.
type GuardrailBlockedError struct {
	GuardrailID string
	Assessments string // JSON, for diagnostics
}

func (e *GuardrailBlockedError) Error() string {
	return fmt.Sprintf("guardrail %s blocked the input", e.GuardrailID)
}
