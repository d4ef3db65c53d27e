package runner

import (
	"errors"
	"fmt"

	"github.com/petasbytes/converse-router/internal/gateway"
)

// ErrUnsupportedToolUse is returned when a tool_use response does not carry
// exactly one tool_use block.
var ErrUnsupportedToolUse = errors.New("unsupported tool use")

// UnhandledStopReasonError carries the raw response the router could not act on.
type UnhandledStopReasonError struct {
	Round    int
	Response *gateway.Response
}

func (e *UnhandledStopReasonError) Error() string {
	return fmt.Sprintf("round %d: unhandled stop reason %q", e.Round, e.Response.StopReason)
}
