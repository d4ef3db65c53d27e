// Package gateway sends a conversation to a hosted model and decodes the reply
// into typed content blocks.
//
// Backends:
//   - Bedrock: AWS Bedrock Converse API (plus the ApplyGuardrail pre-check).
//   - Anthropic: Anthropic Messages API.
//
// Both decode once at the boundary; unknown shapes fail with *DecodeError.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/tools"
)

type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)

type ToolChoiceKind int

const (
	ChoiceAuto ToolChoiceKind = iota
	ChoiceAny
	ChoiceTool
)

// ToolChoice tells the model whether it may, must, or must use a named tool.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string // set when Kind == ChoiceTool
}

func Auto() ToolChoice { return ToolChoice{Kind: ChoiceAuto} }

func Any() ToolChoice { return ToolChoice{Kind: ChoiceAny} }

func ForceTool(name string) ToolChoice { return ToolChoice{Kind: ChoiceTool, Name: name} }

func (c ToolChoice) String() string {
	switch c.Kind {
	case ChoiceAny:
		return "any"
	case ChoiceTool:
		return "tool:" + c.Name
	default:
		return "auto"
	}
}

// ParseToolChoice accepts "auto", "any" or "tool:<name>".
func ParseToolChoice(s string) (ToolChoice, error) {
	switch s {
	case "", "auto":
		return Auto(), nil
	case "any":
		return Any(), nil
	}
	if name, ok := strings.CutPrefix(s, "tool:"); ok && name != "" {
		return ForceTool(name), nil
	}
	return ToolChoice{}, fmt.Errorf("invalid tool choice %q (want auto, any or tool:<name>)", s)
}

type Inference struct {
	Temperature float64 // [0,1]
	MaxTokens   int     // > 0
}

type Request struct {
	System     string
	Messages   []conversation.Message
	Tools      []tools.ToolSpec
	ToolChoice ToolChoice
	Inference  Inference
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Response is one decoded converse round.
type Response struct {
	StopReason StopReason
	Message    conversation.Message
	Usage      Usage
	LatencyMs  int64
}

// Gateway performs one remote converse call. Implementations do not retry.
type Gateway interface {
	Converse(ctx context.Context, req Request) (*Response, error)
}

var ErrInvalidRequest = errors.New("invalid converse request")

// Validate checks the call preconditions before anything goes on the wire.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	if r.Messages[0].Role != conversation.RoleUser {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, conversation.ErrFirstNotUser)
	}
	if r.Inference.Temperature < 0 || r.Inference.Temperature > 1 {
		return fmt.Errorf("%w: temperature %v outside [0,1]", ErrInvalidRequest, r.Inference.Temperature)
	}
	if r.Inference.MaxTokens <= 0 || r.Inference.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("%w: maxTokens must be within [1,%d]", ErrInvalidRequest, math.MaxInt32)
	}
	if r.ToolChoice.Kind == ChoiceTool && r.ToolChoice.Name == "" {
		return fmt.Errorf("%w: forced tool choice without a name", ErrInvalidRequest)
	}
	return nil
}
