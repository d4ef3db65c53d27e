package runner

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/internal/gateway"
	"github.com/petasbytes/converse-router/internal/metrics"
	"github.com/petasbytes/converse-router/internal/telemetry"
	"github.com/petasbytes/converse-router/tools"
)

type stage int

const (
	awaitFirstResponse stage = iota
	awaitToolResultResponse
	done
)

func (s stage) String() string {
	switch s {
	case awaitFirstResponse:
		return "await_first_response"
	case awaitToolResultResponse:
		return "await_tool_result_response"
	default:
		return "done"
	}
}

// Result is the outcome of one Run.
type Result struct {
	Text         string
	Calls        int    // remote converse calls made
	ToolUsed     string // empty when the model answered directly
	Conversation []conversation.Message
	Usage        metrics.Tally
}

// Router drives one user query through at most two converse rounds.
type Router struct {
	gw         gateway.Gateway
	registry   *tools.Registry
	dispatcher *Dispatcher

	system    string
	guardrail gateway.Guardrail
	choice    gateway.ToolChoice
	inference gateway.Inference
	logger    *log.Logger
}

type Option func(*Router)

func WithSystem(prompt string) Option { return func(r *Router) { r.system = prompt } }

// WithGuardrail checks every query before the first model call.
func WithGuardrail(g gateway.Guardrail) Option { return func(r *Router) { r.guardrail = g } }

func WithToolChoice(c gateway.ToolChoice) Option { return func(r *Router) { r.choice = c } }

func WithInference(inf gateway.Inference) Option { return func(r *Router) { r.inference = inf } }

func WithLogger(l *log.Logger) Option { return func(r *Router) { r.logger = l } }

func New(gw gateway.Gateway, reg *tools.Registry, opts ...Option) *Router {
	r := &Router{
		gw:         gw,
		registry:   reg,
		dispatcher: NewDispatcher(reg),
		choice:     gateway.Auto(),
		inference:  gateway.Inference{Temperature: 0, MaxTokens: 4096},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run answers query. A tool_use reply is served once; the model's next reply
// must end the turn, so there are never more than two converse calls.
func (r *Router) Run(ctx context.Context, query string) (*Result, error) {
	if r.choice.Kind == gateway.ChoiceTool && !r.registry.Has(r.choice.Name) {
		return nil, fmt.Errorf("%w: forced tool %q is not registered", gateway.ErrInvalidRequest, r.choice.Name)
	}
	ctx, turnID := telemetry.EnsureTurnID(ctx)
	telemetry.EmitLocalFeatures(ctx, query)

	if r.guardrail != nil {
		if err := r.checkGuardrail(ctx, turnID, query); err != nil {
			return nil, err
		}
	}

	var conv conversation.State
	if err := conv.Append(conversation.UserText(query)); err != nil {
		return nil, err
	}

	res := &Result{}
	choice := r.choice
	for st := awaitFirstResponse; st != done; {
		resp, err := r.converse(ctx, turnID, &conv, choice, res)
		if err != nil {
			return nil, err
		}
		r.logger.Printf("[router] %s: stop_reason=%s", st, resp.StopReason)

		switch st {
		case awaitFirstResponse:
			switch resp.StopReason {
			case gateway.StopEndTurn:
				if err := conv.Append(resp.Message); err != nil {
					return nil, fmt.Errorf("append assistant reply: %w", err)
				}
				res.Text = resp.Message.Text()
				st = done
			case gateway.StopToolUse:
				uses := resp.Message.ToolUses()
				if len(uses) != 1 {
					return nil, fmt.Errorf("%w: got %d tool_use blocks, want 1", ErrUnsupportedToolUse, len(uses))
				}
				if err := conv.Append(resp.Message); err != nil {
					return nil, fmt.Errorf("append tool request: %w", err)
				}
				r.logger.Printf("[router] dispatching %s (%s)", uses[0].Name, uses[0].ID)
				if err := conv.Append(r.dispatcher.Dispatch(ctx, uses[0])); err != nil {
					return nil, fmt.Errorf("append tool result: %w", err)
				}
				res.ToolUsed = uses[0].Name
				// A forced choice would make the model call a tool again.
				choice = gateway.Auto()
				st = awaitToolResultResponse
			default:
				return nil, &UnhandledStopReasonError{Round: res.Calls, Response: resp}
			}
		case awaitToolResultResponse:
			if resp.StopReason != gateway.StopEndTurn {
				return nil, &UnhandledStopReasonError{Round: res.Calls, Response: resp}
			}
			if err := conv.Append(resp.Message); err != nil {
				return nil, fmt.Errorf("append final reply: %w", err)
			}
			res.Text = resp.Message.Text()
			st = done
		}
	}

	if err := conv.Validate(); err != nil {
		return nil, err
	}
	res.Conversation = conv.Messages()

	fields := res.Usage.Fields()
	fields["turn_id"] = turnID
	fields["tool_used"] = res.ToolUsed
	telemetry.Emit("run_completed", fields)
	return res, nil
}

func (r *Router) checkGuardrail(ctx context.Context, turnID, query string) error {
	gr, err := r.guardrail.Check(ctx, query)
	if err != nil {
		return err
	}
	telemetry.Emit("guardrail_checked", map[string]any{
		"turn_id":    turnID,
		"action":     gr.Action,
		"intervened": gr.Intervened,
	})
	if !gr.Intervened {
		return nil
	}
	r.logger.Printf("[router] guardrail %s intervened", gr.GuardrailID)
	return &gateway.GuardrailBlockedError{GuardrailID: gr.GuardrailID, Assessments: gr.Assessments}
}

func (r *Router) converse(ctx context.Context, turnID string, conv *conversation.State, choice gateway.ToolChoice, res *Result) (*gateway.Response, error) {
	req := gateway.Request{
		System:     r.system,
		Messages:   conv.Messages(),
		Tools:      r.registry.Describe(),
		ToolChoice: choice,
		Inference:  r.inference,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res.Calls++
	resp, err := r.gw.Converse(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens, resp.LatencyMs)
	telemetry.Emit("converse_round", map[string]any{
		"turn_id":       turnID,
		"round":         res.Calls,
		"stop_reason":   string(resp.StopReason),
		"tool_choice":   choice.String(),
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"latency_ms":    resp.LatencyMs,
	})
	return resp, nil
}
