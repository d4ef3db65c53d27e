package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/tools"
)

// NewAnthropicClient returns a client using API key from the env.
func NewAnthropicClient() *anthropic.Client {
	c := anthropic.NewClient()
	return &c
}

const DefaultAnthropicModel = anthropic.ModelClaude3_7SonnetLatest

// Anthropic talks to the Anthropic Messages API with the same request and
// response model as Bedrock.
type Anthropic struct {
	Client *anthropic.Client
	Model  anthropic.Model
}

func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultAnthropicModel
	}
	return &Anthropic{Client: client, Model: m}
}

func (a *Anthropic) Converse(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	msgs, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:       a.Model,
		MaxTokens:   int64(req.Inference.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(req.Inference.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
		params.ToolChoice = toAnthropicToolChoice(req.ToolChoice)
	}

	start := time.Now()
	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, &TransportError{Op: "anthropic messages", Err: err}
	}
	resp, err := decodeAnthropicMessage(msg)
	if err != nil {
		return nil, err
	}
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

func toAnthropicTools(specs []tools.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, t := range specs {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: toAnthropicSchema(t.InputSchema),
		}})
	}
	return out
}

// toAnthropicSchema carries the whole schema: properties and required map to
// their fields, every other keyword rides along in ExtraFields.
func toAnthropicSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	p := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	for k, v := range schema {
		switch k {
		case "type":
			// always "object"
		case "properties":
			p.Properties = v
		case "required":
			p.Required = stringList(v)
		default:
			if p.ExtraFields == nil {
				p.ExtraFields = map[string]any{}
			}
			p.ExtraFields[k] = v
		}
	}
	return p
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toAnthropicToolChoice(c ToolChoice) anthropic.ToolChoiceUnionParam {
	switch c.Kind {
	case ChoiceAny:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ChoiceTool:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: c.Name}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

func toAnthropicMessages(msgs []conversation.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for i, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch {
			case b.Text != nil:
				blocks = append(blocks, anthropic.NewTextBlock(*b.Text))
			case b.ToolUse != nil:
				input, err := decodeJSONValue(b.ToolUse.Input)
				if err != nil {
					return nil, fmt.Errorf("message %d: tool use %s input: %w", i, b.ToolUse.ID, err)
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    b.ToolUse.ID,
					Name:  b.ToolUse.Name,
					Input: input,
				}})
			case b.ToolResult != nil:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResult.ToolUseID, flattenResult(b.ToolResult.Content), b.ToolResult.IsError()))
			}
		}
		if m.Role == conversation.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

// flattenResult renders tool result content as one string; JSON parts are kept verbatim.
func flattenResult(content []conversation.ToolResultContent) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if c.Text != nil {
			parts = append(parts, *c.Text)
		} else {
			parts = append(parts, string(c.JSON))
		}
	}
	return strings.Join(parts, "\n")
}

func decodeAnthropicMessage(msg *anthropic.Message) (*Response, error) {
	if msg == nil {
		return nil, &DecodeError{Reason: "nil message"}
	}
	out := conversation.Message{Role: conversation.RoleAssistant}
	for i, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content = append(out.Content, conversation.TextBlock(v.Text))
		case anthropic.ToolUseBlock:
			input := json.RawMessage(v.JSON.Input.Raw())
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			out.Content = append(out.Content, conversation.ToolUse(v.ID, v.Name, input))
		default:
			return nil, &DecodeError{Reason: fmt.Sprintf("block %d: unsupported content block %T", i, v)}
		}
	}
	if len(out.Content) == 0 {
		out.Content = []conversation.ContentBlock{conversation.TextBlock("")}
	}
	return &Response{
		StopReason: StopReason(msg.StopReason),
		Message:    out,
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
			TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}, nil
}
