package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/tools"
)

// DefaultBedrockModel is Claude 3 Haiku on Bedrock.
const DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// ConverseAPI is the slice of *bedrockruntime.Client used by Bedrock.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// NewBedrockClient loads the default AWS credential chain. An empty region
// falls back to the shared config / AWS_REGION.
func NewBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

// Bedrock talks to the Converse API.
type Bedrock struct {
	API     ConverseAPI
	ModelID string
}

func NewBedrock(api ConverseAPI, modelID string) *Bedrock {
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	return &Bedrock{API: api, ModelID: modelID}
}

func (b *Bedrock) Converse(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	in, err := b.converseInput(req)
	if err != nil {
		return nil, err
	}
	out, err := b.API.Converse(ctx, in)
	if err != nil {
		return nil, &TransportError{Op: "bedrock converse", Err: err}
	}
	return decodeConverseOutput(out)
}

func (b *Bedrock) converseInput(req Request) (*bedrockruntime.ConverseInput, error) {
	msgs, err := toBedrockMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(b.ModelID),
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(req.Inference.Temperature)),
			MaxTokens:   aws.Int32(int32(req.Inference.MaxTokens)),
		},
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if len(req.Tools) > 0 {
		in.ToolConfig = &types.ToolConfiguration{
			Tools:      toBedrockTools(req.Tools),
			ToolChoice: toBedrockToolChoice(req.ToolChoice),
		}
	}
	return in, nil
}

func toBedrockTools(specs []tools.ToolSpec) []types.Tool {
	out := make([]types.Tool, 0, len(specs))
	for _, s := range specs {
		schema := s.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(s.Name),
			Description: aws.String(s.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return out
}

func toBedrockToolChoice(c ToolChoice) types.ToolChoice {
	switch c.Kind {
	case ChoiceAny:
		return &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
	case ChoiceTool:
		return &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(c.Name)}}
	default:
		return &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
	}
}

func toBedrockMessages(msgs []conversation.Message) ([]types.Message, error) {
	out := make([]types.Message, 0, len(msgs))
	for i, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == conversation.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		blocks := make([]types.ContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			blk, err := toBedrockBlock(b)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			blocks = append(blocks, blk)
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, nil
}

func toBedrockBlock(b conversation.ContentBlock) (types.ContentBlock, error) {
	switch {
	case b.Text != nil:
		return &types.ContentBlockMemberText{Value: *b.Text}, nil
	case b.ToolUse != nil:
		input, err := decodeJSONValue(b.ToolUse.Input)
		if err != nil {
			return nil, fmt.Errorf("tool use %s input: %w", b.ToolUse.ID, err)
		}
		return &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: aws.String(b.ToolUse.ID),
			Name:      aws.String(b.ToolUse.Name),
			Input:     document.NewLazyDocument(input),
		}}, nil
	case b.ToolResult != nil:
		content := make([]types.ToolResultContentBlock, 0, len(b.ToolResult.Content))
		for _, c := range b.ToolResult.Content {
			if c.Text != nil {
				content = append(content, &types.ToolResultContentBlockMemberText{Value: *c.Text})
				continue
			}
			v, err := decodeJSONValue(c.JSON)
			if err != nil {
				return nil, fmt.Errorf("tool result %s: %w", b.ToolResult.ToolUseID, err)
			}
			content = append(content, &types.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(v)})
		}
		res := types.ToolResultBlock{ToolUseId: aws.String(b.ToolResult.ToolUseID), Content: content}
		if b.ToolResult.IsError() {
			res.Status = types.ToolResultStatusError
		}
		return &types.ContentBlockMemberToolResult{Value: res}, nil
	}
	return nil, fmt.Errorf("empty content block")
}

// decodeJSONValue turns raw JSON into a value for a lazy document. Empty input
// becomes an empty object. Number literals keep their precision.
func decodeJSONValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return exactNumbers(v), nil
}

// exactNumbers replaces json.Number leaves with types the document encoder
// writes without rounding: int64, uint64, *big.Int, or *big.Float for
// decimals too long for a float64.
func exactNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = exactNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = exactNumbers(e)
		}
		return t
	case json.Number:
		return numberValue(string(t))
	}
	return v
}

func numberValue(lit string) any {
	if !strings.ContainsAny(lit, ".eE") {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return u
		}
		if bi, ok := new(big.Int).SetString(lit, 10); ok {
			return bi
		}
	}
	if significantDigits(lit) <= 15 {
		if f, err := strconv.ParseFloat(lit, 64); err == nil {
			return f
		}
	}
	if bf, _, err := big.ParseFloat(lit, 10, 256, big.ToNearestEven); err == nil {
		return bf
	}
	return lit
}

func significantDigits(lit string) int {
	mant := lit
	if i := strings.IndexAny(mant, "eE"); i >= 0 {
		mant = mant[:i]
	}
	mant = strings.TrimLeft(strings.NewReplacer("-", "", ".", "").Replace(mant), "0")
	return len(mant)
}

func decodeConverseOutput(out *bedrockruntime.ConverseOutput) (*Response, error) {
	if out == nil {
		return nil, &DecodeError{Reason: "nil output"}
	}
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected output type %T", out.Output)}
	}
	msg := conversation.Message{Role: conversation.RoleAssistant}
	if msgOut.Value.Role != "" && msgOut.Value.Role != types.ConversationRoleAssistant {
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected role %q", msgOut.Value.Role)}
	}
	for i, c := range msgOut.Value.Content {
		switch v := c.(type) {
		case *types.ContentBlockMemberText:
			msg.Content = append(msg.Content, conversation.TextBlock(v.Value))
		case *types.ContentBlockMemberToolUse:
			input := json.RawMessage(`{}`)
			if v.Value.Input != nil {
				raw, err := v.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, &DecodeError{Reason: fmt.Sprintf("block %d: tool input: %v", i, err)}
				}
				input = raw
			}
			id, name := aws.ToString(v.Value.ToolUseId), aws.ToString(v.Value.Name)
			if id == "" || name == "" {
				return nil, &DecodeError{Reason: fmt.Sprintf("block %d: tool use without id or name", i)}
			}
			msg.Content = append(msg.Content, conversation.ToolUse(id, name, input))
		default:
			return nil, &DecodeError{Reason: fmt.Sprintf("block %d: unsupported content block %T", i, c)}
		}
	}
	if len(msg.Content) == 0 {
		// An empty assistant turn still has to be valid in the conversation.
		msg.Content = []conversation.ContentBlock{conversation.TextBlock("")}
	}

	resp := &Response{StopReason: StopReason(out.StopReason), Message: msg}
	if u := out.Usage; u != nil {
		resp.Usage = Usage{
			InputTokens:  int64(aws.ToInt32(u.InputTokens)),
			OutputTokens: int64(aws.ToInt32(u.OutputTokens)),
			TotalTokens:  int64(aws.ToInt32(u.TotalTokens)),
		}
	}
	if m := out.Metrics; m != nil {
		resp.LatencyMs = aws.ToInt64(m.LatencyMs)
	}
	return resp, nil
}
