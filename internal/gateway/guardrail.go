package gateway

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const DefaultGuardrailVersion = "1"

// GuardrailResult is the outcome of an input check.
type GuardrailResult struct {
	GuardrailID string
	Intervened  bool
	Action      string
	Assessments string // JSON encoded assessments, empty when none
}

// Guardrail checks user input before it reaches the model.
type Guardrail interface {
	Check(ctx context.Context, text string) (*GuardrailResult, error)
}

// ApplyGuardrailAPI is the slice of *bedrockruntime.Client used by BedrockGuardrail.
type ApplyGuardrailAPI interface {
	ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
}

// BedrockGuardrail runs a Bedrock guardrail against INPUT content.
type BedrockGuardrail struct {
	API     ApplyGuardrailAPI
	ID      string
	Version string
}

func NewBedrockGuardrail(api ApplyGuardrailAPI, id, version string) *BedrockGuardrail {
	if version == "" {
		version = DefaultGuardrailVersion
	}
	return &BedrockGuardrail{API: api, ID: id, Version: version}
}

func (g *BedrockGuardrail) Check(ctx context.Context, text string) (*GuardrailResult, error) {
	out, err := g.API.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(g.ID),
		GuardrailVersion:    aws.String(g.Version),
		Source:              types.GuardrailContentSourceInput,
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{Value: types.GuardrailTextBlock{Text: aws.String(text)}},
		},
	})
	if err != nil {
		return nil, &TransportError{Op: "bedrock apply guardrail", Err: err}
	}
	res := &GuardrailResult{
		GuardrailID: g.ID,
		Action:      string(out.Action),
		Intervened:  out.Action == types.GuardrailActionGuardrailIntervened,
	}
	if len(out.Assessments) > 0 {
		if b, err := json.Marshal(out.Assessments); err == nil {
			res.Assessments = string(b)
		}
	}
	return res, nil
}
