package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petasbytes/converse-router/internal/gateway"
)

type fakeGuardrailAPI struct {
	in  *bedrockruntime.ApplyGuardrailInput
	out *bedrockruntime.ApplyGuardrailOutput
	err error
}

func (f *fakeGuardrailAPI) ApplyGuardrail(ctx context.Context, in *bedrockruntime.ApplyGuardrailInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestBedrockGuardrail_Intervened(t *testing.T) {
	fake := &fakeGuardrailAPI{out: &bedrockruntime.ApplyGuardrailOutput{
		Action:      types.GuardrailActionGuardrailIntervened,
		Assessments: []types.GuardrailAssessment{{}},
	}}
	g := gateway.NewBedrockGuardrail(fake, "453cg26ykbxy", "")
	res, err := g.Check(context.Background(), "bad input")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Intervened || res.Action != "GUARDRAIL_INTERVENED" || res.Assessments == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if aws.ToString(fake.in.GuardrailIdentifier) != "453cg26ykbxy" || aws.ToString(fake.in.GuardrailVersion) != "1" || fake.in.Source != types.GuardrailContentSourceInput {
		t.Fatalf("unexpected input: %+v", fake.in)
	}
	txt := fake.in.Content[0].(*types.GuardrailContentBlockMemberText).Value
	if aws.ToString(txt.Text) != "bad input" {
		t.Fatalf("content: %q", aws.ToString(txt.Text))
	}
}

func TestBedrockGuardrail_NoneAction(t *testing.T) {
	fake := &fakeGuardrailAPI{out: &bedrockruntime.ApplyGuardrailOutput{Action: types.GuardrailActionNone}}
	res, err := gateway.NewBedrockGuardrail(fake, "id", "2").Check(context.Background(), "fine")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Intervened || res.Assessments != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBedrockGuardrail_TransportError(t *testing.T) {
	fake := &fakeGuardrailAPI{err: errors.New("AccessDeniedException")}
	_, err := gateway.NewBedrockGuardrail(fake, "id", "1").Check(context.Background(), "x")
	var te *gateway.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
