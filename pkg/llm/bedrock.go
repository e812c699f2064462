package llm

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockProvider calls Anthropic Claude models hosted on AWS Bedrock via
// the Bedrock Converse API, which exposes the same {system, messages}
// shape as the direct Anthropic API without a separate request format
// per model family.
type BedrockProvider struct {
	client *bedrockruntime.Client
	model  string
}

func NewBedrockProvider(client *bedrockruntime.Client, model string) *BedrockProvider {
	return &BedrockProvider{client: client, model: model}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	system, rest := splitSystemMessage(req.Messages)

	messages := make([]bedrocktypes.Message, 0, len(rest))
	for _, m := range rest {
		role := bedrocktypes.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = bedrocktypes.ConversationRoleAssistant
		}
		messages = append(messages, bedrocktypes.Message{
			Role:    role,
			Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: m.Content}},
		})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int32(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	temperature := float32(req.Temperature)

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
		},
	}
	if system != "" {
		input.System = []bedrocktypes.SystemContentBlock{&bedrocktypes.SystemContentBlockMemberText{Value: system}}
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return GenerateResponse{}, classifyBedrockError(p.Name(), req.CorrelationID, err)
	}

	msg, ok := out.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok {
		return GenerateResponse{}, newError(ErrorMalformed, p.Name(), req.CorrelationID, "unexpected converse output shape", nil)
	}

	var content string
	for _, block := range msg.Value.Content {
		if textBlock, ok := block.(*bedrocktypes.ContentBlockMemberText); ok {
			content += textBlock.Value
		}
	}
	if content == "" {
		return GenerateResponse{}, newError(ErrorMalformed, p.Name(), req.CorrelationID, "empty response content", nil)
	}

	usage := TokenUsage{}
	if out.Usage != nil {
		usage = TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}

	return GenerateResponse{Content: content, Usage: usage}, nil
}

func classifyBedrockError(provider, correlationID string, err error) error {
	var throttle *bedrocktypes.ThrottlingException
	if errors.As(err, &throttle) {
		return newHTTPStatusError(provider, correlationID, 429, err.Error(), err)
	}
	var serviceUnavailable *bedrocktypes.ServiceUnavailableException
	if errors.As(err, &serviceUnavailable) {
		return newHTTPStatusError(provider, correlationID, 503, err.Error(), err)
	}
	var validation *bedrocktypes.ValidationException
	if errors.As(err, &validation) {
		return newHTTPStatusError(provider, correlationID, 400, err.Error(), err)
	}
	return newError(ErrorRequestFailed, provider, correlationID, err.Error(), err)
}
