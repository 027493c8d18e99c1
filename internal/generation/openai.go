package generation

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

var reflectionSchema = generateSchema[reflection]()

// OpenAI completes prompts with the Responses API and structured output.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend.
func NewOpenAI(apiKey, model string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai generation: API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	params := responses.ResponseNewParams{
		Model:       o.model,
		Temperature: openai.Float(temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "Reflection",
					Schema:      reflectionSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("A framing statement and one reflective question"),
					Type:        "json_schema",
				},
			},
		},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(maxTokens))
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses: %w", err)
	}
	return decodeReflection(resp.OutputText())
}
