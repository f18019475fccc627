package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI backs the Client contract with the real OpenAI Chat Completions
// and Embeddings APIs.
type OpenAI struct {
	client         openai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
}

// OpenAIConfig configures the real backing client.
type OpenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
}

// NewOpenAI constructs an OpenAI-backed Client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = openai.ChatModelGPT4oMini
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}
	return &OpenAI{
		client:         openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		dimensions:     dims,
	}
}

func (o *OpenAI) EmbeddingDimensions() int { return o.dimensions }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: o.embeddingModel,
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(resp.Data) == 0 {
		return nil, AsTransportError(errors.New("openai: empty embedding response"))
	}
	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = v
	}
	return vec, nil
}

func (o *OpenAI) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxOutputTokens))
	}
	if len(opts.JSONSchema) > 0 {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   opts.SchemaName,
					Schema: json.RawMessage(opts.JSONSchema),
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", AsTransportError(errors.New("openai: empty chat completion response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyErr marks network-shaped failures as retryable transport errors
// and leaves everything else (auth, bad request, deadline) as permanent, so
// the Retrying wrapper's one-retry policy only fires for transient network
// conditions.
func classifyErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return AsTransportError(err)
	}
	return fmt.Errorf("openai: %w", err)
}
