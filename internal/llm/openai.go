package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator implements TextGenerator with OpenAI models via langchaingo.
type OpenAIGenerator struct {
	client *openai.LLM
	model  string
}

// NewOpenAIGenerator creates an OpenAI client. baseURL may be empty.
func NewOpenAIGenerator(apiKey, model, baseURL string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &OpenAIGenerator{client: client, model: model}, nil
}

// Name returns the provider and model name.
func (o *OpenAIGenerator) Name() string {
	return "openai/" + o.model
}

// Complete sends the prompt as a single-turn request at temperature zero.
func (o *OpenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o.client, prompt, llms.WithTemperature(0))
}
