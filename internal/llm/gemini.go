package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ModelConfig defines configuration for a Gemini model.
type ModelConfig struct {
	Name        string
	Temperature float32
	TopP        float32
	TopK        int32
}

// AvailableModels defines the available Gemini models and their configurations.
// Temperature is pinned to zero: query writing should be repeatable.
var AvailableModels = map[string]ModelConfig{
	"flash": {
		Name:        "gemini-flash-latest",
		Temperature: 0,
		TopP:        0.95,
		TopK:        40,
	},
	"pro": {
		Name:        "gemini-pro-latest",
		Temperature: 0,
		TopP:        0.95,
		TopK:        40,
	},
	"flash-2": {
		Name:        "gemini-2.0-flash",
		Temperature: 0,
		TopP:        0.95,
		TopK:        40,
	},
}

// ResolveModel returns the configuration for a model key. Unknown keys are
// treated as literal model names with the "pro" sampling settings.
func ResolveModel(key string) ModelConfig {
	if key == "" {
		key = "pro"
	}
	if cfg, ok := AvailableModels[key]; ok {
		return cfg
	}
	cfg := AvailableModels["pro"]
	cfg.Name = key
	return cfg
}

// GeminiGenerator implements TextGenerator with Google's Gemini models.
type GeminiGenerator struct {
	client *genai.Client
	config ModelConfig
}

// NewGeminiGenerator creates a Gemini client for the given model key.
func NewGeminiGenerator(ctx context.Context, apiKey, modelKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{
		client: client,
		config: ResolveModel(modelKey),
	}, nil
}

// Name returns the provider and model name.
func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.config.Name
}

// getModel returns a configured GenerativeModel instance.
func (g *GeminiGenerator) getModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.config.Name)
	model.SetTemperature(g.config.Temperature)
	model.SetTopP(g.config.TopP)
	model.SetTopK(g.config.TopK)
	return model
}

// Complete sends the prompt and joins the text parts of the first candidate.
func (g *GeminiGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.getModel().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini: %w", ErrEmptyCompletion)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
