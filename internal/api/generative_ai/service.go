package generativeAI

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// LLMClient is the completion capability consumed by the pipeline. Callers
// must treat any output that fails to parse into the expected structure as a
// failure, never as data.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIClient wraps the Gemini API behind LLMClient.
type AIClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ LLMClient = (*AIClient)(nil)

func NewAIClient(ctx context.Context, model string, temperature float64) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &AIClient{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// Generate runs a single completion and returns the raw text. The response
// is requested as JSON; parsing stays with the caller so a malformed body
// surfaces as a parse failure there rather than silently-wrong data here.
func (ai *AIClient) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(ai.temperature),
		ResponseMIMEType: "application/json",
	}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	var txt string
	for _, candidate := range result.Candidates {
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			txt = candidate.Content.Parts[0].Text
			break
		}
	}
	if txt == "" {
		return "", fmt.Errorf("no valid content from AI")
	}
	return txt, nil
}
