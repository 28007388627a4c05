package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/antoniostano/jarvis/internal/observability"
)

// GeminiEngine completes through the Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini conversational engine")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: observability.HTTPClient(nil),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiEngine{client: client, model: model}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) Complete(ctx context.Context, messages []Turn) (string, error) {
	temperature := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 500,
	}

	var contents []*genai.Content
	for _, m := range messages {
		part := []*genai.Part{{Text: m.Content}}
		switch m.Role {
		case RoleSystem:
			cfg.SystemInstruction = &genai.Content{Parts: part}
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: part})
		default:
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: part})
		}
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return "", err
	}
	return collectText(resp), nil
}

// collectText joins the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
