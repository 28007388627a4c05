package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/antoniostano/jarvis/internal/observability"
)

// OpenAIWhisper transcribes through the hosted Whisper API.
type OpenAIWhisper struct {
	client *openai.Client
	model  string
}

// NewOpenAIWhisper builds the network engine. baseURL may point at any
// OpenAI-compatible transcription endpoint.
func NewOpenAIWhisper(apiKey, baseURL, model string) (*OpenAIWhisper, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required for openai recognition")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = observability.HTTPClient(nil)
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}
	return &OpenAIWhisper{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (w *OpenAIWhisper) Name() string { return "openai" }

func (w *OpenAIWhisper) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: strings.TrimSpace(language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
