package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/antoniostano/jarvis/internal/observability"
)

// OpenAIEngine completes through the Chat Completions API.
type OpenAIEngine struct {
	client      *openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewOpenAIEngine(apiKey, baseURL, model string) (*OpenAIEngine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required for the openai conversational engine")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(observability.HTTPClient(nil)),
		option.WithMaxRetries(1),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4"
	}
	client := openai.NewClient(opts...)
	return &OpenAIEngine{
		client:      &client,
		model:       model,
		maxTokens:   500,
		temperature: 0.7,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Complete(ctx context.Context, messages []Turn) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(e.model),
		MaxTokens:   openai.Int(e.maxTokens),
		Temperature: openai.Float(e.temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
