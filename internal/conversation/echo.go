package conversation

import (
	"context"
	"strings"
)

// EchoEngine answers without any backend. It is used when no conversational
// API key is configured.
type EchoEngine struct{}

func (EchoEngine) Name() string { return "echo" }

func (EchoEngine) Complete(_ context.Context, messages []Turn) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyReply
	}
	last := strings.TrimSpace(messages[len(messages)-1].Content)
	if last == "" {
		return "", ErrEmptyReply
	}
	return "Вы сказали: " + last, nil
}
