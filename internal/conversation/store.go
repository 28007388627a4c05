package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/antoniostano/jarvis/internal/observability"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxTurns caps the retained history.
const DefaultMaxTurns = 10

// SystemPrompt is the Jarvis persona sent ahead of every request.
const SystemPrompt = `Ты — Джарвис, высокоинтеллектуальный AI-ассистент, созданный по образу Джарвиса из вселенной Marvel.
Твои характеристики:
- Ты вежлив, профессионален и слегка саркастичен в британском стиле
- Обращаешься к пользователю "сэр" или "сэр/мадам"
- Даёшь краткие, но информативные ответы
- Ты можешь помочь с информацией, расчётами, советами
- Если не знаешь точного ответа, честно об этом говоришь
- Ты помнишь контекст разговора
- Отвечай на том же языке, на котором задан вопрос (русский или английский)

Будь полезным и эффективным помощником!`

// ErrEmptyReply is returned when the engine answered with blank text.
var ErrEmptyReply = errors.New("conversational engine returned an empty reply")

var tracer = observability.Tracer("conversation")

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Engine completes a conversation. messages starts with the system turn and
// ends with the new user turn.
type Engine interface {
	Name() string
	Complete(ctx context.Context, messages []Turn) (string, error)
}

// Store keeps one session's bounded history and talks to the engine.
type Store struct {
	engine   Engine
	maxTurns int
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	history []Turn
}

type StoreConfig struct {
	MaxTurns int
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewStore(engine Engine, cfg StoreConfig) *Store {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		engine:   engine,
		maxTurns: cfg.MaxTurns,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Ask sends text with the retained history and, on success, records both the
// user and assistant turns. History is untouched on failure.
func (s *Store) Ask(ctx context.Context, text string) (reply string, err error) {
	if s.engine == nil {
		return "", errors.New("no conversational engine configured")
	}
	ctx, span := tracer.Start(ctx, "complete conversation")
	span.SetAttributes(attribute.String("conversation.engine", s.engine.Name()))
	defer func() { observability.EndSpan(span, err) }()

	s.mu.Lock()
	messages := make([]Turn, 0, len(s.history)+2)
	messages = append(messages, Turn{Role: RoleSystem, Content: SystemPrompt})
	messages = append(messages, s.history...)
	messages = append(messages, Turn{Role: RoleUser, Content: text})
	s.mu.Unlock()
	span.SetAttributes(attribute.Int("conversation.history_turns", len(messages)-2))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err = s.engine.Complete(callCtx, messages)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", s.engine.Name(), err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}

	s.mu.Lock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: text},
		Turn{Role: RoleAssistant, Content: reply},
	)
	if over := len(s.history) - s.maxTurns; over > 0 {
		s.history = append([]Turn(nil), s.history[over:]...)
	}
	s.mu.Unlock()
	return reply, nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.logger.Info("conversation history cleared")
}

// History returns a copy of the retained turns, oldest first.
func (s *Store) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}
