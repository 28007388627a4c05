package synthesis

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/reliability"
)

// MIMEMPEG is the content type produced by the default engine.
const MIMEMPEG = "audio/mpeg"

var tracer = observability.Tracer("synthesis")

// Engine turns text into encoded speech audio.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ErrorRecorder counts engine failures.
type ErrorRecorder interface {
	ObserveProviderError(provider, code string)
}

// Adapter wraps an Engine so synthesis is always best effort: any failure
// yields nil audio and is only logged.
type Adapter struct {
	engine  Engine
	timeout time.Duration
	retry   reliability.RetryPolicy
	logger  *slog.Logger
	errs    ErrorRecorder
}

type AdapterConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
	Errors     ErrorRecorder
}

func NewAdapter(engine Engine, cfg AdapterConfig) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		engine:  engine,
		timeout: cfg.Timeout,
		retry: reliability.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  250 * time.Millisecond,
			MaxDelay:   2 * time.Second,
		},
		logger: cfg.Logger,
		errs:   cfg.Errors,
	}
}

// EngineName reports the configured engine, or "none".
func (a *Adapter) EngineName() string {
	if a == nil || a.engine == nil {
		return "none"
	}
	return a.engine.Name()
}

// Synthesize returns encoded audio for text, or nil when synthesis is not
// possible. It never fails the caller.
func (a *Adapter) Synthesize(ctx context.Context, text string) []byte {
	text = strings.TrimSpace(text)
	if a == nil || a.engine == nil || text == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "synthesize speech")
	span.SetAttributes(attribute.String("synthesis.engine", a.engine.Name()), attribute.Int("text.chars", len([]rune(text))))

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var audio []byte
	err := reliability.Do(ctx, a.retry, func(ctx context.Context) error {
		var err error
		audio, err = a.engine.Synthesize(ctx, text)
		return err
	})
	observability.EndSpan(span, err)
	if err != nil {
		a.logger.Warn("speech synthesis failed", "engine", a.engine.Name(), "error", err)
		if a.errs != nil {
			a.errs.ObserveProviderError(a.engine.Name(), errorCode(err))
		}
		return nil
	}
	if len(audio) == 0 {
		return nil
	}
	return audio
}

// DataURI renders audio as an inline data URI, or "" for no audio.
func DataURI(audio []byte, mime string) string {
	if len(audio) == 0 {
		return ""
	}
	if mime == "" {
		mime = MIMEMPEG
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(audio)
}

func errorCode(err error) string {
	var se *reliability.StatusError
	switch {
	case errors.As(err, &se):
		return "status_" + strconv.Itoa(se.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}
