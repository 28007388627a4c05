package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/antoniostano/jarvis/internal/observability"
)

// Attempt outcomes reported to the Recorder.
const (
	OutcomeHit     = "hit"
	OutcomeEmpty   = "miss_empty"
	OutcomeError   = "miss_error"
	OutcomeTimeout = "miss_timeout"
	OutcomePanic   = "miss_panic"
)

const defaultAttemptTimeout = 15 * time.Second

var tracer = observability.Tracer("recognition")

// Recorder receives one call per engine attempt.
type Recorder interface {
	ObserveRecognition(engine, outcome string)
}

// Chain tries engines in order until one returns a non-blank transcript.
type Chain struct {
	engines []Engine
	timeout time.Duration
	logger  *slog.Logger
	rec     Recorder
}

// NewChain builds a chain over engines in the given order. timeout bounds each
// individual attempt.
func NewChain(engines []Engine, timeout time.Duration, logger *slog.Logger, rec Recorder) *Chain {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		engines: append([]Engine(nil), engines...),
		timeout: timeout,
		logger:  logger,
		rec:     rec,
	}
}

// Engines lists engine names in attempt order.
func (c *Chain) Engines() []string {
	names := make([]string, 0, len(c.engines))
	for _, e := range c.engines {
		names = append(names, e.Name())
	}
	return names
}

// Transcribe returns the first non-blank trimmed transcript. It returns
// ErrNoTranscript when all engines miss, or ctx's error if the caller gave up.
func (c *Chain) Transcribe(ctx context.Context, wav []byte, language string) (Transcript, error) {
	ctx, span := tracer.Start(ctx, "recognize utterance")
	span.SetAttributes(attribute.Int("audio.bytes", len(wav)), attribute.String("language", language))

	for i, engine := range c.engines {
		if err := ctx.Err(); err != nil {
			observability.EndSpan(span, err)
			return Transcript{}, err
		}

		text, outcome, err := c.attempt(ctx, engine, wav, language)
		c.observe(engine.Name(), outcome)
		if outcome == OutcomeHit {
			span.SetAttributes(attribute.String("recognition.engine", engine.Name()), attribute.Int("recognition.attempts", i+1))
			observability.EndSpan(span, nil)
			return Transcript{Text: text, Engine: engine.Name()}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			observability.EndSpan(span, ctxErr)
			return Transcript{}, ctxErr
		}
		c.logger.Warn("recognition engine missed",
			"engine", engine.Name(),
			"outcome", outcome,
			"error", err,
		)
	}

	observability.EndSpan(span, ErrNoTranscript)
	return Transcript{}, ErrNoTranscript
}

// attempt runs one engine off the caller's goroutine under its own deadline.
func (c *Chain) attempt(ctx context.Context, engine Engine, wav []byte, language string) (string, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text     string
		err      error
		panicked bool
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("engine panic: %v", r), panicked: true}
			}
		}()
		text, err := engine.Transcribe(attemptCtx, wav, language)
		done <- result{text: text, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		return "", OutcomeTimeout, attemptCtx.Err()
	case r := <-done:
		switch {
		case r.panicked:
			return "", OutcomePanic, r.err
		case r.err != nil:
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", OutcomeTimeout, r.err
			}
			return "", OutcomeError, r.err
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return "", OutcomeEmpty, nil
		}
		return text, OutcomeHit, nil
	}
}

func (c *Chain) observe(engine, outcome string) {
	if c.rec != nil {
		c.rec.ObserveRecognition(engine, outcome)
	}
}
