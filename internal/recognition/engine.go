package recognition

import (
	"context"
	"errors"
)

// ErrNoTranscript is returned when every engine in a chain missed.
var ErrNoTranscript = errors.New("no engine produced a transcript")

// Engine turns a WAV-wrapped utterance into text. A blank result with a nil
// error is a legitimate "heard nothing" answer.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// Transcript is a recognised utterance and the engine that produced it.
type Transcript struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
}

// Func adapts a plain function into an Engine.
type Func struct {
	EngineName string
	Fn         func(ctx context.Context, wav []byte, language string) (string, error)
}

func (f Func) Name() string { return f.EngineName }

func (f Func) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	return f.Fn(ctx, wav, language)
}

// Static always answers with the same text. Useful for local runs without any
// recognition backend.
type Static struct {
	Text string
}

func (Static) Name() string { return "static" }

func (s Static) Transcribe(context.Context, []byte, string) (string, error) {
	return s.Text, nil
}
