package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	engine, outcome string
}

type stubRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *stubRecorder) ObserveRecognition(engine, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{engine, outcome})
}

type countingEngine struct {
	name  string
	text  string
	err   error
	calls int
}

func (e *countingEngine) Name() string { return e.name }

func (e *countingEngine) Transcribe(context.Context, []byte, string) (string, error) {
	e.calls++
	return e.text, e.err
}

func TestChainFirstHitShortCircuits(t *testing.T) {
	t.Parallel()

	first := &countingEngine{name: "local", text: "  привет джарвис \n"}
	second := &countingEngine{name: "network", text: "unused"}
	rec := &stubRecorder{}

	got, err := NewChain([]Engine{first, second}, time.Second, nil, rec).Transcribe(context.Background(), []byte("wav"), "ru")
	require.NoError(t, err)
	assert.Equal(t, Transcript{Text: "привет джарвис", Engine: "local"}, got)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
	assert.Equal(t, []recorded{{"local", OutcomeHit}}, rec.calls)
}

func TestChainFallsThroughMisses(t *testing.T) {
	t.Parallel()

	blank := &countingEngine{name: "blank", text: "   "}
	failing := &countingEngine{name: "failing", err: errors.New("model not loaded")}
	panicking := Func{EngineName: "panicking", Fn: func(context.Context, []byte, string) (string, error) {
		panic("boom")
	}}
	last := &countingEngine{name: "network", text: "what time is it"}
	rec := &stubRecorder{}

	got, err := NewChain([]Engine{blank, failing, panicking, last}, time.Second, nil, rec).Transcribe(context.Background(), []byte("wav"), "en")
	require.NoError(t, err)
	assert.Equal(t, "what time is it", got.Text)
	assert.Equal(t, "network", got.Engine)
	assert.Equal(t, []recorded{
		{"blank", OutcomeEmpty},
		{"failing", OutcomeError},
		{"panicking", OutcomePanic},
		{"network", OutcomeHit},
	}, rec.calls)
}

func TestChainAllMiss(t *testing.T) {
	t.Parallel()

	chain := NewChain([]Engine{
		&countingEngine{name: "a"},
		&countingEngine{name: "b", err: errors.New("down")},
	}, time.Second, nil, nil)

	_, err := chain.Transcribe(context.Background(), []byte("wav"), "ru")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestChainEmptyChainMisses(t *testing.T) {
	t.Parallel()

	_, err := NewChain(nil, time.Second, nil, nil).Transcribe(context.Background(), nil, "ru")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestChainPerEngineTimeout(t *testing.T) {
	t.Parallel()

	slow := Func{EngineName: "slow", Fn: func(ctx context.Context, _ []byte, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}}
	fast := &countingEngine{name: "fast", text: "ok"}
	rec := &stubRecorder{}

	start := time.Now()
	got, err := NewChain([]Engine{slow, fast}, 30*time.Millisecond, nil, rec).Transcribe(context.Background(), []byte("wav"), "ru")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, OutcomeTimeout, rec.calls[0].outcome)
}

func TestChainStopsOnCallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	blocking := Func{EngineName: "blocking", Fn: func(ctx context.Context, _ []byte, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}
	next := &countingEngine{name: "next", text: "never"}

	_, err := NewChain([]Engine{blocking, next}, time.Second, nil, nil).Transcribe(ctx, []byte("wav"), "ru")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, next.calls)
}

func TestChainEngines(t *testing.T) {
	t.Parallel()

	chain := NewChain([]Engine{Static{Text: "x"}, &countingEngine{name: "openai"}}, 0, nil, nil)
	assert.Equal(t, []string{"static", "openai"}, chain.Engines())
}
