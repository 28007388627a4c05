package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/jarvis/internal/command"
	"github.com/antoniostano/jarvis/internal/config"
	"github.com/antoniostano/jarvis/internal/observability"
)

func offlineConfig() config.Config {
	return config.Config{
		MetricsNamespace:         "test",
		SessionInactivityTimeout: time.Minute,
		Language:                 "ru",
		SampleRate:               16000,
		MaxAudioDuration:         30 * time.Second,
		MinUtteranceBytes:        1000,
		ConversationEngine:       "auto",
		ConversationTurns:        10,
		SynthesisEngine:          "auto",
		RecognitionEngines:       []string{"whispercpp", "whisperserver", "openai", "bogus"},
		LocalWhisperCLI:          "definitely-not-installed-whisper",
		LocalWhisperModelPath:    "/nonexistent/model.bin",
		LocalWhisperBeamSize:     1,
		LocalWhisperBestOf:       1,
		RecognitionTimeout:       time.Second,
		ConversationTimeout:      time.Second,
		SynthesisTimeout:         time.Second,
		WeatherTimeout:           time.Second,
	}
}

func TestBuildOfflineFallsBackToLocalEngines(t *testing.T) {
	res, err := Build(context.Background(), offlineConfig(), Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetrics(fmt.Sprintf("test_app_%d", time.Now().UnixNano())),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Empty(t, res.Engines.Recognition)
	assert.Equal(t, "echo", res.Engines.Conversation)
	assert.Equal(t, "silent", res.Engines.Synthesis)
	assert.Equal(t, "in-memory", res.Engines.Journal)

	ans := res.Orchestrator.Execute(context.Background(), "повтори за мной")
	assert.Equal(t, command.KindConversational, ans.Kind)
	assert.Nil(t, ans.Audio)
}

func TestResolveConversationAutoPrefersOpenAI(t *testing.T) {
	cfg := offlineConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.GeminiAPIKey = "g-test"
	engine, err := resolveConversation(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", engine.Name())
}

func TestResolveConversationExplicitWithoutKeyFails(t *testing.T) {
	cfg := offlineConfig()
	cfg.ConversationEngine = "openai"
	_, err := resolveConversation(context.Background(), cfg)
	assert.Error(t, err)
}

func TestResolveSynthesis(t *testing.T) {
	cfg := offlineConfig()
	engine, el := resolveSynthesis(cfg)
	assert.Equal(t, "silent", engine.Name())
	assert.Nil(t, el)

	cfg.ElevenLabsAPIKey = "key"
	engine, el = resolveSynthesis(cfg)
	assert.Equal(t, "elevenlabs", engine.Name())
	assert.NotNil(t, el)
}

func TestResolveRecognizersWhisperServer(t *testing.T) {
	cfg := offlineConfig()
	cfg.RecognitionEngines = []string{"whisperserver", "openai"}
	cfg.WhisperServerURL = "http://127.0.0.1:9"
	cfg.OpenAIAPIKey = "sk-test"
	engines := resolveRecognizers(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Len(t, engines, 2)
	assert.Equal(t, "whisperserver", engines[0].Name())
	assert.Equal(t, "openai", engines[1].Name())
}
