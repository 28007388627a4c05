package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antoniostano/jarvis/internal/config"
	"github.com/antoniostano/jarvis/internal/conversation"
	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/recognition"
	"github.com/antoniostano/jarvis/internal/synthesis"
)

// resolveRecognizers builds the recognition engines named in
// cfg.RecognitionEngines, in order. Engines that cannot run on this host are
// skipped with a warning.
func resolveRecognizers(cfg config.Config, logger *slog.Logger) []recognition.Engine {
	var engines []recognition.Engine
	for _, name := range cfg.RecognitionEngines {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "whispercpp":
			e, err := recognition.NewWhisperCPP(recognition.WhisperCPPConfig{
				CLI:       cfg.LocalWhisperCLI,
				ModelPath: cfg.LocalWhisperModelPath,
				Threads:   cfg.LocalWhisperThreads,
				BeamSize:  cfg.LocalWhisperBeamSize,
				BestOf:    cfg.LocalWhisperBestOf,
			})
			if err != nil {
				logger.Warn("whisper.cpp engine unavailable", "error", err)
				continue
			}
			engines = append(engines, e)
		case "whisperserver":
			if cfg.WhisperServerURL == "" {
				continue
			}
			engines = append(engines, recognition.NewWhisperServer(cfg.WhisperServerURL, observability.HTTPClient(nil)))
		case "openai":
			e, err := recognition.NewOpenAIWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel)
			if err != nil {
				logger.Warn("openai whisper engine unavailable", "error", err)
				continue
			}
			engines = append(engines, e)
		default:
			logger.Warn("unknown recognition engine ignored", "engine", name)
		}
	}
	return engines
}

// resolveConversation picks the conversational engine. auto prefers OpenAI,
// then Gemini, and falls back to echo.
func resolveConversation(ctx context.Context, cfg config.Config) (conversation.Engine, error) {
	mode := cfg.ConversationEngine
	if mode == "auto" || mode == "" {
		switch {
		case cfg.OpenAIAPIKey != "":
			mode = "openai"
		case cfg.GeminiAPIKey != "":
			mode = "gemini"
		default:
			mode = "echo"
		}
	}
	switch mode {
	case "openai":
		e, err := conversation.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GPTModel)
		if err != nil {
			return nil, fmt.Errorf("openai conversation engine: %w", err)
		}
		return e, nil
	case "gemini":
		e, err := conversation.NewGeminiEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini conversation engine: %w", err)
		}
		return e, nil
	case "echo":
		return conversation.EchoEngine{}, nil
	default:
		return nil, fmt.Errorf("unsupported conversation engine %q", mode)
	}
}

// resolveSynthesis picks the speech engine. auto uses ElevenLabs when a key
// is present and stays silent otherwise. The ElevenLabs client is returned
// separately for voice listing and is nil in silent mode.
func resolveSynthesis(cfg config.Config) (synthesis.Engine, *synthesis.ElevenLabs) {
	mode := cfg.SynthesisEngine
	if mode == "auto" || mode == "" {
		mode = "silent"
		if cfg.ElevenLabsAPIKey != "" {
			mode = "elevenlabs"
		}
	}
	if mode != "elevenlabs" {
		return synthesis.Silent{}, nil
	}
	el := synthesis.NewElevenLabs(synthesis.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
	}, nil)
	return el, el
}
