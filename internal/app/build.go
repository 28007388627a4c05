package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/antoniostano/jarvis/internal/command"
	"github.com/antoniostano/jarvis/internal/config"
	"github.com/antoniostano/jarvis/internal/conversation"
	"github.com/antoniostano/jarvis/internal/httpapi"
	"github.com/antoniostano/jarvis/internal/journal"
	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/pipeline"
	"github.com/antoniostano/jarvis/internal/recognition"
	"github.com/antoniostano/jarvis/internal/session"
	"github.com/antoniostano/jarvis/internal/synthesis"
	"github.com/antoniostano/jarvis/internal/weather"
)

// EngineInfo names the collaborators chosen at startup.
type EngineInfo struct {
	Recognition  []string
	Conversation string
	Synthesis    string
	Journal      string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Registry
	Orchestrator *pipeline.Orchestrator
	Metrics      *observability.Metrics
	Engines      EngineInfo

	// Cleanup releases the journal database pool.
	Cleanup func() error
}

type Options struct {
	Logger  *slog.Logger
	Version string
	// Metrics overrides the registry-backed metrics, mostly for tests.
	Metrics *observability.Metrics
}

func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	store, err := journal.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("journal store init failed: %w", err)
	}
	journalMode := "in-memory"
	if _, ok := store.(*journal.PostgresStore); ok {
		journalMode = "postgres"
	}

	convEngine, err := resolveConversation(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	newConversation := func() *conversation.Store {
		return conversation.NewStore(convEngine, conversation.StoreConfig{
			MaxTurns: cfg.ConversationTurns,
			Timeout:  cfg.ConversationTimeout,
			Logger:   logger,
		})
	}

	recognizers := resolveRecognizers(cfg, logger)
	if len(recognizers) == 0 {
		logger.Warn("no recognition engine available; audio turns will not be understood")
	}
	chain := recognition.NewChain(recognizers, cfg.RecognitionTimeout, logger, metrics)

	synthEngine, elevenLabs := resolveSynthesis(cfg)
	synth := synthesis.NewAdapter(synthEngine, synthesis.AdapterConfig{
		Timeout:    cfg.SynthesisTimeout,
		MaxRetries: cfg.SynthesisRetries,
		Logger:     logger,
		Errors:     metrics,
	})

	weatherClient := weather.NewClient(weather.Config{
		APIKey:  cfg.OpenWeatherMapAPIKey,
		BaseURL: cfg.WeatherBaseURL,
		Lang:    cfg.Language,
		Timeout: cfg.WeatherTimeout,
	}, nil)
	router := command.NewRouter(
		command.WithWeather(weatherClient, cfg.WeatherCity, cfg.WeatherCityDisplay),
		command.WithLogger(logger),
	)

	sessions := session.NewRegistry(cfg.SessionInactivityTimeout, newConversation)
	sessions.SetExpireHook(func(s *session.Session) {
		logger.Info("session expired", "session_id", s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Language:          cfg.Language,
		SampleRate:        cfg.SampleRate,
		MinUtteranceBytes: cfg.MinUtteranceBytes,
		SpeechThreshold:   cfg.SpeechThreshold,
		NormalizeAudio:    cfg.NormalizeAudio,
	}, pipeline.Deps{
		Recognizer:      chain,
		Router:          router,
		Synthesizer:     synth,
		NewConversation: newConversation,
		Journal:         store,
		Metrics:         metrics,
		Logger:          logger,
	})

	deps := httpapi.Deps{
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Journal:      store,
		Synthesizer:  synth,
		Logger:       logger,
		Version:      opts.Version,
	}
	if elevenLabs != nil {
		deps.Voices = elevenLabs
	}
	api := httpapi.New(cfg, sessions, deps)

	cleanup := func() error {
		sessions.CloseAll()
		if err := store.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Engines: EngineInfo{
			Recognition:  chain.Engines(),
			Conversation: convEngine.Name(),
			Synthesis:    synth.EngineName(),
			Journal:      journalMode,
		},
		Cleanup: cleanup,
	}, nil
}
