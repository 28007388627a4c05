package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	Host                     string
	Port                     int
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	LogLevel                 string
	LogFormat                string

	AllowAnyOrigin bool
	CORSOrigins    []string

	Language          string
	SampleRate        int
	MaxAudioDuration  time.Duration
	MinUtteranceBytes int
	SpeechThreshold   float64
	NormalizeAudio    bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string
	GPTModel      string

	ConversationEngine string
	GeminiAPIKey       string
	GeminiModel        string
	ConversationTurns  int

	RecognitionEngines    []string
	LocalWhisperCLI       string
	LocalWhisperModelPath string
	LocalWhisperThreads   int
	LocalWhisperBeamSize  int
	LocalWhisperBestOf    int
	WhisperServerURL      string

	SynthesisEngine   string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	SynthesisRetries  int

	OpenWeatherMapAPIKey string
	WeatherBaseURL       string
	WeatherCity          string
	WeatherCityDisplay   string

	RecognitionTimeout  time.Duration
	ConversationTimeout time.Duration
	SynthesisTimeout    time.Duration
	WeatherTimeout      time.Duration

	DatabaseURL string
}

// DefaultCORSOrigins are the local dev frontends allowed to call the API.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3000",
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		Host:                     envOrDefault("HOST", "0.0.0.0"),
		Port:                     8000,
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "jarvis"),
		LogLevel:                 envOrDefault("LOG_LEVEL", "info"),
		LogFormat:                envOrDefault("LOG_FORMAT", "text"),
		CORSOrigins:              listFromEnv("CORS_ORIGINS", DefaultCORSOrigins),
		Language:                 envOrDefault("LANGUAGE", "ru"),
		SampleRate:               16000,
		MaxAudioDuration:         30 * time.Second,
		MinUtteranceBytes:        1000,
		SpeechThreshold:          10,
		OpenAIAPIKey:             stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:            stringsTrimSpace("OPENAI_BASE_URL"),
		WhisperModel:             envOrDefault("WHISPER_MODEL", "whisper-1"),
		GPTModel:                 envOrDefault("GPT_MODEL", "gpt-4"),
		ConversationEngine:       strings.ToLower(envOrDefault("CONVERSATION_ENGINE", "auto")),
		GeminiAPIKey:             stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:              envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ConversationTurns:        10,
		RecognitionEngines:       listFromEnv("RECOGNITION_ENGINES", []string{"whispercpp", "whisperserver", "openai"}),
		LocalWhisperCLI:          envOrDefault("LOCAL_WHISPER_CLI", "whisper-cli"),
		LocalWhisperModelPath:    envOrDefault("LOCAL_WHISPER_MODEL_PATH", ".models/whisper/ggml-base.bin"),
		LocalWhisperBeamSize:     1,
		LocalWhisperBestOf:       1,
		WhisperServerURL:         stringsTrimSpace("WHISPER_SERVER_URL"),
		SynthesisEngine:          strings.ToLower(envOrDefault("SYNTHESIS_ENGINE", "auto")),
		ElevenLabsAPIKey:         stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:        envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsVoiceID:        envOrDefault("ELEVENLABS_VOICE_ID", "nPczCjzI2devNBz1zQrb"),
		ElevenLabsModelID:        envOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		SynthesisRetries:         1,
		OpenWeatherMapAPIKey:     stringsTrimSpace("OPENWEATHERMAP_API_KEY"),
		WeatherBaseURL:           envOrDefault("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org"),
		WeatherCity:              envOrDefault("WEATHER_CITY", "Moscow"),
		WeatherCityDisplay:       envOrDefault("WEATHER_CITY_DISPLAY", "Москве"),
		RecognitionTimeout:       15 * time.Second,
		ConversationTimeout:      15 * time.Second,
		SynthesisTimeout:         30 * time.Second,
		WeatherTimeout:           5 * time.Second,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	if cfg.Port, err = intFromEnv("PORT", cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intFromEnv("SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.MinUtteranceBytes, err = intFromEnv("MIN_UTTERANCE_BYTES", cfg.MinUtteranceBytes); err != nil {
		return Config{}, err
	}
	if cfg.SpeechThreshold, err = floatFromEnv("SPEECH_THRESHOLD", cfg.SpeechThreshold); err != nil {
		return Config{}, err
	}
	if cfg.ConversationTurns, err = intFromEnv("CONVERSATION_MAX_TURNS", cfg.ConversationTurns); err != nil {
		return Config{}, err
	}
	if cfg.SynthesisRetries, err = intFromEnv("SYNTHESIS_RETRIES", cfg.SynthesisRetries); err != nil {
		return Config{}, err
	}
	if cfg.LocalWhisperThreads, err = intFromEnv("LOCAL_WHISPER_THREADS", cfg.LocalWhisperThreads); err != nil {
		return Config{}, err
	}
	if cfg.LocalWhisperBeamSize, err = intFromEnv("LOCAL_WHISPER_BEAM_SIZE", cfg.LocalWhisperBeamSize); err != nil {
		return Config{}, err
	}
	if cfg.LocalWhisperBestOf, err = intFromEnv("LOCAL_WHISPER_BEST_OF", cfg.LocalWhisperBestOf); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.NormalizeAudio, err = boolFromEnv("NORMALIZE_AUDIO", cfg.NormalizeAudio); err != nil {
		return Config{}, err
	}

	// MAX_AUDIO_DURATION is expressed in seconds, like the other audio knobs.
	maxSeconds, err := intFromEnv("MAX_AUDIO_DURATION", int(cfg.MaxAudioDuration/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxAudioDuration = time.Duration(maxSeconds) * time.Second

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"RECOGNITION_TIMEOUT", &cfg.RecognitionTimeout},
		{"CONVERSATION_TIMEOUT", &cfg.ConversationTimeout},
		{"SYNTHESIS_TIMEOUT", &cfg.SynthesisTimeout},
		{"WEATHER_TIMEOUT", &cfg.WeatherTimeout},
	} {
		if *d.dst, err = durationFromEnv(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}

	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive")
	}
	if c.MaxAudioDuration <= 0 {
		return fmt.Errorf("MAX_AUDIO_DURATION must be positive")
	}
	if c.MinUtteranceBytes < 0 {
		return fmt.Errorf("MIN_UTTERANCE_BYTES must be >= 0")
	}
	if c.ConversationTurns <= 0 {
		return fmt.Errorf("CONVERSATION_MAX_TURNS must be positive")
	}
	if c.SynthesisRetries < 0 {
		return fmt.Errorf("SYNTHESIS_RETRIES must be >= 0")
	}
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.LocalWhisperThreads < 0 {
		return fmt.Errorf("LOCAL_WHISPER_THREADS must be >= 0")
	}
	if c.LocalWhisperBeamSize <= 0 {
		return fmt.Errorf("LOCAL_WHISPER_BEAM_SIZE must be positive")
	}
	if c.LocalWhisperBestOf <= 0 {
		return fmt.Errorf("LOCAL_WHISPER_BEST_OF must be positive")
	}
	for name, d := range map[string]time.Duration{
		"RECOGNITION_TIMEOUT":  c.RecognitionTimeout,
		"CONVERSATION_TIMEOUT": c.ConversationTimeout,
		"SYNTHESIS_TIMEOUT":    c.SynthesisTimeout,
		"WEATHER_TIMEOUT":      c.WeatherTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	switch c.ConversationEngine {
	case "auto", "openai", "gemini", "echo":
	default:
		return fmt.Errorf("CONVERSATION_ENGINE must be one of auto|openai|gemini|echo")
	}
	switch c.SynthesisEngine {
	case "auto", "elevenlabs", "silent":
	default:
		return fmt.Errorf("SYNTHESIS_ENGINE must be one of auto|elevenlabs|silent")
	}
	return nil
}

// ValidateAPIKeys reports whether the keys needed for the full assistant are
// present, and which are missing.
func (c Config) ValidateAPIKeys() (bool, []string) {
	missing := []string{}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	return len(missing) == 0, missing
}

// MaxAudioBytes is the largest PCM16 mono payload covering MaxAudioDuration.
func (c Config) MaxAudioBytes() int64 {
	return int64(c.MaxAudioDuration/time.Second) * int64(c.SampleRate) * 2
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func listFromEnv(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
