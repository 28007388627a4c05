package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != "0.0.0.0:8000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, "0.0.0.0:8000")
	}
	if cfg.Language != "ru" || cfg.SampleRate != 16000 {
		t.Fatalf("Language/SampleRate = %q/%d", cfg.Language, cfg.SampleRate)
	}
	if cfg.WhisperModel != "whisper-1" || cfg.GPTModel != "gpt-4" {
		t.Fatalf("WhisperModel/GPTModel = %q/%q", cfg.WhisperModel, cfg.GPTModel)
	}
	if cfg.MaxAudioDuration != 30*time.Second {
		t.Fatalf("MaxAudioDuration = %v, want 30s", cfg.MaxAudioDuration)
	}
	if cfg.ElevenLabsVoiceID != "nPczCjzI2devNBz1zQrb" {
		t.Fatalf("ElevenLabsVoiceID = %q", cfg.ElevenLabsVoiceID)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, DefaultCORSOrigins) {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !reflect.DeepEqual(cfg.RecognitionEngines, []string{"whispercpp", "whisperserver", "openai"}) {
		t.Fatalf("RecognitionEngines = %v", cfg.RecognitionEngines)
	}
	if cfg.MaxAudioBytes() != 30*16000*2 {
		t.Fatalf("MaxAudioBytes() = %d", cfg.MaxAudioBytes())
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9191")
	t.Setenv("MAX_AUDIO_DURATION", "10")
	t.Setenv("RECOGNITION_ENGINES", " openai , ,whispercpp")
	t.Setenv("SYNTHESIS_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9191" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.MaxAudioDuration != 10*time.Second {
		t.Fatalf("MaxAudioDuration = %v", cfg.MaxAudioDuration)
	}
	if !reflect.DeepEqual(cfg.RecognitionEngines, []string{"openai", "whispercpp"}) {
		t.Fatalf("RecognitionEngines = %v", cfg.RecognitionEngines)
	}
	if cfg.SynthesisTimeout != 5*time.Second {
		t.Fatalf("SynthesisTimeout = %v", cfg.SynthesisTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                 "not-a-port",
		"SAMPLE_RATE":          "0",
		"CONVERSATION_ENGINE":  "llama",
		"SYNTHESIS_ENGINE":     "espeak",
		"APP_ALLOW_ANY_ORIGIN": "maybe",
		"WEATHER_TIMEOUT":      "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q should fail", key, value)
			}
		})
	}
}

func TestValidateAPIKeys(t *testing.T) {
	ok, missing := Config{}.ValidateAPIKeys()
	if ok {
		t.Fatalf("ValidateAPIKeys() ok = true with no keys")
	}
	if !reflect.DeepEqual(missing, []string{"OPENAI_API_KEY", "ELEVENLABS_API_KEY"}) {
		t.Fatalf("missing = %v", missing)
	}

	ok, missing = Config{OpenAIAPIKey: "a", ElevenLabsAPIKey: "b"}.ValidateAPIKeys()
	if !ok || len(missing) != 0 {
		t.Fatalf("ValidateAPIKeys() = %v, %v", ok, missing)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"HOST",
		"PORT",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"CORS_ORIGINS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"LANGUAGE",
		"SAMPLE_RATE",
		"MAX_AUDIO_DURATION",
		"MIN_UTTERANCE_BYTES",
		"SPEECH_THRESHOLD",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"WHISPER_MODEL",
		"GPT_MODEL",
		"CONVERSATION_ENGINE",
		"CONVERSATION_MAX_TURNS",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"RECOGNITION_ENGINES",
		"LOCAL_WHISPER_CLI",
		"LOCAL_WHISPER_MODEL_PATH",
		"LOCAL_WHISPER_THREADS",
		"LOCAL_WHISPER_BEAM_SIZE",
		"LOCAL_WHISPER_BEST_OF",
		"WHISPER_SERVER_URL",
		"SYNTHESIS_ENGINE",
		"SYNTHESIS_RETRIES",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_BASE_URL",
		"ELEVENLABS_VOICE_ID",
		"ELEVENLABS_MODEL_ID",
		"OPENWEATHERMAP_API_KEY",
		"OPENWEATHERMAP_BASE_URL",
		"WEATHER_CITY",
		"WEATHER_CITY_DISPLAY",
		"RECOGNITION_TIMEOUT",
		"CONVERSATION_TIMEOUT",
		"SYNTHESIS_TIMEOUT",
		"WEATHER_TIMEOUT",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
