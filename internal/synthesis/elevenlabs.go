package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/reliability"
)

// ErrNotConfigured is returned when the engine has no API key.
var ErrNotConfigured = errors.New("elevenlabs api key not configured")

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings are tuned for a calm butler voice.
var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
	Style:           0.5,
	UseSpeakerBoost: true,
}

type ElevenLabsConfig struct {
	APIKey   string
	BaseURL  string
	VoiceID  string
	ModelID  string
	Settings *VoiceSettings
}

// ElevenLabs calls the REST text-to-speech endpoint and returns MP3 audio.
type ElevenLabs struct {
	apiKey   string
	baseURL  string
	voiceID  string
	modelID  string
	settings VoiceSettings
	client   *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig, client *http.Client) *ElevenLabs {
	if client == nil {
		client = observability.HTTPClient(nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	settings := DefaultVoiceSettings
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}
	return &ElevenLabs{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		voiceID:  cfg.VoiceID,
		modelID:  cfg.ModelID,
		settings: settings,
		client:   client,
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

func (e *ElevenLabs) VoiceID() string { return e.voiceID }

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(struct {
		Text          string        `json:"text"`
		ModelID       string        `json:"model_id"`
		VoiceSettings VoiceSettings `json:"voice_settings"`
	}{Text: text, ModelID: e.modelID, VoiceSettings: e.settings})
	if err != nil {
		return nil, err
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", MIMEMPEG)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &reliability.StatusError{Provider: "elevenlabs", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs audio: %w", err)
	}
	return audio, nil
}

type Voice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Voices lists the voices available to the account.
func (e *ElevenLabs) Voices(ctx context.Context) ([]Voice, error) {
	if e.apiKey == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs voices request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &reliability.StatusError{Provider: "elevenlabs", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode elevenlabs voices: %w", err)
	}
	return parsed.Voices, nil
}

// Silent produces no audio. Responses are then delivered as text only.
type Silent struct{}

func (Silent) Name() string { return "silent" }

func (Silent) Synthesize(context.Context, string) ([]byte, error) { return nil, nil }
