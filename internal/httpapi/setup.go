package httpapi

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

type setupCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type setupStatusResponse struct {
	RecognitionEngines []string     `json:"recognition_engines"`
	ConversationEngine string       `json:"conversation_engine"`
	SynthesisEngine    string       `json:"synthesis_engine"`
	JournalMode        string       `json:"journal_mode"`
	Checks             []setupCheck `json:"checks"`
}

// handleSetupStatus reports which collaborators are usable on this host so a
// frontend can explain missing pieces.
func (s *Server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]setupCheck, 0, 10)
	for _, engine := range s.cfg.RecognitionEngines {
		switch strings.ToLower(strings.TrimSpace(engine)) {
		case "whispercpp":
			checks = append(checks, s.whisperCPPChecks()...)
		case "whisperserver":
			checks = append(checks, s.whisperServerCheck())
		case "openai":
			checks = append(checks, keyCheck("openai_key", "OpenAI API key", s.cfg.OpenAIAPIKey, "OPENAI_API_KEY"))
		}
	}

	switch s.cfg.ConversationEngine {
	case "gemini":
		checks = append(checks, keyCheck("gemini_key", "Gemini API key", s.cfg.GeminiAPIKey, "GEMINI_API_KEY"))
	case "echo":
		checks = append(checks, setupCheck{ID: "conversation", Status: "warn", Label: "Conversation engine", Detail: "echo only", Fix: "Set CONVERSATION_ENGINE=openai or gemini."})
	default:
		if s.cfg.OpenAIAPIKey == "" && s.cfg.GeminiAPIKey == "" {
			checks = append(checks, setupCheck{ID: "conversation", Status: "error", Label: "Conversation engine", Detail: "no API key", Fix: "Set OPENAI_API_KEY or GEMINI_API_KEY."})
		}
	}

	if s.cfg.SynthesisEngine != "silent" {
		checks = append(checks, keyCheck("elevenlabs_key", "ElevenLabs API key", s.cfg.ElevenLabsAPIKey, "ELEVENLABS_API_KEY"))
	}
	weather := keyCheck("weather_key", "OpenWeatherMap API key", s.cfg.OpenWeatherMapAPIKey, "OPENWEATHERMAP_API_KEY")
	if weather.Status == "error" {
		weather.Status = "warn"
	}
	checks = append(checks, weather)

	journalMode := "in-memory"
	if s.cfg.DatabaseURL != "" {
		journalMode = "postgres"
	}
	respondJSON(w, http.StatusOK, setupStatusResponse{
		RecognitionEngines: s.cfg.RecognitionEngines,
		ConversationEngine: s.cfg.ConversationEngine,
		SynthesisEngine:    s.cfg.SynthesisEngine,
		JournalMode:        journalMode,
		Checks:             checks,
	})
}

func keyCheck(id, label, value, env string) setupCheck {
	if strings.TrimSpace(value) == "" {
		return setupCheck{ID: id, Status: "error", Label: label, Detail: env + " is not set", Fix: "Set " + env + "."}
	}
	return setupCheck{ID: id, Status: "ok", Label: label, Detail: "present"}
}

func (s *Server) whisperCPPChecks() []setupCheck {
	var out []setupCheck
	cli := strings.TrimSpace(s.cfg.LocalWhisperCLI)
	if _, err := exec.LookPath(cli); err != nil {
		out = append(out, setupCheck{ID: "whisper_cli", Status: "warn", Label: "whisper.cpp CLI", Detail: cli + " not found in PATH", Fix: "Install whisper.cpp or set LOCAL_WHISPER_CLI."})
	} else {
		out = append(out, setupCheck{ID: "whisper_cli", Status: "ok", Label: "whisper.cpp CLI", Detail: cli})
	}
	model := strings.TrimSpace(s.cfg.LocalWhisperModelPath)
	if _, err := os.Stat(model); err != nil {
		out = append(out, setupCheck{ID: "whisper_model", Status: "warn", Label: "whisper.cpp model", Detail: model + " missing", Fix: "Download a ggml model or set LOCAL_WHISPER_MODEL_PATH."})
	} else {
		out = append(out, setupCheck{ID: "whisper_model", Status: "ok", Label: "whisper.cpp model", Detail: model})
	}
	return out
}

func (s *Server) whisperServerCheck() setupCheck {
	raw := strings.TrimSpace(s.cfg.WhisperServerURL)
	if raw == "" {
		return setupCheck{ID: "whisper_server", Status: "warn", Label: "whisper.cpp server", Detail: "not configured", Fix: "Set WHISPER_SERVER_URL."}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return setupCheck{ID: "whisper_server", Status: "error", Label: "whisper.cpp server", Detail: "invalid WHISPER_SERVER_URL"}
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	c, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		return setupCheck{ID: "whisper_server", Status: "warn", Label: "whisper.cpp server", Detail: addr + " unreachable"}
	}
	_ = c.Close()
	return setupCheck{ID: "whisper_server", Status: "ok", Label: "whisper.cpp server", Detail: addr}
}
