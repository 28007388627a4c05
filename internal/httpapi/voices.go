package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/antoniostano/jarvis/internal/synthesis"
)

type listVoicesResponse struct {
	DefaultVoiceID string            `json:"default_voice_id"`
	Recommended    []synthesis.Voice `json:"recommended"`
	Voices         []synthesis.Voice `json:"voices"`
}

// Deep male voices that suit the butler persona.
var recommendedVoiceIDs = []string{
	"nPczCjzI2devNBz1zQrb", // Brian
	"onwK4e9ZLuTAKqWW03F9", // Daniel
	"JBFqnCBsd6RMkjVDRZzb", // George
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	empty := listVoicesResponse{
		DefaultVoiceID: s.cfg.ElevenLabsVoiceID,
		Recommended:    []synthesis.Voice{},
		Voices:         []synthesis.Voice{},
	}
	if s.voices == nil {
		respondJSON(w, http.StatusOK, empty)
		return
	}

	voices, err := s.voices.Voices(r.Context())
	if errors.Is(err, synthesis.ErrNotConfigured) {
		respondJSON(w, http.StatusOK, empty)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "voices_request_failed", err.Error())
		return
	}

	all := make([]synthesis.Voice, 0, len(voices))
	byID := make(map[string]synthesis.Voice, len(voices))
	for _, v := range voices {
		v.VoiceID = strings.TrimSpace(v.VoiceID)
		v.Name = strings.TrimSpace(v.Name)
		if v.VoiceID == "" || v.Name == "" {
			continue
		}
		all = append(all, v)
		byID[v.VoiceID] = v
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})

	recommended := make([]synthesis.Voice, 0, len(recommendedVoiceIDs)+1)
	seen := map[string]bool{}
	for _, id := range append([]string{s.cfg.ElevenLabsVoiceID}, recommendedVoiceIDs...) {
		if v, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			recommended = append(recommended, v)
		}
	}

	respondJSON(w, http.StatusOK, listVoicesResponse{
		DefaultVoiceID: s.cfg.ElevenLabsVoiceID,
		Recommended:    recommended,
		Voices:         all,
	})
}

type previewTTSRequest struct {
	Text string `json:"text"`
}

const defaultPreviewText = "Добрый день, сэр. Все системы работают в штатном режиме."

func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "speech synthesis not configured")
		return
	}
	var req previewTTSRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = defaultPreviewText
	}

	out := s.synth.Synthesize(r.Context(), text)
	if len(out) == 0 {
		respondError(w, http.StatusBadGateway, "tts_preview_failed", "speech synthesis produced no audio")
		return
	}
	w.Header().Set("Content-Type", synthesis.MIMEMPEG)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
