package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/jarvis/internal/protocol"
	"github.com/antoniostano/jarvis/internal/synthesis"
)

type commandRequest struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	// ClientID optionally names a live session that also receives the reply.
	ClientID string `json:"client_id,omitempty"`
}

type commandResponse struct {
	Response    string  `json:"response"`
	AudioURL    *string `json:"audio_url"`
	CommandType string  `json:"command_type"`
	Timestamp   string  `json:"timestamp"`
	DeliveredTo string  `json:"delivered_to,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "command is required")
		return
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID != "" {
		if _, err := s.sessions.Get(clientID); err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", "no live session for client_id")
			return
		}
	}

	ans := s.orchestrator.Execute(r.Context(), req.Command)
	if err := r.Context().Err(); err != nil {
		return
	}

	resp := commandResponse{
		Response:    ans.Text,
		CommandType: string(ans.Kind),
		Timestamp:   protocol.Timestamp(time.Now()),
	}
	if uri := synthesis.DataURI(ans.Audio, synthesis.MIMEMPEG); uri != "" {
		resp.AudioURL = &uri
	}
	if clientID != "" {
		pushed := protocol.ResponseData{Text: resp.Response, Audio: resp.AudioURL, CommandType: resp.CommandType, Timestamp: resp.Timestamp}
		if err := s.sessions.Send(clientID, protocol.EventResponse, pushed); err != nil {
			s.logger.Warn("command reply not delivered", "session_id", clientID, "error", err)
		} else {
			resp.DeliveredTo = clientID
		}
	}
	s.sessionEvent("command_executed")
	respondJSON(w, http.StatusOK, resp)
}
