package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/reliability"
)

// WhisperServer posts utterances to a running whisper.cpp server.
type WhisperServer struct {
	baseURL string
	client  *http.Client

	// The server is usually started with a single processor.
	mu sync.Mutex
}

func NewWhisperServer(baseURL string, client *http.Client) *WhisperServer {
	if client == nil {
		client = observability.HTTPClient(nil)
	}
	return &WhisperServer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

func (s *WhisperServer) Name() string { return "whisperserver" }

func (s *WhisperServer) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(wav); err != nil {
		return "", err
	}
	_ = mw.WriteField("temperature", "0.0")
	_ = mw.WriteField("response_format", "json")
	if language = strings.TrimSpace(language); language != "" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/inference", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper-server request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &reliability.StatusError{Provider: "whisper-server", Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode whisper-server response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
