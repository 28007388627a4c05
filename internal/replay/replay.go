// Package replay drives scripted turns through a running assistant over its
// websocket and reports per-turn latency.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/jarvis/internal/audio"
	"github.com/antoniostano/jarvis/internal/protocol"
)

var DefaultUtterances = []string{
	"Привет Джарвис",
	"Какое время сейчас?",
	"Напомни мне купить молоко",
	"Какая погода сегодня?",
}

type Options struct {
	BaseURL        string
	ClientID       string
	Turns          int
	Texts          []string
	WAVPaths       []string
	TurnTimeout    time.Duration
	InterTurnDelay time.Duration
	// Log receives progress lines. Nil disables them.
	Log io.Writer
}

// Turn is one scripted input: text, or PCM sent as a binary frame.
type Turn struct {
	Label string
	Text  string
	PCM   []byte
}

type TurnResult struct {
	Index         int           `json:"index"`
	Input         string        `json:"input"`
	Transcription string        `json:"transcription,omitempty"`
	Response      string        `json:"response,omitempty"`
	CommandType   string        `json:"command_type,omitempty"`
	HasAudio      bool          `json:"has_audio"`
	Latency       time.Duration `json:"latency_ns"`
	Error         string        `json:"error,omitempty"`
}

type Report struct {
	SessionID string        `json:"session_id"`
	Turns     []TurnResult  `json:"turns"`
	P50       time.Duration `json:"p50_ns"`
	P95       time.Duration `json:"p95_ns"`
	Failures  int           `json:"failures"`
}

func (o *Options) normalize() error {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.BaseURL == "" {
		return errors.New("base url is required")
	}
	if o.Turns <= 0 {
		return errors.New("turns must be > 0")
	}
	if strings.TrimSpace(o.ClientID) == "" {
		o.ClientID = "replay-" + uuid.NewString()[:8]
	}
	if o.TurnTimeout < time.Second {
		o.TurnTimeout = 15 * time.Second
	}
	if o.InterTurnDelay < 0 {
		o.InterTurnDelay = 0
	}
	if o.Log == nil {
		o.Log = io.Discard
	}
	return nil
}

// LoadTurns builds the scripted inputs. WAV files take precedence over texts.
func LoadTurns(texts, wavPaths []string) ([]Turn, error) {
	var turns []Turn
	for _, path := range wavPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pcm, _, err := audio.ExtractPCM(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		turns = append(turns, Turn{Label: path, PCM: pcm})
	}
	if len(turns) > 0 {
		return turns, nil
	}
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			turns = append(turns, Turn{Label: t, Text: t})
		}
	}
	if len(turns) == 0 {
		for _, t := range DefaultUtterances {
			turns = append(turns, Turn{Label: t, Text: t})
		}
	}
	return turns, nil
}

// Run opens one session and plays opts.Turns turns, cycling through the
// scripted inputs. A turn ends on its response or error event.
func Run(ctx context.Context, opts Options) (Report, error) {
	if err := opts.normalize(); err != nil {
		return Report{}, err
	}
	turns, err := LoadTurns(opts.Texts, opts.WAVPaths)
	if err != nil {
		return Report{}, err
	}

	wsURL, err := sessionURL(opts.BaseURL, opts.ClientID)
	if err != nil {
		return Report{}, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return Report{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	events := make(chan incoming, 64)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readLoop(conn, events, readErr, done)

	report := Report{SessionID: opts.ClientID}
	fmt.Fprintf(opts.Log, "replay: session=%s turns=%d\n", opts.ClientID, opts.Turns)
	for i := 0; i < opts.Turns; i++ {
		turn := turns[i%len(turns)]
		res := TurnResult{Index: i + 1, Input: turn.Label}

		started := time.Now()
		if err := send(conn, turn); err != nil {
			return report, fmt.Errorf("turn %d send: %w", i+1, err)
		}
		if err := awaitTurn(ctx, events, readErr, opts.TurnTimeout, &res); err != nil {
			return report, fmt.Errorf("turn %d: %w", i+1, err)
		}
		res.Latency = time.Since(started)
		if res.Error != "" {
			report.Failures++
		}
		report.Turns = append(report.Turns, res)
		fmt.Fprintf(opts.Log, "replay: turn %d/%d %q -> %q (%s) in %s\n", i+1, opts.Turns, turn.Label, res.Response, res.CommandType, res.Latency.Round(time.Millisecond))

		if opts.InterTurnDelay > 0 && i < opts.Turns-1 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(opts.InterTurnDelay):
			}
		}
	}
	report.P50, report.P95 = latencyQuantiles(report.Turns)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay done"), time.Now().Add(time.Second))
	return report, nil
}

type incoming struct {
	Type protocol.EventType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

func readLoop(conn *websocket.Conn, events chan<- incoming, readErr chan<- error, done <-chan struct{}) {
	defer close(events)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}
		var ev incoming
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

func send(conn *websocket.Conn, turn Turn) error {
	if len(turn.PCM) > 0 {
		return conn.WriteMessage(websocket.BinaryMessage, turn.PCM)
	}
	return conn.WriteJSON(map[string]any{
		"type": protocol.TypeText,
		"data": protocol.TextMessage{Text: turn.Text},
	})
}

func awaitTurn(ctx context.Context, events <-chan incoming, readErr <-chan error, timeout time.Duration, res *TurnResult) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("no response after %s", timeout)
		case err := <-readErr:
			return fmt.Errorf("ws read: %w", err)
		case ev, ok := <-events:
			if !ok {
				return errors.New("connection closed")
			}
			switch ev.Type {
			case protocol.EventTranscription:
				var d protocol.TranscriptionData
				_ = json.Unmarshal(ev.Data, &d)
				res.Transcription = d.Text
			case protocol.EventResponse:
				var d protocol.ResponseData
				if err := json.Unmarshal(ev.Data, &d); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				res.Response = d.Text
				res.CommandType = d.CommandType
				res.HasAudio = d.Audio != nil
				return nil
			case protocol.EventError:
				var d protocol.ErrorData
				_ = json.Unmarshal(ev.Data, &d)
				res.Error = d.Error
				return nil
			}
		}
	}
}

func sessionURL(baseURL, clientID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + clientID
	return u.String(), nil
}

func latencyQuantiles(turns []TurnResult) (p50, p95 time.Duration) {
	if len(turns) == 0 {
		return 0, 0
	}
	lat := make([]time.Duration, 0, len(turns))
	for _, t := range turns {
		lat = append(lat, t.Latency)
	}
	slices.Sort(lat)
	at := func(q float64) time.Duration {
		idx := int(q*float64(len(lat)-1) + 0.5)
		return lat[idx]
	}
	return at(0.50), at(0.95)
}
