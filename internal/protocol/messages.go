package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies inbound structured websocket messages.
type MessageType string

const (
	TypeText    MessageType = "text"
	TypeControl MessageType = "control"
	TypeAudio   MessageType = "audio"
)

// EventType identifies outbound session events.
type EventType string

const (
	EventVolume        EventType = "volume"
	EventStatus        EventType = "status"
	EventTranscription EventType = "transcription"
	EventResponse      EventType = "response"
	EventReminders     EventType = "reminders"
	EventError         EventType = "error"
)

// Control actions.
const (
	ActionClearHistory = "clear_history"
	ActionGetReminders = "get_reminders"
)

// Status values carried by status events.
const (
	StatusTranscribing = "transcribing"
	StatusProcessing   = "processing"
	StatusSuccess      = "success"
)

// User-facing strings.
const (
	MessageTranscribing      = "Распознаю речь..."
	MessageProcessing        = "Обрабатываю команду..."
	MessageHistoryCleared    = "История очищена"
	MessageNotRecognized     = "Не удалось распознать речь"
	MessageCannotProcess     = "Извините, не могу обработать этот запрос."
	MessageInternalError     = "Произошла внутренняя ошибка"
	MessageUnknownAction     = "Неизвестное действие"
	MessageUnsupportedFormat = "Неподдерживаемый формат сообщения"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type TextMessage struct {
	Text string `json:"text"`
}

type ControlMessage struct {
	Action string `json:"action"`
}

// AudioMessage carries base64 audio, raw or as a data URI.
type AudioMessage struct {
	Audio      string `json:"audio"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// ParseClientMessage decodes a structured inbound message into one of
// TextMessage, ControlMessage or AudioMessage.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = json.RawMessage("{}")
	}

	switch env.Type {
	case TypeText:
		var msg TextMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("invalid text message: %w", err)
		}
		return msg, nil
	case TypeControl:
		var msg ControlMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("invalid control message: %w", err)
		}
		msg.Action = strings.TrimSpace(msg.Action)
		return msg, nil
	case TypeAudio:
		var msg AudioMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio message: %w", err)
		}
		if strings.TrimSpace(msg.Audio) == "" {
			return nil, errors.New("invalid audio message: empty audio")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// Event is one outbound message. Seq is strictly increasing per session.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	RequestID string    `json:"request_id,omitempty"`
}

type VolumeData struct {
	Volume float64 `json:"volume"`
}

type StatusData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type TranscriptionData struct {
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
}

// ResponseData is the final result of one pipeline run. Audio is a data URI
// or null when synthesis produced nothing.
type ResponseData struct {
	Text        string  `json:"text"`
	Audio       *string `json:"audio"`
	CommandType string  `json:"command_type"`
	Timestamp   string  `json:"timestamp"`
}

type ReminderItem struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type RemindersData struct {
	Reminders []ReminderItem `json:"reminders"`
}

type ErrorData struct {
	Error string `json:"error"`
}

// Timestamp formats t the way every outbound payload carries time.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
