package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindUtterance Kind = "utterance"
	KindResponse  Kind = "response"
	KindReminder  Kind = "reminder"
)

// Entry is one audited event of a session.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	RequestID   string    `json:"request_id,omitempty"`
	Kind        Kind      `json:"kind"`
	Content     string    `json:"content"`
	CommandType string    `json:"command_type,omitempty"`
	Handler     string    `json:"handler,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists session entries for later inspection.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}

// prepare fills ids and timestamps and masks PII before an entry is stored.
func prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	content, changed := RedactPII(entry.Content)
	entry.Content = content
	entry.PIIRedacted = entry.PIIRedacted || changed
	return entry
}
