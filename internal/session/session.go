package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antoniostano/jarvis/internal/command"
	"github.com/antoniostano/jarvis/internal/conversation"
	"github.com/antoniostano/jarvis/internal/protocol"
)

// State is the pipeline position of a session.
type State string

const (
	StateIdle         State = "idle"
	StateMetering     State = "metering"
	StateTranscribing State = "transcribing"
	StateRouting      State = "routing"
	StateConversing   State = "conversing"
	StateSynthesizing State = "synthesizing"
	StateResponding   State = "responding"
	StateError        State = "error"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session closed")
)

// Sink delivers events to the live connection behind a session.
type Sink interface {
	Deliver(ev protocol.Event) error
}

type SinkFunc func(ev protocol.Event) error

func (f SinkFunc) Deliver(ev protocol.Event) error { return f(ev) }

// Session is one live connection. Conversation and Reminders belong to it
// alone and are only touched by its worker.
type Session struct {
	ID        string
	ClientID  string
	StartedAt time.Time

	Conversation *conversation.Store
	Reminders    *command.Reminders

	sink Sink
	seq  atomic.Uint64

	emitMu sync.Mutex

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	closed       bool
	done         chan struct{}
}

func newSession(id, clientID string, sink Sink, store *conversation.Store) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		ClientID:     clientID,
		StartedAt:    now,
		Conversation: store,
		Reminders:    &command.Reminders{},
		sink:         sink,
		state:        StateIdle,
		lastActivity: now,
		done:         make(chan struct{}),
	}
}

// NextSeq returns the next outbound sequence number, starting at 1.
func (s *Session) NextSeq() uint64 {
	return s.seq.Add(1)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// Done is closed once the session is closed, replaced or expired.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Emit stamps an event with the session id and the next sequence number and
// hands it to the sink. Sequence assignment and delivery happen under one lock
// so the sink observes strictly increasing numbers.
func (s *Session) Emit(typ protocol.EventType, requestID string, data any) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.Closed() {
		return ErrClosed
	}
	ev := protocol.Event{
		Type:      typ,
		Data:      data,
		SessionID: s.ID,
		Seq:       s.NextSeq(),
		RequestID: requestID,
	}
	return s.sink.Deliver(ev)
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.state = StateIdle
	close(s.done)
	return true
}
