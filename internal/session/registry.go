package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/jarvis/internal/conversation"
	"github.com/antoniostano/jarvis/internal/protocol"
)

// Registry owns the live sessions, keyed by session id.
type Registry struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	newConversation   func() *conversation.Store
	onExpire          func(*Session)
}

// NewRegistry builds a registry. newConversation creates the context store
// handed to each new session and may be nil.
func NewRegistry(inactivityTimeout time.Duration, newConversation func() *conversation.Store) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Registry{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
		newConversation:   newConversation,
	}
}

func (r *Registry) SetExpireHook(hook func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// Open registers a session for clientID, generating an id when it is blank.
// A live session with the same id is closed and replaced.
func (r *Registry) Open(clientID string, sink Sink) (*Session, error) {
	if sink == nil {
		return nil, errors.New("session sink is required")
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		id = uuid.NewString()
	}
	var store *conversation.Store
	if r.newConversation != nil {
		store = r.newConversation()
	}
	s := newSession(id, clientID, sink, store)

	r.mu.Lock()
	previous := r.sessions[id]
	r.sessions[id] = s
	r.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	return s, nil
}

func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (r *Registry) Touch(sessionID string) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	s.touch(time.Now().UTC())
	return nil
}

// Close closes and removes the session registered under sessionID.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	return nil
}

// Release closes s and removes it only if it is still the registered session
// for its id, so a replaced connection cannot evict its successor.
func (r *Registry) Release(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	if r.sessions[s.ID] == s {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()
	s.close()
}

// Send emits an event on a live session. Closed sessions drop it silently.
func (r *Registry) Send(sessionID string, typ protocol.EventType, data any) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.Emit(typ, "", data); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// Broadcast emits an event on every live session and reports how many
// accepted it.
func (r *Registry) Broadcast(typ protocol.EventType, data any) int {
	delivered := 0
	for _, s := range r.snapshot() {
		if err := s.Emit(typ, "", data); err == nil {
			delivered++
		}
	}
	return delivered
}

// List returns a snapshot of live sessions, oldest first.
func (r *Registry) List() []Info {
	sessions := r.snapshot()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info(r.inactivityTimeout))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

// CloseAll closes every session, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity()) < r.inactivityTimeout {
			continue
		}
		delete(r.sessions, id)
		expired = append(expired, s)
	}
	hook := r.onExpire
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		if hook != nil {
			hook(s)
		}
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
