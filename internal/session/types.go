package session

import "time"

// Info is a read-only view of a live session.
type Info struct {
	SessionID       string    `json:"session_id"`
	ClientID        string    `json:"client_id"`
	State           State     `json:"state"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
	Reminders       int       `json:"reminders"`
}

func (s *Session) info(ttl time.Duration) Info {
	reminders := 0
	if s.Reminders != nil {
		reminders = s.Reminders.Len()
	}
	return Info{
		SessionID:       s.ID,
		ClientID:        s.ClientID,
		State:           s.State(),
		StartedAt:       s.StartedAt,
		LastActivityAt:  s.LastActivity(),
		InactivityTTLMS: ttl.Milliseconds(),
		Reminders:       reminders,
	}
}
