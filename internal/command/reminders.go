package command

import (
	"sync"
	"time"
)

type Reminder struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Reminders is an append-only list owned by one session.
type Reminders struct {
	mu    sync.Mutex
	items []Reminder
}

func (r *Reminders) Add(rem Reminder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, rem)
}

// List returns a copy in creation order.
func (r *Reminders) List() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reminder, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Reminders) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
