// Package events pushes per-user notifications to connected clients.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeItemCreated         = "item_created"
	TypeItemVerified        = "item_verified"
	TypeVerificationFailed  = "verification_failed"
	TypeVerificationTimeout = "verification_timeout"
)

// Event is a notification about one of the user's items.
type Event struct {
	Type          string    `json:"type"`
	ItemID        string    `json:"item_id,omitempty"`
	PointsAwarded int64     `json:"points_awarded,omitempty"`
	TotalPoints   int64     `json:"total_points,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Data          any       `json:"data,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher delivers events to a user.
type Publisher interface {
	Publish(userID string, e Event)
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(string, Event) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events map[string][]Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(userID string, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]Event)
	}
	r.events[userID] = append(r.events[userID], e)
}

// Events returns the events published to userID so far.
func (r *Recorder) Events(userID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events[userID]...)
}
