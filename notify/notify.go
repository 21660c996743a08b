// Package notify carries series notifications to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Kind names a notification type
type Kind string

const (
	EventCreated          Kind = "events:created"
	EventCreatedRecurring Kind = "events:created:recurring"
	EventUpdated          Kind = "events:updated"
	EventUpdatedRecurring Kind = "events:updated:recurring"
	EventDeleted          Kind = "events:deleted"
	EventDeletedRecurring Kind = "events:deleted:recurring"
)

// Notification is the payload published for one logical change
type Notification struct {
	Kind             Kind   `json:"kind"`
	EventID          string `json:"eventId,omitempty"`
	SeriesID         string `json:"seriesId,omitempty"`
	PreviousSeriesID string `json:"previousSeriesId,omitempty"`
	ActorID          string `json:"actorId,omitempty"`
}

// key identifies the logical change a notification reports. Recurring kinds
// collapse per series (and per previous/new pair); the others per event.
func (n Notification) key() string {
	if n.SeriesID != "" && n.recurring() {
		return fmt.Sprintf("%s|series:%s|prev:%s", n.Kind, n.SeriesID, n.PreviousSeriesID)
	}
	return fmt.Sprintf("%s|event:%s", n.Kind, n.EventID)
}

func (n Notification) recurring() bool {
	switch n.Kind {
	case EventCreatedRecurring, EventUpdatedRecurring, EventDeletedRecurring:
		return true
	}
	return false
}

// Encode returns the JSON wire form
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// Dedupe drops repeated notifications, keeping the first of each logical change
func Dedupe(ns []Notification) []Notification {
	if len(ns) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ns))
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		k := n.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Publisher delivers notifications. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// PublishAll deduplicates ns and publishes each one, continuing past
// failures. It returns the failures keyed by position in the deduplicated
// list.
func PublishAll(ctx context.Context, p Publisher, ns []Notification) map[int]error {
	var failed map[int]error
	for i, n := range Dedupe(ns) {
		if err := p.Publish(ctx, n); err != nil {
			if failed == nil {
				failed = make(map[int]error)
			}
			failed[i] = err
		}
	}
	return failed
}

// Recorder keeps published notifications in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Publish(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of everything published so far
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
