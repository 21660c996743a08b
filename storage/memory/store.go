// memory based implementation for testing and the demo command
package memory

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/cyp0633/libseries/storage"
)

// Store implements storage.Store using in-memory maps
type Store struct {
	mu     sync.RWMutex
	events map[string]*storage.Event
	links  map[string]map[string]struct{} // key: eventID, value: linked item IDs
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new in-memory storage
func New(opts ...Option) *Store {
	s := &Store{
		events: make(map[string]*storage.Event),
		links:  make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func notFound(id string) error {
	return &storage.Error{
		Type:    storage.ErrNotFound,
		Message: "event not found: " + id,
	}
}

// Event operations

func (s *Store) Get(_ context.Context, id string) (*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, notFound(id)
	}
	out := event.Clone()
	return &out, nil
}

// Create inserts events; the whole batch is rejected if any ID already exists
func (s *Store) Create(_ context.Context, events []storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.ID == "" {
			return &storage.Error{Type: storage.ErrInvalidInput, Message: "event ID is required"}
		}
		if _, ok := s.events[e.ID]; ok {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event already exists: " + e.ID}
		}
		if _, ok := seen[e.ID]; ok {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "duplicate event in batch: " + e.ID}
		}
		seen[e.ID] = struct{}{}
	}

	for _, e := range events {
		stored := e.Clone()
		stored.HasLinkedItems = false
		stored.Touch()
		s.events[e.ID] = &stored
	}
	s.logger.Debug("created events", "count", len(events))
	return nil
}

func (s *Store) Patch(_ context.Context, id string, patch storage.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return notFound(id)
	}
	updated := patch.Apply(*event)
	s.events[id] = &updated
	s.logger.Debug("patched event", "id", id)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return notFound(id)
	}
	delete(s.events, id)
	delete(s.links, id)
	s.logger.Debug("deleted event", "id", id)
	return nil
}

// Series operations

func (s *Store) ListSeries(_ context.Context, recurrenceID, excludeID string) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if recurrenceID == "" {
		return nil, nil
	}
	var out []storage.Event
	for id, e := range s.events {
		if id == excludeID || e.RecurrenceID != recurrenceID {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b storage.Event) int {
		if c := a.Dates.Start.Compare(b.Dates.Start); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

// Link operations

func (s *Store) LinkItem(_ context.Context, itemID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return notFound(eventID)
	}
	items, ok := s.links[eventID]
	if !ok {
		items = make(map[string]struct{})
		s.links[eventID] = items
	}
	items[itemID] = struct{}{}
	return nil
}

func (s *Store) FilterLinked(_ context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range ids {
		if len(s.links[id]) > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}
