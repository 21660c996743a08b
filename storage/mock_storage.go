package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListSeries(ctx context.Context, recurrenceID, excludeID string) ([]Event, error) {
	args := m.Called(ctx, recurrenceID, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockStore) FilterLinked(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id string) (*Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, events []Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockStore) Patch(ctx context.Context, id string, patch Patch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) LinkItem(ctx context.Context, itemID, eventID string) error {
	args := m.Called(ctx, itemID, eventID)
	return args.Error(0)
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a test Event spanning one hour from start
func NewMockEvent(id, recurrenceID string, start time.Time) Event {
	e := Event{
		ID:           id,
		GUID:         id,
		RecurrenceID: recurrenceID,
		Dates: Dates{
			Start: start,
			End:   start.Add(time.Hour),
		},
		Metadata: map[string]any{"name": "event " + id},
	}
	e.Touch()
	return e
}
