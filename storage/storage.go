package storage

import (
	"context"
)

// MemberStore is the read side the series engine needs from persistence
type MemberStore interface {
	// ListSeries returns every event sharing recurrenceID except excludeID,
	// ordered by start time ascending.
	ListSeries(ctx context.Context, recurrenceID, excludeID string) ([]Event, error)
	// FilterLinked returns the subset of ids that have dependent linked items
	// (e.g. planning items) attached.
	FilterLinked(ctx context.Context, ids []string) ([]string, error)
}

// Writer applies the mutations produced by the series engine. Each call is
// a single-document write; there are no cross-document transactions.
type Writer interface {
	Create(ctx context.Context, events []Event) error
	Patch(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// Store is implemented by the bundled backends
type Store interface {
	MemberStore
	Writer

	Get(ctx context.Context, id string) (*Event, error)
	// LinkItem records a dependent item (itemID) attached to event eventID
	LinkItem(ctx context.Context, itemID, eventID string) error
}
