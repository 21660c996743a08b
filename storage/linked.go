package storage

import (
	"context"
	"fmt"
)

// MarkLinked sets HasLinkedItems on every event in events that has dependent
// items attached, and clears it on the others.
func MarkLinked(ctx context.Context, store MemberStore, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}
	linked, err := store.FilterLinked(ctx, ids)
	if err != nil {
		return fmt.Errorf("filter linked events: %w", err)
	}
	set := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		set[id] = struct{}{}
	}
	for i := range events {
		_, ok := set[events[i].ID]
		events[i].HasLinkedItems = ok && events[i].ID != ""
	}
	return nil
}

// HasLinked reports whether event id has dependent items attached
func HasLinked(ctx context.Context, store MemberStore, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	linked, err := store.FilterLinked(ctx, []string{id})
	if err != nil {
		return false, err
	}
	return len(linked) > 0, nil
}
