package series

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cyp0633/libseries/storage"
)

// Timeline splits the other members of a series around a selected member
type Timeline struct {
	Historic []storage.Event // ended before now
	Past     []storage.Event // not ended, starting before the selected member
	Future   []storage.Event // starting after the selected member
}

// Before returns historic and past members ordered by start
func (t Timeline) Before() []storage.Event {
	out := append(slices.Clone(t.Historic), t.Past...)
	sortByStart(out)
	return out
}

// All returns every member of the timeline ordered by start
func (t Timeline) All() []storage.Event {
	out := append(t.Before(), t.Future...)
	sortByStart(out)
	return out
}

// First reports whether nothing precedes the selected member
func (t Timeline) First() bool {
	return len(t.Historic) == 0 && len(t.Past) == 0
}

// Partition classifies members relative to now and to selected.
//
// A member that has ended before now is historic regardless of where it sits
// relative to selected. A member starting exactly when selected starts goes
// to past if its ID sorts before selected's ID, otherwise to future.
func Partition(members []storage.Event, selected storage.Event, now time.Time) Timeline {
	var tl Timeline
	pivot := selected.Dates.Start
	for _, m := range members {
		if m.ID != "" && m.ID == selected.ID {
			continue
		}
		switch {
		case m.Dates.End.Before(now):
			tl.Historic = append(tl.Historic, m)
		case m.Dates.Start.Before(pivot):
			tl.Past = append(tl.Past, m)
		case m.Dates.Start.After(pivot):
			tl.Future = append(tl.Future, m)
		case m.ID < selected.ID:
			tl.Past = append(tl.Past, m)
		default:
			tl.Future = append(tl.Future, m)
		}
	}
	sortByStart(tl.Historic)
	sortByStart(tl.Past)
	sortByStart(tl.Future)
	return tl
}

// Timeline loads the other members of selected's series and partitions them
// at the engine clock's now
func (e *Engine) Timeline(ctx context.Context, selected storage.Event) (Timeline, error) {
	if !selected.Recurring() {
		return Timeline{}, newError(ErrNotInSeries, "event %s is not part of a series", selected.ID)
	}
	if e.store == nil {
		return Timeline{}, fmt.Errorf("series engine has no member store")
	}
	members, err := e.store.ListSeries(ctx, selected.RecurrenceID, selected.ID)
	if err != nil {
		return Timeline{}, fmt.Errorf("list series %s: %w", selected.RecurrenceID, err)
	}
	return Partition(members, selected, e.clock.Now()), nil
}

func sortByStart(events []storage.Event) {
	slices.SortStableFunc(events, func(a, b storage.Event) int {
		if c := a.Dates.Start.Compare(b.Dates.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
