package series

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/storage"
)

// TimeOfDay is a wall-clock time in UTC
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns day with its hour and minute replaced, keeping the UTC date
// and the seconds
func (t TimeOfDay) On(day time.Time) time.Time {
	u := day.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), t.Hour, t.Minute, u.Second(), u.Nanosecond(), time.UTC)
}

func timeOfDay(t time.Time) TimeOfDay {
	u := t.UTC()
	return TimeOfDay{Hour: u.Hour(), Minute: u.Minute()}
}

// DateChange is the outcome of comparing two date blocks
type DateChange struct {
	TimeOnly bool
	NewStart mo.Option[TimeOfDay]
	NewEnd   mo.Option[TimeOfDay]
}

// ClassifyDateChange decides whether updated differs from original only in
// the time of day of start and/or end. Duration is derived and not compared.
func ClassifyDateChange(original, updated storage.Dates) DateChange {
	substantive := DateChange{}

	if original.TZ != updated.TZ ||
		!recurrence.RulesEqual(original.Rule, updated.Rule) ||
		!slices.EqualFunc(original.ExDates, updated.ExDates, time.Time.Equal) {
		return substantive
	}

	change := DateChange{TimeOnly: true}
	if !original.Start.Equal(updated.Start) {
		if !sameDate(original.Start, updated.Start) {
			return substantive
		}
		change.NewStart = mo.Some(timeOfDay(updated.Start))
	}
	if !original.End.Equal(updated.End) {
		if !sameDate(original.End, updated.End) {
			return substantive
		}
		change.NewEnd = mo.Some(timeOfDay(updated.End))
	}
	return change
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
