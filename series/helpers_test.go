package series

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/storage"
	"github.com/cyp0633/libseries/storage/memory"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func weeklyCount(count int) *recurrence.Rule {
	return &recurrence.Rule{
		Frequency:     recurrence.Weekly,
		Interval:      1,
		EndRepeatMode: recurrence.EndByCount,
		Count:         count,
		ByDay:         "MO",
	}
}

func newTestEngine(store storage.MemberStore, now time.Time) *Engine {
	return NewEngine(store,
		WithClock(fixedClock(now)),
		WithIDGenerator(&seqIDs{prefix: "id-"}))
}

// seedSeries materializes a weekly Monday series starting 2024-01-01 09:00Z
// into a memory store and returns the members in start order
func seedSeries(t *testing.T, store *memory.Store, count int) []storage.Event {
	t.Helper()
	e := NewEngine(nil, WithIDGenerator(&seqIDs{prefix: "m"}))
	template := storage.Event{
		Dates: storage.Dates{
			Start: utc(2024, 1, 1, 9, 0),
			End:   utc(2024, 1, 1, 10, 0),
			Rule:  weeklyCount(count),
		},
		Metadata: map[string]any{"name": "Council meeting"},
	}
	members, err := e.CreateSeries(template)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), members))
	return members
}

func patchFor(t *testing.T, res *Resolution, id string) storage.Patch {
	t.Helper()
	p, ok := res.ByID()[id]
	require.True(t, ok, "no patch for %s", id)
	return p
}

func patchedIDs(res *Resolution) []string {
	ids := make([]string, len(res.Patches))
	for i, mp := range res.Patches {
		ids[i] = mp.ID
	}
	return ids
}
