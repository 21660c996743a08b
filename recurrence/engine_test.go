package recurrence

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func collect(t *testing.T, e *Engine, start time.Time, rule Rule, loc *time.Location, limit int) []time.Time {
	t.Helper()
	seq, err := e.Expand(start, rule, loc, limit)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func TestExpand_WeeklyByDay(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Weekly, Interval: 1, ByDay: "MO", EndRepeatMode: EndByCount, Count: 3}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	assert.Equal(t, []time.Time{
		utc(2024, 1, 1, 9, 0),
		utc(2024, 1, 8, 9, 0),
		utc(2024, 1, 15, 9, 0),
	}, got)
}

func TestExpand_WeeklyAnchorMovesToFirstMatchingDay(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Weekly, Interval: 1, ByDay: "MO", EndRepeatMode: EndByCount, Count: 2}

	// 2024-01-03 is a Wednesday
	got := collect(t, e, utc(2024, 1, 3, 9, 0), rule, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 1, 8, 9, 0), utc(2024, 1, 15, 9, 0)}, got)
}

func TestExpand_WeekdaySet(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Weekly, Interval: 1, ByDay: "MO WE,FR", EndRepeatMode: EndByCount, Count: 4}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	assert.Equal(t, []time.Time{
		utc(2024, 1, 1, 9, 0),
		utc(2024, 1, 3, 9, 0),
		utc(2024, 1, 5, 9, 0),
		utc(2024, 1, 8, 9, 0),
	}, got)
}

func TestExpand_OrdinalByDay(t *testing.T) {
	e := NewEngine()

	first := Rule{Frequency: Monthly, Interval: 1, ByDay: "1FR", EndRepeatMode: EndByCount, Count: 2}
	got := collect(t, e, utc(2024, 1, 1, 10, 0), first, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 1, 5, 10, 0), utc(2024, 2, 2, 10, 0)}, got)

	last := Rule{Frequency: Monthly, Interval: 1, ByDay: "-1MO", EndRepeatMode: EndByCount, Count: 2}
	got = collect(t, e, utc(2024, 1, 1, 10, 0), last, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 1, 29, 10, 0), utc(2024, 2, 26, 10, 0)}, got)
}

func TestExpand_YearlyOrdinalByDay(t *testing.T) {
	e := NewEngine()

	// without bymonth the ordinal counts weekdays of the whole year
	first := Rule{Frequency: Yearly, Interval: 1, ByDay: "1FR", EndRepeatMode: EndByCount, Count: 3}
	got := collect(t, e, utc(2024, 1, 1, 10, 0), first, nil, 0)
	assert.Equal(t, []time.Time{
		utc(2024, 1, 5, 10, 0),
		utc(2025, 1, 3, 10, 0),
		utc(2026, 1, 2, 10, 0),
	}, got)

	last := Rule{Frequency: Yearly, Interval: 1, ByDay: "-1FR", EndRepeatMode: EndByCount, Count: 2}
	got = collect(t, e, utc(2024, 1, 1, 10, 0), last, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 12, 27, 10, 0), utc(2025, 12, 26, 10, 0)}, got)
}

func TestExpand_DailyIgnoresByDay(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Daily, Interval: 1, ByDay: "MO", EndRepeatMode: EndByCount, Count: 3}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 1, 1, 9, 0), utc(2024, 1, 2, 9, 0), utc(2024, 1, 3, 9, 0)}, got)
}

func TestExpand_CountIsExactAndIncreasing(t *testing.T) {
	e := NewEngine()
	start := utc(2024, 3, 15, 8, 30)

	for _, freq := range []Frequency{Daily, Weekly, Monthly, Yearly} {
		for _, count := range []int{1, 5, 12} {
			rule := Rule{Frequency: freq, Interval: 2, EndRepeatMode: EndByCount, Count: count}
			got := collect(t, e, start, rule, nil, 0)

			require.Len(t, got, count, "freq %s count %d", freq, count)
			for i := 1; i < len(got); i++ {
				assert.True(t, got[i].After(got[i-1]), "freq %s not increasing at %d", freq, i)
			}
		}
	}
}

func TestExpand_UntilIsInclusive(t *testing.T) {
	e := NewEngine()
	until := utc(2024, 1, 5, 9, 0)
	rule := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByUntil, Until: until, Count: 99}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	require.Len(t, got, 5)
	assert.Equal(t, until, got[len(got)-1])
	for _, occ := range got {
		assert.False(t, occ.After(until))
	}
}

func TestExpand_LimitCapsExpansion(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByCount, Count: 1000}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 10)
	assert.Len(t, got, 10)

	// until mode without an until date is only bounded by the cap
	open := Rule{Frequency: Weekly, Interval: 1, EndRepeatMode: EndByUntil}
	got = collect(t, e, utc(2024, 1, 1, 9, 0), open, nil, 0)
	assert.Len(t, got, DefaultMaxOccurrences)
}

func TestExpand_ZeroCountIsEmpty(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByCount, Count: 0}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	assert.Empty(t, got)

	past := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByUntil, Until: utc(2023, 12, 1, 0, 0)}
	got = collect(t, e, utc(2024, 1, 1, 9, 0), past, nil, 0)
	assert.Empty(t, got)
}

func TestExpand_WallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	e := NewEngine()
	rule := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByCount, Count: 3}

	// 09:00 CET on 2024-03-30; DST starts on 2024-03-31
	got := collect(t, e, utc(2024, 3, 30, 8, 0), rule, berlin, 0)
	assert.Equal(t, []time.Time{
		utc(2024, 3, 30, 8, 0),
		utc(2024, 3, 31, 7, 0),
		utc(2024, 4, 1, 7, 0),
	}, got)
	for _, occ := range got {
		assert.Equal(t, time.UTC, occ.Location())
	}

	// without a zone the arithmetic stays in UTC
	got = collect(t, e, utc(2024, 3, 30, 8, 0), rule, nil, 0)
	assert.Equal(t, utc(2024, 3, 31, 8, 0), got[1])
}

func TestExpand_Restartable(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Weekly, Interval: 1, ByDay: "TU TH", EndRepeatMode: EndByCount, Count: 6}

	seq, err := e.Expand(utc(2024, 1, 1, 9, 0), rule, nil, 0)
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Len(t, first, 6)
}

func TestExpand_InvalidRules(t *testing.T) {
	e := NewEngine()
	start := utc(2024, 1, 1, 9, 0)

	tests := []struct {
		name string
		rule Rule
	}{
		{"unknown frequency", Rule{Frequency: "HOURLY", EndRepeatMode: EndByCount, Count: 1}},
		{"missing end mode", Rule{Frequency: Daily, Count: 1}},
		{"bad end mode", Rule{Frequency: Daily, EndRepeatMode: "forever"}},
		{"bad ordinal", Rule{Frequency: Monthly, ByDay: "9FR", EndRepeatMode: EndByCount, Count: 1}},
		{"three letter day", Rule{Frequency: Monthly, ByDay: "-2MON", EndRepeatMode: EndByCount, Count: 1}},
		{"unknown weekday", Rule{Frequency: Weekly, ByDay: "MO XX", EndRepeatMode: EndByCount, Count: 1}},
		{"negative interval", Rule{Frequency: Weekly, Interval: -1, EndRepeatMode: EndByCount, Count: 1}},
		{"bad byhour", Rule{Frequency: Daily, ByHour: "25", EndRepeatMode: EndByCount, Count: 1}},
		{"bad bymonth", Rule{Frequency: Yearly, ByMonth: "jan", EndRepeatMode: EndByCount, Count: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Expand(start, tt.rule, nil, 0)
			require.Error(t, err)
			assert.True(t, IsInvalidRule(err), "got %T: %v", err, err)
		})
	}
}

func TestExpand_FilterFieldsAreNotApplied(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Daily, Interval: 1, ByHour: "6,18", ByMinute: "15", EndRepeatMode: EndByCount, Count: 2}

	got := collect(t, e, utc(2024, 1, 1, 9, 0), rule, nil, 0)
	assert.Equal(t, []time.Time{utc(2024, 1, 1, 9, 0), utc(2024, 1, 2, 9, 0)}, got)
}

func TestNextOccurrence(t *testing.T) {
	e := NewEngine()
	rule := Rule{Frequency: Weekly, Interval: 1, ByDay: "FR", EndRepeatMode: EndByCount, Count: 5}

	next, ok, err := e.NextOccurrence(utc(2024, 1, 1, 9, 0), rule, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, utc(2024, 1, 5, 9, 0), next)

	_, ok, err = e.NextOccurrence(utc(2024, 1, 1, 9, 0), Rule{Frequency: Daily, EndRepeatMode: EndByCount}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOccurrences_UsesCache(t *testing.T) {
	e := NewEngineWithConfig(DefaultEngineConfig)
	defer e.Close()

	rule := Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByCount, Count: 4}
	first, err := e.Occurrences(utc(2024, 1, 1, 9, 0), rule, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, e.CacheStats().TotalEntries)

	first[0] = time.Time{}
	second, err := e.Occurrences(utc(2024, 1, 1, 9, 0), rule, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, utc(2024, 1, 1, 9, 0), second[0], "cached slice must not alias caller copies")
	assert.Equal(t, 1, e.CacheStats().TotalEntries)
}

func TestRule_Normalize(t *testing.T) {
	until := utc(2024, 2, 1, 0, 0)

	byCount := Rule{Frequency: Daily, EndRepeatMode: EndByCount, Count: 3, Until: until}.Normalize()
	assert.True(t, byCount.Until.IsZero())
	assert.Equal(t, 3, byCount.Count)
	assert.Equal(t, 1, byCount.Interval)

	byUntil := Rule{Frequency: Daily, Interval: 2, EndRepeatMode: EndByUntil, Count: 3, Until: until}.Normalize()
	assert.Zero(t, byUntil.Count)
	assert.Equal(t, until, byUntil.Until)
	assert.Equal(t, 2, byUntil.Interval)
}
