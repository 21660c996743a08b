package recurrence

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

var frequencies = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// Engine expands recurrence rules into occurrence instants
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
}

// NewEngine creates a new recurrence engine with caching disabled
func NewEngine() *Engine {
	return NewEngineWithConfig(DisabledCacheConfig)
}

// Validate checks a rule without expanding it
func (e *Engine) Validate(rule Rule) error {
	_, err := buildOption(time.Time{}, rule.Normalize(), nil)
	return err
}

// Expand returns the occurrence start instants of rule anchored at start.
//
// With a non-nil loc the arithmetic runs on loc's wall clock so an event at
// 09:00 stays at 09:00 across DST changes; returned instants are always UTC.
// The sequence stops at the rule's own end condition and never yields more
// than limit values (limit <= 0 means the engine default). Ranging over the
// sequence again restarts it from the anchor.
func (e *Engine) Expand(start time.Time, rule Rule, loc *time.Location, limit int) (iter.Seq[time.Time], error) {
	rule = rule.Normalize()
	opt, err := buildOption(start, rule, loc)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.maxOccurrences()
	}

	// count mode with nothing to count; rrule reads Count == 0 as unbounded
	if rule.EndRepeatMode == EndByCount && rule.Count <= 0 {
		return func(func(time.Time) bool) {}, nil
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, &InvalidRuleError{Field: "rule", Value: string(rule.Frequency), Message: "rejected by rrule", Err: err}
	}

	return func(yield func(time.Time) bool) {
		next := r.Iterator()
		for produced := 0; produced < limit; produced++ {
			t, ok := next()
			if !ok {
				return
			}
			if !yield(t.UTC()) {
				return
			}
		}
	}, nil
}

// Occurrences collects the expansion of rule into a slice, consulting the
// cache when one is configured
func (e *Engine) Occurrences(start time.Time, rule Rule, loc *time.Location, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = e.maxOccurrences()
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(start, rule, loc, limit); ok {
			return cached, nil
		}
	}

	seq, err := e.Expand(start, rule, loc, limit)
	if err != nil {
		return nil, err
	}
	out := slices.Collect(seq)

	if e.cache != nil {
		e.cache.Set(start, rule, loc, limit, out)
	}
	return out, nil
}

// NextOccurrence returns the first occurrence of rule at or after start
func (e *Engine) NextOccurrence(start time.Time, rule Rule, loc *time.Location) (time.Time, bool, error) {
	seq, err := e.Expand(start, rule, loc, 1)
	if err != nil {
		return time.Time{}, false, err
	}
	for t := range seq {
		return t, true, nil
	}
	return time.Time{}, false, nil
}

// Close releases the cache cleanup goroutine, if any
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache usage; the zero value when caching is disabled
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

func (e *Engine) maxOccurrences() int {
	if e.config.MaxOccurrences > 0 {
		return e.config.MaxOccurrences
	}
	return DefaultMaxOccurrences
}

// buildOption validates rule and translates it into rrule options.
// rule must already be normalized.
func buildOption(start time.Time, rule Rule, loc *time.Location) (rrule.ROption, error) {
	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return rrule.ROption{}, invalid("frequency", string(rule.Frequency), "unsupported frequency")
	}
	switch rule.EndRepeatMode {
	case EndByCount, EndByUntil:
	default:
		return rrule.ROption{}, invalid("endRepeatMode", string(rule.EndRepeatMode), "must be count or until")
	}
	if rule.Interval < 0 {
		return rrule.ROption{}, invalid("interval", fmt.Sprint(rule.Interval), "must be positive")
	}
	if err := validateIntList("bymonth", rule.ByMonth, 1, 12); err != nil {
		return rrule.ROption{}, err
	}
	if err := validateIntList("byhour", rule.ByHour, 0, 23); err != nil {
		return rrule.ROption{}, err
	}
	if err := validateIntList("byminute", rule.ByMinute, 0, 59); err != nil {
		return rrule.ROption{}, err
	}

	var byweekday []rrule.Weekday
	if rule.Frequency != Daily {
		days, err := parseByDay(rule.ByDay)
		if err != nil {
			return rrule.ROption{}, err
		}
		byweekday = days
	}

	if loc == nil {
		loc = time.UTC
	}
	opt := rrule.ROption{
		Freq:      freq,
		Dtstart:   start.In(loc),
		Interval:  rule.Interval,
		Byweekday: byweekday,
	}
	switch rule.EndRepeatMode {
	case EndByCount:
		opt.Count = rule.Count
	case EndByUntil:
		if !rule.Until.IsZero() {
			opt.Until = rule.Until.In(loc)
		}
	}
	return opt, nil
}
