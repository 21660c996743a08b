package recurrence

import (
	"time"
)

// Frequency is the cadence of a recurring rule
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// EndRepeatMode selects which end condition of a rule is authoritative
type EndRepeatMode string

const (
	EndByCount EndRepeatMode = "count"
	EndByUntil EndRepeatMode = "until"
)

// Rule describes how an event repeats.
//
// Count and Until are companions: only the one named by EndRepeatMode is
// meaningful, Normalize clears the other. ByMonth, ByHour and ByMinute are
// validated but not applied to expansion.
type Rule struct {
	Frequency     Frequency     `json:"frequency"`
	Interval      int           `json:"interval"`
	EndRepeatMode EndRepeatMode `json:"endRepeatMode"`
	Count         int           `json:"count,omitempty"`
	Until         time.Time     `json:"until,omitempty"`
	ByDay         string        `json:"byday,omitempty"`
	ByMonth       string        `json:"bymonth,omitempty"`
	ByHour        string        `json:"byhour,omitempty"`
	ByMinute      string        `json:"byminute,omitempty"`
}

// Normalize returns a copy of the rule with the unused end condition cleared
// and a zero interval read as 1
func (r Rule) Normalize() Rule {
	switch r.EndRepeatMode {
	case EndByCount:
		r.Until = time.Time{}
	case EndByUntil:
		r.Count = 0
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if !r.Until.IsZero() {
		r.Until = r.Until.UTC()
	}
	return r
}

// Equal reports whether two rules describe the same recurrence
func (r Rule) Equal(other Rule) bool {
	return r.Frequency == other.Frequency &&
		r.Interval == other.Interval &&
		r.EndRepeatMode == other.EndRepeatMode &&
		r.Count == other.Count &&
		r.Until.Equal(other.Until) &&
		r.ByDay == other.ByDay &&
		r.ByMonth == other.ByMonth &&
		r.ByHour == other.ByHour &&
		r.ByMinute == other.ByMinute
}

// Clone returns a pointer to a copy of r, or nil
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// RulesEqual compares two optional rules in normalized form
func RulesEqual(a, b *Rule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Normalize().Equal(b.Normalize())
}

// DefaultMaxOccurrences bounds every expansion that does not set its own cap
const DefaultMaxOccurrences = 200
