package storage

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libseries/recurrence"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsErrorType reports whether err is or wraps a storage Error of type t
func IsErrorType(err error, t ErrorType) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Type == t
}

// StateSpiked marks an event withdrawn while linked items still reference it
const StateSpiked = "spiked"

// Dates is the temporal block of an event. Start and End are kept in UTC;
// Duration is derived from them and recomputed on every write.
type Dates struct {
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	TZ       string           `json:"tz,omitempty"`
	Duration time.Duration    `json:"duration,omitempty"`
	Rule     *recurrence.Rule `json:"recurring_rule,omitempty"`
	ExDates  []time.Time      `json:"ex_date,omitempty"`
}

// Normalized returns a deep copy with UTC instants and a fresh duration
func (d Dates) Normalized() Dates {
	d.Start = d.Start.UTC()
	d.End = d.End.UTC()
	d.Duration = d.End.Sub(d.Start)
	if d.Rule != nil {
		r := d.Rule.Normalize()
		d.Rule = &r
	}
	if d.ExDates != nil {
		ex := make([]time.Time, len(d.ExDates))
		for i, t := range d.ExDates {
			ex[i] = t.UTC()
		}
		d.ExDates = ex
	}
	return d
}

// Event is one stored occurrence of a newsroom event
type Event struct {
	ID                   string `json:"_id"`
	GUID                 string `json:"guid"`
	RecurrenceID         string `json:"recurrence_id,omitempty"`
	PreviousRecurrenceID string `json:"previous_recurrence_id,omitempty"`

	Dates  Dates     `json:"dates"`
	Expiry time.Time `json:"expiry"`
	State  string    `json:"state,omitempty"`

	OriginalCreator string `json:"original_creator,omitempty"`
	VersionCreator  string `json:"version_creator,omitempty"`

	LockUser    string     `json:"lock_user,omitempty"`
	LockSession string     `json:"lock_session,omitempty"`
	LockAction  string     `json:"lock_action,omitempty"`
	LockTime    *time.Time `json:"lock_time,omitempty"`

	// HasLinkedItems is filled on read by MarkLinked and never persisted
	HasLinkedItems bool `json:"has_linked_items,omitempty"`

	// Metadata holds the descriptive newsroom fields (name, slugline,
	// definition, location, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recurring reports whether the event belongs to a series
func (e Event) Recurring() bool {
	return e.RecurrenceID != ""
}

// LockedByOther reports whether the event is locked by someone other than user
func (e Event) LockedByOther(user string) bool {
	return e.LockUser != "" && e.LockUser != user
}

// Name returns the "name" metadata field, if any
func (e Event) Name() string {
	name, _ := e.Metadata["name"].(string)
	return name
}

// Clone returns a deep copy of the event
func (e Event) Clone() Event {
	e.Dates = e.Dates.clone()
	e.Metadata = CloneMetadata(e.Metadata)
	if e.LockTime != nil {
		lt := *e.LockTime
		e.LockTime = &lt
	}
	return e
}

// Touch normalizes the dates and keeps Expiry equal to Dates.End
func (e *Event) Touch() {
	e.Dates = e.Dates.Normalized()
	e.Expiry = e.Dates.End
}

func (d Dates) clone() Dates {
	d.Rule = d.Rule.Clone()
	if d.ExDates != nil {
		d.ExDates = append([]time.Time(nil), d.ExDates...)
	}
	return d
}

// SystemField reports whether a metadata key is assigned by the system and
// must not be copied onto generated events
func SystemField(key string) bool {
	return strings.HasPrefix(key, "_") || strings.HasPrefix(key, "lock_")
}

// CloneMetadata deep-copies nested maps and slices of a metadata map
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMetadata(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Patch is a set of field assignments for one stored event. Every field is
// an absolute value, so applying a patch twice has the same effect as
// applying it once.
type Patch struct {
	Metadata             map[string]any
	Dates                mo.Option[Dates]
	RecurrenceID         mo.Option[string]
	PreviousRecurrenceID mo.Option[string]
	VersionCreator       mo.Option[string]
	State                mo.Option[string]
}

// Empty reports whether the patch assigns nothing
func (p Patch) Empty() bool {
	return len(p.Metadata) == 0 &&
		p.Dates.IsAbsent() &&
		p.RecurrenceID.IsAbsent() &&
		p.PreviousRecurrenceID.IsAbsent() &&
		p.VersionCreator.IsAbsent() &&
		p.State.IsAbsent()
}

// Apply returns a copy of e with the patch applied
func (p Patch) Apply(e Event) Event {
	out := e.Clone()

	if len(p.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(out.Metadata, CloneMetadata(p.Metadata))
	}
	if dates, ok := p.Dates.Get(); ok {
		out.Dates = dates.clone()
	}
	if id, ok := p.RecurrenceID.Get(); ok {
		out.RecurrenceID = id
	}
	if id, ok := p.PreviousRecurrenceID.Get(); ok {
		out.PreviousRecurrenceID = id
	}
	if user, ok := p.VersionCreator.Get(); ok {
		out.VersionCreator = user
	}
	if state, ok := p.State.Get(); ok {
		out.State = state
	}

	out.Touch()
	return out
}
