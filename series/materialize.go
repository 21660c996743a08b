package series

import (
	"maps"

	"github.com/cyp0633/libseries/notify"
	"github.com/cyp0633/libseries/storage"
)

// Materialize expands a template event into concrete series members.
//
// Members share the template's RecurrenceID (minted when absent) and its
// duration. System metadata, lock state and identity are not copied; each
// member gets a fresh ID equal to its GUID. A rule with no occurrences
// yields an empty slice.
func (e *Engine) Materialize(template storage.Event) ([]storage.Event, error) {
	if template.Dates.Rule == nil {
		return nil, newError(ErrNotInSeries, "template has no recurring rule")
	}
	rule := template.Dates.Rule.Normalize()
	loc, err := e.location(template.Dates.TZ)
	if err != nil {
		return nil, err
	}

	start := template.Dates.Start.UTC()
	duration := template.Dates.End.Sub(template.Dates.Start)
	occurrences, err := e.rules.Occurrences(start, rule, loc, 0)
	if err != nil {
		return nil, err
	}

	recurrenceID := template.RecurrenceID
	if recurrenceID == "" {
		recurrenceID = e.ids.NewID()
	}

	proto := template.Clone()
	proto.ID = ""
	proto.GUID = ""
	proto.LockUser = ""
	proto.LockSession = ""
	proto.LockAction = ""
	proto.LockTime = nil
	proto.HasLinkedItems = false
	maps.DeleteFunc(proto.Metadata, func(k string, _ any) bool {
		return storage.SystemField(k)
	})
	proto.RecurrenceID = recurrenceID
	proto.Dates.Rule = &rule

	members := make([]storage.Event, 0, len(occurrences))
	for _, at := range occurrences {
		m := proto.Clone()
		m.ID = e.ids.NewID()
		m.GUID = m.ID
		m.Dates.Start = at
		m.Dates.End = at.Add(duration)
		m.Touch()
		members = append(members, m)
	}

	e.logger.Debug("materialized series",
		"recurrence_id", recurrenceID,
		"frequency", rule.Frequency,
		"members", len(members))
	return members, nil
}

// CreateSeries materializes template and rejects an empty result
func (e *Engine) CreateSeries(template storage.Event) ([]storage.Event, error) {
	members, err := e.Materialize(template)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, newError(ErrEmptySeries, "rule produces no occurrences")
	}
	return members, nil
}

// Create prepares a new event for insertion. A recurring template is
// replaced by its series; the template itself is never stored.
func (e *Engine) Create(template storage.Event, actor string) (*Resolution, error) {
	event := template.Clone()
	if event.GUID == "" {
		event.GUID = e.ids.NewID()
	}
	event.ID = event.GUID
	if actor != "" {
		event.OriginalCreator = actor
	}
	event.Touch()

	res := &Resolution{}
	if event.Dates.Rule != nil {
		if err := e.rules.Validate(*event.Dates.Rule); err != nil {
			return nil, err
		}
		members, err := e.CreateSeries(event)
		if err != nil {
			return nil, err
		}
		res.Created = members
	} else {
		res.Created = []storage.Event{event}
	}
	res.Notifications = createdNotifications(res.Created)

	e.logger.Info("prepared create", "events", len(res.Created), "actor", actor)
	return res, nil
}

// createdNotifications emits one notification per standalone event and one
// per series. Members moved from another series do not notify.
func createdNotifications(events []storage.Event) []notify.Notification {
	var out []notify.Notification
	for _, ev := range events {
		if ev.PreviousRecurrenceID != "" {
			continue
		}
		n := notify.Notification{Kind: notify.EventCreated, EventID: ev.ID, ActorID: ev.OriginalCreator}
		if ev.Recurring() {
			n.Kind = notify.EventCreatedRecurring
			n.SeriesID = ev.RecurrenceID
		}
		out = append(out, n)
	}
	return notify.Dedupe(out)
}
