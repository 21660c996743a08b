package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/libseries/recurrence"
)

const productID = "-//libseries//Newsroom Events//EN"

// EventToICal converts a stored event into a VEVENT component. Series
// members are exported as standalone instances tied together by RELATED-TO.
func EventToICal(event Event, stamp time.Time) *ical.Event {
	ve := ical.NewEvent()
	uid := event.GUID
	if uid == "" {
		uid = event.ID
	}
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Dates.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.Dates.End.UTC())

	if name := event.Name(); name != "" {
		ve.Props.SetText(ical.PropSummary, name)
	}
	if def, ok := event.Metadata["definition_long"].(string); ok && def != "" {
		ve.Props.SetText(ical.PropDescription, def)
	}
	if event.RecurrenceID != "" {
		ve.Props.SetText(ical.PropRelatedTo, event.RecurrenceID)
	}
	return ve
}

// EventsToICS encodes events as one VCALENDAR document
func EventsToICS(events []Event, stamp time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, event := range events {
		cal.Children = append(cal.Children, EventToICal(event, stamp).Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// TemplateFromICS decodes a single VEVENT into an event. An RRULE on the
// VEVENT becomes the event's recurring rule, making it a series template.
func TemplateFromICS(ics string) (Event, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode calendar: %w", err)
	}

	events := cal.Events()
	if len(events) == 0 {
		return Event{}, &Error{Type: ErrInvalidInput, Message: "no events found in calendar"}
	}
	if len(events) > 1 {
		return Event{}, &Error{Type: ErrInvalidInput, Message: "multiple events found in calendar"}
	}
	ve := events[0]

	start, err := ve.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		return Event{}, &Error{Type: ErrInvalidInput, Message: "invalid DTSTART", Err: err}
	}
	end := start
	if ve.Props.Get(ical.PropDateTimeEnd) != nil {
		end, err = ve.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
		if err != nil {
			return Event{}, &Error{Type: ErrInvalidInput, Message: "invalid DTEND", Err: err}
		}
	} else if durProp := ve.Props.Get(ical.PropDuration); durProp != nil {
		dur, err := durProp.Duration()
		if err != nil {
			return Event{}, &Error{Type: ErrInvalidInput, Message: "invalid DURATION", Err: err}
		}
		end = start.Add(dur)
	}

	event := Event{
		Dates:    Dates{Start: start, End: end},
		Metadata: map[string]any{},
	}
	if prop := ve.Props.Get(ical.PropDateTimeStart); prop != nil {
		event.Dates.TZ = prop.Params.Get(ical.ParamTimezoneID)
	}
	if uid, err := ve.Props.Text(ical.PropUID); err == nil && uid != "" {
		event.GUID = uid
	}
	if summary, err := ve.Props.Text(ical.PropSummary); err == nil && summary != "" {
		event.Metadata["name"] = summary
	}
	if desc, err := ve.Props.Text(ical.PropDescription); err == nil && desc != "" {
		event.Metadata["definition_long"] = desc
	}
	if prop := ve.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		rule, err := recurrence.ParseRRule(prop.Value)
		if err != nil {
			return Event{}, err
		}
		event.Dates.Rule = &rule
	}

	event.Touch()
	return event, nil
}
