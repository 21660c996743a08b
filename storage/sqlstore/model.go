package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/storage"
)

type eventRow struct {
	ID                   string `gorm:"primaryKey;type:text"`
	GUID                 string `gorm:"type:text"`
	RecurrenceID         string `gorm:"type:text;index"`
	PreviousRecurrenceID string `gorm:"type:text"`

	StartAt  time.Time `gorm:"not null;index"`
	EndAt    time.Time `gorm:"not null"`
	TZ       string    `gorm:"type:text"`
	Rule     datatypes.JSON
	ExDates  datatypes.JSON
	Expiry   time.Time
	State    string `gorm:"type:text"`
	Metadata datatypes.JSON

	OriginalCreator string `gorm:"type:text"`
	VersionCreator  string `gorm:"type:text"`
	LockUser        string `gorm:"type:text"`
	LockSession     string `gorm:"type:text"`
	LockAction      string `gorm:"type:text"`
	LockTime        *time.Time
}

func (eventRow) TableName() string {
	return "events"
}

type linkRow struct {
	ItemID  string `gorm:"primaryKey;type:text"`
	EventID string `gorm:"primaryKey;type:text;index"`
}

func (linkRow) TableName() string {
	return "event_links"
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func emptyJSON(j datatypes.JSON) bool {
	return len(j) == 0 || string(j) == "null"
}

func toRow(e storage.Event) (eventRow, error) {
	e.Touch()
	row := eventRow{
		ID:                   e.ID,
		GUID:                 e.GUID,
		RecurrenceID:         e.RecurrenceID,
		PreviousRecurrenceID: e.PreviousRecurrenceID,
		StartAt:              e.Dates.Start,
		EndAt:                e.Dates.End,
		TZ:                   e.Dates.TZ,
		Expiry:               e.Expiry,
		State:                e.State,
		OriginalCreator:      e.OriginalCreator,
		VersionCreator:       e.VersionCreator,
		LockUser:             e.LockUser,
		LockSession:          e.LockSession,
		LockAction:           e.LockAction,
		LockTime:             e.LockTime,
	}

	var err error
	if e.Dates.Rule != nil {
		if row.Rule, err = marshalJSON(e.Dates.Rule); err != nil {
			return eventRow{}, fmt.Errorf("encode rule: %w", err)
		}
	}
	if len(e.Dates.ExDates) > 0 {
		if row.ExDates, err = marshalJSON(e.Dates.ExDates); err != nil {
			return eventRow{}, fmt.Errorf("encode ex dates: %w", err)
		}
	}
	if len(e.Metadata) > 0 {
		if row.Metadata, err = marshalJSON(e.Metadata); err != nil {
			return eventRow{}, fmt.Errorf("encode metadata: %w", err)
		}
	}
	return row, nil
}

func (r eventRow) toEvent() (storage.Event, error) {
	e := storage.Event{
		ID:                   r.ID,
		GUID:                 r.GUID,
		RecurrenceID:         r.RecurrenceID,
		PreviousRecurrenceID: r.PreviousRecurrenceID,
		Dates: storage.Dates{
			Start: r.StartAt,
			End:   r.EndAt,
			TZ:    r.TZ,
		},
		State:           r.State,
		OriginalCreator: r.OriginalCreator,
		VersionCreator:  r.VersionCreator,
		LockUser:        r.LockUser,
		LockSession:     r.LockSession,
		LockAction:      r.LockAction,
		LockTime:        r.LockTime,
	}

	if !emptyJSON(r.Rule) {
		var rule recurrence.Rule
		if err := json.Unmarshal(r.Rule, &rule); err != nil {
			return storage.Event{}, fmt.Errorf("decode rule of %s: %w", r.ID, err)
		}
		e.Dates.Rule = &rule
	}
	if !emptyJSON(r.ExDates) {
		if err := json.Unmarshal(r.ExDates, &e.Dates.ExDates); err != nil {
			return storage.Event{}, fmt.Errorf("decode ex dates of %s: %w", r.ID, err)
		}
	}
	if !emptyJSON(r.Metadata) {
		if err := json.Unmarshal(r.Metadata, &e.Metadata); err != nil {
			return storage.Event{}, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	if e.LockTime != nil {
		lt := e.LockTime.UTC()
		e.LockTime = &lt
	}

	e.Touch()
	return e, nil
}
