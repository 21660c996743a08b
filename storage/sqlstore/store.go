// Package sqlstore persists events with gorm on SQLite.
//
// Metadata is stored as a JSON document, so numeric values read back as
// float64 the way encoding/json decodes them.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"gorm.io/gorm"

	"github.com/cyp0633/libseries/storage"
)

// Store implements storage.Store on top of a gorm database
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps an opened database; see OpenDB
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Open opens dsn, migrates it and returns a Store
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := OpenDB(dsn, 0)
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(id string) error {
	return &storage.Error{
		Type:    storage.ErrNotFound,
		Message: "event not found: " + id,
	}
}

func (s *Store) Get(ctx context.Context, id string) (*storage.Event, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	event, err := row.toEvent()
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts events in one transaction; the whole batch is rejected if
// any ID already exists
func (s *Store) Create(ctx context.Context, events []storage.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventRow, 0, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			return &storage.Error{Type: storage.ErrInvalidInput, Message: "event ID is required"}
		}
		if slices.Contains(ids, e.ID) {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "duplicate event in batch: " + e.ID}
		}
		row, err := toRow(e)
		if err != nil {
			return &storage.Error{Type: storage.ErrInvalidInput, Message: "cannot encode event " + e.ID, Err: err}
		}
		rows = append(rows, row)
		ids = append(ids, e.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&eventRow{}).Where("id IN ?", ids).Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing events: %w", err)
		}
		if existing > 0 {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event already exists"}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("create events: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("created events", "count", len(rows))
	return nil
}

func (s *Store) Patch(ctx context.Context, id string, patch storage.Patch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row eventRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return fmt.Errorf("load event: %w", err)
		}
		current, err := row.toEvent()
		if err != nil {
			return err
		}
		updated, err := toRow(patch.Apply(current))
		if err != nil {
			return &storage.Error{Type: storage.ErrInvalidInput, Message: "cannot encode event " + id, Err: err}
		}
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("patched event", "id", id)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&eventRow{})
		if res.Error != nil {
			return fmt.Errorf("delete event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(id)
		}
		if err := tx.Where("event_id = ?", id).Delete(&linkRow{}).Error; err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("deleted event", "id", id)
	return nil
}

func (s *Store) ListSeries(ctx context.Context, recurrenceID, excludeID string) ([]storage.Event, error) {
	if recurrenceID == "" {
		return nil, nil
	}
	var rows []eventRow
	if err := s.db.WithContext(ctx).
		Where("recurrence_id = ? AND id <> ?", recurrenceID, excludeID).
		Order("start_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	out := make([]storage.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *Store) LinkItem(ctx context.Context, itemID, eventID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&eventRow{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if count == 0 {
		return notFound(eventID)
	}
	link := linkRow{ItemID: itemID, EventID: eventID}
	if err := s.db.WithContext(ctx).Where(link).FirstOrCreate(&link).Error; err != nil {
		return fmt.Errorf("link item: %w", err)
	}
	return nil
}

// FilterLinked returns the ids with at least one linked item, in input order
func (s *Store) FilterLinked(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var linked []string
	if err := s.db.WithContext(ctx).Model(&linkRow{}).
		Where("event_id IN ?", ids).
		Distinct().
		Pluck("event_id", &linked).Error; err != nil {
		return nil, fmt.Errorf("filter linked: %w", err)
	}

	var out []string
	for _, id := range ids {
		if slices.Contains(linked, id) {
			out = append(out, id)
		}
	}
	return out, nil
}
