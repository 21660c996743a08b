package series

import (
	"context"
	"io"
	"log/slog"

	"github.com/cyp0633/libseries/notify"
	"github.com/cyp0633/libseries/storage"
)

// Applier writes a Resolution through a storage.Writer and publishes its
// notifications
type Applier struct {
	writer    storage.Writer
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewApplier creates an Applier. A nil publisher logs notifications through
// logger; a nil logger discards.
func NewApplier(writer storage.Writer, publisher notify.Publisher, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if publisher == nil {
		publisher = notify.NewLogPublisher(logger)
	}
	return &Applier{writer: writer, publisher: publisher, logger: logger}
}

type step struct {
	ids []string
	run func(ctx context.Context) error
}

// Apply performs the patches in order, then the creations, then the
// deletions. It stops at the first failure and returns a *BatchError naming
// what was applied and what is still pending. Events that already exist are
// not created again and events already gone are not deleted again, so the
// same resolution can be applied any number of times. Notifications are published
// only after every write succeeded; publish failures are logged, not
// returned.
func (a *Applier) Apply(ctx context.Context, res *Resolution) error {
	if res == nil {
		return nil
	}

	var steps []step
	for _, mp := range res.Patches {
		steps = append(steps, step{
			ids: []string{mp.ID},
			run: func(ctx context.Context) error { return a.writer.Patch(ctx, mp.ID, mp.Patch) },
		})
	}
	if len(res.Created) > 0 {
		ids := make([]string, len(res.Created))
		for i, ev := range res.Created {
			ids[i] = ev.ID
		}
		steps = append(steps, step{
			ids: ids,
			run: func(ctx context.Context) error { return a.create(ctx, res.Created) },
		})
	}
	for _, id := range res.Deleted {
		steps = append(steps, step{
			ids: []string{id},
			run: func(ctx context.Context) error { return a.delete(ctx, id) },
		})
	}

	var applied []string
	for i, s := range steps {
		if err := s.run(ctx); err != nil {
			var pending []string
			if len(s.ids) > 1 {
				pending = append(pending, s.ids[1:]...)
			}
			for _, rest := range steps[i+1:] {
				pending = append(pending, rest.ids...)
			}
			a.logger.Error("resolution partially applied",
				"failed", s.ids[0],
				"applied", len(applied),
				"pending", len(pending),
				"error", err)
			return &BatchError{Applied: applied, Failed: s.ids[0], Pending: pending, Err: err}
		}
		applied = append(applied, s.ids...)
	}

	a.logger.Info("applied resolution",
		"patched", len(res.Patches),
		"created", len(res.Created),
		"deleted", len(res.Deleted))

	for i, err := range notify.PublishAll(ctx, a.publisher, res.Notifications) {
		a.logger.Warn("failed to publish notification", "index", i, "error", err)
	}
	return nil
}

// create inserts events as one batch. When the batch collides with events
// written by an earlier attempt, the missing ones are created one by one.
func (a *Applier) create(ctx context.Context, events []storage.Event) error {
	err := a.writer.Create(ctx, events)
	if !storage.IsErrorType(err, storage.ErrAlreadyExists) {
		return err
	}
	a.logger.Debug("batch partly exists, creating remaining events", "count", len(events))
	for _, ev := range events {
		err := a.writer.Create(ctx, []storage.Event{ev})
		if err != nil && !storage.IsErrorType(err, storage.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

func (a *Applier) delete(ctx context.Context, id string) error {
	err := a.writer.Delete(ctx, id)
	if storage.IsErrorType(err, storage.ErrNotFound) {
		a.logger.Debug("event already deleted", "id", id)
		return nil
	}
	return err
}
