package series

import (
	"context"
	"fmt"

	"github.com/samber/mo"

	"github.com/cyp0633/libseries/notify"
	"github.com/cyp0633/libseries/storage"
)

// ResolveDelete decides which events a deletion removes. Events with linked
// items are spiked instead of deleted. Deleting the future of a series ends
// the members left behind at the start of the last of them.
func (e *Engine) ResolveDelete(ctx context.Context, original storage.Event, scope Scope, actor string) (*Resolution, error) {
	if original.LockedByOther(actor) {
		return nil, newError(ErrConflict, "event %s is locked by another user", original.ID)
	}
	if scope == "" {
		scope = ScopeSingle
	}
	if !scope.valid() {
		return nil, newError(ErrInvalidScope, "unknown scope %q", scope)
	}

	res := &Resolution{}
	affected := []storage.Event{original}
	kind := notify.EventDeleted

	if original.Recurring() && scope != ScopeSingle {
		tl, err := e.Timeline(ctx, original)
		if err != nil {
			return nil, err
		}
		kind = notify.EventDeletedRecurring
		if scope == ScopeAll || tl.First() {
			affected = append(affected, tl.All()...)
		} else {
			affected = append(affected, tl.Future...)
			terminateSeries(tl.Before(), res)
		}
	}

	ids := make([]string, 0, len(affected))
	for _, ev := range affected {
		if ev.ID != "" {
			ids = append(ids, ev.ID)
		}
	}
	linked, err := e.linked(ctx, ids)
	if err != nil {
		return nil, err
	}

	spike := storage.Patch{State: mo.Some(storage.StateSpiked)}
	if actor != "" {
		spike.VersionCreator = mo.Some(actor)
	}
	spiked := 0
	for _, ev := range affected {
		if ev.ID == "" {
			continue
		}
		if _, ok := linked[ev.ID]; !ok {
			res.Deleted = append(res.Deleted, ev.ID)
			continue
		}
		res.patch(ev, spike)
		spiked++
	}
	res.sortPatches()

	res.notify(notify.Notification{
		Kind:     kind,
		EventID:  original.ID,
		SeriesID: original.RecurrenceID,
		ActorID:  actor,
	})
	e.logger.Debug("resolved delete",
		"event_id", original.ID,
		"scope", scope,
		"deleted", len(res.Deleted),
		"spiked", spiked)
	return res, nil
}

func (e *Engine) linked(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if e.store == nil || len(ids) == 0 {
		return nil, nil
	}
	found, err := e.store.FilterLinked(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("filter linked events: %w", err)
	}
	out := make(map[string]struct{}, len(found))
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}
