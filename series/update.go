package series

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libseries/notify"
	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/storage"
)

// Scope is the breadth of a series update or deletion
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

func (s Scope) valid() bool {
	switch s {
	case ScopeSingle, ScopeFuture, ScopeAll:
		return true
	}
	return false
}

// Updates is an incoming change to an event. An absent Dates leaves the
// dates untouched; a present Dates with a nil Rule removes recurrence.
type Updates struct {
	Metadata map[string]any
	Dates    mo.Option[storage.Dates]
}

// MemberPatch is a patch addressed to one stored event
type MemberPatch struct {
	ID    string
	Patch storage.Patch

	// start of the event before patching, used for ordering
	start time.Time
}

// Resolution is everything an operation decided to do. Patches are ordered
// by the ascending start of the events they address, so an aborted batch
// leaves a contiguous prefix of the series applied.
type Resolution struct {
	Patches       []MemberPatch
	Created       []storage.Event
	Deleted       []string
	Notifications []notify.Notification
}

// ByID returns the patches keyed by event ID
func (r *Resolution) ByID() map[string]storage.Patch {
	out := make(map[string]storage.Patch, len(r.Patches))
	for _, mp := range r.Patches {
		out[mp.ID] = mp.Patch
	}
	return out
}

func (r *Resolution) patch(ev storage.Event, p storage.Patch) {
	r.Patches = append(r.Patches, MemberPatch{ID: ev.ID, Patch: p, start: ev.Dates.Start})
}

// sortPatches orders patches like sortByStart orders events
func (r *Resolution) sortPatches() {
	slices.SortStableFunc(r.Patches, func(a, b MemberPatch) int {
		if c := a.start.Compare(b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (r *Resolution) notify(n notify.Notification) {
	r.Notifications = append(r.Notifications, n)
}

// update strategies, produced by classifyUpdate only
type (
	strategy interface{ strategyName() string }

	singleUpdate     struct{}
	metadataUpdate   struct{ scope Scope }
	ruleRemoved      struct{}
	nextOccurrence   struct{}
	seriesTimeUpdate struct{ scope Scope }
)

func (singleUpdate) strategyName() string     { return "single_update" }
func (metadataUpdate) strategyName() string   { return "metadata_update" }
func (ruleRemoved) strategyName() string      { return "rule_removed" }
func (nextOccurrence) strategyName() string   { return "scope_single" }
func (seriesTimeUpdate) strategyName() string { return "scope_future_or_all" }

func classifyUpdate(original storage.Event, updates Updates, scope Scope) strategy {
	if !original.Recurring() {
		return singleUpdate{}
	}
	dates, ok := updates.Dates.Get()
	switch {
	case !ok:
		return metadataUpdate{scope: scope}
	case dates.Rule == nil:
		return ruleRemoved{}
	case scope == ScopeSingle:
		return nextOccurrence{}
	default:
		return seriesTimeUpdate{scope: scope}
	}
}

// ResolveUpdate decides how an update to original propagates through its
// series. Nothing is written; apply the returned Resolution to persist it.
func (e *Engine) ResolveUpdate(ctx context.Context, original storage.Event, updates Updates, scope Scope, actor string) (*Resolution, error) {
	if original.LockedByOther(actor) {
		return nil, newError(ErrConflict, "event %s is locked by another user", original.ID)
	}
	if scope == "" {
		scope = ScopeSingle
	}
	if !scope.valid() {
		return nil, newError(ErrInvalidScope, "unknown scope %q", scope)
	}
	if dates, ok := updates.Dates.Get(); ok && dates.Rule != nil {
		if err := e.rules.Validate(*dates.Rule); err != nil {
			return nil, err
		}
	}

	st := classifyUpdate(original, updates, scope)
	e.logger.Debug("resolving update",
		"event_id", original.ID,
		"recurrence_id", original.RecurrenceID,
		"strategy", st.strategyName(),
		"scope", scope)

	res := &Resolution{}
	var err error
	switch s := st.(type) {
	case singleUpdate:
		err = e.resolveSingle(original, updates, actor, res)
	case metadataUpdate:
		err = e.resolveMetadata(ctx, original, updates, s.scope, actor, res)
	case ruleRemoved:
		err = e.resolveRuleRemoved(ctx, original, updates, actor, res)
	case nextOccurrence:
		err = e.resolveNextOccurrence(original, updates, actor, res)
	case seriesTimeUpdate:
		err = e.resolveSeriesTime(ctx, original, updates, s.scope, actor, res)
	default:
		err = fmt.Errorf("unhandled update strategy %T", st)
	}
	if err != nil {
		return nil, err
	}
	res.sortPatches()
	res.Notifications = notify.Dedupe(res.Notifications)
	return res, nil
}

// targetPatch is the update applied to the selected event itself
func targetPatch(updates Updates, actor string) storage.Patch {
	p := storage.Patch{Metadata: maps.Clone(updates.Metadata)}
	if dates, ok := updates.Dates.Get(); ok {
		p.Dates = mo.Some(dates.Normalized())
	}
	if actor != "" {
		p.VersionCreator = mo.Some(actor)
	}
	return p
}

func (e *Engine) resolveSingle(original storage.Event, updates Updates, actor string, res *Resolution) error {
	p := targetPatch(updates, actor)
	dates, ok := p.Dates.Get()
	if !ok || dates.Rule == nil || original.Dates.Rule != nil {
		res.patch(original, p)
		res.notify(notify.Notification{Kind: notify.EventUpdated, EventID: original.ID, ActorID: actor})
		return nil
	}

	// the event becomes the first member of a new series
	recurrenceID := e.ids.NewID()
	merged := p.Apply(original)
	merged.RecurrenceID = recurrenceID

	members, err := e.Materialize(merged)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return newError(ErrEmptySeries, "rule produces no occurrences")
	}

	dates.Start = members[0].Dates.Start
	dates.End = members[0].Dates.End
	p.Dates = mo.Some(dates)
	p.RecurrenceID = mo.Some(recurrenceID)
	res.patch(original, p)
	res.Created = members[1:]
	res.notify(notify.Notification{
		Kind:     notify.EventUpdatedRecurring,
		EventID:  original.ID,
		SeriesID: recurrenceID,
		ActorID:  actor,
	})
	return nil
}

func (e *Engine) resolveMetadata(ctx context.Context, original storage.Event, updates Updates, scope Scope, actor string, res *Resolution) error {
	res.patch(original, targetPatch(updates, actor))

	if scope != ScopeSingle && len(updates.Metadata) > 0 {
		tl, err := e.Timeline(ctx, original)
		if err != nil {
			return err
		}
		members := tl.Future
		if scope == ScopeAll {
			members = tl.All()
		}
		for _, m := range members {
			if m.ID == "" {
				continue
			}
			mp := storage.Patch{Metadata: maps.Clone(updates.Metadata)}
			if actor != "" {
				mp.VersionCreator = mo.Some(actor)
			}
			res.patch(m, mp)
		}
	}

	res.notify(notify.Notification{
		Kind:     notify.EventUpdatedRecurring,
		EventID:  original.ID,
		SeriesID: original.RecurrenceID,
		ActorID:  actor,
	})
	return nil
}

func (e *Engine) resolveRuleRemoved(ctx context.Context, original storage.Event, updates Updates, actor string, res *Resolution) error {
	if !original.Recurring() {
		return newError(ErrNotInSeries, "cannot remove the rule of standalone event %s", original.ID)
	}
	tl, err := e.Timeline(ctx, original)
	if err != nil {
		return err
	}

	p := targetPatch(updates, actor)
	p.RecurrenceID = mo.Some("")
	res.patch(original, p)
	res.notify(notify.Notification{Kind: notify.EventUpdated, EventID: original.ID, ActorID: actor})

	before := tl.Before()
	if terminateSeries(before, res) {
		res.notify(notify.Notification{
			Kind:     notify.EventUpdatedRecurring,
			EventID:  original.ID,
			SeriesID: original.RecurrenceID,
			ActorID:  actor,
		})
	}

	if len(tl.Future) > 0 {
		newID := e.ids.NewID()
		removed := len(before) + 1
		for _, m := range tl.Future {
			dates := m.Dates
			if m.Dates.Rule != nil {
				rule := m.Dates.Rule.Normalize()
				if rule.EndRepeatMode == recurrence.EndByCount {
					rule.Count -= removed
				}
				dates.Rule = &rule
			}
			res.patch(m, storage.Patch{
				Dates:                mo.Some(dates.Normalized()),
				RecurrenceID:         mo.Some(newID),
				PreviousRecurrenceID: mo.Some(original.RecurrenceID),
			})
		}
		res.notify(notify.Notification{
			Kind:             notify.EventUpdatedRecurring,
			EventID:          original.ID,
			SeriesID:         newID,
			PreviousSeriesID: original.RecurrenceID,
			ActorID:          actor,
		})
	}
	return nil
}

// terminateSeries ends every member of the left-behind series at the start of
// its last member. It reports whether any patch was added.
func terminateSeries(members []storage.Event, res *Resolution) bool {
	if len(members) == 0 {
		return false
	}
	until := members[len(members)-1].Dates.Start
	patched := false
	for _, m := range members {
		if m.Dates.Rule == nil || m.ID == "" {
			continue
		}
		rule := m.Dates.Rule.Normalize()
		rule.EndRepeatMode = recurrence.EndByUntil
		rule.Until = until.UTC()
		rule.Count = 0

		dates := m.Dates
		dates.Rule = &rule
		res.patch(m, storage.Patch{Dates: mo.Some(dates.Normalized())})
		patched = true
	}
	return patched
}

func (e *Engine) resolveNextOccurrence(original storage.Event, updates Updates, actor string, res *Resolution) error {
	p := targetPatch(updates, actor)
	dates, ok := p.Dates.Get()
	if !ok || dates.Rule == nil {
		return newError(ErrNotInSeries, "update of %s carries no recurring rule", original.ID)
	}
	loc, err := e.location(dates.TZ)
	if err != nil {
		return err
	}

	next, found, err := e.rules.NextOccurrence(dates.Start, *dates.Rule, loc)
	if err != nil {
		return err
	}
	if !found {
		return newError(ErrEmptySeries, "rule of %s produces no occurrences", original.ID)
	}
	duration := dates.End.Sub(dates.Start)
	dates.Start = next
	dates.End = next.Add(duration)
	p.Dates = mo.Some(dates.Normalized())

	res.patch(original, p)
	res.notify(notify.Notification{
		Kind:     notify.EventUpdatedRecurring,
		EventID:  original.ID,
		SeriesID: original.RecurrenceID,
		ActorID:  actor,
	})
	return nil
}

func (e *Engine) resolveSeriesTime(ctx context.Context, original storage.Event, updates Updates, scope Scope, actor string, res *Resolution) error {
	dates, _ := updates.Dates.Get()
	change := ClassifyDateChange(original.Dates, dates)
	if !change.TimeOnly {
		return newError(ErrScopeNotPermitted,
			"%s update of %s changes more than the time of day; use reschedule", scope, original.ID)
	}

	tl, err := e.Timeline(ctx, original)
	if err != nil {
		return err
	}
	if tl.First() {
		scope = ScopeFuture
	}

	res.patch(original, targetPatch(updates, actor))

	members := tl.Future
	if scope == ScopeAll {
		members = append(append([]storage.Event(nil), tl.Past...), tl.Future...)
		sortByStart(members)
	}
	start, hasStart := change.NewStart.Get()
	end, hasEnd := change.NewEnd.Get()
	if hasStart || hasEnd {
		for _, m := range members {
			if m.ID == "" {
				e.logger.Debug("skipping unsaved series member", "recurrence_id", original.RecurrenceID)
				continue
			}
			shifted := m.Dates
			if hasStart {
				shifted.Start = start.On(shifted.Start)
			}
			if hasEnd {
				shifted.End = end.On(shifted.End)
			}
			res.patch(m, storage.Patch{Dates: mo.Some(shifted.Normalized())})
		}
	}

	res.notify(notify.Notification{
		Kind:     notify.EventUpdatedRecurring,
		EventID:  original.ID,
		SeriesID: original.RecurrenceID,
		ActorID:  actor,
	})
	return nil
}
