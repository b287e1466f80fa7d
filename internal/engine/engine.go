// Package engine turns the raw stream of posted/updated/removed
// notification events into consolidated drawer records and owns every
// state transition on them: visibility, read state, pinning, and the
// administrative bulk actions. All mutations go through the store's
// per-key critical section; the engine itself performs no network or UI
// work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/twhuang/notidrawer/internal/extract"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
)

// Engine consolidates notification events into records.
type Engine struct {
	store     store.Store
	retention model.RetentionConfig
	log       *zap.SugaredLogger
	now       func() time.Time
}

// New creates an engine over the given store. The logger may be nil.
func New(s store.Store, retention model.RetentionConfig, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		store:     s,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Apply consolidates one posted/updated event into its record: creating
// the record on first contact, appending to conversational threads,
// replacing the thread for single-state notifications, and resetting the
// read state. Malformed events are skipped without touching the store.
func (e *Engine) Apply(ctx context.Context, ev model.NotificationEvent) error {
	res, err := extract.Extract(ev)
	if err != nil {
		if errors.Is(err, extract.ErrMalformedEvent) {
			e.log.Debugw("skipping malformed event", "key", ev.Key, "pkg", ev.PkgName)
			return nil
		}
		return fmt.Errorf("extracting event %s: %w", ev.Key, err)
	}

	return e.store.WithRecord(ctx, ev.Key, func(rec *model.NotiRecord) (*model.NotiRecord, error) {
		if rec == nil {
			rec = e.newRecord(ev, res)
			e.log.Debugw("created record", "key", rec.NotiKey, "conversation", rec.IsConversation)
			return rec, nil
		}

		// Conversation classification is a sticky OR: a thread that
		// once looked conversational never reverts.
		rec.IsConversation = rec.IsConversation || res.IsConversation
		rec.WholeRead = false
		rec.Title = orCurrent(ev.Title, rec.Title)
		rec.AppName = orCurrent(ev.AppName, rec.AppName)
		if ev.Icon != "" {
			rec.Icon = ev.Icon
		}
		if ev.LargeIcon != "" {
			rec.LargeIcon = ev.LargeIcon
		}
		rec.AddParticipants(res.Participants)

		if rec.IsConversation {
			rec.CurrentThread.AddAll(res.Messages)
		} else {
			// Non-conversational notifications carry latest state,
			// not history.
			rec.CurrentThread.Replace(res.Messages)
		}
		rec.RefreshLatestTime()
		rec.Reveal(rec.IsConversation, e.retention.KeepCount, e.retention.MaxAgeMillis(), e.now().UnixMilli())
		return rec, nil
	})
}

// newRecord seeds a record from its first event.
func (e *Engine) newRecord(ev model.NotificationEvent, res extract.Result) *model.NotiRecord {
	rec := &model.NotiRecord{
		NotiKey:        ev.Key,
		HashKey:        model.HashKeyFor(ev.Key),
		PkgName:        ev.PkgName,
		Category:       ev.Category,
		GroupKey:       ev.GroupKey,
		IsGroupChat:    ev.IsGroupChat,
		AppName:        ev.AppName,
		Icon:           ev.Icon,
		LargeIcon:      ev.LargeIcon,
		Title:          ev.Title,
		IsConversation: res.IsConversation,
		Score:          model.DefaultScore,
		Visible:        true,
	}
	rec.AddParticipants(res.Participants)
	rec.CurrentThread.AddAll(res.Messages)
	rec.RefreshLatestTime()
	return rec
}

// Dismiss hides a record after a user swipe/click or an OS removal,
// moving its thread into history.
func (e *Engine) Dismiss(ctx context.Context, notiKey string) error {
	return e.withExisting(ctx, notiKey, func(rec *model.NotiRecord) {
		rec.Hide()
	})
}

// MarkSeen flags the given message timestamps as seen on one record and
// re-derives its whole-read state.
func (e *Engine) MarkSeen(ctx context.Context, notiKey string, times []int64) error {
	return e.withExisting(ctx, notiKey, func(rec *model.NotiRecord) {
		rec.MarkSeen(times)
	})
}

// MarkRead flags every message of one record as seen.
func (e *Engine) MarkRead(ctx context.Context, notiKey string) error {
	return e.withExisting(ctx, notiKey, func(rec *model.NotiRecord) {
		rec.MarkAllSeen()
	})
}

// TogglePin flips a record's pinned flag.
func (e *Engine) TogglePin(ctx context.Context, notiKey string) error {
	return e.withExisting(ctx, notiKey, func(rec *model.NotiRecord) {
		rec.TogglePin()
	})
}

// MarkAllSeen forces every visible record fully read in one bulk update.
func (e *Engine) MarkAllSeen(ctx context.Context) error {
	recs, err := e.store.VisibleRecords(ctx)
	if err != nil {
		return fmt.Errorf("loading visible records: %w", err)
	}
	for i := range recs {
		recs[i].MarkAllSeen()
	}
	return e.store.UpdateAll(ctx, recs)
}

// DeleteAll removes every record, pinned included. Administrative; not
// part of the event flow.
func (e *Engine) DeleteAll(ctx context.Context) error {
	return e.store.DeleteAll(ctx)
}

// DeleteAllUnpinned removes every unpinned record.
func (e *Engine) DeleteAllUnpinned(ctx context.Context) error {
	return e.store.DeleteAllUnpinned(ctx)
}

// ResetOutcomes restores the default score and empty summary everywhere.
func (e *Engine) ResetOutcomes(ctx context.Context) error {
	return e.store.ResetOutcomes(ctx)
}

// withExisting mutates an existing record under the per-key lock; a
// missing record is a no-op, matching removal races with the source.
func (e *Engine) withExisting(ctx context.Context, notiKey string, mutate func(*model.NotiRecord)) error {
	return e.store.WithRecord(ctx, notiKey, func(rec *model.NotiRecord) (*model.NotiRecord, error) {
		if rec == nil {
			return nil, nil
		}
		mutate(rec)
		return rec, nil
	})
}

// orCurrent prefers the incoming value, falling back to the stored one.
func orCurrent(incoming, current string) string {
	if incoming != "" {
		return incoming
	}
	return current
}
