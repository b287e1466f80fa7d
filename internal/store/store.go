package store

import (
	"context"
	"errors"

	"github.com/twhuang/notidrawer/internal/model"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence contract for notification records: keyed
// CRUD, bulk updates, and the ordered/filtered scans the drawer reads.
// Implementations must serialize read-modify-write cycles per key (see
// WithRecord) and apply bulk updates in a single transaction.
type Store interface {
	// === Keyed access ===

	GetByKey(ctx context.Context, notiKey string) (*model.NotiRecord, error)
	GetByKeys(ctx context.Context, notiKeys []string) ([]model.NotiRecord, error)
	GetByHashKey(ctx context.Context, hashKey int64) (*model.NotiRecord, error)

	// === Mutation ===

	Insert(ctx context.Context, rec *model.NotiRecord) error
	Update(ctx context.Context, rec *model.NotiRecord) error
	UpdateAll(ctx context.Context, recs []model.NotiRecord) error
	DeleteByKey(ctx context.Context, notiKey string) error

	// WithRecord runs fn inside the per-key critical section: the record
	// is loaded, mutated by fn, and written back atomically with respect
	// to other WithRecord calls on the same key. fn receives nil when no
	// record exists yet and may return a new record to insert.
	WithRecord(ctx context.Context, notiKey string, fn func(rec *model.NotiRecord) (*model.NotiRecord, error)) error

	// === Administrative bulk operations ===

	DeleteAll(ctx context.Context) error
	DeleteAllUnpinned(ctx context.Context) error
	ResetOutcomes(ctx context.Context) error

	// === Ordered/filtered scans ===

	// VisibleRecords returns visible records in priority order:
	// unread first, then score descending, latest time descending,
	// key ascending.
	VisibleRecords(ctx context.Context) ([]model.NotiRecord, error)

	// UnreadDigest returns visible unread records ordered for the
	// unread-digest view: conversations first, longer content first,
	// newest first.
	UnreadDigest(ctx context.Context) ([]model.NotiRecord, error)

	// PeopleDigest returns visible conversational records ordered for
	// the people-digest view: by app name, then longer content first,
	// newest first.
	PeopleDigest(ctx context.Context) ([]model.NotiRecord, error)

	VisibleCount(ctx context.Context) (int, error)
	UnreadCount(ctx context.Context) (int, error)
	PinnedCount(ctx context.Context) (int, error)

	Close() error
}
