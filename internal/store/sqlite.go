package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/twhuang/notidrawer/internal/model"
)

// priorityOrder is the drawer's presentation order. The trailing key
// comparison makes the order a strict total order instead of leaving ties
// to storage order.
const priorityOrder = `
	ORDER BY whole_read ASC, score DESC, latest_time DESC, noti_key ASC`

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB

	// keyLocks serializes read-modify-write cycles per notification key.
	// SQLite serializes writes globally, but the read-mutate-write span
	// in WithRecord needs its own critical section.
	keyLocks sync.Map // noti_key -> *sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// recordRow is the flat table representation of a NotiRecord. The thread,
// history, and participant columns hold JSON.
type recordRow struct {
	NotiKey        string  `db:"noti_key"`
	HashKey        int64   `db:"hash_key"`
	PkgName        string  `db:"pkg_name"`
	Category       string  `db:"category"`
	GroupKey       string  `db:"group_key"`
	IsGroupChat    bool    `db:"is_group_chat"`
	AppName        string  `db:"app_name"`
	Icon           string  `db:"icon"`
	LargeIcon      string  `db:"large_icon"`
	Title          string  `db:"title"`
	LatestTime     int64   `db:"latest_time"`
	IsConversation bool    `db:"is_conversation"`
	Participants   string  `db:"participants"`
	CurrentThread  string  `db:"current_thread"`
	History        string  `db:"history"`
	WholeRead      bool    `db:"whole_read"`
	Score          float64 `db:"score"`
	Summary        string  `db:"summary"`
	Visible        bool    `db:"visible"`
	Pinned         bool    `db:"pinned"`
	ContentLength  int     `db:"content_length"`
}

func toRow(rec *model.NotiRecord) (*recordRow, error) {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return nil, fmt.Errorf("marshaling participants for %s: %w", rec.NotiKey, err)
	}
	current, err := json.Marshal(rec.CurrentThread.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshaling current thread for %s: %w", rec.NotiKey, err)
	}
	history, err := json.Marshal(rec.History.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshaling history for %s: %w", rec.NotiKey, err)
	}
	return &recordRow{
		NotiKey:        rec.NotiKey,
		HashKey:        rec.HashKey,
		PkgName:        rec.PkgName,
		Category:       rec.Category,
		GroupKey:       rec.GroupKey,
		IsGroupChat:    rec.IsGroupChat,
		AppName:        rec.AppName,
		Icon:           rec.Icon,
		LargeIcon:      rec.LargeIcon,
		Title:          rec.Title,
		LatestTime:     rec.LatestTime,
		IsConversation: rec.IsConversation,
		Participants:   string(participants),
		CurrentThread:  string(current),
		History:        string(history),
		WholeRead:      rec.WholeRead,
		Score:          rec.Score,
		Summary:        rec.Summary,
		Visible:        rec.Visible,
		Pinned:         rec.Pinned,
		ContentLength:  rec.ContentLength(),
	}, nil
}

func (row *recordRow) toRecord() (*model.NotiRecord, error) {
	rec := &model.NotiRecord{
		NotiKey:        row.NotiKey,
		HashKey:        row.HashKey,
		PkgName:        row.PkgName,
		Category:       row.Category,
		GroupKey:       row.GroupKey,
		IsGroupChat:    row.IsGroupChat,
		AppName:        row.AppName,
		Icon:           row.Icon,
		LargeIcon:      row.LargeIcon,
		Title:          row.Title,
		LatestTime:     row.LatestTime,
		IsConversation: row.IsConversation,
		WholeRead:      row.WholeRead,
		Score:          row.Score,
		Summary:        row.Summary,
		Visible:        row.Visible,
		Pinned:         row.Pinned,
	}
	if err := json.Unmarshal([]byte(row.Participants), &rec.Participants); err != nil {
		return nil, fmt.Errorf("parsing participants for %s: %w", row.NotiKey, err)
	}
	if err := json.Unmarshal([]byte(row.CurrentThread), &rec.CurrentThread.Messages); err != nil {
		return nil, fmt.Errorf("parsing current thread for %s: %w", row.NotiKey, err)
	}
	if err := json.Unmarshal([]byte(row.History), &rec.History.Messages); err != nil {
		return nil, fmt.Errorf("parsing history for %s: %w", row.NotiKey, err)
	}
	return rec, nil
}

const upsertQuery = `
	INSERT OR REPLACE INTO noti_records (
		noti_key, hash_key, pkg_name, category, group_key, is_group_chat,
		app_name, icon, large_icon, title, latest_time,
		is_conversation, participants, current_thread, history,
		whole_read, score, summary, visible, pinned, content_length
	) VALUES (
		:noti_key, :hash_key, :pkg_name, :category, :group_key, :is_group_chat,
		:app_name, :icon, :large_icon, :title, :latest_time,
		:is_conversation, :participants, :current_thread, :history,
		:whole_read, :score, :summary, :visible, :pinned, :content_length
	)`

// GetByKey retrieves the record for a notification key.
func (s *SQLiteStore) GetByKey(ctx context.Context, notiKey string) (*model.NotiRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM noti_records WHERE noti_key = ?", notiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", notiKey, err)
	}
	return row.toRecord()
}

// GetByKeys retrieves the records for a set of notification keys.
// Missing keys are simply absent from the result.
func (s *SQLiteStore) GetByKeys(ctx context.Context, notiKeys []string) ([]model.NotiRecord, error) {
	if len(notiKeys) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM noti_records WHERE noti_key IN (?)", notiKeys)
	if err != nil {
		return nil, fmt.Errorf("building key query: %w", err)
	}
	return s.queryRecords(ctx, s.db.Rebind(query), args...)
}

// GetByHashKey retrieves the record carrying the given scorer id.
func (s *SQLiteStore) GetByHashKey(ctx context.Context, hashKey int64) (*model.NotiRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM noti_records WHERE hash_key = ? LIMIT 1", hashKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record by hash key %d: %w", hashKey, err)
	}
	return row.toRecord()
}

// Insert stores a new record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *model.NotiRecord) error {
	return s.upsert(ctx, s.db, rec)
}

// Update replaces the stored record for rec's key.
func (s *SQLiteStore) Update(ctx context.Context, rec *model.NotiRecord) error {
	return s.upsert(ctx, s.db, rec)
}

type execer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, e execer, rec *model.NotiRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if _, err := e.NamedExecContext(ctx, upsertQuery, row); err != nil {
		return fmt.Errorf("upserting record %s: %w", rec.NotiKey, err)
	}
	return nil
}

// UpdateAll replaces a batch of records in one transaction. Used by the
// scoring merge-back and bulk read-state changes.
func (s *SQLiteStore) UpdateAll(ctx context.Context, recs []model.NotiRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range recs {
		if err := s.upsert(ctx, tx, &recs[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteByKey removes the record for a notification key.
func (s *SQLiteStore) DeleteByKey(ctx context.Context, notiKey string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM noti_records WHERE noti_key = ?", notiKey); err != nil {
		return fmt.Errorf("deleting record %s: %w", notiKey, err)
	}
	return nil
}

// WithRecord runs fn under the per-key lock so concurrent read-modify-write
// cycles on the same record cannot interleave.
func (s *SQLiteStore) WithRecord(
	ctx context.Context,
	notiKey string,
	fn func(rec *model.NotiRecord) (*model.NotiRecord, error),
) error {
	muIface, _ := s.keyLocks.LoadOrStore(notiKey, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.GetByKey(ctx, notiKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	updated, err := fn(rec)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return s.upsert(ctx, s.db, updated)
}

// DeleteAll removes every record, pinned included.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM noti_records"); err != nil {
		return fmt.Errorf("deleting all records: %w", err)
	}
	return nil
}

// DeleteAllUnpinned removes every record except pinned ones.
func (s *SQLiteStore) DeleteAllUnpinned(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM noti_records WHERE pinned <> 1"); err != nil {
		return fmt.Errorf("deleting unpinned records: %w", err)
	}
	return nil
}

// ResetOutcomes restores the default outcome on all records.
func (s *SQLiteStore) ResetOutcomes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE noti_records SET score = ?, summary = ''", model.ResetScore); err != nil {
		return fmt.Errorf("resetting outcomes: %w", err)
	}
	return nil
}

// VisibleRecords returns visible records in priority order.
func (s *SQLiteStore) VisibleRecords(ctx context.Context) ([]model.NotiRecord, error) {
	return s.queryRecords(ctx,
		"SELECT * FROM noti_records WHERE visible = 1"+priorityOrder)
}

// UnreadDigest returns visible unread records for the unread-digest view.
func (s *SQLiteStore) UnreadDigest(ctx context.Context) ([]model.NotiRecord, error) {
	return s.queryRecords(ctx, `
		SELECT * FROM noti_records WHERE visible = 1 AND whole_read = 0
		ORDER BY is_conversation DESC, content_length DESC, latest_time DESC, noti_key ASC`)
}

// PeopleDigest returns visible conversational records for the
// people-digest view.
func (s *SQLiteStore) PeopleDigest(ctx context.Context) ([]model.NotiRecord, error) {
	return s.queryRecords(ctx, `
		SELECT * FROM noti_records WHERE visible = 1 AND is_conversation = 1
		ORDER BY app_name ASC, is_conversation DESC, content_length DESC, latest_time DESC, noti_key ASC`)
}

// VisibleCount returns the number of visible records.
func (s *SQLiteStore) VisibleCount(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM noti_records WHERE visible = 1")
}

// UnreadCount returns the number of visible unread records.
func (s *SQLiteStore) UnreadCount(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM noti_records WHERE visible = 1 AND whole_read = 0")
}

// PinnedCount returns the number of visible pinned records.
func (s *SQLiteStore) PinnedCount(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM noti_records WHERE visible = 1 AND pinned = 1")
}

func (s *SQLiteStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]model.NotiRecord, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var recs []model.NotiRecord
	for rows.Next() {
		var row recordRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}

	return recs, rows.Err()
}
