package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
	"github.com/twhuang/notidrawer/tests/testutil"
)

func newRecord(key string, hash int64) *model.NotiRecord {
	rec := &model.NotiRecord{
		NotiKey:    key,
		HashKey:    hash,
		PkgName:    "email/src-1",
		Category:   model.CategoryMessage,
		AppName:    "Signal",
		Title:      "Alice",
		Visible:    true,
		Score:      model.DefaultScore,
		LatestTime: 1000,
	}
	rec.CurrentThread.Add(model.InfoMessage{Time: 1000, Sender: "Alice", Content: "hello"})
	return rec
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := newRecord("k1", 11)
	rec.IsConversation = true
	rec.Participants = []string{"Alice", "Bob"}
	rec.History.Add(model.InfoMessage{Time: 500, Sender: "Alice", Content: "earlier"})
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HashKey != 11 || got.AppName != "Signal" || !got.IsConversation {
		t.Fatalf("got %+v", got)
	}
	if got.CurrentThread.Len() != 1 || got.History.Len() != 1 {
		t.Fatalf("threads lost: current=%d history=%d", got.CurrentThread.Len(), got.History.Len())
	}
	if len(got.Participants) != 2 || got.Participants[1] != "Bob" {
		t.Fatalf("participants = %v", got.Participants)
	}
	msg, _ := got.CurrentThread.Latest()
	if msg.Sender != "Alice" || msg.Content != "hello" {
		t.Fatalf("latest message = %+v", msg)
	}
}

func TestGetByKeyNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	if _, err := s.GetByKey(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByHashKey(context.Background(), 99); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByKeysSkipsMissing(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	if err := s.Insert(ctx, newRecord("k1", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	recs, err := s.GetByKeys(ctx, []string{"k1", "ghost"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(recs) != 1 || recs[0].NotiKey != "k1" {
		t.Fatalf("recs = %+v", recs)
	}
}

func TestVisibleRecordsPriorityOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	readHigh := newRecord("read-high", 1)
	readHigh.Score = 50
	readHigh.WholeRead = true

	unreadLow := newRecord("unread-low", 2)
	unreadLow.Score = 1

	unreadNew := newRecord("unread-new", 3)
	unreadNew.Score = 1
	unreadNew.LatestTime = 9000

	hidden := newRecord("hidden", 4)
	hidden.Visible = false

	for _, rec := range []*model.NotiRecord{readHigh, unreadLow, unreadNew, hidden} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", rec.NotiKey, err)
		}
	}

	recs, err := s.VisibleRecords(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"unread-new", "unread-low", "read-high"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, key := range want {
		if recs[i].NotiKey != key {
			t.Fatalf("order = %v, want %v", recs, want)
		}
	}
}

func TestUnreadDigestFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	conv := newRecord("conv", 1)
	conv.IsConversation = true

	read := newRecord("read", 2)
	read.WholeRead = true

	plain := newRecord("plain", 3)

	for _, rec := range []*model.NotiRecord{conv, read, plain} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", rec.NotiKey, err)
		}
	}

	recs, err := s.UnreadDigest(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 2 || recs[0].NotiKey != "conv" || recs[1].NotiKey != "plain" {
		t.Fatalf("digest = %+v", recs)
	}
}

func TestPeopleDigestGroupsByAppName(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tele := newRecord("tele", 1)
	tele.IsConversation = true
	tele.AppName = "Telegram"

	sig := newRecord("sig", 2)
	sig.IsConversation = true
	sig.AppName = "Signal"

	info := newRecord("info", 3)

	for _, rec := range []*model.NotiRecord{tele, sig, info} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", rec.NotiKey, err)
		}
	}

	recs, err := s.PeopleDigest(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 2 || recs[0].AppName != "Signal" || recs[1].AppName != "Telegram" {
		t.Fatalf("digest = %+v", recs)
	}
}

func TestWithRecordCreatesAndUpdates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	err := s.WithRecord(ctx, "k1", func(rec *model.NotiRecord) (*model.NotiRecord, error) {
		if rec != nil {
			t.Fatal("expected nil record on first access")
		}
		return newRecord("k1", 1), nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = s.WithRecord(ctx, "k1", func(rec *model.NotiRecord) (*model.NotiRecord, error) {
		rec.Pinned = true
		return rec, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Pinned {
		t.Fatal("update did not persist")
	}
}

func TestWithRecordNilReturnWritesNothing(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	err := s.WithRecord(ctx, "k1", func(rec *model.NotiRecord) (*model.NotiRecord, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if _, err := s.GetByKey(ctx, "k1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAllUnpinnedKeepsPinned(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	pinned := newRecord("pinned", 1)
	pinned.Pinned = true
	if err := s.Insert(ctx, pinned); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, newRecord("loose", 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteAllUnpinned(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetByKey(ctx, "pinned"); err != nil {
		t.Fatalf("pinned record removed: %v", err)
	}
	if _, err := s.GetByKey(ctx, "loose"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unpinned record survived: %v", err)
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n, _ := s.VisibleCount(ctx); n != 0 {
		t.Fatalf("count after delete all = %d", n)
	}
}

func TestResetOutcomes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := newRecord("k1", 1)
	rec.Score = 7.25
	rec.Summary = "old summary"
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.ResetOutcomes(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != model.ResetScore || got.Summary != "" {
		t.Fatalf("got score=%v summary=%q", got.Score, got.Summary)
	}
}

func TestCounts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	read := newRecord("read", 1)
	read.WholeRead = true
	read.Pinned = true

	unread := newRecord("unread", 2)

	hidden := newRecord("hidden", 3)
	hidden.Visible = false

	for _, rec := range []*model.NotiRecord{read, unread, hidden} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", rec.NotiKey, err)
		}
	}

	if n, err := s.VisibleCount(ctx); err != nil || n != 2 {
		t.Fatalf("visible = %d (%v), want 2", n, err)
	}
	if n, err := s.UnreadCount(ctx); err != nil || n != 1 {
		t.Fatalf("unread = %d (%v), want 1", n, err)
	}
	if n, err := s.PinnedCount(ctx); err != nil || n != 1 {
		t.Fatalf("pinned = %d (%v), want 1", n, err)
	}
}

func TestDeleteByKey(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, newRecord("k1", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteByKey(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetByKey(ctx, "k1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
