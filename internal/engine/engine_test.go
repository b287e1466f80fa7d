package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/twhuang/notidrawer/internal/engine"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
	"github.com/twhuang/notidrawer/tests/testutil"
)

func newEngine(t *testing.T) (*engine.Engine, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	eng := engine.New(s, model.RetentionConfig{KeepCount: 50, MaxAgeHours: 24}, nil)
	return eng, s
}

func chatEvent(key string, msgs ...model.RawMessage) model.NotificationEvent {
	return model.NotificationEvent{
		Key:      key,
		PkgName:  "org.signal",
		AppName:  "Signal",
		Category: model.CategoryMessage,
		Title:    "Alice",
		Messages: msgs,
		PostTime: 1000,
	}
}

func infoEvent(key, title, content string, postTime int64) model.NotificationEvent {
	return model.NotificationEvent{
		Key:      key,
		PkgName:  "com.builder",
		AppName:  "Builder",
		Title:    title,
		Messages: []model.RawMessage{{Content: content}},
		PostTime: postTime,
	}
}

func TestApplyCreatesRecord(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	ev := chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})
	if err := eng.Apply(ctx, ev); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.Visible || rec.Score != model.DefaultScore {
		t.Fatalf("new record = %+v", rec)
	}
	if !rec.IsConversation {
		t.Fatal("message-category event must create a conversational record")
	}
	if rec.HashKey != model.HashKeyFor("k1") {
		t.Fatalf("hash key = %d", rec.HashKey)
	}
	if rec.LatestTime != 1000 {
		t.Fatalf("latest time = %d", rec.LatestTime)
	}
}

func TestApplyIdempotentForRepeatedState(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	ev := chatEvent("k1",
		model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"},
		model.RawMessage{Time: 2000, Sender: "Alice", Content: "there"},
	)
	if err := eng.Apply(ctx, ev); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Sources delivering whole conversation state repeat old messages.
	if err := eng.Apply(ctx, ev); err != nil {
		t.Fatalf("re-apply: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CurrentThread.Len() != 2 {
		t.Fatalf("thread length = %d, want 2", rec.CurrentThread.Len())
	}
}

func TestApplyAppendsToConversations(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	first := chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})
	second := chatEvent("k1", model.RawMessage{Time: 2000, Sender: "Bob", Content: "hey"})
	if err := eng.Apply(ctx, first); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.Apply(ctx, second); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CurrentThread.Len() != 2 {
		t.Fatalf("thread length = %d, want 2", rec.CurrentThread.Len())
	}
	if rec.LatestTime != 2000 {
		t.Fatalf("latest time = %d", rec.LatestTime)
	}
	if len(rec.Participants) != 2 {
		t.Fatalf("participants = %v", rec.Participants)
	}
}

func TestApplyReplacesNonConversationalState(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	if err := eng.Apply(ctx, infoEvent("k1", "Build", "running 10%", 1000)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.Apply(ctx, infoEvent("k1", "Build", "running 90%", 2000)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CurrentThread.Len() != 1 {
		t.Fatalf("thread length = %d, want 1", rec.CurrentThread.Len())
	}
	msg, _ := rec.CurrentThread.Latest()
	if msg.Content != "running 90%" {
		t.Fatalf("content = %q", msg.Content)
	}
}

func TestApplyConversationClassificationIsSticky(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	conv := chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})
	if err := eng.Apply(ctx, conv); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// A later event without conversational markers must not demote the
	// record back to replace semantics.
	plain := conv
	plain.Category = ""
	plain.Messages = []model.RawMessage{{Time: 2000, Content: "update"}}
	if err := eng.Apply(ctx, plain); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.IsConversation {
		t.Fatal("classification reverted")
	}
	if rec.CurrentThread.Len() != 2 {
		t.Fatalf("thread length = %d, want 2", rec.CurrentThread.Len())
	}
}

func TestApplyResetsReadState(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.MarkRead(ctx, "k1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	rec, _ := s.GetByKey(ctx, "k1")
	if !rec.WholeRead {
		t.Fatal("mark read did not stick")
	}

	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: 2000, Sender: "Alice", Content: "more"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	rec, _ = s.GetByKey(ctx, "k1")
	if rec.WholeRead {
		t.Fatal("new message must clear the whole-read state")
	}
}

func TestApplySkipsMalformedEvents(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	if err := eng.Apply(ctx, model.NotificationEvent{Key: ""}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	empty := model.NotificationEvent{Key: "k1", PkgName: "x", PostTime: 1000}
	if err := eng.Apply(ctx, empty); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n, _ := s.VisibleCount(ctx); n != 0 {
		t.Fatalf("malformed events created %d records", n)
	}
}

func TestDismissMovesThreadToHistory(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	// Recent timestamps keep the history inside the retention window
	// when the next event reveals the record.
	now := time.Now().UnixMilli()
	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: now - 2000, Sender: "Alice", Content: "hi"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.Dismiss(ctx, "k1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	rec, err := s.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Visible {
		t.Fatal("dismissed record still visible")
	}
	if rec.CurrentThread.Len() != 0 || rec.History.Len() != 1 {
		t.Fatalf("threads: current=%d history=%d", rec.CurrentThread.Len(), rec.History.Len())
	}

	// The next event reveals the record with its history intact.
	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: now - 1000, Sender: "Alice", Content: "again"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	rec, _ = s.GetByKey(ctx, "k1")
	if !rec.Visible {
		t.Fatal("record not revealed by new event")
	}
	if rec.History.Len() != 1 {
		t.Fatalf("history = %d, want 1", rec.History.Len())
	}
}

func TestDismissMissingRecordIsNoOp(t *testing.T) {
	eng, _ := newEngine(t)
	if err := eng.Dismiss(context.Background(), "ghost"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
}

func TestMarkSeenPartialThread(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	ev := chatEvent("k1",
		model.RawMessage{Time: 1000, Sender: "Alice", Content: "one"},
		model.RawMessage{Time: 2000, Sender: "Alice", Content: "two"},
	)
	if err := eng.Apply(ctx, ev); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := eng.MarkSeen(ctx, "k1", []int64{1000}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	rec, _ := s.GetByKey(ctx, "k1")
	if rec.WholeRead {
		t.Fatal("partially seen record reported whole-read")
	}

	if err := eng.MarkSeen(ctx, "k1", []int64{2000}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	rec, _ = s.GetByKey(ctx, "k1")
	if !rec.WholeRead {
		t.Fatal("fully seen record not whole-read")
	}
}

func TestMarkAllSeenBulk(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.Apply(ctx, infoEvent("k2", "Build", "done", 2000)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := eng.MarkAllSeen(ctx); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if n, _ := s.UnreadCount(ctx); n != 0 {
		t.Fatalf("unread after mark all = %d", n)
	}
}

func TestTogglePin(t *testing.T) {
	eng, s := newEngine(t)
	ctx := context.Background()

	if err := eng.Apply(ctx, chatEvent("k1", model.RawMessage{Time: 1000, Sender: "Alice", Content: "hi"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := eng.TogglePin(ctx, "k1"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	rec, _ := s.GetByKey(ctx, "k1")
	if !rec.Pinned {
		t.Fatal("pin did not stick")
	}
	if err := eng.TogglePin(ctx, "k1"); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	rec, _ = s.GetByKey(ctx, "k1")
	if rec.Pinned {
		t.Fatal("unpin did not stick")
	}
}
