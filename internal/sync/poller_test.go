package sync

import (
	"context"
	"testing"

	"github.com/twhuang/notidrawer/internal/engine"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/source"
	"github.com/twhuang/notidrawer/tests/testutil"
)

// fakeSource replays canned events and records the options of each fetch.
type fakeSource struct {
	events []model.NotificationEvent
	err    error
	opts   []source.FetchOptions
}

func (f *fakeSource) Type() source.SourceType { return source.SourceTypeEmail }

func (f *fakeSource) ValidateConnection(context.Context) (string, error) {
	return "fake", f.err
}

func (f *fakeSource) FetchEvents(_ context.Context, opts source.FetchOptions) ([]model.NotificationEvent, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func event(key string, postTime int64) model.NotificationEvent {
	return model.NotificationEvent{
		Key:      key,
		PkgName:  "email/fake",
		AppName:  "Mail",
		Title:    "subject " + key,
		Messages: []model.RawMessage{{Time: postTime, Content: "body"}},
		PostTime: postTime,
	}
}

func newPoller(t *testing.T, src source.Source) (*Poller, *sourceEntry) {
	t.Helper()
	s := testutil.NewTestStore(t)
	eng := engine.New(s, model.RetentionConfig{KeepCount: 50, MaxAgeHours: 24}, nil)
	p := New(eng)
	p.RegisterSource(src, model.SourceConfig{ID: "src-1", Type: "email"})
	return p, p.sources[0]
}

func TestFetchAndApplyAdvancesWatermark(t *testing.T) {
	src := &fakeSource{events: []model.NotificationEvent{
		event("a", 1000),
		event("b", 3000),
	}}
	p, entry := newPoller(t, src)

	p.fetchAndApply(entry)

	res := <-p.resultCh
	if res.SourceID != "src-1" || res.Error != nil || res.Applied != 2 {
		t.Fatalf("result = %+v", res)
	}
	if entry.watermark != 3000 {
		t.Fatalf("watermark = %d, want 3000", entry.watermark)
	}

	// The next fetch carries the watermark so already-ingested mail is
	// not re-applied (a re-apply would flip records back to unread).
	src.events = nil
	p.fetchAndApply(entry)
	<-p.resultCh
	if len(src.opts) != 2 || src.opts[1].Since != 3000 {
		t.Fatalf("fetch options = %+v", src.opts)
	}

	statuses := p.GetStatuses()
	if len(statuses) != 1 || statuses[0].State != SyncIdle || statuses[0].Error != nil {
		t.Fatalf("statuses = %+v", statuses)
	}
}

func TestFetchAndApplyReportsAuthError(t *testing.T) {
	src := &fakeSource{err: &source.AuthError{SourceType: source.SourceTypeEmail, Message: "login failed"}}
	p, entry := newPoller(t, src)

	p.fetchAndApply(entry)

	res := <-p.resultCh
	if res.Error == nil || res.AuthError == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.AuthError.SourceID != "src-1" {
		t.Fatalf("auth error = %+v", res.AuthError)
	}

	statuses := p.GetStatuses()
	if statuses[0].State != SyncError {
		t.Fatalf("status = %+v", statuses[0])
	}
}

func TestStartIsIdempotent(t *testing.T) {
	p, _ := newPoller(t, &fakeSource{})
	if cmd := p.Start(); cmd == nil {
		t.Fatal("first start returned no subscription")
	}
	defer p.Stop()
	if cmd := p.Start(); cmd != nil {
		t.Fatal("second start must be a no-op")
	}
}
