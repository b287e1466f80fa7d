package email

import (
	"strings"
	"testing"
	"time"

	"github.com/twhuang/notidrawer/internal/model"
)

func testAdapter() *Adapter {
	return NewAdapter(model.SourceConfig{
		ID:   "src-1",
		Type: "email",
		Name: "Work Mail",
		Config: map[string]string{
			"host":     "imap.example.com",
			"port":     "993",
			"username": "me@example.com",
		},
	}, "secret")
}

func TestEnvelopeToEvent(t *testing.T) {
	a := testAdapter()
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	ev := a.envelopeToEvent(Envelope{
		MessageID: "<abc@example.com>",
		Subject:   "Quarterly report",
		From:      "Dana Reyes",
		Date:      date,
		Snippet:   "Attached is the Q1 draft",
	})

	if ev.Key != "email:src-1:<abc@example.com>" {
		t.Fatalf("key = %q", ev.Key)
	}
	if ev.PkgName != "email/src-1" || ev.AppName != "Work Mail" {
		t.Fatalf("origin = %q / %q", ev.PkgName, ev.AppName)
	}
	if ev.Category != model.CategoryEmail {
		t.Fatalf("category = %q", ev.Category)
	}
	if len(ev.Messages) != 1 {
		t.Fatalf("messages = %v", ev.Messages)
	}
	msg := ev.Messages[0]
	if msg.Sender != "Dana Reyes" || msg.Content != "Attached is the Q1 draft" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Time != date.UnixMilli() || ev.PostTime != date.UnixMilli() {
		t.Fatalf("times = %d / %d", msg.Time, ev.PostTime)
	}
}

func TestEnvelopeToEventFallbacks(t *testing.T) {
	a := testAdapter()
	ev := a.envelopeToEvent(Envelope{
		UID:     77,
		Subject: "No body here",
		Date:    time.UnixMilli(5000),
	})

	if ev.Key != "email:src-1:uid-77" {
		t.Fatalf("key = %q", ev.Key)
	}
	if ev.Messages[0].Content != "No body here" {
		t.Fatalf("content = %q", ev.Messages[0].Content)
	}
}

func TestAdapterDefaultsAppName(t *testing.T) {
	a := NewAdapter(model.SourceConfig{ID: "s", Config: map[string]string{}}, "")
	if a.appName != "Mail" {
		t.Fatalf("app name = %q", a.appName)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<div><p>Hello &amp; welcome</p><br>Tom &lt;tom@example.com&gt;</div>`
	got := stripHTML(in)
	if strings.Contains(got, "<div>") || strings.Contains(got, "<p>") {
		t.Fatalf("tags survived: %q", got)
	}
	if !strings.Contains(got, "Hello & welcome") {
		t.Fatalf("entities not decoded: %q", got)
	}
	if !strings.Contains(got, "Tom <tom@example.com>") {
		t.Fatalf("escaped text lost: %q", got)
	}
}

func TestCollapseSnippet(t *testing.T) {
	got := collapseSnippet("  Hello\n\n  world\t again  ")
	if got != "Hello world again" {
		t.Fatalf("got %q", got)
	}

	long := collapseSnippet(strings.Repeat("word ", 100))
	if n := len([]rune(long)); n > snippetLimit {
		t.Fatalf("snippet length = %d, limit %d", n, snippetLimit)
	}
}
