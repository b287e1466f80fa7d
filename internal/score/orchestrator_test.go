package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
	"github.com/twhuang/notidrawer/tests/testutil"
)

// scriptedScorer answers each chunk by looking up a response keyed on a
// record id contained in the chunk body.
type scriptedScorer struct {
	respond func(chunk string, kind Kind) (string, error)
	calls   int
}

func (s *scriptedScorer) Request(_ context.Context, chunk string, kind Kind) (string, error) {
	s.calls++
	return s.respond(chunk, kind)
}

func seedVisible(t *testing.T, s *store.SQLiteStore, key string, hash int64) {
	t.Helper()
	rec := model.NotiRecord{
		NotiKey:    key,
		HashKey:    hash,
		AppName:    "Signal",
		Title:      "Alice",
		Visible:    true,
		Score:      model.DefaultScore,
		LatestTime: 1000,
	}
	rec.CurrentThread.Add(model.InfoMessage{Time: 1000, Content: "hello"})
	if err := s.Insert(context.Background(), &rec); err != nil {
		t.Fatalf("seeding %s: %v", key, err)
	}
}

func TestRunSortMergesSummedScore(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedVisible(t, s, "k5", 5)
	seedVisible(t, s, "k6", 6)

	sc := &scriptedScorer{respond: func(chunk string, kind Kind) (string, error) {
		if kind != KindSort {
			t.Fatalf("kind = %v, want sort", kind)
		}
		// Only id 5 gets an outcome; id 6 must keep its prior score.
		return `[{"id":5,"time_sensitiveness":1,"sender_attractiveness":2,"content_attractiveness":3}]`, nil
	}}

	o := NewOrchestrator(s, sc, model.ScorerConfig{}, nil)
	report, err := o.Run(context.Background(), KindSort)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Updated != 1 || report.FailedChunks != 0 {
		t.Fatalf("report = %+v", report)
	}

	got, err := s.GetByHashKey(context.Background(), 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 6.00 {
		t.Fatalf("score = %v, want 6.00", got.Score)
	}
	untouched, err := s.GetByHashKey(context.Background(), 6)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if untouched.Score != model.DefaultScore {
		t.Fatalf("record without outcome changed: score = %v", untouched.Score)
	}
}

func TestRunSummarizeSetsSummary(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedVisible(t, s, "k1", 1)

	sc := &scriptedScorer{respond: func(chunk string, kind Kind) (string, error) {
		return `Here you go:
[{"id":1,"summary":"lunch plans"}]`, nil
	}}

	o := NewOrchestrator(s, sc, model.ScorerConfig{}, nil)
	if _, err := o.Run(context.Background(), KindSummarize); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := s.GetByHashKey(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != "lunch plans" {
		t.Fatalf("summary = %q", got.Summary)
	}
}

func TestRunIsolatesFailedChunks(t *testing.T) {
	s := testutil.NewTestStore(t)
	// A tiny chunk budget forces one chunk per record.
	seedVisible(t, s, "k1", 1)
	seedVisible(t, s, "k2", 2)

	sc := &scriptedScorer{respond: func(chunk string, kind Kind) (string, error) {
		var ids []struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(chunk), &ids); err != nil || len(ids) != 1 {
			return "", fmt.Errorf("unexpected chunk: %q", chunk)
		}
		if ids[0].ID == 1 {
			return "", errors.New("backend unavailable")
		}
		return `[{"id":2,"time_sensitiveness":1,"sender_attractiveness":1,"content_attractiveness":1}]`, nil
	}}

	o := NewOrchestrator(s, sc, model.ScorerConfig{ChunkBudget: 1, Workers: 1}, nil)
	report, err := o.Run(context.Background(), KindSort)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Chunks != 2 || report.FailedChunks != 1 || report.Updated != 1 {
		t.Fatalf("report = %+v", report)
	}

	failed, _ := s.GetByHashKey(context.Background(), 1)
	if failed.Score != model.DefaultScore {
		t.Fatalf("failed chunk leaked an update: score = %v", failed.Score)
	}
	merged, _ := s.GetByHashKey(context.Background(), 2)
	if merged.Score != 3.00 {
		t.Fatalf("score = %v, want 3.00", merged.Score)
	}
}

func TestRunEmptyDrawerIsNoOp(t *testing.T) {
	s := testutil.NewTestStore(t)
	sc := &scriptedScorer{respond: func(string, Kind) (string, error) {
		t.Fatal("scorer must not be called for an empty drawer")
		return "", nil
	}}

	o := NewOrchestrator(s, sc, model.ScorerConfig{}, nil)
	report, err := o.Run(context.Background(), KindSort)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Chunks != 0 || sc.calls != 0 {
		t.Fatalf("report = %+v, calls = %d", report, sc.calls)
	}
}

func TestParseSortOutcomesToleratesFences(t *testing.T) {
	raw := "```json\n[{\"id\":9,\"time_sensitiveness\":0.5,\"sender_attractiveness\":0.25,\"content_attractiveness\":0.25}]\n```"
	outcomes, err := ParseSortOutcomes(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ID != 9 {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}
