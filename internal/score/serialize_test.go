package score

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/twhuang/notidrawer/internal/model"
)

func chatRecord(hashKey int64, body string) model.NotiRecord {
	rec := model.NotiRecord{
		HashKey:        hashKey,
		AppName:        "Signal",
		Title:          "Alice",
		IsConversation: true,
	}
	rec.CurrentThread.Add(model.InfoMessage{Time: 1000, Sender: "Alice", Content: body})
	return rec
}

func TestSerializeRecordConversation(t *testing.T) {
	now := time.UnixMilli(60_000)
	rec := chatRecord(42, "lunch?\ntoday, maybe")

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(SerializeRecord(&rec, now)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["id"].(float64) != 42 {
		t.Fatalf("id = %v, want 42", got["id"])
	}
	if got["overall_sender"] != "Alice" {
		t.Fatalf("overall_sender = %v", got["overall_sender"])
	}
	if _, ok := got["overall_title"]; ok {
		t.Fatal("conversation payload must not carry overall_title")
	}
	msgs, ok := got["messages"].([]interface{})
	if !ok || len(msgs) != 1 {
		t.Fatalf("messages = %v", got["messages"])
	}
	content := msgs[0].(map[string]interface{})["content"].(string)
	if strings.ContainsAny(content, "\n,") {
		t.Fatalf("content not flattened: %q", content)
	}
}

func TestSerializeRecordSplitsHistoryAndNew(t *testing.T) {
	now := time.UnixMilli(60_000)
	rec := chatRecord(7, "new one")
	rec.History.Add(model.InfoMessage{Time: 500, Sender: "Alice", Content: "old one"})

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(SerializeRecord(&rec, now)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got["messages"]; ok {
		t.Fatal("record with history must not use the plain messages field")
	}
	if prev := got["previous_messages"].([]interface{}); len(prev) != 1 {
		t.Fatalf("previous_messages = %v", prev)
	}
	if cur := got["new_messages"].([]interface{}); len(cur) != 1 {
		t.Fatalf("new_messages = %v", cur)
	}
}

func TestSerializeRecordInfoVocabulary(t *testing.T) {
	now := time.UnixMilli(60_000)
	rec := model.NotiRecord{HashKey: 3, AppName: "Updates", Title: "Build finished"}
	rec.CurrentThread.Add(model.InfoMessage{Time: 1000, Title: "Build finished", Content: "all green"})

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(SerializeRecord(&rec, now)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["overall_title"] != "Build finished" {
		t.Fatalf("overall_title = %v", got["overall_title"])
	}
	if _, ok := got["infos"]; !ok {
		t.Fatalf("non-conversation payload must use infos, got %v", got)
	}
}

func TestSerializeRecordOmitsLineTitleWhenUniform(t *testing.T) {
	now := time.UnixMilli(60_000)
	rec := chatRecord(9, "one")
	rec.CurrentThread.Add(model.InfoMessage{Time: 2000, Sender: "Alice", Content: "two"})

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(SerializeRecord(&rec, now)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	line := got["messages"].([]interface{})[0].(map[string]interface{})
	if _, ok := line["sender"]; ok {
		t.Fatal("per-line sender should be omitted when every line shares it")
	}

	rec.CurrentThread.Add(model.InfoMessage{Time: 3000, Sender: "Bob", Content: "three"})
	if err := json.Unmarshal([]byte(SerializeRecord(&rec, now)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	line = got["messages"].([]interface{})[0].(map[string]interface{})
	if line["sender"] != "Alice" {
		t.Fatalf("mixed senders must appear per line, got %v", line)
	}
}

func TestBuildChunksPacksWithinBudget(t *testing.T) {
	now := time.UnixMilli(60_000)
	recs := []model.NotiRecord{
		chatRecord(1, strings.Repeat("a", 9000)),
		chatRecord(2, "small"),
		chatRecord(3, "small"),
	}

	chunks := BuildChunks(recs, 5000, now)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if len(chunks[0].IDs) != 1 || chunks[0].IDs[0] != 1 {
		t.Fatalf("oversized record must sit alone, got ids %v", chunks[0].IDs)
	}
	if len(chunks[1].IDs) != 2 || chunks[1].IDs[0] != 2 || chunks[1].IDs[1] != 3 {
		t.Fatalf("small records should share a chunk, got ids %v", chunks[1].IDs)
	}
	for _, c := range chunks {
		var arr []map[string]interface{}
		if err := json.Unmarshal([]byte(c.Body), &arr); err != nil {
			t.Fatalf("chunk body is not a JSON array: %v", err)
		}
		if len(arr) != len(c.IDs) {
			t.Fatalf("chunk carries %d objects for %d ids", len(arr), len(c.IDs))
		}
	}
}

func TestBuildChunksEmptyInput(t *testing.T) {
	if chunks := BuildChunks(nil, 5000, time.Now()); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
