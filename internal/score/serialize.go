package score

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/twhuang/notidrawer/internal/model"
)

// Chunk is a size-bounded batch of serialized records sent to the scorer
// in one call.
type Chunk struct {
	// Body is the serialized payload: a JSON array of record objects.
	Body string

	// IDs are the hash keys of the records inside this chunk.
	IDs []int64
}

// serializedRecord pairs one record's payload with its id and size.
type serializedRecord struct {
	id   int64
	body string
}

// SerializeRecord renders one record for the scorer: id, app, the overall
// sender/title, and the retained history plus current thread with
// relative display times. Field names switch between the message and
// info vocabulary depending on classification, mirroring what the
// prompts expect.
func SerializeRecord(rec *model.NotiRecord, now time.Time) string {
	kind := "info"
	titleField := "title"
	if rec.IsConversation {
		kind = "message"
		titleField = "sender"
	}

	// Per-line titles are omitted when every line shares the same one.
	titles := map[string]bool{}
	for _, m := range append(rec.History.Messages, rec.CurrentThread.Messages...) {
		if t := m.DisplayTitle(rec.IsConversation); t != "" {
			titles[t] = true
		}
	}
	titlesIdentical := len(titles) == 1

	lines := func(msgs []model.InfoMessage) []map[string]interface{} {
		out := make([]map[string]interface{}, 0, len(msgs))
		for _, m := range msgs {
			line := map[string]interface{}{
				"time":    model.RelativeTime(m.Time, now),
				"content": flatten(m.Content),
			}
			if !titlesIdentical {
				line[titleField] = flatten(m.DisplayTitle(rec.IsConversation))
			}
			out = append(out, line)
		}
		return out
	}

	payload := map[string]interface{}{
		"id":                   rec.HashKey,
		"app":                  rec.AppName,
		"overall_" + titleField: flatten(rec.Title),
	}
	if rec.History.Len() > 0 {
		payload["previous_"+kind+"s"] = lines(rec.History.Messages)
		payload["new_"+kind+"s"] = lines(rec.CurrentThread.Messages)
	} else {
		payload[kind+"s"] = lines(rec.CurrentThread.Messages)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		// Payload is built from plain strings and numbers; marshaling
		// cannot fail in practice.
		return ""
	}
	return string(body)
}

// BuildChunks serializes records and greedily packs them into chunks no
// larger than budget bytes. A record that alone exceeds the budget still
// becomes its own chunk; a record's messages are never split across
// chunks, and no empty chunk is ever emitted.
func BuildChunks(recs []model.NotiRecord, budget int, now time.Time) []Chunk {
	var serialized []serializedRecord
	for i := range recs {
		body := SerializeRecord(&recs[i], now)
		if body == "" {
			continue
		}
		serialized = append(serialized, serializedRecord{id: recs[i].HashKey, body: body})
	}

	var chunks []Chunk
	var open []serializedRecord
	openSize := 0

	flush := func() {
		if len(open) == 0 {
			return
		}
		bodies := make([]string, len(open))
		ids := make([]int64, len(open))
		for i, sr := range open {
			bodies[i] = sr.body
			ids[i] = sr.id
		}
		chunks = append(chunks, Chunk{
			Body: "[\n" + strings.Join(bodies, ",\n") + "\n]",
			IDs:  ids,
		})
		open = nil
		openSize = 0
	}

	for _, sr := range serialized {
		if len(open) > 0 && openSize+len(sr.body) > budget {
			flush()
		}
		open = append(open, sr)
		openSize += len(sr.body)
	}
	flush()

	return chunks
}

// flatten strips the characters the prompt format reserves as separators.
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, ",", " ")
}
