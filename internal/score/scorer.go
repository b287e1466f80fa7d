// Package score batches visible records, dispatches them to an external
// text-generation backend through a bounded worker pool, and merges the
// returned relevance scores and summaries back into the store.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind selects which outcome a batch job requests.
type Kind string

const (
	KindSort      Kind = "sort"
	KindSummarize Kind = "summarize"
)

// Scorer is the external backend contract: one call per chunk, returning
// the raw response text (a JSON array of outcomes) or an error. Each call
// carries its own timeout via ctx.
type Scorer interface {
	Request(ctx context.Context, chunk string, kind Kind) (string, error)
}

// SortOutcome is one scoring result keyed by the record's hash key.
type SortOutcome struct {
	ID                    int64   `json:"id"`
	TimeSensitiveness     float64 `json:"time_sensitiveness"`
	SenderAttractiveness  float64 `json:"sender_attractiveness"`
	ContentAttractiveness float64 `json:"content_attractiveness"`
}

// SummaryOutcome is one summarization result keyed by the record's hash key.
type SummaryOutcome struct {
	ID      int64  `json:"id"`
	Summary string `json:"summary"`
}

// ParseSortOutcomes decodes a sort response, tolerating surrounding
// prose or code fences around the JSON array.
func ParseSortOutcomes(raw string) ([]SortOutcome, error) {
	var outcomes []SortOutcome
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &outcomes); err != nil {
		return nil, fmt.Errorf("parsing sort outcomes: %w", err)
	}
	return outcomes, nil
}

// ParseSummaryOutcomes decodes a summarize response.
func ParseSummaryOutcomes(raw string) ([]SummaryOutcome, error) {
	var outcomes []SummaryOutcome
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &outcomes); err != nil {
		return nil, fmt.Errorf("parsing summary outcomes: %w", err)
	}
	return outcomes, nil
}

// extractJSONArray trims the response down to the outermost JSON array.
// Models occasionally wrap the payload in markdown fences or a sentence.
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
