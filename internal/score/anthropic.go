package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// AnthropicScorer calls the Claude Messages API with the sort or
// summarize prompt pair around one chunk of serialized records.
type AnthropicScorer struct {
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	now       func() time.Time
}

// NewAnthropicScorer creates a scorer with the given configuration.
func NewAnthropicScorer(apiKey, modelName string, maxTokens int) *AnthropicScorer {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicScorer{
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{},
		now:       time.Now,
	}
}

// Request sends one chunk and returns the raw response text.
func (s *AnthropicScorer) Request(ctx context.Context, chunk string, kind Kind) (string, error) {
	reqBody := apiRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemPrompt(kind, s.now()),
		Messages: []apiMessage{
			{Role: "user", Content: chunk + "\n\n" + endPrompt(kind)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, apiURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// systemPrompt builds the lead prompt for the requested outcome, with
// the current local time so relative timestamps resolve.
func systemPrompt(kind Kind, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("You rank and condense a user's notification drawer. ")
	sb.WriteString("The user message contains a JSON array of notifications; ")
	sb.WriteString("conversational ones carry message lists with senders, ")
	sb.WriteString("the rest carry their latest state lines.\n")
	sb.WriteString(fmt.Sprintf("The current time is %s.\n\n",
		now.Format("2006-01-02 15:04 Monday")))

	switch kind {
	case KindSort:
		sb.WriteString("For every notification, judge how urgently the user ")
		sb.WriteString("should look at it: how time-sensitive the content is, ")
		sb.WriteString("how much the sender matters to the user, and how ")
		sb.WriteString("engaging the content itself is. Score each dimension ")
		sb.WriteString("from 0 to 33.33 with exactly two decimal places.")
	case KindSummarize:
		sb.WriteString("For every notification, write a one-sentence summary ")
		sb.WriteString("a user can read at a glance, in the language of the ")
		sb.WriteString("notification itself.")
	}

	return sb.String()
}

// endPrompt pins the response format after the chunk payload.
func endPrompt(kind Kind) string {
	switch kind {
	case KindSort:
		return "Respond with only a JSON array of objects with keys " +
			`"id", "time_sensitiveness", "sender_attractiveness", ` +
			`"content_attractiveness". Include every id from the input.`
	case KindSummarize:
		return "Respond with only a JSON array of objects with keys " +
			`"id" and "summary". Include every id from the input.`
	}
	return ""
}

// apiRequest is the Claude Messages API request payload.
type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the Claude Messages API response payload.
type apiResponse struct {
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
