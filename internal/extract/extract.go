// Package extract normalizes raw notification events into InfoMessages
// and a conversation classification. It is pure: all platform-specific
// payload parsing happens in the event sources before this point.
package extract

import (
	"errors"

	"github.com/twhuang/notidrawer/internal/model"
)

// ErrMalformedEvent is returned for events missing required fields; the
// caller skips the event without mutating any record.
var ErrMalformedEvent = errors.New("malformed notification event")

// Result is the normalized output for one event.
type Result struct {
	// Messages holds the normalized message lines, oldest first.
	Messages []model.InfoMessage

	// IsConversation reports whether the event looks like part of an
	// ongoing exchange rather than a single-state notification.
	IsConversation bool

	// Participants lists the sender names seen in this event.
	Participants []string
}

// Extract validates and normalizes one event. An event needs a key and at
// least one message line (a bare title/content pair counts as one line).
func Extract(ev model.NotificationEvent) (Result, error) {
	if ev.Key == "" {
		return Result{}, ErrMalformedEvent
	}

	msgs := normalizeMessages(ev)
	if len(msgs) == 0 {
		return Result{}, ErrMalformedEvent
	}

	var participants []string
	seen := map[string]bool{}
	for _, m := range msgs {
		if m.Sender != "" && !seen[m.Sender] {
			seen[m.Sender] = true
			participants = append(participants, m.Sender)
		}
	}

	return Result{
		Messages:       msgs,
		IsConversation: IsConversation(ev, participants),
		Participants:   participants,
	}, nil
}

// IsConversation classifies an event as conversational: the source said
// so, the category carries conversational intent, or any message line has
// an identified sender.
func IsConversation(ev model.NotificationEvent, participants []string) bool {
	if ev.ConversationHint || ev.IsGroupChat {
		return true
	}
	switch ev.Category {
	case model.CategoryMessage, model.CategoryCall, model.CategoryMissedCall, model.CategoryEmail:
		return true
	}
	return len(participants) > 0
}

// normalizeMessages turns the event's raw lines into InfoMessages. Events
// with no explicit message lines but a non-empty title or fallback text
// yield a single synthesized line at the post time.
func normalizeMessages(ev model.NotificationEvent) []model.InfoMessage {
	var msgs []model.InfoMessage
	for _, raw := range ev.Messages {
		if raw.Content == "" && raw.Sender == "" {
			continue
		}
		ts := raw.Time
		if ts == 0 {
			ts = ev.PostTime
		}
		title := ev.Title
		if raw.Sender != "" {
			title = raw.Sender
		}
		msgs = append(msgs, model.InfoMessage{
			Time:    ts,
			Title:   title,
			Sender:  raw.Sender,
			Content: raw.Content,
		})
	}
	if len(msgs) == 0 && ev.Title != "" {
		msgs = append(msgs, model.InfoMessage{
			Time:  ev.PostTime,
			Title: ev.Title,
		})
	}
	return msgs
}
