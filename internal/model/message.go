package model

// InfoMessage is a single normalized message or state line carried by a
// notification. Immutable after creation except for the Seen flag.
type InfoMessage struct {
	// Time is the message timestamp in unix milliseconds. It doubles as
	// the ordering key inside a Thread.
	Time int64 `json:"time"`

	// Title is the notification line title (falls back to the record
	// title for single-state notifications).
	Title string `json:"title"`

	// Sender is the display name of the person who sent the message,
	// empty for non-conversational notifications.
	Sender string `json:"sender"`

	// Content is the message body text.
	Content string `json:"content"`

	// Seen indicates whether the user has viewed this message.
	Seen bool `json:"seen"`
}

// DisplayTitle returns the sender for conversational messages and the
// line title otherwise.
func (m InfoMessage) DisplayTitle(isConversation bool) string {
	if isConversation && m.Sender != "" {
		return m.Sender
	}
	return m.Title
}

// Thread is an ordered set of InfoMessages keyed by Time, ascending.
// Two messages never share a timestamp: Add keeps the existing entry and
// drops the incoming one, so Seen flags survive re-delivery of the same
// message.
type Thread struct {
	Messages []InfoMessage `json:"messages"`
}

// Add inserts msg in time order. It reports whether the thread changed;
// a message whose timestamp is already present is dropped.
func (t *Thread) Add(msg InfoMessage) bool {
	i := t.searchTime(msg.Time)
	if i < len(t.Messages) && t.Messages[i].Time == msg.Time {
		return false
	}
	t.Messages = append(t.Messages, InfoMessage{})
	copy(t.Messages[i+1:], t.Messages[i:])
	t.Messages[i] = msg
	return true
}

// AddAll inserts every message and reports how many were actually added.
func (t *Thread) AddAll(msgs []InfoMessage) int {
	added := 0
	for _, m := range msgs {
		if t.Add(m) {
			added++
		}
	}
	return added
}

// Replace clears the thread and installs msgs as its new content.
func (t *Thread) Replace(msgs []InfoMessage) {
	t.Messages = t.Messages[:0]
	for _, m := range msgs {
		t.Add(m)
	}
}

// Clear removes every message.
func (t *Thread) Clear() {
	t.Messages = nil
}

// Len returns the number of messages.
func (t *Thread) Len() int {
	return len(t.Messages)
}

// Latest returns the most recent message and false if the thread is empty.
func (t *Thread) Latest() (InfoMessage, bool) {
	if len(t.Messages) == 0 {
		return InfoMessage{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// LatestTime returns the timestamp of the most recent message, or 0 for
// an empty thread.
func (t *Thread) LatestTime() int64 {
	if m, ok := t.Latest(); ok {
		return m.Time
	}
	return 0
}

// MarkSeen sets the Seen flag on every message whose timestamp appears in
// times and reports whether all messages in the thread are now seen.
func (t *Thread) MarkSeen(times map[int64]bool) bool {
	for i := range t.Messages {
		if times[t.Messages[i].Time] {
			t.Messages[i].Seen = true
		}
	}
	return t.AllSeen()
}

// MarkAllSeen forces the Seen flag on every message.
func (t *Thread) MarkAllSeen() {
	for i := range t.Messages {
		t.Messages[i].Seen = true
	}
}

// AllSeen reports whether every message has been seen. An empty thread
// counts as seen.
func (t *Thread) AllSeen() bool {
	for _, m := range t.Messages {
		if !m.Seen {
			return false
		}
	}
	return true
}

// TrimToNewest drops the oldest messages until at most limit remain.
// A negative limit disables trimming.
func (t *Thread) TrimToNewest(limit int) {
	if limit < 0 || len(t.Messages) <= limit {
		return
	}
	t.Messages = append([]InfoMessage(nil), t.Messages[len(t.Messages)-limit:]...)
}

// DropOlderThan removes every message with Time <= cutoff.
func (t *Thread) DropOlderThan(cutoff int64) {
	i := t.searchTime(cutoff + 1)
	if i == 0 {
		return
	}
	t.Messages = append([]InfoMessage(nil), t.Messages[i:]...)
}

// ContentLength returns the total content length across all messages,
// used by the digest orderings.
func (t *Thread) ContentLength() int {
	n := 0
	for _, m := range t.Messages {
		n += len(m.Content)
	}
	return n
}

// searchTime returns the index of the first message with Time >= ts.
func (t *Thread) searchTime(ts int64) int {
	lo, hi := 0, len(t.Messages)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Messages[mid].Time < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
