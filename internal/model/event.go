package model

// RawMessage is a single message line as delivered by an event source,
// before normalization.
type RawMessage struct {
	// Time is the message timestamp in unix milliseconds; 0 means the
	// source did not supply one and the event post time is used.
	Time int64 `json:"time"`

	// Sender is the message author's display name, if any.
	Sender string `json:"sender"`

	// Content is the message text.
	Content string `json:"content"`
}

// NotificationEvent is one posted/updated notification as normalized by an
// event source. Group summaries and transient notifications are filtered
// out before an event reaches the engine.
type NotificationEvent struct {
	// Key is the stable notification key; all events sharing a key
	// consolidate into one record.
	Key string `json:"key"`

	// PkgName identifies the origin package or source.
	PkgName string `json:"pkg_name"`

	// AppName is the human-readable origin name.
	AppName string `json:"app_name"`

	// Category is the origin-declared category (e.g. "message", "call",
	// "email", "progress").
	Category string `json:"category"`

	// GroupKey groups related notifications from the same origin.
	GroupKey string `json:"group_key"`

	// IsGroupChat marks a group conversation.
	IsGroupChat bool `json:"is_group_chat"`

	// Title is the notification title or conversation title.
	Title string `json:"title"`

	// Icon and LargeIcon are opaque icon references.
	Icon      string `json:"icon"`
	LargeIcon string `json:"large_icon"`

	// Messages are the message lines carried by this event. Sources
	// delivering full conversation state repeat older messages here;
	// the engine deduplicates by timestamp.
	Messages []RawMessage `json:"messages"`

	// ConversationHint is the source's own conversation classification.
	ConversationHint bool `json:"conversation_hint"`

	// PostTime is when the event was posted, unix milliseconds.
	PostTime int64 `json:"post_time"`
}

// Event categories with conversational intent.
const (
	CategoryMessage    = "message"
	CategoryCall       = "call"
	CategoryMissedCall = "missed_call"
	CategoryEmail      = "email"
)
