package model

import "hash/fnv"

// Outcome defaults. A freshly created record starts at the neutral high
// score so unscored notifications are not buried; an explicit reset drops
// to the low default until the next scoring run.
const (
	DefaultScore = 100.0
	ResetScore   = 30.0
)

// NotiRecord is the consolidated, persisted unit for one notification key:
// a deduplicated thread of messages plus display state, read state, and the
// externally computed outcome.
type NotiRecord struct {
	// NotiKey is the stable external key for this record; exactly one
	// record exists per key.
	NotiKey string `json:"noti_key" db:"noti_key"`

	// HashKey is the numeric id derived from NotiKey, used for the
	// scorer round-trip.
	HashKey int64 `json:"hash_key" db:"hash_key"`

	// PkgName is the origin package or source identifier.
	PkgName string `json:"pkg_name" db:"pkg_name"`

	// Category is the origin-declared notification category.
	Category string `json:"category" db:"category"`

	// GroupKey groups related notifications from the same origin.
	GroupKey string `json:"group_key" db:"group_key"`

	// IsGroupChat marks a group conversation.
	IsGroupChat bool `json:"is_group_chat" db:"is_group_chat"`

	// AppName is the human-readable origin name.
	AppName string `json:"app_name" db:"app_name"`

	// Icon and LargeIcon are opaque icon references supplied by the
	// event source.
	Icon      string `json:"icon" db:"icon"`
	LargeIcon string `json:"large_icon" db:"large_icon"`

	// Title is the latest overall title (conversation title or sender
	// for conversational records).
	Title string `json:"title" db:"title"`

	// LatestTime is the timestamp of the newest message in the current
	// thread, unix milliseconds.
	LatestTime int64 `json:"latest_time" db:"latest_time"`

	// IsConversation marks an ongoing exchange. Sticky: once true it
	// never reverts.
	IsConversation bool `json:"is_conversation" db:"is_conversation"`

	// Participants is the accumulated set of sender names.
	Participants []string `json:"participants" db:"-"`

	// CurrentThread holds the live, visible messages.
	CurrentThread Thread `json:"current_thread" db:"-"`

	// History holds previously shown messages retained for context.
	History Thread `json:"history" db:"-"`

	// WholeRead is true iff every message in CurrentThread is seen, or
	// reading was explicitly forced.
	WholeRead bool `json:"whole_read" db:"whole_read"`

	// Score and Summary are written only at creation/reset and by the
	// scoring merge-back.
	Score   float64 `json:"score" db:"score"`
	Summary string  `json:"summary" db:"summary"`

	// Visible reports whether the record is shown in the drawer.
	Visible bool `json:"visible" db:"visible"`

	// Pinned records are exempt from bulk deletion and swipe dismissal.
	Pinned bool `json:"pinned" db:"pinned"`
}

// HashKeyFor derives the numeric scorer id for a notification key.
// Deterministic; the id space is 32 bits, so collisions across distinct
// keys are possible in theory and accepted.
func HashKeyFor(notiKey string) int64 {
	h := fnv.New32a()
	h.Write([]byte(notiKey))
	return int64(h.Sum32())
}

// AddParticipants merges names into the participant set, skipping blanks
// and duplicates.
func (r *NotiRecord) AddParticipants(names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		exists := false
		for _, p := range r.Participants {
			if p == name {
				exists = true
				break
			}
		}
		if !exists {
			r.Participants = append(r.Participants, name)
		}
	}
}

// RefreshLatestTime recomputes LatestTime as the maximum timestamp in the
// current thread. Out-of-order bulk arrivals must neither move the
// display time backward nor keep a stale value when newer messages landed
// in the same batch.
func (r *NotiRecord) RefreshLatestTime() {
	if ts := r.CurrentThread.LatestTime(); ts > 0 {
		r.LatestTime = ts
	}
}

// Hide moves the whole current thread into history and takes the record
// out of the drawer. History accumulates across repeated dismissals.
func (r *NotiRecord) Hide() {
	r.History.AddAll(r.CurrentThread.Messages)
	r.CurrentThread.Clear()
	r.Visible = false
	r.WholeRead = false
}

// Reveal makes the record visible and unread again. Conversational
// records keep a bounded slice of history for context: at most keepCount
// entries, none older than maxAgeMillis before now. Non-conversational
// records drop history entirely.
func (r *NotiRecord) Reveal(keepHistory bool, keepCount int, maxAgeMillis int64, now int64) {
	r.Visible = true
	r.WholeRead = false
	if !keepHistory {
		r.History.Clear()
		return
	}
	r.History.TrimToNewest(keepCount)
	if maxAgeMillis > 0 {
		r.History.DropOlderThan(now - maxAgeMillis)
	}
}

// MarkSeen flags the given message timestamps as seen and re-derives
// WholeRead.
func (r *NotiRecord) MarkSeen(times []int64) {
	set := make(map[int64]bool, len(times))
	for _, ts := range times {
		set[ts] = true
	}
	r.WholeRead = r.CurrentThread.MarkSeen(set)
}

// MarkAllSeen forces every message seen and WholeRead true.
func (r *NotiRecord) MarkAllSeen() {
	r.CurrentThread.MarkAllSeen()
	r.WholeRead = true
}

// TogglePin flips the pinned flag.
func (r *NotiRecord) TogglePin() {
	r.Pinned = !r.Pinned
}

// ResetOutcome restores the default outcome: low score, empty summary.
func (r *NotiRecord) ResetOutcome() {
	r.Score = ResetScore
	r.Summary = ""
}

// ContentLength is the combined content length of the current thread,
// used by the digest orderings.
func (r *NotiRecord) ContentLength() int {
	return r.CurrentThread.ContentLength()
}
