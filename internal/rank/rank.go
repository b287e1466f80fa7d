// Package rank defines the presentation orderings over drawer records as
// pure functions. The SQLite scan queries apply the same ORDER BY
// clauses; these comparators are the reference definition and serve
// in-memory callers and tests.
package rank

import (
	"sort"

	"github.com/twhuang/notidrawer/internal/model"
)

// Priority sorts records for the main drawer: unread first, then score
// descending, latest time descending. Ties break on the notification key
// so the order is a strict total order.
func Priority(recs []model.NotiRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]
		if a.WholeRead != b.WholeRead {
			return !a.WholeRead
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LatestTime != b.LatestTime {
			return a.LatestTime > b.LatestTime
		}
		return a.NotiKey < b.NotiKey
	})
}

// UnreadDigest orders unread records for the digest view: conversations
// first, longer content first, newest first.
func UnreadDigest(recs []model.NotiRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]
		if a.IsConversation != b.IsConversation {
			return a.IsConversation
		}
		if la, lb := a.ContentLength(), b.ContentLength(); la != lb {
			return la > lb
		}
		if a.LatestTime != b.LatestTime {
			return a.LatestTime > b.LatestTime
		}
		return a.NotiKey < b.NotiKey
	})
}

// PeopleDigest orders conversational records for the people view: by app
// name, then conversations first, longer content first, newest first.
func PeopleDigest(recs []model.NotiRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]
		if a.AppName != b.AppName {
			return a.AppName < b.AppName
		}
		if a.IsConversation != b.IsConversation {
			return a.IsConversation
		}
		if la, lb := a.ContentLength(), b.ContentLength(); la != lb {
			return la > lb
		}
		if a.LatestTime != b.LatestTime {
			return a.LatestTime > b.LatestTime
		}
		return a.NotiKey < b.NotiKey
	})
}
