package model

import (
	"fmt"
	"time"
)

// RelativeTime renders a unix-millisecond timestamp relative to now for
// display and for the scorer payload ("Now", "23 minutes ago",
// "Yesterday 14:05", ...).
func RelativeTime(unixMillis int64, now time.Time) string {
	t := time.UnixMilli(unixMillis)
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < time.Minute:
		return "Now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 3*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 24*time.Hour:
		if now.YearDay() != t.YearDay() || now.Year() != t.Year() {
			return t.Format("Yesterday 15:04")
		}
		return t.Format("15:04")
	}

	days := int(diff.Hours() / 24)
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 14:
		return "Last week"
	default:
		return fmt.Sprintf("%d weeks ago", days/7)
	}
}
