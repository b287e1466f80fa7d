package notilist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/theme"
)

// RecordItem wraps a model.NotiRecord so it can be used in a bubbles/list.
type RecordItem struct {
	Record model.NotiRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i RecordItem) FilterValue() string {
	return i.Record.Title + " " + i.Record.AppName
}

// Title returns the record title for the list.
func (i RecordItem) Title() string { return i.Record.Title }

// Description returns a short summary line for the list.
func (i RecordItem) Description() string {
	parts := []string{
		i.Record.AppName,
		relativeTime(i.Record.LatestTime),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering record lines.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single record line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(RecordItem)
	if !ok {
		return
	}

	rec := ri.Record
	isSelected := index == m.Index()

	var prefix string
	if rec.WholeRead {
		prefix = " "
	} else {
		prefix = theme.UnreadStyle.Render("●")
	}

	pinBadge := ""
	if rec.Pinned {
		pinBadge = theme.PinStyle.Render(" ★")
	}

	appBadge := theme.CategoryStyle(rec.Category).Render(rec.AppName)

	scoreBadge := theme.ScoreStyle(rec.Score).Render(
		fmt.Sprintf("%5.2f", rec.Score),
	)

	title := rec.Title
	if rec.IsConversation && rec.CurrentThread.Len() > 1 {
		title = fmt.Sprintf("%s (%d)", title, rec.CurrentThread.Len())
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(rec.LatestTime))

	line := fmt.Sprintf(
		"%s %s %s %s%s  %s",
		prefix, appBadge, scoreBadge, title, pinBadge, timeStr,
	)

	if rec.WholeRead {
		line = lipgloss.NewStyle().Foreground(theme.ColorGray).Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string for a Unix
// millisecond timestamp.
func relativeTime(unixMillis int64) string {
	if unixMillis == 0 {
		return ""
	}
	return model.RelativeTime(unixMillis, time.Now())
}
