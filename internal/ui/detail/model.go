package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twhuang/notidrawer/internal/keys"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// RecordLoadedMsg carries the loaded record.
type RecordLoadedMsg struct {
	Record *model.NotiRecord
}

// Model is the record detail view component.
type Model struct {
	record   *model.NotiRecord
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RecordLoadedMsg:
		m.record = msg.Record
		m.loading = false
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading notification...")
	}

	if m.record == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.record == nil {
		return ""
	}

	rec := m.record
	now := time.Now()
	var sections []string

	// Title
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(rec.Title))

	// Badges line: app + category + score
	appBadge := theme.CategoryStyle(rec.Category).Render(rec.AppName)

	scoreBadge := theme.ScoreStyle(rec.Score).Render(
		fmt.Sprintf("score %.2f", rec.Score),
	)

	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top, appBadge, "  ", scoreBadge,
	)
	if rec.Pinned {
		badgeLine = lipgloss.JoinHorizontal(
			lipgloss.Top, badgeLine, "  ", theme.PinStyle.Render("★ pinned"),
		)
	}
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	// Metadata
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s   %s",
		metaStyle.Render("Latest:"),
		valStyle.Render(model.RelativeTime(rec.LatestTime, now)),
	))
	if rec.IsConversation && len(rec.Participants) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s     %s",
			metaStyle.Render("With:"),
			valStyle.Render(strings.Join(rec.Participants, ", ")),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))

	// Summary, when a summarize job has produced one
	if rec.Summary != "" {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections, "")
		sections = append(sections, titleStyle.Render("Summary"))
		sections = append(sections, theme.SummaryStyle.Render(rec.Summary))
	}

	// Current thread
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")
	sections = append(sections, titleStyle.Render(
		fmt.Sprintf("Messages (%d)", rec.CurrentThread.Len()),
	))
	sections = append(sections, "")
	sections = append(sections, m.renderThread(rec.CurrentThread, rec.IsConversation, now)...)

	// History retained from dismissed conversational threads
	if rec.History.Len() > 0 {
		sections = append(sections, separator)
		sections = append(sections, "")
		sections = append(sections, titleStyle.Render(
			fmt.Sprintf("Earlier (%d)", rec.History.Len()),
		))
		sections = append(sections, "")
		sections = append(sections, m.renderThread(rec.History, rec.IsConversation, now)...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderThread renders the messages of one thread, oldest first.
func (m Model) renderThread(
	t model.Thread, isConversation bool, now time.Time,
) []string {
	senderStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var lines []string
	for _, msg := range t.Messages {
		header := fmt.Sprintf(
			"%s  %s",
			senderStyle.Render(msg.DisplayTitle(isConversation)),
			timeStyle.Render(model.RelativeTime(msg.Time, now)),
		)
		lines = append(lines, header)
		lines = append(lines, msg.Content)
		lines = append(lines, "")
	}
	return lines
}

// SetRecord updates the record being displayed and re-renders the content.
func (m *Model) SetRecord(rec *model.NotiRecord) {
	m.record = rec
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
