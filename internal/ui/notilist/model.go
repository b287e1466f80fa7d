package notilist

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twhuang/notidrawer/internal/keys"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
	"github.com/twhuang/notidrawer/internal/theme"
)

// Digest selects which ordering of the visible records the list shows.
type Digest int

const (
	// DigestPriority is the default drawer order: unread first, then by
	// score and recency.
	DigestPriority Digest = iota

	// DigestUnread surfaces unread records by conversation weight.
	DigestUnread

	// DigestPeople groups conversational records by app.
	DigestPeople
)

// digestTitles maps each digest to its list title.
var digestTitles = map[Digest]string{
	DigestPriority: "Notifications",
	DigestUnread:   "Unread",
	DigestPeople:   "People",
}

// RecordsLoadedMsg is sent when records have been loaded from the store.
type RecordsLoadedMsg struct {
	Records []model.NotiRecord
}

// SelectedRecordMsg is sent when a user selects a record to view details.
type SelectedRecordMsg struct {
	NotiKey string
}

// Model is the main notification list view component.
type Model struct {
	list   list.Model
	store  store.Store
	keys   *keys.KeyMap
	digest Digest
	width  int
	height int
}

// New creates a new notification list model.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = digestTitles[DigestPriority]
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the initial set of records.
func (m Model) Init() tea.Cmd {
	return m.LoadRecords()
}

// Update handles messages for the notification list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RecordsLoadedMsg:
		items := make([]list.Item, len(msg.Records))
		for i, rec := range msg.Records {
			items[i] = RecordItem{Record: rec}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(RecordItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedRecordMsg{NotiKey: item.Record.NotiKey}
			}

		case key.Matches(msg, m.keys.CycleDigest):
			m.digest = (m.digest + 1) % 3
			m.list.Title = digestTitles[m.digest]
			return m, m.LoadRecords()
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when no records are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.digest != DigestPriority {
		return style.Render("Nothing here.\nPress tab to cycle digests.")
	}

	return style.Render(
		"No notifications.\n\n" +
			"Press : then type 'configure' to add a source.",
	)
}

// Selected returns the currently focused record, if any.
func (m Model) Selected() (model.NotiRecord, bool) {
	item, ok := m.list.SelectedItem().(RecordItem)
	if !ok {
		return model.NotiRecord{}, false
	}
	return item.Record, true
}

// LoadRecords returns a tea.Cmd that queries the store for the current
// digest.
func (m Model) LoadRecords() tea.Cmd {
	digest := m.digest
	s := m.store
	return func() tea.Msg {
		var (
			records []model.NotiRecord
			err     error
		)
		ctx := context.Background()
		switch digest {
		case DigestUnread:
			records, err = s.UnreadDigest(ctx)
		case DigestPeople:
			records, err = s.PeopleDigest(ctx)
		default:
			records, err = s.VisibleRecords(ctx)
		}
		if err != nil {
			return RecordsLoadedMsg{Records: nil}
		}
		return RecordsLoadedMsg{Records: records}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
