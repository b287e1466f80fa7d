package app

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/twhuang/notidrawer/internal/credential"
	"github.com/twhuang/notidrawer/internal/engine"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/score"
	"github.com/twhuang/notidrawer/internal/store"
	appsync "github.com/twhuang/notidrawer/internal/sync"
	"github.com/twhuang/notidrawer/internal/ui"
	"github.com/twhuang/notidrawer/internal/ui/command"
	configview "github.com/twhuang/notidrawer/internal/ui/config"
	"github.com/twhuang/notidrawer/internal/ui/detail"
	helpview "github.com/twhuang/notidrawer/internal/ui/help"
	"github.com/twhuang/notidrawer/internal/ui/notilist"
)

// unreadCountMsg carries the number of unread records to the UI.
type unreadCountMsg struct {
	count int
}

// recordLoadedMsg carries a record fetched for the detail view.
type recordLoadedMsg struct {
	record *model.NotiRecord
}

// actionDoneMsg is sent after an engine action completes.
type actionDoneMsg struct {
	err error
}

// jobDoneMsg carries the outcome of a scoring job.
type jobDoneMsg struct {
	report *score.Report
	kind   score.Kind
	err    error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewConfig
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the persistence layer.
type Model struct {
	currentView      ViewState
	previousView     ViewState
	layout           ui.Layout
	store            *store.SQLiteStore
	engine           *engine.Engine
	cfg              *model.AppConfig
	configPath       string
	log              *zap.SugaredLogger
	keys             *KeyMap
	notiList         notilist.Model
	detail           detail.Model
	helpView         helpview.Model
	commandView      command.Model
	configView       configview.Model
	poller           *appsync.Poller
	ready            bool
	unreadCount      int
	jobRunning       bool
	statusMsg        string
	authErrorMessage string
}

// New creates a new root application model.
func New(
	s *store.SQLiteStore,
	cfg *model.AppConfig,
	configPath string,
	log *zap.SugaredLogger,
) Model {
	keys := DefaultKeyMap()
	eng := engine.New(s, cfg.Retention, log)
	p := appsync.New(eng)

	return Model{
		currentView: ViewList,
		store:       s,
		engine:      eng,
		cfg:         cfg,
		configPath:  configPath,
		log:         log,
		keys:        keys,
		notiList:    notilist.New(s, keys, 80, 24),
		detail:      detail.New(keys, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(80, 24),
		configView:  configview.New(cfg, configPath, keys, 80, 24),
		poller:      p,
	}
}

// loadScorer builds the scoring backend from the environment variable or
// the system keyring. Returns nil when no API key is available.
func (m Model) loadScorer() score.Scorer {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		var err error
		apiKey, err = credential.Get(configview.ScorerCredentialKey)
		if err != nil || apiKey == "" {
			return nil
		}
	}

	return score.NewAnthropicScorer(apiKey, m.cfg.Scorer.Model, m.cfg.Scorer.MaxTokens)
}

// Init returns the initial commands to load records and start polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.notiList.Init(),
		m.registerSources(),
		m.fetchUnreadCount(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.notiList.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sourcesRegisteredMsg:
		// If no sources are configured, enter first-run config setup.
		if msg.count == 0 && len(m.cfg.Sources) == 0 {
			m.previousView = m.currentView
			m.currentView = ViewConfig
			return m, m.configView.Init()
		}
		// Sources are registered; now start the poller.
		return m, m.poller.Start()

	case appsync.SyncResultMsg:
		// Handle auth errors by showing a status bar message.
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			// Clear auth error for this source on a successful poll.
			m.authErrorMessage = ""
		}

		// After a poll completes, reload the list and the unread count.
		return m, tea.Batch(
			m.notiList.LoadRecords(),
			m.poller.WaitForNextResult(),
			m.fetchUnreadCount(),
		)

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case notilist.SelectedRecordMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, tea.Batch(
			m.loadRecord(msg.NotiKey),
			m.markRecordSeen(msg.NotiKey),
		)

	case recordLoadedMsg:
		m.detail.SetRecord(msg.record)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("action failed: %v", msg.err)
		}
		return m, tea.Batch(
			m.notiList.LoadRecords(),
			m.fetchUnreadCount(),
		)

	case jobDoneMsg:
		m.jobRunning = false
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("%s job failed: %v", msg.kind, msg.err)
		} else {
			m.statusMsg = fmt.Sprintf(
				"%s job: %d records updated (%d/%d chunks ok)",
				msg.kind, msg.report.Updated,
				msg.report.Chunks-msg.report.FailedChunks, msg.report.Chunks,
			)
		}
		return m, m.notiList.LoadRecords()

	case detail.BackMsg:
		m.currentView = ViewList
		return m, tea.Batch(
			m.notiList.LoadRecords(),
			m.fetchUnreadCount(),
		)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		// Re-register sources and restart polling after config changes
		return m, tea.Batch(
			m.notiList.LoadRecords(),
			m.registerSources(),
		)

	case configview.SourceSavedMsg:
		return m, tea.Batch(
			m.notiList.LoadRecords(),
			m.registerSources(),
		)

	case configview.SourceDeletedMsg:
		return m, m.notiList.LoadRecords()

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			m.poller.Stop()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewList {
				m.poller.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewConfig {
				break
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "c":
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewConfig
				return m, m.configView.Init()
			}

		case "r":
			if m.currentView == ViewList {
				m.poller.RefreshAll()
				return m, m.notiList.LoadRecords()
			}

		case "d":
			if m.currentView == ViewList {
				if rec, ok := m.notiList.Selected(); ok {
					return m, m.dismissRecord(rec.NotiKey)
				}
			}

		case "p":
			if m.currentView == ViewList {
				if rec, ok := m.notiList.Selected(); ok {
					return m, m.togglePin(rec.NotiKey)
				}
			}

		case "m":
			if m.currentView == ViewList {
				if rec, ok := m.notiList.Selected(); ok {
					return m, m.markRecordSeen(rec.NotiKey)
				}
			}

		case "M":
			if m.currentView == ViewList {
				return m, m.markAllSeen()
			}

		case "s":
			if m.currentView == ViewList {
				return m, m.runJob(score.KindSort)
			}

		case "S":
			if m.currentView == ViewList {
				return m, m.runJob(score.KindSummarize)
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.notiList, cmd = m.notiList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Notidrawer"
	if m.unreadCount > 0 {
		headerTitle = fmt.Sprintf("Notidrawer [%d unread]", m.unreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.notiList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined polling state.
func (m Model) syncStatus() string {
	if m.jobRunning {
		return "scoring..."
	}

	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return "no sources"
	}

	running := 0
	errCount := 0
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			errCount++
		}
	}

	if running > 0 {
		return fmt.Sprintf("polling (%d)", running)
	}
	if errCount > 0 {
		return fmt.Sprintf("errors (%d)", errCount)
	}
	return "idle"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}
	if m.statusMsg != "" && m.currentView == ViewList {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewConfig:
		return "a add | e edit | d delete | enter test | s API key | esc back"
	default:
		return "q quit | ? help | d dismiss | p pin | m read | s score | tab digest"
	}
}

// loadRecord returns a command that loads a record by key from the store.
func (m Model) loadRecord(notiKey string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		rec, err := s.GetByKey(context.Background(), notiKey)
		if err != nil {
			return recordLoadedMsg{record: nil}
		}
		return recordLoadedMsg{record: rec}
	}
}

// fetchUnreadCount returns a tea.Cmd that queries the store for the
// number of visible unread records.
func (m Model) fetchUnreadCount() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		count, err := s.UnreadCount(context.Background())
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: count}
	}
}

// dismissRecord hides a record, folding its thread into history.
func (m Model) dismissRecord(notiKey string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.Dismiss(context.Background(), notiKey)}
	}
}

// togglePin flips the pinned flag on a record.
func (m Model) togglePin(notiKey string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.TogglePin(context.Background(), notiKey)}
	}
}

// markRecordSeen marks every message of a record as seen.
func (m Model) markRecordSeen(notiKey string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.MarkRead(context.Background(), notiKey)}
	}
}

// markAllSeen marks every visible record as read.
func (m Model) markAllSeen() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.MarkAllSeen(context.Background())}
	}
}

// runJob starts a scoring job over the visible records.
func (m *Model) runJob(kind score.Kind) tea.Cmd {
	if m.jobRunning {
		m.statusMsg = "a scoring job is already running"
		return nil
	}

	scorer := m.loadScorer()
	if scorer == nil {
		m.statusMsg = "no scoring API key; press c then s to set one"
		return nil
	}

	m.jobRunning = true
	m.statusMsg = ""
	orch := score.NewOrchestrator(m.store, scorer, m.cfg.Scorer, m.log)
	return func() tea.Msg {
		report, err := orch.Run(context.Background(), kind)
		return jobDoneMsg{report: report, kind: kind, err: err}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.poller.RefreshAll()
		return m.notiList.LoadRecords()
	case "quit", "q":
		m.poller.Stop()
		return tea.Quit
	case "configure", "config":
		m.previousView = m.currentView
		m.currentView = ViewConfig
		return m.configView.Init()
	case "mark all read", "read all":
		return m.markAllSeen()
	case "clear", "delete unpinned":
		return m.deleteAllUnpinned()
	case "clear all", "delete all":
		return m.deleteAll()
	case "reset scores":
		return m.resetOutcomes()
	case "score", "sort":
		return m.runJob(score.KindSort)
	case "summarize":
		return m.runJob(score.KindSummarize)
	default:
		m.statusMsg = fmt.Sprintf("unknown command %q", cmd)
		return nil
	}
}

// deleteAllUnpinned removes every record that is not pinned.
func (m Model) deleteAllUnpinned() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.DeleteAllUnpinned(context.Background())}
	}
}

// deleteAll removes every record.
func (m Model) deleteAll() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.DeleteAll(context.Background())}
	}
}

// resetOutcomes clears summaries and resets scores to the reset baseline.
func (m Model) resetOutcomes() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		return actionDoneMsg{err: eng.ResetOutcomes(context.Background())}
	}
}
