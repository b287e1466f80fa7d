package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/twhuang/notidrawer/internal/credential"
	"github.com/twhuang/notidrawer/internal/keys"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/source/email"
	"github.com/twhuang/notidrawer/internal/theme"
)

// ConfigMode represents the current state of the configuration view.
type ConfigMode int

const (
	ModeList           ConfigMode = iota // List configured sources
	ModeFormEmail                        // Email source form
	ModeFormScorer                       // Scorer API key form
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
	ModeConfirmDelete                    // Confirm source deletion
)

// ScorerCredentialKey is the keyring entry holding the scoring API key.
const ScorerCredentialKey = "claude-api-key"

// ConfigDoneMsg signals the config view should close and return to the main app.
type ConfigDoneMsg struct{}

// SourceSavedMsg signals a source was saved successfully.
type SourceSavedMsg struct {
	Source model.SourceConfig
}

// SourceDeletedMsg signals a source was deleted.
type SourceDeletedMsg struct {
	ID string
}

// ScorerKeySavedMsg signals the scorer API key was stored.
type ScorerKeySavedMsg struct{}

// ValidateResultMsg carries the result of a connection validation attempt.
type ValidateResultMsg struct {
	Name string
	Err  error
}

// Model is the Bubble Tea model for the configuration UI. Sources are
// kept in the YAML config file; secrets go to the system keyring.
type Model struct {
	mode        ConfigMode
	cfg         *model.AppConfig
	configPath  string
	selectedIdx int
	editingID   string

	emailForm  *huh.Form
	scorerForm *huh.Form

	// Form field values (huh binds to these)
	formName     string
	formHost     string
	formPort     string
	formMailbox  string
	formUsername string
	formPassword string
	formTLS      bool

	formAPIKey string

	// Validation
	validating  bool
	validResult string
	validError  error
	spinner     spinner.Model

	// Delete confirmation
	confirmDelete *huh.Form
	deleteConfirm bool

	// Status message for transient feedback
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new configuration view model.
func New(cfg *model.AppConfig, configPath string, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:       ModeList,
		cfg:        cfg,
		configPath: configPath,
		keys:       k,
		spinner:    sp,
		width:      width,
		height:     height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		m.validating = false
		m.validResult = msg.Name
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Delegate to active form
	return m.updateActiveForm(msg)
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		return m.handleListKeys(msg)
	case ModeFormEmail:
		return m.updateEmailForm(msg)
	case ModeFormScorer:
		return m.updateScorerForm(msg)
	case ModeValidateResult:
		return m.handleValidateResultKeys(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeList
			m.validating = false
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

// handleListKeys processes key events in the source list mode.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "a":
		m.editingID = ""
		m.resetFormFields()
		m.mode = ModeFormEmail
		m.emailForm = m.buildEmailForm()
		return m, m.emailForm.Init()

	case msg.String() == "e":
		if len(m.cfg.Sources) == 0 {
			return m, nil
		}
		return m.startEditForm(m.cfg.Sources[m.selectedIdx])

	case msg.String() == "s":
		m.mode = ModeFormScorer
		m.formAPIKey = ""
		m.scorerForm = m.buildScorerForm()
		return m, m.scorerForm.Init()

	case msg.String() == "d":
		if len(m.cfg.Sources) == 0 {
			return m, nil
		}
		m.deleteConfirm = false
		m.confirmDelete = m.buildDeleteConfirmForm()
		m.mode = ModeConfirmDelete
		return m, m.confirmDelete.Init()

	case msg.String() == "enter":
		if len(m.cfg.Sources) == 0 {
			return m, nil
		}
		src := m.cfg.Sources[m.selectedIdx]
		m.mode = ModeValidating
		m.validating = true
		return m, tea.Batch(
			m.spinner.Tick,
			m.validateSource(src),
		)

	case key.Matches(msg, m.keys.Down):
		if len(m.cfg.Sources) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.cfg.Sources)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.cfg.Sources) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.cfg.Sources) - 1
			}
		}
		return m, nil
	}

	return m, nil
}

// handleValidateResultKeys processes key events on the validation result screen.
func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = ModeList
		m.validResult = ""
		m.validError = nil
		return m, nil
	case "r":
		if m.validError != nil && len(m.cfg.Sources) > 0 {
			src := m.cfg.Sources[m.selectedIdx]
			m.mode = ModeValidating
			m.validating = true
			return m, tea.Batch(
				m.spinner.Tick,
				m.validateSource(src),
			)
		}
		return m, nil
	}
	return m, nil
}

// updateActiveForm dispatches non-key messages to the currently active form.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeFormEmail:
		return m.updateEmailForm(msg)
	case ModeFormScorer:
		return m.updateScorerForm(msg)
	case ModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m, nil
}

// --- Email Form ---

func (m *Model) buildEmailForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A label for this email source").
				Placeholder("Work Email").
				Value(&m.formName).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.formHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.formPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Mailbox").
				Description("Mailbox to watch (default INBOX)").
				Placeholder("INBOX").
				Value(&m.formMailbox),
			huh.NewInput().
				Title("Username").
				Description("Email account username").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Email account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Enable TLS encryption for connections").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formTLS),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateEmailForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.emailForm == nil {
		return m, nil
	}

	mdl, cmd := m.emailForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.emailForm = f
	}

	if m.emailForm.State == huh.StateCompleted {
		return m.saveEmailSource()
	}
	if m.emailForm.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

func (m Model) saveEmailSource() (Model, tea.Cmd) {
	src := model.SourceConfig{
		ID:              m.editingID,
		Type:            "email",
		Name:            m.formName,
		Enabled:         true,
		PollIntervalSec: m.cfg.Display.PollIntervalSec,
		Config: map[string]string{
			"host":     m.formHost,
			"port":     m.formPort,
			"mailbox":  m.formMailbox,
			"username": m.formUsername,
			"tls":      fmt.Sprintf("%t", m.formTLS),
		},
	}
	if src.ID == "" {
		src.ID = uuid.New().String()
	}

	credKey := "email-" + src.ID
	if err := credential.Set(credKey, m.formPassword); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
		m.mode = ModeList
		return m, nil
	}
	src.Config["password_ref"] = "keyring:" + credKey

	replaced := false
	for i, existing := range m.cfg.Sources {
		if existing.ID == src.ID {
			m.cfg.Sources[i] = src
			replaced = true
			break
		}
	}
	if !replaced {
		m.cfg.Sources = append(m.cfg.Sources, src)
	}

	if err := model.SaveConfig(m.configPath, m.cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving config: %v", err)
		m.mode = ModeList
		return m, nil
	}

	m.statusMsg = fmt.Sprintf("Source %q saved", src.Name)
	m.mode = ModeList
	return m, func() tea.Msg { return SourceSavedMsg{Source: src} }
}

// --- Scorer Key Form ---

func (m *Model) buildScorerForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Scoring API Key").
				Description("Anthropic API key used by the sort and summarize jobs").
				EchoMode(huh.EchoModePassword).
				Value(&m.formAPIKey).
				Validate(validateRequired("API key")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateScorerForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.scorerForm == nil {
		return m, nil
	}

	mdl, cmd := m.scorerForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.scorerForm = f
	}

	if m.scorerForm.State == huh.StateCompleted {
		if err := credential.Set(ScorerCredentialKey, m.formAPIKey); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving API key: %v", err)
			m.mode = ModeList
			return m, nil
		}
		m.formAPIKey = ""
		m.statusMsg = "Scoring API key saved"
		m.mode = ModeList
		return m, func() tea.Msg { return ScorerKeySavedMsg{} }
	}
	if m.scorerForm.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

// --- Delete Confirmation ---

func (m *Model) buildDeleteConfirmForm() *huh.Form {
	sourceName := ""
	if m.selectedIdx < len(m.cfg.Sources) {
		sourceName = m.cfg.Sources[m.selectedIdx].Name
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete source %q?", sourceName)).
				Description(
					"This removes the source configuration. Records " +
						"already in the drawer are kept.",
				).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.deleteConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirmDelete(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmDelete == nil {
		return m, nil
	}

	mdl, cmd := m.confirmDelete.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmDelete = f
	}

	if m.confirmDelete.State == huh.StateCompleted {
		if m.deleteConfirm {
			return m.deleteSource(m.cfg.Sources[m.selectedIdx])
		}
		m.mode = ModeList
		return m, nil
	}
	if m.confirmDelete.State == huh.StateAborted {
		m.mode = ModeList
		return m, nil
	}

	return m, cmd
}

func (m Model) deleteSource(src model.SourceConfig) (Model, tea.Cmd) {
	// Remove credential from keyring; best-effort
	_ = credential.Delete("email-" + src.ID)

	kept := m.cfg.Sources[:0]
	for _, existing := range m.cfg.Sources {
		if existing.ID != src.ID {
			kept = append(kept, existing)
		}
	}
	m.cfg.Sources = kept

	if err := model.SaveConfig(m.configPath, m.cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving config: %v", err)
		m.mode = ModeList
		return m, nil
	}

	m.statusMsg = "Source deleted"
	m.mode = ModeList
	if m.selectedIdx >= len(m.cfg.Sources) && m.selectedIdx > 0 {
		m.selectedIdx--
	}
	return m, func() tea.Msg { return SourceDeletedMsg{ID: src.ID} }
}

// --- View ---

// View renders the configuration UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeFormEmail:
		return m.viewForm(m.emailForm)
	case ModeFormScorer:
		return m.viewForm(m.scorerForm)
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	case ModeConfirmDelete:
		return m.viewForm(m.confirmDelete)
	default:
		return ""
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Source Configuration"))
	b.WriteString("\n\n")

	if len(m.cfg.Sources) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true)
		b.WriteString(emptyStyle.Render(
			"No sources configured.\nPress 'a' to add a new source.",
		))
	} else {
		for i, src := range m.cfg.Sources {
			b.WriteString(m.renderSourceItem(i, src))
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	b.WriteString(hintStyle.Render(
		"a add | e edit | d delete | enter test | s API key | esc back",
	))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) renderSourceItem(idx int, src model.SourceConfig) string {
	enabledLabel := "enabled"
	enabledColor := theme.ColorGreen
	if !src.Enabled {
		enabledLabel = "disabled"
		enabledColor = theme.ColorGray
	}

	name := src.Name
	if name == "" {
		name = "(unnamed)"
	}

	statusLabel := lipgloss.NewStyle().
		Foreground(enabledColor).
		Render(enabledLabel)

	line := fmt.Sprintf("[E]  %s  [%s]  %s",
		name, src.Type, statusLabel,
	)

	if idx == m.selectedIdx {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	content := f.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		displayName := m.validResult
		if displayName == "" {
			displayName = "OK"
		}
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Authenticated as: %s", displayName) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m *Model) resetFormFields() {
	m.formName = ""
	m.formHost = ""
	m.formPort = ""
	m.formMailbox = ""
	m.formUsername = ""
	m.formPassword = ""
	m.formTLS = true
}

func (m Model) startEditForm(src model.SourceConfig) (Model, tea.Cmd) {
	m.resetFormFields()
	m.editingID = src.ID
	m.formName = src.Name

	if src.Config != nil {
		m.formHost = src.Config["host"]
		m.formPort = src.Config["port"]
		m.formMailbox = src.Config["mailbox"]
		m.formUsername = src.Config["username"]
		m.formTLS = src.Config["tls"] != "false"
	}

	m.mode = ModeFormEmail
	m.emailForm = m.buildEmailForm()
	return m, m.emailForm.Init()
}

// validateSource tests the connection for an existing source.
func (m Model) validateSource(src model.SourceConfig) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		password, err := credential.Get("email-" + src.ID)
		if err != nil {
			return ValidateResultMsg{
				Err: fmt.Errorf("credential not found: %w", err),
			}
		}

		adapter := email.NewAdapter(src, password)
		name, err := adapter.ValidateConnection(ctx)
		return ValidateResultMsg{Name: name, Err: err}
	}
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
