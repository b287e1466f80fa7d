package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/twhuang/notidrawer/internal/credential"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/source/email"
)

// sourcesRegisteredMsg is sent when all configured sources have been
// registered with the poller.
type sourcesRegisteredMsg struct {
	count int
}

// registerSources registers each enabled source from the configuration
// with the poller. Credentials are loaded from the system keyring.
func (m *Model) registerSources() tea.Cmd {
	cfg := m.cfg
	p := m.poller
	log := m.log

	return func() tea.Msg {
		registered := 0
		for _, src := range cfg.Sources {
			if !src.Enabled {
				continue
			}

			switch src.Type {
			case "email":
				adapter := createEmailAdapter(src, log)
				if adapter == nil {
					continue
				}
				p.RegisterSource(adapter, src)
				registered++
			default:
				log.Warnw("skipping source with unknown type",
					"id", src.ID, "type", src.Type)
			}
		}

		return sourcesRegisteredMsg{count: registered}
	}
}

// createEmailAdapter builds an email adapter from a source configuration,
// loading the password from the system keyring.
func createEmailAdapter(src model.SourceConfig, log *zap.SugaredLogger) *email.Adapter {
	password, err := credential.Get("email-" + src.ID)
	if err != nil {
		log.Warnw("skipping email source: credential not found",
			"name", src.Name, "id", src.ID, "error", err)
		return nil
	}

	return email.NewAdapter(src, password)
}
