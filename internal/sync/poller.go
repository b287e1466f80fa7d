package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/twhuang/notidrawer/internal/engine"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/source"
)

// SyncState represents the current state of a source poll operation.
type SyncState int

const (
	SyncIdle    SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the polling state for a single source.
type SyncStatus struct {
	SourceID   string
	SourceType source.SourceType
	State      SyncState
	LastSync   time.Time
	Error      error
}

// SyncResultMsg is a tea.Msg sent when a poll cycle completes.
type SyncResultMsg struct {
	SourceID  string
	Applied   int
	Error     error
	AuthError *AuthErrorMsg
}

// SyncStatusMsg is a tea.Msg with the current statuses of all sources.
type SyncStatusMsg struct {
	Statuses []SyncStatus
}

// AuthErrorMsg is a tea.Msg sent when a source returns an authentication error.
type AuthErrorMsg struct {
	SourceID string
	Message  string
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// sourceEntry holds a registered source, its configuration, and the
// watermark of the newest event already ingested from it.
type sourceEntry struct {
	src       source.Source
	cfg       model.SourceConfig
	watermark int64
}

// Poller orchestrates background polling of registered sources and
// feeds fetched events into the consolidation engine.
type Poller struct {
	engine    *engine.Engine
	sources   []*sourceEntry
	statuses  map[string]*SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan string
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a new Poller feeding the given engine.
func New(eng *engine.Engine) *Poller {
	return &Poller{
		engine:    eng,
		statuses:  make(map[string]*SyncStatus),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan string, 16),
		stopCh:    make(chan struct{}),
	}
}

// RegisterSource adds a source adapter and its configuration to the poller.
func (p *Poller) RegisterSource(src source.Source, cfg model.SourceConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sources = append(p.sources, &sourceEntry{src: src, cfg: cfg})
	p.statuses[cfg.ID] = &SyncStatus{
		SourceID:   cfg.ID,
		SourceType: src.Type(),
		State:      SyncIdle,
	}
}

// Start returns a tea.Cmd that starts all polling goroutines and
// subscribes to results. The returned command waits on the result
// channel and returns SyncResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	// Start a polling goroutine for each source
	for _, entry := range p.sources {
		go p.pollSource(entry)
	}

	// Return a subscription command that listens for results
	return p.waitForResult()
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate poll of all registered sources.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	sources := make([]*sourceEntry, len(p.sources))
	copy(sources, p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		select {
		case p.triggerCh <- entry.cfg.ID:
		default:
			// Channel full; skip to avoid blocking
		}
	}

	return nil
}

// RefreshSource triggers an immediate poll of a single source.
func (p *Poller) RefreshSource(sourceID string) tea.Cmd {
	select {
	case p.triggerCh <- sourceID:
	default:
	}
	return nil
}

// GetStatuses returns the current polling status of all registered sources.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// pollSource runs the polling loop for a single source.
func (p *Poller) pollSource(entry *sourceEntry) {
	interval := time.Duration(entry.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 120 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.fetchAndApply(entry)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetchAndApply(entry)
		case triggerID := <-p.triggerCh:
			if triggerID == entry.cfg.ID {
				p.fetchAndApply(entry)
			}
		}
	}
}

// fetchAndApply performs a single fetch, applies each event to the
// engine, advances the source watermark, and sends a SyncResultMsg on
// the result channel.
func (p *Poller) fetchAndApply(entry *sourceEntry) {
	id := entry.cfg.ID
	p.setStatus(id, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	events, err := entry.src.FetchEvents(ctx, source.FetchOptions{
		Since: entry.watermark,
	})

	if err != nil {
		p.setStatus(id, SyncError, err)

		// Detect auth errors and emit a specific message.
		if source.IsAuthError(err) {
			p.sendResult(SyncResultMsg{
				SourceID: id,
				Error:    err,
				AuthError: &AuthErrorMsg{
					SourceID: id,
					Message: fmt.Sprintf(
						"%s: authentication expired. Press 'c' to reconfigure.",
						id,
					),
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{SourceID: id, Error: err})
		return
	}

	applied := 0
	for _, ev := range events {
		if applyErr := p.engine.Apply(ctx, ev); applyErr != nil {
			p.setStatus(id, SyncError, applyErr)
			p.sendResult(SyncResultMsg{SourceID: id, Error: applyErr})
			return
		}
		applied++
		if ev.PostTime > entry.watermark {
			entry.watermark = ev.PostTime
		}
	}

	p.setStatus(id, SyncIdle, nil)
	p.sendResult(SyncResultMsg{
		SourceID: id,
		Applied:  applied,
	})
}

// setStatus updates the polling status for a source.
func (p *Poller) setStatus(id string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[id]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
