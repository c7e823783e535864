package tui

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/neurofinance/spready/internal/artifact"
)

// Messages produced by commands.
type (
	// managerReadyMsg signals that chat.Manager.Init finished.
	managerReadyMsg struct{ err error }

	// stateChangedMsg signals that the manager's state changed and a fresh
	// snapshot should be rendered.
	stateChangedMsg struct{}

	// askDoneMsg signals that a full question turn finished. The manager has
	// already applied the outcome to its state; err is for logging context
	// only, the user-visible banner comes from the snapshot.
	askDoneMsg struct{ err error }

	// sessionCreatedMsg signals that session creation resolved.
	sessionCreatedMsg struct{ ok bool }

	// refreshDoneMsg signals that an explicit session list refresh resolved.
	refreshDoneMsg struct{}

	// fileLoadedMsg carries the text rendering of a fetched artifact.
	fileLoadedMsg struct {
		path string
		text string
	}

	// fileErrorMsg signals that fetching an artifact failed.
	fileErrorMsg struct {
		path string
		err  error
	}
)

// initManager brings the manager to Ready off the render goroutine.
func (m *Model) initManager() tea.Cmd {
	return func() tea.Msg {
		return managerReadyMsg{err: m.manager.Init(m.ctx)}
	}
}

// waitForChange blocks on the manager's coalesced change channel. Re-issued
// after every stateChangedMsg so the model keeps listening.
func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.manager.Changes():
			return stateChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// ask runs one full question turn. The manager handles the optimistic
// append, recording, asking and session upsert; intermediate states arrive
// via the change channel.
func (m *Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, askTimeout)
		defer cancel()
		return askDoneMsg{err: m.manager.SendMessage(ctx, question)}
	}
}

// createSession registers a new conversation and makes it current.
func (m *Model) createSession() tea.Cmd {
	return func() tea.Msg {
		sess := m.manager.CreateNewSession(m.ctx)
		return sessionCreatedMsg{ok: sess != nil}
	}
}

// refreshSessions refetches the session list.
func (m *Model) refreshSessions() tea.Cmd {
	return func() tea.Msg {
		m.manager.RefreshSessions(m.ctx)
		return refreshDoneMsg{}
	}
}

// switchSession makes the given session current, closing any open artifact.
func (m *Model) switchSession(id string) tea.Cmd {
	return func() tea.Msg {
		m.manager.SelectSession(m.ctx, id)
		return nil
	}
}

// loadFile fetches an artifact and renders it to terminal text.
func (m *Model) loadFile(art artifact.Artifact) tea.Cmd {
	return func() tea.Msg {
		text, err := m.fetcher.FetchText(m.ctx, art)
		if err != nil {
			return fileErrorMsg{path: art.Path(), err: err}
		}
		return fileLoadedMsg{path: art.Path(), text: text}
	}
}
