package tui

import (
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(max(msg.Width-sidebarWidth-1, 20))
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(max(msg.Width-sidebarWidth-1, 20))

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to animate the spinner while anything is pending
		if m.state == StateAsking || m.snap.LoadingMessages || m.fileLoading {
			m.rebuildViewportContent()
		}
		return m, cmd

	case managerReadyMsg:
		if msg.err != nil {
			m.status = "Startup failed: " + msg.err.Error()
		}
		return m.applySnapshot()

	case stateChangedMsg:
		model, cmd := m.applySnapshot()
		// Keep listening for the next change.
		return model, tea.Batch(cmd, m.waitForChange())

	case askDoneMsg:
		m.state = StateInput
		// The manager already applied the answer or the error banner; the
		// snapshot change arrives separately.
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()

	case sessionCreatedMsg:
		if msg.ok {
			m.status = "Started a new conversation"
		}
		return m.applySnapshot()

	case refreshDoneMsg:
		return m.applySnapshot()

	case fileLoadedMsg:
		// Discard if the user closed or switched files while fetching.
		if m.filePath != msg.path {
			return m, nil
		}
		m.fileLoading = false
		m.fileText = msg.text
		m.rebuildViewportContent()
		m.viewport.GotoTop()
		return m, nil

	case fileErrorMsg:
		if m.filePath != msg.path {
			return m, nil
		}
		m.fileLoading = false
		m.fileText = m.styles.Error.Render("Could not load file: " + msg.err.Error())
		m.rebuildViewportContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applySnapshot re-reads the manager's state and reconciles the artifact
// view: a newly selected file starts a fetch, a cleared selection drops the
// cached rendering.
func (m *Model) applySnapshot() (tea.Model, tea.Cmd) {
	m.snap = m.manager.Snapshot()

	var cmds []tea.Cmd
	switch sel := m.snap.SelectedFile; {
	case sel == nil:
		m.filePath = ""
		m.fileText = ""
		m.fileLoading = false
	case sel.Path() != m.filePath:
		m.filePath = sel.Path()
		m.fileText = ""
		m.fileLoading = true
		cmds = append(cmds, m.loadFile(*sel), m.spinner.Tick)
	}

	m.rebuildViewportContent()
	if m.snap.SelectedFile == nil {
		m.viewport.GotoBottom()
	}
	return m, tea.Batch(cmds...)
}
