package tui

import (
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// Slash command constants.
const (
	cmdHelp     = "/help"
	cmdNew      = "/new"
	cmdSessions = "/sessions"
	cmdOpen     = "/open"
	cmdFiles    = "/files"
	cmdClose    = "/close"
	cmdRefresh  = "/refresh"
	cmdExit     = "/exit"
	cmdQuit     = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit      key.Binding
	NewLine     key.Binding
	History     key.Binding
	Cancel      key.Binding
	Quit        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	CloseFile   key.Binding
	NextSession key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:     key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:     key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "clear")),
		Quit:        key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		CloseFile:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close file")),
		NextSession: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next session")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	// Check for Ctrl modifier
	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			cmd := m.cleanup()
			return m, cmd
		case 'n':
			return m, m.createSession()
		}
	}

	// Check special keys
	switch k.Code {
	case tea.KeyEnter:
		if m.state == StateInput {
			// Enter without Shift = submit
			// Shift+Enter = newline (pass through to textarea)
			if k.Mod&tea.ModShift == 0 {
				return m.handleSubmit()
			}
		}

	case tea.KeyUp:
		// Up at first line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		// Down at last line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyEscape:
		// Esc closes an open artifact first, then dismisses the error banner.
		if m.snap.SelectedFile != nil {
			m.manager.ResetSelection()
			return m, nil
		}
		if m.snap.Err != "" {
			m.manager.ClearError()
			return m, nil
		}

	case tea.KeyTab:
		if k.Mod&tea.ModShift != 0 {
			return m, m.cycleSession(-1)
		}
		return m, m.cycleSession(1)

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Pass keys to textarea for typing - ALWAYS allow typing even while a
	// question is in flight, so the next one can be prepared.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		cmd := m.cleanup()
		return m, cmd
	}
	m.lastCtrlC = now

	m.input.Reset()
	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}
	m.status = ""

	// Handle slash commands
	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	// Add to history (enforce maxHistory cap)
	m.history = append(m.history, query)
	if len(m.history) > maxHistory {
		// Remove oldest entries to stay within bounds
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	// Clear input
	m.input.Reset()

	// Reading an artifact while asking would hide the conversation; close it.
	if m.snap.SelectedFile != nil {
		m.manager.ResetSelection()
	}

	m.state = StateAsking

	return m, tea.Batch(
		m.spinner.Tick,
		m.ask(query),
	)
}

//nolint:gocyclo // Dispatch over all slash commands
func (m *Model) handleSlashCommand(raw string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(raw)
	cmd, args := fields[0], fields[1:]
	m.input.Reset()

	switch cmd {
	case cmdHelp:
		m.status = "Commands: /new, /sessions <n>, /files, /open <n>, /close, /refresh, /quit — " +
			"Enter sends, Tab cycles sessions, Esc closes a file, PgUp/PgDn scroll"

	case cmdNew:
		return m, m.createSession()

	case cmdSessions:
		// With an index, switch; without, point at the sidebar.
		if len(args) == 0 {
			m.status = "Sessions are numbered in the sidebar; /sessions <n> switches, Tab cycles"
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(m.snap.Sessions) {
			m.status = "No such session: " + strings.Join(args, " ")
			break
		}
		return m, m.switchSession(m.snap.Sessions[n-1].ID)

	case cmdFiles:
		files, _ := m.currentSessionFiles()
		if len(files) == 0 {
			m.status = "This conversation has no generated files yet"
			break
		}
		m.status = "Files: " + strings.Join(files, ", ") + " — /open <n> views one"

	case cmdOpen:
		files, folder := m.currentSessionFiles()
		if len(files) == 0 {
			m.status = "This conversation has no generated files yet"
			break
		}
		n := 1
		if len(args) > 0 {
			var err error
			n, err = strconv.Atoi(args[0])
			if err != nil || n < 1 || n > len(files) {
				m.status = "No such file: " + strings.Join(args, " ")
				break
			}
		}
		m.manager.SelectFile(files[n-1], folder, m.snap.CurrentSessionID)

	case cmdClose:
		m.manager.ResetSelection()

	case cmdRefresh:
		return m, m.refreshSessions()

	case cmdExit, cmdQuit:
		cleanupCmd := m.cleanup()
		return m, cleanupCmd

	default:
		m.status = "Unknown command: " + cmd + " (try /help)"
	}
	m.rebuildViewportContent()
	return m, nil
}

// cycleSession switches to the next or previous session in the sidebar.
func (m *Model) cycleSession(delta int) tea.Cmd {
	if len(m.snap.Sessions) == 0 {
		return nil
	}
	idx := 0
	for i, sess := range m.snap.Sessions {
		if sess.ID == m.snap.CurrentSessionID {
			idx = i + delta
			break
		}
	}
	// Wrap around.
	idx = (idx + len(m.snap.Sessions)) % len(m.snap.Sessions)
	return m.switchSession(m.snap.Sessions[idx].ID)
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta

	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		// Move cursor to end of text
		m.input.CursorEnd()
	}

	return m, nil
}

// cleanup cancels all pending operations and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}
	return tea.Quit
}
