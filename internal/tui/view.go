package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/neurofinance/spready/internal/backend"
)

// View implements tea.Model.
// Uses AltScreen with a sidebar and a scrollable main pane.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	// Sidebar + main pane side by side
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", m.viewport.View())
	_, _ = m.viewBuf.WriteString(body)
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Input prompt - always show and always accept input
	// Users can type while a question is in flight (better UX)
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the main pane from the snapshot.
// Called when the snapshot, an artifact fetch, or the ask state changes.
func (m *Model) rebuildViewportContent() {
	if m.snap.SelectedFile != nil {
		m.viewport.SetContent(m.renderFilePane())
		return
	}
	m.viewport.SetContent(m.renderConversation())
}

// renderConversation renders the transcript of the active session.
func (m *Model) renderConversation() string {
	var b strings.Builder

	// Banner (ASCII art) and tips on an empty conversation
	if len(m.snap.Messages) == 0 {
		_, _ = b.WriteString(m.styles.RenderBanner())
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(m.styles.RenderWelcomeTips())
		_, _ = b.WriteString("\n")
	}

	if m.snap.LoadingMessages {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Loading conversation...\n\n")
	}

	for _, msg := range m.snap.Messages {
		switch msg.Sender {
		case backend.SenderUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		case backend.SenderAssistant:
			_, _ = b.WriteString(m.styles.Assistant.Render("Spready> "))
			_, _ = b.WriteString(m.markdown.Render(msg.Content))
			if len(msg.HTMLFiles) > 0 {
				_, _ = b.WriteString("\n")
				_, _ = b.WriteString(m.styles.System.Render(renderAttachments(msg.HTMLFiles)))
			}
		}
		_, _ = b.WriteString("\n\n")
	}

	// In-flight question indicator
	if m.state == StateAsking || m.snap.Asking {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Analyzing...\n\n")
	}

	// Error banner from the manager
	if m.snap.Err != "" {
		_, _ = b.WriteString(m.styles.Error.Render("Error: " + m.snap.Err + " (Esc dismisses)"))
		_, _ = b.WriteString("\n\n")
	}

	// Local status line (slash command feedback)
	if m.status != "" {
		_, _ = b.WriteString(m.styles.System.Render(m.status))
		_, _ = b.WriteString("\n")
	}

	return b.String()
}

// renderFilePane renders an open artifact as terminal text.
func (m *Model) renderFilePane() string {
	var b strings.Builder

	sel := m.snap.SelectedFile
	_, _ = b.WriteString(m.styles.FileTitle.Render(sel.Filename))
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.System.Render("(Esc or /close returns to the conversation)"))
	_, _ = b.WriteString("\n\n")

	if m.fileLoading {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Loading file...\n")
		return b.String()
	}

	_, _ = b.WriteString(m.fileText)
	_, _ = b.WriteString("\n")
	return b.String()
}

// renderAttachments formats the artifact list of an answer, numbered for
// /open.
func renderAttachments(files []string) string {
	var b strings.Builder
	_, _ = b.WriteString("Generated files: ")
	for i, f := range files {
		if i > 0 {
			_, _ = b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, f)
	}
	_, _ = b.WriteString(" — /open <n> views one")
	return b.String()
}

// renderSidebar renders the session list with the active session marked.
func (m *Model) renderSidebar() string {
	var b strings.Builder
	innerWidth := sidebarWidth - 2

	_, _ = b.WriteString(m.styles.SidebarTitle.Render("Conversations"))
	_, _ = b.WriteString("\n")

	if m.snap.LoadingSessions {
		_, _ = b.WriteString(m.styles.System.Render("loading..."))
		_, _ = b.WriteString("\n")
	}

	for i, sess := range m.snap.Sessions {
		label := sess.LastMessage
		if label == "" {
			label = backend.DefaultLastMessage
		}
		line := fmt.Sprintf("%2d %s", i+1, label)
		line = truncate(line, innerWidth)
		if sess.ID == m.snap.CurrentSessionID {
			_, _ = b.WriteString(m.styles.SidebarActive.Render(line))
		} else {
			_, _ = b.WriteString(m.styles.Sidebar.Render(line))
		}
		_, _ = b.WriteString("\n")
	}

	if files, _ := m.currentSessionFiles(); len(files) > 0 {
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(m.styles.SidebarTitle.Render("Files"))
		_, _ = b.WriteString("\n")
		for i, f := range files {
			_, _ = b.WriteString(m.styles.Sidebar.Render(truncate(fmt.Sprintf("%2d %s", i+1, f), innerWidth)))
			_, _ = b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().Width(sidebarWidth).Height(m.viewport.Height()).Render(b.String())
}

// truncate shortens s to width runes, appending an ellipsis when cut.
func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80 // Default width
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch {
	case m.snap.SelectedFile != nil:
		bindings = []key.Binding{
			m.keys.CloseFile, m.keys.ScrollUp, m.keys.ScrollDown, m.keys.Quit,
		}
	case m.state == StateAsking:
		bindings = []key.Binding{
			m.keys.ScrollUp, m.keys.ScrollDown, m.keys.Quit,
		}
	default:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.History,
			m.keys.NextSession, m.keys.Cancel, m.keys.Quit,
		}
	}
	return m.help.ShortHelpView(bindings)
}
