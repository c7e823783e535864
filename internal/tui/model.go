// Package tui provides the Bubble Tea terminal interface for Spready.
//
// The interface has a session sidebar on the left and a main pane on the
// right. The main pane shows the active conversation, or the text rendering
// of a generated HTML artifact when one is open. All conversation state lives
// in chat.Manager; the model re-reads a snapshot whenever the manager's
// change channel fires and renders from that.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/neurofinance/spready/internal/artifact"
	"github.com/neurofinance/spready/internal/chat"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput  State = iota // Awaiting user input
	StateAsking              // Question in flight
)

// maxHistory bounds the command history to prevent unbounded growth.
const maxHistory = 100

// askTimeout is the maximum time for a single question. Analysis questions
// can legitimately run for minutes while the backend crunches spreadsheets.
const askTimeout = 5 * time.Minute

// Layout constants for viewport height calculation.
const (
	separatorLines = 2  // Two separator lines (above and below input)
	helpLines      = 1  // Help bar height
	promptLines    = 1  // Prompt prefix line
	minViewport    = 3  // Minimum viewport height
	sidebarWidth   = 28 // Fixed sidebar width
)

// Model is the Bubble Tea model for the Spready terminal interface.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time
	snap      chat.Snapshot
	status    string // One-line local status under the transcript, cleared on next submit

	// Open artifact rendering
	filePath    string // Path of the artifact currently loaded into fileText
	fileText    string
	fileLoading bool

	// Output
	spinner spinner.Model
	viewBuf strings.Builder // Reusable buffer for View() to reduce allocations

	// Scrollable main pane (conversation or artifact text)
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Dependencies (direct, no interface)
	manager   *chat.Manager
	fetcher   *artifact.Fetcher
	ctx       context.Context
	ctxCancel context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// New creates a Model wired to the conversation manager and artifact fetcher.
// Returns an error if required dependencies are nil.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, manager *chat.Manager, fetcher *artifact.Fetcher) (*Model, error) {
	if manager == nil {
		return nil, errors.New("tui.New: manager is required")
	}
	if fetcher == nil {
		return nil, errors.New("tui.New: fetcher is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	// Create cancellable context for cleanup on exit
	ctx, cancel := context.WithCancel(ctx)

	// Create textarea for multi-line input
	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask about your spreadsheet..."
	ta.SetHeight(1)  // Single line by default
	ta.SetWidth(120) // Wide enough for long text, updated on WindowSizeMsg
	ta.MaxWidth = 0  // No max width limit
	ta.ShowLineNumbers = false

	// Clean, minimal styling: no background colors, just simple text
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray placeholder
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Create viewport for the scrollable main pane.
	// Disable built-in keyboard handling — we route keys explicitly
	// in handleKey to avoid conflicts with textarea/history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{} // Disable default key bindings

	h := help.New()

	return &Model{
		manager:   manager,
		fetcher:   fetcher,
		ctx:       ctx,
		ctxCancel: cancel,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      h,
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		markdown:  newMarkdownRenderer(80 - sidebarWidth),
		width:     80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(), // Ensure textarea is focused on startup
		m.initManager(),
		m.waitForChange(),
	)
}

// currentSessionFiles returns the artifact filenames and output folder of the
// active session, preferring the freshest message over the session summary.
func (m *Model) currentSessionFiles() (files []string, folder string) {
	// Walk messages newest-first: the latest answer has the current artifacts.
	for i := len(m.snap.Messages) - 1; i >= 0; i-- {
		msg := m.snap.Messages[i]
		if len(msg.HTMLFiles) > 0 {
			return msg.HTMLFiles, msg.OutputFolder
		}
	}
	for _, sess := range m.snap.Sessions {
		if sess.ID == m.snap.CurrentSessionID {
			return sess.HTMLFiles, sess.OutputFolder
		}
	}
	return nil, ""
}
