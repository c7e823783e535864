package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const fallbackRenderWidth = 80

// markdownRenderer converts assistant Markdown to styled terminal output.
// glamour renderer construction is comparatively expensive, so one instance
// is cached per wrap width and rebuilt lazily when the pane resizes.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	m := &markdownRenderer{}
	m.UpdateWidth(width)
	return m
}

func buildRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark terminal
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// UpdateWidth rebuilds the cached renderer when the wrap width changed.
// Reports whether a rebuild happened. On construction failure the previous
// renderer stays in place.
func (m *markdownRenderer) UpdateWidth(width int) bool {
	if m == nil {
		return false
	}
	if width <= 0 {
		width = fallbackRenderWidth
	}
	if m.renderer != nil && m.width == width {
		return false
	}

	r := buildRenderer(width)
	if r == nil {
		return false
	}
	m.renderer = r
	m.width = width
	return true
}

// Render converts Markdown to styled terminal output, falling back to the
// raw text when no renderer is available or rendering fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil || markdown == "" {
		return markdown
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}

	// glamour appends trailing newlines
	return strings.TrimSuffix(rendered, "\n")
}
