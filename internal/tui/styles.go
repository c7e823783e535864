package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Brand green used across the banner and headers.
const brandGreen = "#00B386"

// SPREADY ASCII art (filled block style).
var spreadyArt = []string{
	"  ███████╗██████╗ ██████╗ ███████╗ █████╗ ██████╗ ██╗   ██╗",
	"  ██╔════╝██╔══██╗██╔══██╗██╔════╝██╔══██╗██╔══██╗╚██╗ ██╔╝",
	"  ███████╗██████╔╝██████╔╝█████╗  ███████║██║  ██║ ╚████╔╝ ",
	"  ╚════██║██╔═══╝ ██╔══██╗██╔══╝  ██╔══██║██║  ██║  ╚██╔╝  ",
	"  ███████║██║     ██║  ██║███████╗██║  ██║██████╔╝   ██║   ",
	"  ╚══════╝╚═╝     ╚═╝     ╚══════╝╚═╝  ╚═╝╚═════╝    ╚═╝   ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner        lipgloss.Style
	User          lipgloss.Style
	Assistant     lipgloss.Style
	System        lipgloss.Style
	Tips          lipgloss.Style // White color for tips (more visible)
	Error         lipgloss.Style
	Prompt        lipgloss.Style
	Separator     lipgloss.Style // Horizontal line separator
	StatusBar     lipgloss.Style
	Sidebar       lipgloss.Style
	SidebarActive lipgloss.Style
	SidebarTitle  lipgloss.Style
	FileTitle     lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(brandGreen)),
		User:          lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(brandGreen)),
		System:        lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:          lipgloss.NewStyle().Foreground(lipgloss.Color("255")), // White for visibility
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray separator line
		StatusBar:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")), // Light gray, no background
		Sidebar:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		SidebarActive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(brandGreen)),
		SidebarTitle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		FileTitle:     lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color(brandGreen)),
	}
}

// RenderBanner returns the SPREADY ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range spreadyArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask about your spreadsheet in plain language",
	"  • Use /help to see available commands",
	"  • Tab cycles conversations, /open <n> views a generated chart",
	"  • Press Ctrl+C twice or Ctrl+D to exit",
}

// RenderWelcomeTips returns styled welcome tips (white for visibility).
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
