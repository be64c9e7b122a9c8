// Package ui centralizes terminal styling for the CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// colorEnabled is false on dumb terminals and pipes; styles degrade to
// plain text there.
var colorEnabled = termenv.DefaultOutput().ColorProfile() != termenv.Ascii

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// RenderAccent styles s as an accent (headings, ids).
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderSuccess styles s as a success notice.
func RenderSuccess(s string) string { return render(successStyle, s) }

// RenderWarn styles s as a warning.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderError styles s as an error.
func RenderError(s string) string { return render(errorStyle, s) }

// RenderMuted styles s as secondary text.
func RenderMuted(s string) string { return render(mutedStyle, s) }

// RenderHeader styles s as a table/section header.
func RenderHeader(s string) string { return render(headerStyle, s) }
