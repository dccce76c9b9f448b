// Package ui provides the terminal styling for the replnerd CLI, with
// light/dark mode support detected from the terminal environment.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light Mode Colors (Default)
	LightForeground = lipgloss.Color("#1c2333")
	LightPrimary    = lipgloss.Color("#3b4d7a")
	LightAccent     = lipgloss.Color("#7c3aed")
	LightMuted      = lipgloss.Color("#8a94a6")
	LightBorder     = lipgloss.Color("#d8dde6")

	// Dark Mode Colors
	DarkForeground = lipgloss.Color("#eceff4")
	DarkPrimary    = lipgloss.Color("#a78bfa")
	DarkAccent     = lipgloss.Color("#7c3aed")
	DarkMuted      = lipgloss.Color("#5c677d")
	DarkBorder     = lipgloss.Color("#3b4252")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Good        = lipgloss.Color("#43a047")
	Caution     = lipgloss.Color("#FFC107")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// DetectTheme picks a theme from terminal hints, defaulting to light mode.
func DetectTheme() Theme {
	// COLORFGBG is "foreground;background"; ANSI indexes 0-6 and 8 are
	// the common dark backgrounds.
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}

	if os.Getenv("REPLNERD_DARK_MODE") == "1" {
		return DarkTheme()
	}

	return LightTheme()
}

// Styles holds all the styled components.
type Styles struct {
	Theme Theme

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Loop output
	Answer    lipgloss.Style
	CodeBlock lipgloss.Style
	Badge     lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Answer: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		CodeBlock: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(4),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Good).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Caution).
			Bold(true),
	}
}

// DefaultStyles returns styles with the auto-detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
