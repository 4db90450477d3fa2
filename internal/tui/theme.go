package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// faintIfDark: faint text on light terminals is often illegible.
func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted        = ac("240", "243")
	colorSurfaceFg    = ac("235", "252")
	colorControlBg    = ac("252", "235")
	colorAccent       = ac("27", "62")
	colorAccentFg     = ac("255", "235")
	colorSelectedBg   = ac("#e9e9e9", "#262626")
	colorSelectedFg   = ac("235", "255")
	colorFlashErrorBg = ac("196", "160")
	colorDeleted      = ac("130", "173")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleSelected() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg).Bold(true)
}

func styleStatusBar() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorControlBg).Foreground(colorSurfaceFg)
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorFlashErrorBg).Foreground(colorAccentFg)
}

func styleHeading() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
}

// applyColorProfilePreference follows the terminal's capabilities and NO_COLOR.
// termenv.EnvColorProfile would also honor CLICOLOR, which can switch colors off in a TUI.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()

	// Some terminals under-report; trust TERM/COLORTERM when they claim more.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && (profile == termenv.Ascii || profile == termenv.ANSI) {
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures background detection.
//
// Priority:
// 1) QUILLBORN_TUI_THEME=light|dark|auto
// 2) COLORFGBG heuristic ("fg;bg", bg < 7 is dark)
// 3) termenv's own query
func applyThemePreference() {
	if dark, ok := themeFromEnv(); ok {
		lipgloss.SetHasDarkBackground(dark)
	}
}

func themeFromEnv() (dark bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("QUILLBORN_TUI_THEME"))) {
	case "light":
		return false, true
	case "dark":
		return true, true
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			return bg < 7, true
		}
	}
	return false, false
}
