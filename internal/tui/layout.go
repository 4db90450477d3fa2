package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to exactly width columns (ANSI-aware) and height lines, so panes line
// up under lipgloss.JoinHorizontal.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}

	for i, ln := range lines {
		// Bound the width computation on huge lines.
		if width > 0 && len(ln) > 8192 {
			ln = xansi.Cut(ln, 0, width)
		}
		w := xansi.StringWidth(ln)
		if w > width {
			ln = truncate(ln, width)
			w = xansi.StringWidth(ln)
		}
		if w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to width columns with an ellipsis, keeping ANSI styling intact.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if width == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Truncate(s, width, "…")
}

var flattenInput = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// promptLine draws the one-row bar under an overlay heading: the text input on the left and
// the key hint right-aligned. The hint is dropped before the input is cut.
func promptLine(width int, input, hint string) string {
	if width < 10 {
		width = 10
	}
	bar := lipgloss.NewStyle().Background(colorControlBg)
	left := " " + flattenInput.Replace(input) + " "
	gap := width - xansi.StringWidth(left) - xansi.StringWidth(hint) - 1
	if hint == "" || gap < 1 {
		if xansi.StringWidth(left) > width {
			return truncate(left, width) + "\x1b[0m"
		}
		return left + bar.Render(strings.Repeat(" ", width-xansi.StringWidth(left)))
	}
	return left + bar.Render(strings.Repeat(" ", gap)) + styleMuted().Inherit(bar).Render(hint+" ")
}
