package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style + wrap width. WithAutoStyle can block on terminal background queries, so
	// renderers use a fixed style and are built once.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders a chapter preview. style is a glamour standard style name; empty
// follows the terminal background.
func renderMarkdown(md string, width int, style string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	style = markdownStyle(style)
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
		switch style {
		case "dark", "light":
			opts = append(opts, glamour.WithStyles(markdownStyleConfig(style)))
		default:
			opts = append(opts, glamour.WithStandardStyle(style))
		}
		rr, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return md
		}
		mdRendererMu.Lock()
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyle(configured string) string {
	if s := strings.ToLower(strings.TrimSpace(configured)); s != "" && s != "auto" {
		return s
	}
	if dark, ok := themeFromEnv(); ok {
		if dark {
			return "dark"
		}
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func markdownStyleConfig(styleName string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	if styleName == "light" {
		cfg = styles.LightStyleConfig
	}
	// Prose reads better without the document margin and with headings in the text color.
	zero := uint(0)
	cfg.Document.Margin = &zero
	heading := mdColor(colorSurfaceFg, styleName)
	cfg.Heading.Color = heading
	cfg.H1.Color = heading
	cfg.H2.Color = heading
	cfg.H3.Color = heading
	cfg.Text.Color = mdColor(colorSurfaceFg, styleName)
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	cfg.BlockQuote.Faint = mdBoolPtr(false)
	return cfg
}

func mdColor(c lipgloss.AdaptiveColor, styleName string) *string {
	if styleName == "light" {
		return mdStrPtr(c.Light)
	}
	return mdStrPtr(c.Dark)
}

func mdStrPtr(s string) *string { return &s }
func mdBoolPtr(b bool) *bool    { return &b }
