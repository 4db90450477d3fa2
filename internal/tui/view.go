package tui

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

func (m editorModel) View() string {
	bodyH := max(m.height-1, 1)

	var panes []string
	if m.treeW > 0 {
		panes = append(panes, normalizePane(m.treeView(bodyH), m.treeW, bodyH))
	}
	panes = append(panes, normalizePane(m.centerView(), m.editorW, bodyH))
	if m.sideW > 0 {
		panes = append(panes, normalizePane(m.sideView(), m.sideW, bodyH))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)
	return body + "\n" + m.statusLine()
}

func statusGlyph(s model.NodeStatus) string {
	switch s {
	case model.StatusRevised:
		return "◐"
	case model.StatusFinal:
		return "●"
	case model.StatusTrash:
		return "✕"
	default:
		return "○"
	}
}

func (m editorModel) treeView(height int) string {
	st := m.eng.Structure()
	activeID := ""
	if ch, ok := m.eng.Active(); ok {
		activeID = ch.ID
	}

	var lines []string
	if root, ok := st.FindNode(st.Root); ok {
		lines = append(lines, styleHeading().Render(truncate(root.Title, m.treeW-1)), "")
	}
	mutate.Walk(st, func(n *model.ManuscriptNode, depth int) {
		indent := strings.Repeat("  ", depth)
		var ln string
		switch n.Kind {
		case model.NodeKindChapter, model.NodeKindScene:
			ln = fmt.Sprintf("%s%s %s", indent, statusGlyph(n.Status), n.Title)
		default:
			ln = indent + n.Title + "/"
		}
		ln = truncate(ln, m.treeW-1)
		if n.ID == activeID {
			ln = styleSelected().Render(ln)
		} else if n.Kind != model.NodeKindChapter && n.Kind != model.NodeKindScene {
			ln = styleMuted().Render(ln)
		}
		lines = append(lines, ln)
	})
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m editorModel) centerView() string {
	switch m.mode {
	case modePalette, modeSwitch:
		return m.listView()
	case modePrompt:
		return styleHeading().Render(m.input.Placeholder) + "\n\n" + promptLine(m.editorW-2, m.input.View(), m.prompt.hint())
	case modeResults:
		return m.resultsView()
	}
	if _, ok := m.eng.Active(); !ok {
		return styleMuted().Render("No chapter open. ctrl+n creates one, ctrl+k opens the command palette.")
	}
	return m.editor.View()
}

func (m editorModel) listView() string {
	title := "Commands"
	if m.mode == modeSwitch {
		title = "Chapters"
	}
	var b strings.Builder
	b.WriteString(styleHeading().Render(title))
	b.WriteString("\n")
	hint := "enter run · esc close"
	if m.mode == modeSwitch {
		hint = "enter open · esc close"
	}
	b.WriteString(promptLine(m.editorW-2, m.input.View(), hint))
	b.WriteString("\n\n")
	for i, mt := range m.matches {
		c := mt.Command
		ln := fmt.Sprintf(" %-30s %-10s %s", c.Label, c.Category, c.Keys)
		ln = truncate(ln, m.editorW-2)
		if i == m.sel {
			ln = styleSelected().Render(ln)
		}
		b.WriteString(ln)
		b.WriteString("\n")
	}
	if len(m.matches) == 0 {
		b.WriteString(styleMuted().Render(" no matches"))
	}
	return b.String()
}

func (m editorModel) resultsView() string {
	var b strings.Builder
	b.WriteString(styleHeading().Render(fmt.Sprintf("%d match(es)", len(m.results))))
	b.WriteString("\n\n")
	for i, h := range m.results {
		ln := truncate(fmt.Sprintf(" %s:%d  %s", h.title, h.line, strings.TrimSpace(h.text)), m.editorW-2)
		if i == m.sel {
			ln = styleSelected().Render(ln)
		}
		b.WriteString(ln)
		b.WriteString("\n")
	}
	return b.String()
}

func (m editorModel) sideView() string {
	w := m.sideW - 2
	switch m.side {
	case sidePreview:
		return renderMarkdown(m.editor.Value(), w, m.opt.PreviewStyle)
	case sidePalimpsest:
		ch, ok := m.eng.Active()
		if !ok {
			return ""
		}
		frags := m.eng.Fragments(ch.ID)
		if len(frags) == 0 {
			return styleMuted().Render("Nothing deleted yet.")
		}
		deleted := lipgloss.NewStyle().Foreground(colorDeleted).Strikethrough(true)
		var b strings.Builder
		for i := len(frags) - 1; i >= 0; i-- {
			f := frags[i]
			b.WriteString(styleMuted().Render(humanize.Time(f.DeletedAt)))
			b.WriteString("\n")
			b.WriteString(deleted.Render(truncate(strings.Join(strings.Fields(f.Text), " "), w)))
			b.WriteString("\n\n")
		}
		return b.String()
	}
	return ""
}

func (m editorModel) statusLine() string {
	p := m.eng.Project()
	left := p.Metadata.Title
	if ch, ok := m.eng.Active(); ok {
		left += " › " + ch.Title + " [" + string(ch.Status) + "]"
		if ch.Mood != nil {
			left += " ~" + *ch.Mood
		}
		left += fmt.Sprintf("  %s words", humanize.Comma(int64(ch.WordCount)))
	}
	sess := m.eng.SessionState()
	left += fmt.Sprintf("  +%s this session", humanize.Comma(int64(sess.SessionWordCount)))
	if m.opt.DailyTarget > 0 {
		left += fmt.Sprintf("  %s/%s today", humanize.Comma(int64(m.todayBase+sess.SessionWordCount)), humanize.Comma(int64(m.opt.DailyTarget)))
	}

	right := m.saveState(sess)
	st := styleStatusBar()
	if m.flash != "" {
		right = m.flash
		if m.flashErr {
			st = styleError()
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	line := " " + left
	if gap > 0 {
		line += strings.Repeat(" ", gap) + right + " "
	} else {
		line += "  " + right
	}
	return st.Render(normalizePane(line, m.width, 1))
}

func (m editorModel) saveState(sess model.SessionState) string {
	at, err := m.eng.LastSave()
	switch {
	case err != nil:
		return "save failed: " + err.Error()
	case sess.IsDirty:
		return "● unsaved"
	case !at.IsZero():
		return "saved " + humanize.Time(at)
	default:
		return "ctrl+k commands"
	}
}
