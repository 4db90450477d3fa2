package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/export"
	"quillborn-cli/internal/importer"
	"quillborn-cli/internal/model"
	"quillborn-cli/internal/palette"
	"quillborn-cli/internal/search"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type mode int

const (
	modeEdit mode = iota
	modePalette
	modeSwitch
	modePrompt
	modeResults
)

type promptKind int

const (
	promptNewChapter promptKind = iota
	promptFind
	promptReplace
	promptSearch
	promptImport
)

func (k promptKind) hint() string {
	switch k {
	case promptNewChapter:
		return "enter create · esc cancel"
	case promptFind:
		return "enter next · esc cancel"
	case promptReplace:
		return "enter replace all · esc cancel"
	case promptSearch:
		return "enter search · esc cancel"
	case promptImport:
		return "enter import · esc cancel"
	}
	return "esc cancel"
}

type sidePane int

const (
	sideNone sidePane = iota
	sidePreview
	sidePalimpsest
)

const (
	treeWidth     = 28
	flashDuration = 3 * time.Second
	// Soft-wrapped rows take several cursor steps each.
	maxCursorSteps = 100000
)

type tickMsg time.Time

type flashDoneMsg struct{ seq int }

type savedMsg struct {
	snap model.Snapshot
	err  error
}

type exportedMsg struct {
	res export.WriteResult
	err error
}

type searchHit struct {
	chapterID string
	title     string
	line      int
	text      string
}

type editorModel struct {
	ctx      context.Context
	eng      *engine.Engine
	opt      Options
	registry *palette.Registry
	keys     map[string]string

	width   int
	height  int
	treeW   int
	sideW   int
	editorW int

	editor   textarea.Model
	input    textinput.Model
	lastText string

	mode      mode
	prompt    promptKind
	findQuery string
	matches   []palette.Match
	results   []searchHit
	sel       int

	showTree bool
	side     sidePane

	flash    string
	flashErr bool
	flashSeq int

	// todayBase is what the index had recorded for today when the editor started.
	todayBase int
}

func newModel(ctx context.Context, e *engine.Engine, opt Options) (editorModel, error) {
	ta := textarea.New()
	ta.Placeholder = "Write…"
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.FocusedStyle.CursorLine = ta.BlurredStyle.CursorLine

	in := textinput.New()
	in.Prompt = "› "

	m := editorModel{
		ctx:      ctx,
		eng:      e,
		opt:      opt,
		registry: palette.Default(),
		keys:     map[string]string{},
		width:    100,
		height:   30,
		editor:   ta,
		input:    in,
		showTree: true,
	}
	for _, c := range m.registry.Commands() {
		if c.Keys != "" {
			m.keys[c.Keys] = c.ID
		}
	}

	if stats, err := e.Stats(ctx); err == nil {
		today := time.Now().Format(time.DateOnly)
		for _, d := range stats.Days {
			if d.Date == today {
				m.todayBase = d.Words
			}
		}
	}

	id := strings.TrimSpace(opt.ChapterID)
	if id == "" {
		if last, ok := e.LastChapter(ctx); ok {
			id = last
		}
	}
	if id == "" {
		if ids := e.Structure().ChapterIDs(); len(ids) > 0 {
			id = ids[0]
		}
	}
	if id != "" {
		if err := m.openChapter(id); err != nil {
			return m, err
		}
	}
	m.resize()
	return m, nil
}

func (m editorModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tick())
}

// tick refreshes the "saved 3s ago" status.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		return m, tick()

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash, m.flashErr = "", false
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			return m, m.setError(msg.err)
		}
		return m, m.setFlash("saved, snapshot " + msg.snap.Name)

	case exportedMsg:
		if msg.err != nil {
			return m, m.setError(msg.err)
		}
		return m, m.setFlash(fmt.Sprintf("exported %d sections to %s", msg.res.Sections, msg.res.Path))

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	var cmd tea.Cmd
	if m.mode == modeEdit {
		m.editor, cmd = m.editor.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m editorModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modePalette, modeSwitch:
		return m.updateList(msg)
	case modePrompt:
		return m.updatePrompt(msg)
	case modeResults:
		return m.updateResults(msg)
	}

	if id, ok := m.keys[msg.String()]; ok {
		return m.run(id)
	}
	if _, ok := m.eng.Active(); !ok {
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if err := m.pushEdit(); err != nil {
		return m, tea.Batch(cmd, m.setError(err))
	}
	return m, cmd
}

// pushEdit hands the buffer to the engine when the textarea changed it.
func (m *editorModel) pushEdit() error {
	v := m.editor.Value()
	if v == m.lastText {
		return nil
	}
	li := m.editor.LineInfo()
	if _, err := m.eng.Edit(v, cursorOffset(v, m.editor.Line(), li.StartColumn+li.ColumnOffset)); err != nil {
		return err
	}
	m.lastText = v
	return nil
}

// cursorOffset converts a (row, column) caret into a rune offset into text.
func cursorOffset(text string, row, col int) int {
	lines := strings.Split(text, "\n")
	if row < 0 {
		return 0
	}
	if row >= len(lines) {
		return utf8.RuneCountInString(text)
	}
	off := 0
	for _, ln := range lines[:row] {
		off += utf8.RuneCountInString(ln) + 1
	}
	if n := utf8.RuneCountInString(lines[row]); col > n {
		col = n
	}
	if col < 0 {
		col = 0
	}
	return off + col
}

func (m *editorModel) openChapter(id string) error {
	ch, err := m.eng.OpenChapter(m.ctx, id)
	if err != nil {
		return err
	}
	m.editor.SetValue(ch.Text)
	m.lastText = ch.Text
	m.editor.Focus()
	return nil
}

// syncEditor reloads the textarea after the engine changed the active text.
func (m *editorModel) syncEditor() {
	ch, ok := m.eng.Active()
	if !ok {
		m.editor.SetValue("")
		m.lastText = ""
		m.editor.Blur()
		return
	}
	if ch.Text != m.editor.Value() {
		m.editor.SetValue(ch.Text)
	}
	m.lastText = ch.Text
}

func (m *editorModel) resize() {
	m.treeW = 0
	if m.showTree && m.width >= 60 {
		m.treeW = treeWidth
	}
	rest := m.width - m.treeW
	m.sideW = 0
	if m.side != sideNone {
		m.sideW = rest / 2
	}
	m.editorW = rest - m.sideW
	if m.editorW < 10 {
		m.editorW = 10
	}
	m.editor.SetWidth(m.editorW - 2)
	m.editor.SetHeight(max(m.height-1, 1))
	m.input.Width = max(m.editorW-6, 10)
}

func (m *editorModel) setFlash(s string) tea.Cmd {
	m.flash, m.flashErr = s, false
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func (m *editorModel) setError(err error) tea.Cmd {
	cmd := m.setFlash(err.Error())
	m.flashErr = true
	return cmd
}

// run executes a palette command.
func (m editorModel) run(id string) (tea.Model, tea.Cmd) {
	ch, active := m.eng.Active()

	switch id {
	case palette.CmdQuit:
		return m, tea.Quit
	case palette.CmdSaveSnapshot:
		return m, m.saveCmd()
	case palette.CmdCommandPalette:
		m.openList(modePalette)
	case palette.CmdQuickSwitch:
		m.openList(modeSwitch)
	case palette.CmdToggleTree:
		m.showTree = !m.showTree
		m.resize()
	case palette.CmdTogglePreview:
		m.toggleSide(sidePreview)
	case palette.CmdPalimpsest:
		m.toggleSide(sidePalimpsest)
	case palette.CmdNewChapter:
		m.openPrompt(promptNewChapter, "New chapter title")
	case palette.CmdImport:
		m.openPrompt(promptImport, "Import file (.md, .txt, .pdf)")
	case palette.CmdFindManuscript:
		m.openPrompt(promptSearch, "Find in manuscript")
	case palette.CmdExportMarkdown:
		return m, m.exportCmd(export.FormatMarkdown)
	case palette.CmdExportPlainText:
		return m, m.exportCmd(export.FormatText)
	case palette.CmdExportHTML:
		return m, m.exportCmd(export.FormatHTML)
	case palette.CmdExportLaTeX:
		return m, m.exportCmd(export.FormatLaTeX)
	case palette.CmdExportEPUB:
		return m, m.exportCmd(export.FormatEPUB)

	case palette.CmdFindReplace, palette.CmdRestoreFragment, palette.CmdSetMood, palette.CmdCycleStatus:
		if !active {
			return m, m.setError(engine.ErrNoActiveChapter)
		}
		switch id {
		case palette.CmdFindReplace:
			m.openPrompt(promptFind, "Find")
		case palette.CmdRestoreFragment:
			frags := m.eng.Fragments(ch.ID)
			if len(frags) == 0 {
				return m, m.setFlash("nothing to restore")
			}
			if _, err := m.eng.RestoreFragment(m.ctx, frags[len(frags)-1].ID); err != nil {
				return m, m.setError(err)
			}
			m.syncEditor()
		case palette.CmdSetMood:
			mood := nextMood(ch.Mood)
			if err := m.eng.SetMood(m.ctx, ch.ID, mood); err != nil {
				return m, m.setError(err)
			}
			if mood == "" {
				return m, m.setFlash("mood cleared")
			}
			return m, m.setFlash("mood: " + mood)
		case palette.CmdCycleStatus:
			st, err := m.eng.CycleStatus(m.ctx, ch.ID)
			if err != nil {
				return m, m.setError(err)
			}
			return m, m.setFlash("status: " + string(st))
		}
	}
	return m, nil
}

func (m *editorModel) toggleSide(p sidePane) {
	if m.side == p {
		m.side = sideNone
	} else {
		m.side = p
	}
	m.resize()
}

// nextMood cycles through palette.Moods and then back to no mood.
func nextMood(cur *string) string {
	if cur == nil {
		return palette.Moods[0]
	}
	for i, mood := range palette.Moods {
		if mood == *cur {
			if i+1 < len(palette.Moods) {
				return palette.Moods[i+1]
			}
			return ""
		}
	}
	return palette.Moods[0]
}

func (m editorModel) saveCmd() tea.Cmd {
	e, ctx := m.eng, m.ctx
	return func() tea.Msg {
		snap, err := e.Save(ctx)
		return savedMsg{snap: snap, err: err}
	}
}

func (m editorModel) exportCmd(f export.Format) tea.Cmd {
	e, ctx := m.eng, m.ctx
	return func() tea.Msg {
		res, err := e.Export(ctx, f, "", export.WriteOptions{Overwrite: true})
		return exportedMsg{res: res, err: err}
	}
}

func (m *editorModel) openList(md mode) {
	m.mode = md
	m.sel = 0
	m.input.SetValue("")
	m.input.Placeholder = "Type a command"
	if md == modeSwitch {
		m.input.Placeholder = "Jump to chapter"
	}
	m.input.Focus()
	m.editor.Blur()
	m.refreshMatches()
}

func (m *editorModel) refreshMatches() {
	q := m.input.Value()
	if m.mode == modeSwitch {
		m.matches = palette.Rank(m.chapterEntries(), q)
	} else {
		m.matches = m.registry.Match(q)
	}
	if m.sel >= len(m.matches) {
		m.sel = max(len(m.matches)-1, 0)
	}
}

// chapterEntries presents chapters to the fuzzy matcher: title as label, status as category.
func (m editorModel) chapterEntries() []palette.Command {
	st := m.eng.Structure()
	out := make([]palette.Command, 0, len(st.Order))
	for _, id := range st.ChapterIDs() {
		n, _ := st.FindNode(id)
		out = append(out, palette.Command{ID: n.ID, Label: n.Title, Category: string(n.Status)})
	}
	return out
}

func (m *editorModel) closeOverlay() {
	m.mode = modeEdit
	m.input.Blur()
	m.input.SetValue("")
	if _, ok := m.eng.Active(); ok {
		m.editor.Focus()
	}
}

func (m editorModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "up", "ctrl+p":
		if m.sel > 0 {
			m.sel--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.sel < len(m.matches)-1 {
			m.sel++
		}
		return m, nil
	case "enter":
		if len(m.matches) == 0 {
			return m, nil
		}
		picked := m.matches[m.sel].Command
		wasSwitch := m.mode == modeSwitch
		m.closeOverlay()
		if wasSwitch {
			if err := m.openChapter(picked.ID); err != nil {
				return m, m.setError(err)
			}
			return m, nil
		}
		return m.run(picked.ID)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshMatches()
	return m, cmd
}

func (m *editorModel) openPrompt(k promptKind, placeholder string) {
	m.mode = modePrompt
	m.prompt = k
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	m.editor.Blur()
}

func (m editorModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "enter":
		return m.submitPrompt(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m editorModel) submitPrompt(raw string) (tea.Model, tea.Cmd) {
	v := strings.TrimSpace(raw)
	if v == "" && m.prompt != promptReplace {
		m.closeOverlay()
		return m, nil
	}
	switch m.prompt {
	case promptNewChapter:
		m.closeOverlay()
		n, err := m.eng.CreateChapter(m.ctx, v, "")
		if err != nil {
			return m, m.setError(err)
		}
		if err := m.openChapter(n.ID); err != nil {
			return m, m.setError(err)
		}
		return m, m.setFlash("created " + n.Title)

	case promptFind:
		m.findQuery = v
		m.openPrompt(promptReplace, fmt.Sprintf("Replace %q with", v))
		return m, nil

	case promptReplace:
		// An empty replacement deletes the matches.
		m.closeOverlay()
		n, err := m.eng.ReplaceAll(m.findQuery, raw, search.Options{})
		if err != nil {
			return m, m.setError(err)
		}
		m.syncEditor()
		return m, m.setFlash(fmt.Sprintf("replaced %d", n))

	case promptSearch:
		results, err := m.eng.Search(m.ctx, v, search.Options{})
		if err != nil {
			m.closeOverlay()
			return m, m.setError(err)
		}
		m.results = m.results[:0]
		for _, r := range results {
			for _, mt := range r.Matches {
				m.results = append(m.results, searchHit{chapterID: r.ChapterID, title: r.ChapterTitle, line: mt.Line, text: mt.Text})
			}
		}
		if len(m.results) == 0 {
			m.closeOverlay()
			return m, m.setFlash("no matches for " + v)
		}
		m.mode = modeResults
		m.sel = 0
		m.input.Blur()
		return m, nil

	case promptImport:
		m.closeOverlay()
		text, err := importer.ReadFile(v)
		if err != nil {
			return m, m.setError(err)
		}
		nodes, err := m.eng.Import(m.ctx, importer.Split(text, importer.StrategyHeading), "")
		if err != nil {
			return m, m.setError(err)
		}
		if err := m.openChapter(nodes[0].ID); err != nil {
			return m, m.setError(err)
		}
		return m, m.setFlash(fmt.Sprintf("imported %d chapter(s)", len(nodes)))
	}
	m.closeOverlay()
	return m, nil
}

func (m editorModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.closeOverlay()
	case "up", "k":
		if m.sel > 0 {
			m.sel--
		}
	case "down", "j":
		if m.sel < len(m.results)-1 {
			m.sel++
		}
	case "enter":
		hit := m.results[m.sel]
		m.closeOverlay()
		if err := m.openChapter(hit.chapterID); err != nil {
			return m, m.setError(err)
		}
		// Put the caret on the matching line.
		for i := 0; m.editor.Line() > hit.line-1 && i < maxCursorSteps; i++ {
			m.editor.CursorUp()
		}
		for i := 0; m.editor.Line() < hit.line-1 && i < maxCursorSteps; i++ {
			m.editor.CursorDown()
		}
	}
	return m, nil
}
