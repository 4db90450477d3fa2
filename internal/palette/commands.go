package palette

// Command ids handled by the editor and listed by `quillborn commands`.
const (
	CmdNewChapter      = "new-chapter"
	CmdSaveSnapshot    = "save-snapshot"
	CmdImport          = "import"
	CmdFindReplace     = "find-replace"
	CmdFindManuscript  = "find-manuscript"
	CmdPalimpsest      = "palimpsest"
	CmdRestoreFragment = "restore-fragment"
	CmdSetMood         = "set-mood"
	CmdCycleStatus     = "cycle-status"
	CmdTogglePreview   = "toggle-preview"
	CmdToggleTree      = "toggle-tree"
	CmdExportMarkdown  = "export-markdown"
	CmdExportPlainText = "export-plain-text"
	CmdExportHTML      = "export-html"
	CmdExportLaTeX     = "export-latex"
	CmdExportEPUB      = "export-epub"
	CmdCommandPalette  = "command-palette"
	CmdQuickSwitch     = "quick-switch"
	CmdQuit            = "quit"
)

// Moods cycled by CmdSetMood.
var Moods = []string{"calm", "tense", "melancholy", "joyful", "eerie", "urgent"}

func defaultCommands() []Command {
	return []Command{
		{ID: CmdNewChapter, Label: "New Chapter", Category: "File", Keys: "ctrl+n"},
		{ID: CmdSaveSnapshot, Label: "Save Snapshot", Category: "File", Keys: "ctrl+s"},
		{ID: CmdImport, Label: "Import File", Category: "File"},
		{ID: CmdToggleTree, Label: "Toggle Sidebar", Category: "View", Keys: "ctrl+b"},
		{ID: CmdTogglePreview, Label: "Toggle Preview", Category: "View", Keys: "ctrl+r"},
		{ID: CmdPalimpsest, Label: "Toggle Palimpsest Layer", Category: "Writing", Keys: "ctrl+_"},
		{ID: CmdRestoreFragment, Label: "Restore Last Deletion", Category: "Writing", Keys: "ctrl+z"},
		{ID: CmdSetMood, Label: "Set Chapter Mood", Category: "Writing", Keys: "ctrl+j"},
		{ID: CmdCycleStatus, Label: "Cycle Chapter Status", Category: "Writing"},
		{ID: CmdFindReplace, Label: "Find & Replace", Category: "Editing", Keys: "ctrl+f"},
		{ID: CmdFindManuscript, Label: "Find in Manuscript", Category: "Editing", Keys: "ctrl+g"},
		{ID: CmdExportMarkdown, Label: "Export as Markdown", Category: "Export"},
		{ID: CmdExportPlainText, Label: "Export as Plain Text", Category: "Export"},
		{ID: CmdExportHTML, Label: "Export as HTML", Category: "Export"},
		{ID: CmdExportLaTeX, Label: "Export as LaTeX", Category: "Export"},
		{ID: CmdExportEPUB, Label: "Export as EPUB", Category: "Export"},
		{ID: CmdCommandPalette, Label: "Command Palette", Category: "Navigation", Keys: "ctrl+k"},
		{ID: CmdQuickSwitch, Label: "Quick Chapter Switch", Category: "Navigation", Keys: "ctrl+p"},
		{ID: CmdQuit, Label: "Quit", Category: "File", Keys: "ctrl+q"},
	}
}

// Default returns a registry holding the built-in command set.
func Default() *Registry {
	r := NewRegistry()
	if err := r.Register(defaultCommands()...); err != nil {
		panic(err)
	}
	return r
}
