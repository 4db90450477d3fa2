package tui

import (
	"context"

	"quillborn-cli/internal/engine"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	// ChapterID is opened first; empty means the last chapter worked on, then the first one.
	ChapterID string
	// PreviewStyle is a glamour standard style name; empty follows the terminal background.
	PreviewStyle string
	// DailyTarget is shown in the status line.
	DailyTarget int
}

// Run starts the editor on e and blocks until the user quits. The caller closes e.
func Run(ctx context.Context, e *engine.Engine, opt Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m, err := newModel(ctx, e, opt)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
