package cli

import (
	"quillborn-cli/internal/store"
	"quillborn-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [chapter-id]",
		Short: "Open the interactive editor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := openEngine(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			opt := tui.Options{}
			if len(args) == 1 {
				opt.ChapterID = args[0]
			}
			if cfg, err := store.LoadConfig(); err == nil {
				opt.PreviewStyle = cfg.PreviewStyle()
				opt.DailyTarget = cfg.DailyTargetOrDefault()
			}

			runErr := tui.Run(cmdContext(cmd), e, opt)
			// Close flushes the buffer even when the editor exited with an error.
			if err := closeEngine(cmd, e); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return writeErr(cmd, runErr)
			}
			return nil
		},
	}
	return cmd
}
