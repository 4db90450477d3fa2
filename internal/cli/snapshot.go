package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/engine"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [name]",
		Short: "Save unsaved edits and take a named snapshot of the whole manuscript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "manual"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				name = args[0]
			}
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				if err := e.Flush(ctx); err != nil {
					return writeErr(cmd, err)
				}
				snap, err := e.Snapshot(ctx, name)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{
					"data":   snap,
					"_hints": []string{"quillborn snapshot list"},
				}, fmt.Sprintf("snapshot %s -> %s\n", snap.Name, snap.File))
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				snaps, err := e.Snapshots(cmdContext(cmd))
				if err != nil {
					return writeErr(cmd, err)
				}
				var b strings.Builder
				for _, s := range snaps {
					fmt.Fprintf(&b, "%-20s %-16s %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(s.CreatedAt), s.Name)
				}
				if len(snaps) == 0 {
					b.WriteString("no snapshots\n")
				}
				return writeResult(cmd, app, map[string]any{
					"data": snaps,
					"meta": map[string]any{"count": len(snaps)},
				}, b.String())
			})
		},
	})
	return cmd
}
