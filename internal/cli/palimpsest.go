package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/engine"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPalimpsestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "palimpsest",
		Aliases: []string{"fragments"},
		Short:   "Inspect and restore deleted passages",
	}

	var chapter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List deleted fragments, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				frags := e.Fragments(chapter)
				var b strings.Builder
				for _, f := range frags {
					fmt.Fprintf(&b, "%s  %s  @%d  %q\n", f.ID, humanize.Time(f.DeletedAt), f.Position, preview(f.Text, 60))
				}
				if len(frags) == 0 {
					b.WriteString("no fragments\n")
				}
				return writeResult(cmd, app, map[string]any{
					"data": frags,
					"meta": map[string]any{"count": len(frags)},
				}, b.String())
			})
		},
	}
	list.Flags().StringVar(&chapter, "chapter", "", "Only fragments of this chapter")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <chapter-id> <fragment-id>",
		Short: "Re-insert a fragment where it was deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				if _, err := e.OpenChapter(ctx, args[0]); err != nil {
					return writeErr(cmd, err)
				}
				frag, err := e.RestoreFragment(ctx, args[1])
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := e.Flush(ctx); err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{"data": frag},
					fmt.Sprintf("restored %q at %d\n", preview(frag.Text, 60), frag.Position))
			})
		},
	})

	var clearChapter string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget deleted fragments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				n := e.ClearFragments(cmdContext(cmd), clearChapter)
				return writeResult(cmd, app, map[string]any{
					"data": map[string]any{"cleared": n},
				}, fmt.Sprintf("cleared %d fragment(s)\n", n))
			})
		},
	}
	clearCmd.Flags().StringVar(&clearChapter, "chapter", "", "Only fragments of this chapter")
	cmd.AddCommand(clearCmd)

	return cmd
}

// preview collapses whitespace and truncates s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
