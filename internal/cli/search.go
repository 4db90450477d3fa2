package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/search"

	"github.com/spf13/cobra"
)

func bindSearchFlags(cmd *cobra.Command, opt *search.Options) {
	cmd.Flags().BoolVarP(&opt.CaseSensitive, "case-sensitive", "c", false, "Match case")
	cmd.Flags().BoolVarP(&opt.Regex, "regex", "r", false, "Treat the query as a regular expression")
}

func newSearchCmd(app *App) *cobra.Command {
	var opt search.Options
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every chapter of the manuscript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				results, err := e.Search(cmdContext(cmd), args[0], opt)
				if err != nil {
					return writeErr(cmd, err)
				}
				total := 0
				var b strings.Builder
				for _, r := range results {
					total += len(r.Matches)
					fmt.Fprintf(&b, "%s (%s)\n", r.ChapterTitle, r.ChapterID)
					for _, m := range r.Matches {
						fmt.Fprintf(&b, "  %4d: %s\n", m.Line, m.Text)
					}
				}
				if total == 0 {
					b.WriteString("no matches\n")
				}
				return writeResult(cmd, app, map[string]any{
					"data": results,
					"meta": map[string]any{"chapters": len(results), "matches": total},
				}, b.String())
			})
		},
	}
	bindSearchFlags(cmd, &opt)
	cmd.Flags().IntVar(&opt.Limit, "limit", search.DefaultLimit, "Maximum matches reported per chapter")
	return cmd
}

func newReplaceCmd(app *App) *cobra.Command {
	var opt search.Options
	cmd := &cobra.Command{
		Use:   "replace <chapter-id> <query> <replacement>",
		Short: "Replace every match in one chapter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				ch, err := e.OpenChapter(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				if _, err := search.Compile(args[1], opt); err != nil {
					return writeErr(cmd, err)
				}
				n, err := e.ReplaceAll(args[1], args[2], opt)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := e.Flush(ctx); err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{
					"data": map[string]any{"chapterId": ch.ID, "replaced": n},
				}, fmt.Sprintf("replaced %d match(es) in %q\n", n, ch.Title))
			})
		},
	}
	bindSearchFlags(cmd, &opt)
	return cmd
}
