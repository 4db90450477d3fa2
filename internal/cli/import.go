package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/importer"
	"quillborn-cli/internal/session"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type importPreview struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

func newImportCmd(app *App) *cobra.Command {
	var (
		split  string
		parent string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a .md, .txt or .pdf file as one or more chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := importer.ParseStrategy(split)
			if err != nil {
				return writeErr(cmd, err)
			}
			text, err := importer.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			segments := importer.Split(text, strategy)
			if len(segments) == 0 {
				return writeErr(cmd, fmt.Errorf("%s: no text to import", filepath.Base(args[0])))
			}

			preview := make([]importPreview, 0, len(segments))
			var b strings.Builder
			for _, s := range segments {
				w := session.CountWords(s.Content)
				preview = append(preview, importPreview{Title: s.Title, Words: w})
				fmt.Fprintf(&b, "  %-40s %8s words\n", s.Title, humanize.Comma(int64(w)))
			}

			if dryRun {
				return writeResult(cmd, app, map[string]any{
					"data": preview,
					"meta": map[string]any{"strategy": strategy, "dryRun": true},
					"_hints": []string{"quillborn import " + args[0] + " --split " + string(strategy)},
				}, fmt.Sprintf("%d chapter(s) would be created:\n%s", len(preview), b.String()))
			}

			return withEngine(cmd, app, func(e *engine.Engine) error {
				nodes, err := e.Import(cmdContext(cmd), segments, parent)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{
					"data": nodes,
					"meta": map[string]any{"strategy": strategy, "count": len(nodes)},
				}, fmt.Sprintf("imported %d chapter(s):\n%s", len(nodes), b.String()))
			})
		},
	}
	cmd.Flags().StringVar(&split, "split", "heading", "How to split the file (heading|sceneBreak|single)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent node id (default: the book root)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the chapters that would be created without writing anything")
	return cmd
}
