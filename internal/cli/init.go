package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"quillborn-cli/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var (
		title  string
		author string
	)

	cmd := &cobra.Command{
		Use:   "init [parent-dir]",
		Short: "Create a new project directory (<title>.qb) and make it current",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := "."
			if len(args) == 1 {
				parent = args[0]
			}
			parent, err := filepath.Abs(parent)
			if err != nil {
				return writeErr(cmd, err)
			}

			p, err := store.New().CreateProject(cmdContext(cmd), parent, title, author)
			if err != nil {
				return writeErr(cmd, err)
			}

			// Best-effort: the project is usable even if the global config can't be written.
			if cfg, err := store.LoadConfig(); err == nil {
				cfg.TouchRecent(p.Path, p.Metadata.Title, time.Now())
				_ = store.SaveConfig(cfg)
			}

			return writeResult(cmd, app, map[string]any{
				"data": map[string]any{
					"path":   p.Path,
					"title":  p.Metadata.Title,
					"author": p.Metadata.Author,
					"rootId": p.Structure.Root,
				},
				"_hints": []string{
					"quillborn chapters add \"Chapter One\"",
					"quillborn edit",
				},
			}, fmt.Sprintf("Created %s\n", p.Path))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Book title (required)")
	cmd.Flags().StringVar(&author, "author", "", "Author name")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
