package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"quillborn-cli/internal/engine"

	"github.com/spf13/cobra"
)

func newWriteCmd(app *App) *cobra.Command {
	var (
		file     string
		appendIt bool
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "write <chapter-id>",
		Short: "Replace (or append to) a chapter's text from --file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				b   []byte
				err error
			)
			if strings.TrimSpace(file) != "" && file != "-" {
				b, err = os.ReadFile(file)
			} else {
				b, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.ReplaceAll(string(b), "\r\n", "\n")

			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				ch, err := e.OpenChapter(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				if appendIt && ch.Text != "" {
					text = strings.TrimRight(ch.Text, "\n") + "\n\n" + text
				}
				res, err := e.Edit(text, -1)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := e.Flush(ctx); err != nil {
					return writeErr(cmd, err)
				}
				data := map[string]any{
					"chapterId": ch.ID,
					"title":     ch.Title,
					"wordDelta": res.WordDelta,
				}
				if cur, ok := e.Active(); ok {
					data["wordCount"] = cur.WordCount
				}
				if strings.TrimSpace(snapshot) != "" {
					snap, err := e.Snapshot(ctx, snapshot)
					if err != nil {
						return writeErr(cmd, err)
					}
					data["snapshot"] = snap
				}
				return writeResult(cmd, app, map[string]any{"data": data},
					fmt.Sprintf("saved %q (%+d words)\n", ch.Title, res.WordDelta))
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read the text from this file (default: stdin)")
	cmd.Flags().BoolVar(&appendIt, "append", false, "Append to the chapter instead of replacing it")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Take a named snapshot after saving")
	return cmd
}

func newCatCmd(app *App) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "cat <chapter-id>",
		Short: "Print a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ch, err := e.OpenChapter(cmdContext(cmd), args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				if raw {
					_, err := io.WriteString(cmd.OutOrStdout(), ch.Text)
					return err
				}
				return writeResult(cmd, app, map[string]any{"data": ch}, ch.Text+"\n")
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the chapter text")
	return cmd
}
