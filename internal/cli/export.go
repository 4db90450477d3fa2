package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/export"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		out       string
		overwrite bool
		stdout    bool
	)
	cmd := &cobra.Command{
		Use:   "export <md|txt|html|tex|epub>",
		Short: "Export the manuscript as one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(out) != "" {
				if out, err = filepath.Abs(out); err != nil {
					return writeErr(cmd, err)
				}
			}
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				if stdout {
					doc, err := e.Render(ctx, f)
					if err != nil {
						return writeErr(cmd, err)
					}
					_, err = io.WriteString(cmd.OutOrStdout(), doc)
					return err
				}
				res, err := e.Export(ctx, f, out, export.WriteOptions{Overwrite: overwrite})
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{"data": res},
					fmt.Sprintf("wrote %s (%d sections, %s words)\n", res.Path, res.Sections, humanize.Comma(int64(res.Words))))
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: <project>/exports/<title>.<ext>)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Write the document to stdout instead of a file (text formats only)")
	return cmd
}
