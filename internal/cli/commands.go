package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/palette"

	"github.com/spf13/cobra"
)

func newCommandsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands [query]",
		Short: "List editor palette commands, optionally ranked against a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			matches := palette.Default().Match(query)
			var b strings.Builder
			for _, m := range matches {
				c := m.Command
				fmt.Fprintf(&b, "%-28s %-11s %-8s %s\n", c.Label, c.Category, c.Keys, c.ID)
			}
			return writeResult(cmd, app, map[string]any{
				"data": matches,
				"meta": map[string]any{"query": query, "count": len(matches)},
			}, b.String())
		},
	}
	return cmd
}
