package cli

import (
	"fmt"
	"strings"
	"time"

	"quillborn-cli/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRecentCmd(app *App) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			pruned := 0
			if prune {
				if pruned = cfg.ForgetMissing(); pruned > 0 {
					if err := store.SaveConfig(cfg); err != nil {
						return writeErr(cmd, err)
					}
				}
			}

			recent := cfg.RecentProjects
			if recent == nil {
				recent = []store.RecentProject{}
			}
			var b strings.Builder
			for _, r := range recent {
				mark := " "
				if r.Path == cfg.CurrentProject {
					mark = "*"
				}
				when := r.LastOpened
				if t, err := time.Parse(time.RFC3339, r.LastOpened); err == nil {
					when = humanize.Time(t)
				}
				fmt.Fprintf(&b, "%s %-30s %-16s %s\n", mark, r.Title, when, r.Path)
			}
			if len(recent) == 0 {
				b.WriteString("no recent projects\n")
			}
			meta := map[string]any{"count": len(recent), "currentProject": cfg.CurrentProject}
			if prune {
				meta["pruned"] = pruned
			}
			return writeResult(cmd, app, map[string]any{"data": recent, "meta": meta}, b.String())
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Forget projects whose directory is gone")
	return cmd
}
