package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current project, word counts and the latest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := openEngine(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeEngine(cmd, e)

			ctx := cmdContext(cmd)
			p := e.Project()
			byStatus := map[model.NodeStatus]int{}
			for _, id := range p.Structure.ChapterIDs() {
				n, _ := p.Structure.FindNode(id)
				byStatus[n.Status]++
			}
			snaps, err := e.Snapshots(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			stats, err := e.Stats(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, _ := store.LoadConfig()
			target := cfg.DailyTargetOrDefault()
			today := todayWords(stats)

			data := map[string]any{
				"path":        e.Path(),
				"title":       p.Metadata.Title,
				"author":      p.Metadata.Author,
				"chapters":    len(p.Structure.ChapterIDs()),
				"byStatus":    byStatus,
				"words":       p.Structure.TotalWordCount(),
				"todayWords":  today,
				"dailyTarget": target,
				"streak":      stats.Streak,
			}
			if p.Metadata.WordCountTarget != nil {
				data["wordCountTarget"] = *p.Metadata.WordCountTarget
			}
			if len(snaps) > 0 {
				data["lastSnapshot"] = snaps[0]
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s", p.Metadata.Title)
			if p.Metadata.Author != "" {
				fmt.Fprintf(&b, " by %s", p.Metadata.Author)
			}
			fmt.Fprintf(&b, "\n%s\n\n", e.Path())
			fmt.Fprintf(&b, "chapters  %d (%d draft, %d revised, %d final)\n", len(p.Structure.ChapterIDs()),
				byStatus[model.StatusDraft], byStatus[model.StatusRevised], byStatus[model.StatusFinal])
			fmt.Fprintf(&b, "words     %s", humanize.Comma(int64(p.Structure.TotalWordCount())))
			if t := p.Metadata.WordCountTarget; t != nil && *t > 0 {
				pct := p.Structure.TotalWordCount() * 100 / *t
				fmt.Fprintf(&b, " of %s (%d%%)", humanize.Comma(int64(*t)), pct)
			}
			fmt.Fprintf(&b, "\ntoday     %s / %s", humanize.Comma(int64(today)), humanize.Comma(int64(target)))
			if stats.Streak > 0 {
				fmt.Fprintf(&b, ", %d day streak", stats.Streak)
			}
			b.WriteString("\n")
			if len(snaps) > 0 {
				fmt.Fprintf(&b, "snapshot  %s (%s)\n", snaps[0].Name, humanize.Time(snaps[0].CreatedAt))
			}

			return writeResult(cmd, app, map[string]any{"data": data}, b.String())
		},
	}
	return cmd
}
