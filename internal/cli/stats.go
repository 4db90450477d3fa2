package cli

import (
	"fmt"
	"strings"
	"time"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/model"
	"quillborn-cli/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const heatmapWeeks = 26

func todayWords(stats model.WritingStats) int {
	return wordsOn(stats, time.Now().Format(time.DateOnly))
}

func wordsOn(stats model.WritingStats, day string) int {
	for _, d := range stats.Days {
		if d.Date == day {
			return d.Words
		}
	}
	return 0
}

// heatLevel buckets a day's words against the daily target, 0..4.
func heatLevel(words, target int) int {
	switch {
	case words <= 0:
		return 0
	case target <= 0 || words >= target:
		return 4
	case words*2 >= target:
		return 3
	case words*4 >= target:
		return 2
	default:
		return 1
	}
}

var heatGlyphs = []string{"·", "░", "▒", "▓", "█"}

// renderHeatmap draws weeks columns ending with the week of now, one row per weekday.
func renderHeatmap(stats model.WritingStats, target int, now time.Time, weeks int) string {
	byDay := make(map[string]int, len(stats.Days))
	for _, d := range stats.Days {
		byDay[d.Date] = d.Words
	}
	end := now
	start := end.AddDate(0, 0, -(weeks-1)*7-int(end.Weekday()))

	var b strings.Builder
	labels := []string{"Sun", "", "Tue", "", "Thu", "", "Sat"}
	for wd := 0; wd < 7; wd++ {
		fmt.Fprintf(&b, "%-4s", labels[wd])
		for w := 0; w < weeks; w++ {
			day := start.AddDate(0, 0, w*7+wd)
			if day.After(end) {
				b.WriteString(" ")
				continue
			}
			b.WriteString(heatGlyphs[heatLevel(byDay[day.Format(time.DateOnly)], target)])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func newStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the writing heatmap, streak and totals for the last year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				stats, err := e.Stats(cmdContext(cmd))
				if err != nil {
					return writeErr(cmd, err)
				}
				cfg, _ := store.LoadConfig()
				target := cfg.DailyTargetOrDefault()
				today := todayWords(stats)

				var b strings.Builder
				b.WriteString(renderHeatmap(stats, target, time.Now(), heatmapWeeks))
				fmt.Fprintf(&b, "\ntoday   %s / %s words\n", humanize.Comma(int64(today)), humanize.Comma(int64(target)))
				fmt.Fprintf(&b, "streak  %d day(s)\n", stats.Streak)
				fmt.Fprintf(&b, "active  %d day(s), %s words this year\n", stats.ActiveDays, humanize.Comma(int64(stats.Total)))

				return writeResult(cmd, app, map[string]any{
					"data": stats,
					"meta": map[string]any{"todayWords": today, "dailyTarget": target},
				}, b.String())
			})
		},
	}
	return cmd
}
