package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/store"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var (
		fail bool
		fix  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project tree and chapter files for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			s := store.New()

			repaired := 0
			if fix {
				if repaired, err = s.RepairWordCounts(ctx, path); err != nil {
					return writeErr(cmd, err)
				}
			}
			report, err := s.DoctorProject(ctx, path)
			if err != nil {
				return writeErr(cmd, err)
			}

			meta := map[string]any{
				"issues":    len(report.Issues),
				"hasErrors": report.HasErrors(),
			}
			if fix {
				meta["repairedWordCounts"] = repaired
			}
			hints := []string{"quillborn status"}
			for _, is := range report.Issues {
				if is.Code == "word_count_stale" && !fix {
					hints = append([]string{"quillborn doctor --fix"}, hints...)
					break
				}
			}

			var b strings.Builder
			for _, is := range report.Issues {
				fmt.Fprintf(&b, "%-5s %-28s %s", is.Level, is.Code, is.Message)
				if is.NodeID != "" {
					fmt.Fprintf(&b, " (%s)", is.NodeID)
				}
				b.WriteString("\n")
			}
			if len(report.Issues) == 0 {
				b.WriteString("ok\n")
			}
			if fix {
				fmt.Fprintf(&b, "repaired %d word count(s)\n", repaired)
			}

			if err := writeResult(cmd, app, map[string]any{
				"data":   report,
				"meta":   meta,
				"_hints": hints,
			}, b.String()); err != nil {
				return err
			}

			if fail && report.HasErrors() {
				return errDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	cmd.Flags().BoolVar(&fix, "fix", false, "Recompute stale chapter word counts before checking")
	return cmd
}
