package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newChaptersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chapters",
		Aliases: []string{"chapter", "ch"},
		Short:   "Add, remove, rename and arrange manuscript nodes",
	}

	cmd.AddCommand(newChaptersListCmd(app))
	cmd.AddCommand(newChaptersAddCmd(app))
	cmd.AddCommand(newChaptersRmCmd(app))
	cmd.AddCommand(newChaptersRenameCmd(app))
	cmd.AddCommand(newChaptersReorderCmd(app))
	cmd.AddCommand(newChaptersMoveCmd(app))
	cmd.AddCommand(newChaptersStatusCmd(app))
	cmd.AddCommand(newChaptersMoodCmd(app))
	cmd.AddCommand(newChaptersPOVCmd(app))

	return cmd
}

// withEngine opens the project for the duration of fn.
func withEngine(cmd *cobra.Command, app *App, fn func(e *engine.Engine) error) error {
	e, _, err := openEngine(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	err = fn(e)
	if cerr := closeEngine(cmd, e); cerr != nil && err == nil {
		err = writeErr(cmd, cerr)
	}
	return err
}

func newChaptersListCmd(app *App) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chapters in reading order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.NodeStatus(strings.ToLower(strings.TrimSpace(status)))
			if filter != "" && !filter.Valid() {
				return writeErr(cmd, fmt.Errorf("invalid --status %q (draft|revised|final|trash)", status))
			}
			return withEngine(cmd, app, func(e *engine.Engine) error {
				st := e.Structure()
				out := []model.ManuscriptNode{}
				var b strings.Builder
				for i, id := range st.ChapterIDs() {
					n, _ := st.FindNode(id)
					if filter != "" && n.Status != filter {
						continue
					}
					c := *n
					c.Children = nil
					out = append(out, c)
					fmt.Fprintf(&b, "%3d. %-40s %-8s %8s  %s\n", i+1, n.Title, n.Status, humanize.Comma(int64(n.WordCount)), n.ID)
				}
				return writeResult(cmd, app, map[string]any{
					"data": out,
					"meta": map[string]any{"count": len(out)},
				}, b.String())
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only list chapters with this status")
	return cmd
}

func newChaptersAddCmd(app *App) *cobra.Command {
	var (
		parent string
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a chapter (or a part/scene with --kind)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				n, err := e.AddNode(cmdContext(cmd), model.NodeKind(strings.ToLower(strings.TrimSpace(kind))), args[0], parent)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{
					"data": n,
					"_hints": []string{
						"quillborn write " + n.ID + " --file chapter.md",
						"quillborn tree --format text",
					},
				}, fmt.Sprintf("added %s %q (%s)\n", n.Kind, n.Title, n.ID))
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent node id (default: the book root)")
	cmd.Flags().StringVar(&kind, "kind", "chapter", "Node kind (chapter|part|scene)")
	return cmd
}

func newChaptersRmCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a node, its subtree and their chapter files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				removed, err := e.RemoveNode(cmdContext(cmd), args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeResult(cmd, app, map[string]any{
					"data": map[string]any{"removed": removed},
				}, fmt.Sprintf("removed %d node(s)\n", len(removed)))
			})
		},
	}
	return cmd
}

func newChaptersRenameCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				if err := e.RenameNode(cmdContext(cmd), args[0], args[1]); err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	return cmd
}

func newChaptersReorderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder <parent-id> <child-id>...",
		Short: "Set the order of a node's children (must list every child exactly once)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				if err := e.ReorderChildren(cmdContext(cmd), args[0], args[1:]); err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	return cmd
}

func newChaptersMoveCmd(app *App) *cobra.Command {
	var (
		parent string
		index  int
	)
	cmd := &cobra.Command{
		Use:   "move <id> [--parent <parent-id>] [--index N]",
		Short: "Move a node under another parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				if err := e.MoveNode(cmdContext(cmd), args[0], parent, index); err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "New parent node id (default: the book root)")
	cmd.Flags().IntVar(&index, "index", -1, "Position among the new siblings (-1 appends)")
	return cmd
}

func newChaptersStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> [draft|revised|final|trash]",
		Short: "Set a node's status, or cycle it when no status is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(e *engine.Engine) error {
				ctx := cmdContext(cmd)
				var err error
				if len(args) == 1 {
					_, err = e.CycleStatus(ctx, args[0])
				} else {
					err = e.SetStatus(ctx, args[0], model.NodeStatus(strings.ToLower(strings.TrimSpace(args[1]))))
				}
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	return cmd
}

func newChaptersMoodCmd(app *App) *cobra.Command {
	var clearIt bool
	cmd := &cobra.Command{
		Use:   "mood <id> [mood]",
		Short: "Set or clear a node's mood",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mood := ""
			if len(args) == 2 {
				mood = args[1]
			} else if !clearIt {
				return writeErr(cmd, fmt.Errorf("missing mood (or pass --clear)"))
			}
			return withEngine(cmd, app, func(e *engine.Engine) error {
				if err := e.SetMood(cmdContext(cmd), args[0], mood); err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&clearIt, "clear", false, "Clear the mood")
	return cmd
}

func newChaptersPOVCmd(app *App) *cobra.Command {
	var clearIt bool
	cmd := &cobra.Command{
		Use:   "pov <id> [character]",
		Short: "Set or clear a node's point-of-view character",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pov := ""
			if len(args) == 2 {
				pov = args[1]
			} else if !clearIt {
				return writeErr(cmd, fmt.Errorf("missing character (or pass --clear)"))
			}
			return withEngine(cmd, app, func(e *engine.Engine) error {
				if err := e.SetPointOfView(cmdContext(cmd), args[0], pov); err != nil {
					return writeErr(cmd, err)
				}
				return writeNode(cmd, app, e, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&clearIt, "clear", false, "Clear the point of view")
	return cmd
}

func writeNode(cmd *cobra.Command, app *App, e *engine.Engine, id string) error {
	st := e.Structure()
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return writeOut(cmd, app, map[string]any{"data": nil})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q [%s]", n.Kind, n.Title, n.Status)
	if n.Mood != nil {
		fmt.Fprintf(&b, " mood=%s", *n.Mood)
	}
	if n.PointOfView != nil {
		fmt.Fprintf(&b, " pov=%s", *n.PointOfView)
	}
	if len(n.Children) > 0 {
		fmt.Fprintf(&b, " children=%s", strings.Join(n.Children, ","))
	}
	b.WriteString("\n")
	return writeResult(cmd, app, map[string]any{"data": n}, b.String())
}
