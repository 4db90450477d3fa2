package cli

import (
	"fmt"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type treeNode struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Kind      model.NodeKind   `json:"kind"`
	Status    model.NodeStatus `json:"status"`
	Mood      *string          `json:"mood,omitempty"`
	POV       *string          `json:"pov,omitempty"`
	WordCount int              `json:"wordCount"`
	Children  []treeNode       `json:"children"`
}

func buildTree(st *model.ManuscriptStructure, id string, seen map[string]bool) treeNode {
	n, _ := st.FindNode(id)
	out := treeNode{
		ID:        n.ID,
		Title:     n.Title,
		Kind:      n.Kind,
		Status:    n.Status,
		Mood:      n.Mood,
		POV:       n.PointOfView,
		WordCount: n.WordCount,
		Children:  []treeNode{},
	}
	seen[id] = true
	for _, c := range n.Children {
		if seen[c] {
			continue
		}
		if _, ok := st.FindNode(c); ok {
			out.Children = append(out.Children, buildTree(st, c, seen))
		}
	}
	return out
}

func renderTree(st *model.ManuscriptStructure) string {
	var b strings.Builder
	if root, ok := st.FindNode(st.Root); ok {
		fmt.Fprintf(&b, "%s  (%s words)\n", root.Title, humanize.Comma(int64(st.TotalWordCount())))
	}
	mutate.Walk(st, func(n *model.ManuscriptNode, depth int) {
		indent := strings.Repeat("  ", depth+1)
		switch n.Kind {
		case model.NodeKindChapter, model.NodeKindScene:
			fmt.Fprintf(&b, "%s%s  [%s] %s words  %s\n", indent, n.Title, n.Status, humanize.Comma(int64(n.WordCount)), n.ID)
		default:
			fmt.Fprintf(&b, "%s%s/  %s\n", indent, n.Title, n.ID)
		}
	})
	return b.String()
}

func newTreeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the manuscript structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := openEngine(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeEngine(cmd, e)

			st := e.Structure()
			if _, ok := st.FindNode(st.Root); !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "root", ID: st.Root})
			}
			return writeResult(cmd, app, map[string]any{
				"data": buildTree(st, st.Root, map[string]bool{}),
				"meta": map[string]any{"words": st.TotalWordCount(), "chapters": len(st.ChapterIDs())},
			}, renderTree(st))
		},
	}
	return cmd
}
