package export

import (
	"context"
	"fmt"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
	"quillborn-cli/internal/search"
)

type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatHTML     Format = "html"
	FormatLaTeX    Format = "tex"
	FormatEPUB     Format = "epub"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text", "plain", "plaintext":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	case "tex", "latex":
		return FormatLaTeX, nil
	case "epub":
		return FormatEPUB, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want md|txt|html|tex|epub)", s)
	}
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	return "." + string(f)
}

// Section is one exported unit: a part heading or a chapter with its text.
type Section struct {
	Kind  model.NodeKind
	Depth int
	Title string
	Text  string
}

// Collect walks the tree depth-first and loads chapter text. Trashed nodes and their subtrees are
// left out; chapters that were never persisted export with an empty body.
func Collect(ctx context.Context, st *model.ManuscriptStructure, src search.ChapterSource) ([]Section, error) {
	var (
		out     []Section
		err     error
		skipped = map[string]bool{}
	)
	mutate.Walk(st, func(n *model.ManuscriptNode, depth int) {
		if err != nil {
			return
		}
		if n.Status == model.StatusTrash || skipped[n.ID] {
			for _, c := range n.Children {
				skipped[c] = true
			}
			return
		}
		if err = ctx.Err(); err != nil {
			return
		}
		sec := Section{Kind: n.Kind, Depth: depth, Title: n.Title}
		if n.Kind == model.NodeKindChapter || n.Kind == model.NodeKindScene {
			if text, rerr := search.ReadBody(ctx, src, n.ID); rerr == nil {
				sec.Text = strings.TrimSpace(text)
			}
		}
		out = append(out, sec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func countWords(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(strings.Fields(s.Text))
	}
	return n
}
