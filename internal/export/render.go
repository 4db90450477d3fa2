package export

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"quillborn-cli/internal/model"
)

var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// Raw HTML in chapters is dropped; html.WithUnsafe() is not used.
		html.WithHardWraps(),
	),
)

// Parsing only; emoji nodes would otherwise vanish from the text walk.
var textParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders the manuscript as one markdown document.
func Markdown(meta model.ProjectMetadata, sections []Section) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(meta.Title))
	writeLn("")
	if a := strings.TrimSpace(meta.Author); a != "" {
		writeLn("*By " + a + "*")
		writeLn("")
	}
	writeLn("---")
	writeLn("")

	for _, s := range sections {
		if s.Kind == model.NodeKindPart || s.Kind == model.NodeKindBook {
			writeLn("# " + s.Title)
			writeLn("")
			continue
		}
		level := "##"
		if s.Kind == model.NodeKindScene {
			level = "###"
		}
		writeLn(level + " " + s.Title)
		writeLn("")
		if s.Text != "" {
			writeLn(s.Text)
			writeLn("")
		}
		writeLn("---")
		writeLn("")
	}
	return buf.String()
}

// PlainText renders the manuscript without markdown syntax.
func PlainText(meta model.ProjectMetadata, sections []Section) string {
	var buf bytes.Buffer
	buf.WriteString(strings.ToUpper(strings.TrimSpace(meta.Title)))
	buf.WriteString("\n")
	if a := strings.TrimSpace(meta.Author); a != "" {
		buf.WriteString("by " + a + "\n")
	}
	buf.WriteString("\n")

	for _, s := range sections {
		buf.WriteString(strings.ToUpper(s.Title))
		buf.WriteString("\n\n")
		if s.Text == "" {
			continue
		}
		buf.WriteString(StripMarkdown(s.Text))
		buf.WriteString("\n\n")
	}
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// StripMarkdown returns the text content of a markdown document, one blank line between blocks.
func StripMarkdown(md string) string {
	src := []byte(md)
	doc := textParser.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(v.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(v.Label(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			if entering {
				b.WriteString("* * *\n\n")
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.List, *ast.TextBlock, *extast.TableRow, *extast.TableHeader:
			if !entering {
				b.WriteString("\n")
			}
		case *extast.TableCell:
			if !entering && n.NextSibling() != nil {
				b.WriteString("\t")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(blankRuns.ReplaceAllString(b.String(), "\n\n"))
}

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := htmlRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	// Safe only because raw HTML is disabled above.
	return template.HTML(b.String())
}

type htmlSection struct {
	Heading string
	Body    template.HTML
	Chapter bool
	Scene   bool
}

var htmlPage = template.Must(template.New("manuscript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>{{.Title}}</title>
  <style>
    :root { --bg: #fdf6ec; --fg: #3b2f1e; --accent: #8b5e3c; --muted: #c9b99a; }
    body { font-family: Georgia, "Times New Roman", serif; background: var(--bg); color: var(--fg);
      line-height: 1.8; max-width: 42em; margin: 0 auto; padding: 2em 1.5em; }
    .title-page { text-align: center; margin: 4em 0 6em; }
    .author { font-style: italic; color: var(--accent); }
    section.chapter { margin-bottom: 4em; page-break-before: always; }
    h1.part { text-align: center; margin: 4em 0 2em; }
    hr { border: none; border-top: 1px solid var(--muted); margin: 2em 0; }
  </style>
</head>
<body>
  <header class="title-page">
    <h1>{{.Title}}</h1>
{{- if .Author}}
    <p class="author">{{.Author}}</p>
{{- end}}
  </header>
{{range .Sections}}
{{- if .Chapter}}
  <section class="chapter">
    {{if .Scene}}<h3>{{.Heading}}</h3>{{else}}<h2>{{.Heading}}</h2>{{end}}
    {{.Body}}
  </section>
{{- else}}
  <h1 class="part">{{.Heading}}</h1>
{{- end}}
{{end}}
</body>
</html>
`))

// HTML renders a standalone HTML document. Chapter bodies go through goldmark.
func HTML(meta model.ProjectMetadata, sections []Section) (string, error) {
	data := struct {
		Title    string
		Author   string
		Sections []htmlSection
	}{
		Title:  strings.TrimSpace(meta.Title),
		Author: strings.TrimSpace(meta.Author),
	}
	for _, s := range sections {
		hs := htmlSection{Heading: s.Title}
		switch s.Kind {
		case model.NodeKindPart, model.NodeKindBook:
		case model.NodeKindScene:
			hs.Chapter = true
			hs.Scene = true
			hs.Body = renderMarkdownHTML(s.Text)
		default:
			hs.Chapter = true
			hs.Body = renderMarkdownHTML(s.Text)
		}
		data.Sections = append(data.Sections, hs)
	}
	var buf bytes.Buffer
	if err := htmlPage.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
