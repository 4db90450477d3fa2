package export

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"quillborn-cli/internal/model"
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func latexEscape(s string) string { return latexEscaper.Replace(s) }

const latexPreamble = `\documentclass[12pt]{book}

\usepackage[utf8]{inputenc}
\usepackage[T1]{fontenc}
\usepackage{geometry}
\usepackage{setspace}
\usepackage{parskip}

\geometry{
  a4paper,
  margin=1in
}

\onehalfspacing

`

// LaTeX renders a book-class document: parts become \part, chapters \chapter and scenes
// \section. Markdown headings inside a chapter start one level below the chapter.
func LaTeX(meta model.ProjectMetadata, sections []Section) string {
	var buf bytes.Buffer
	buf.WriteString(latexPreamble)
	buf.WriteString(`\title{` + latexEscape(strings.TrimSpace(meta.Title)) + "}\n")
	buf.WriteString(`\author{` + latexEscape(strings.TrimSpace(meta.Author)) + "}\n")
	buf.WriteString("\\date{}\n\n")
	buf.WriteString("\\begin{document}\n\n\\maketitle\n\\tableofcontents\n\\newpage\n\n")

	for _, s := range sections {
		title := latexEscape(s.Title)
		switch s.Kind {
		case model.NodeKindPart, model.NodeKindBook:
			buf.WriteString(`\part{` + title + "}\n\n")
			continue
		case model.NodeKindScene:
			buf.WriteString(`\section{` + title + "}\n\n")
		default:
			buf.WriteString(`\chapter{` + title + "}\n\n")
		}
		if body := markdownToLaTeX(s.Text); body != "" {
			buf.WriteString(body)
			buf.WriteString("\n\n")
		}
	}
	buf.WriteString("\\end{document}\n")
	return buf.String()
}

var latexHeadings = []string{`\section`, `\subsection`, `\subsubsection`}

func markdownToLaTeX(md string) string {
	src := []byte(strings.TrimSpace(md))
	if len(src) == 0 {
		return ""
	}
	doc := textParser.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	block := func(s string) {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.WriteString(latexEscape(string(v.Segment.Value(src))))
				switch {
				case v.HardLineBreak():
					b.WriteString("\\\\\n")
				case v.SoftLineBreak():
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.WriteString(latexEscape(string(v.Value)))
			}
		case *ast.AutoLink:
			if entering {
				b.WriteString(`\texttt{` + latexEscape(string(v.URL(src))) + "}")
			}
		case *ast.Heading:
			if entering {
				cmd := `\paragraph`
				if v.Level <= len(latexHeadings) {
					cmd = latexHeadings[v.Level-1]
				}
				b.WriteString(cmd + "{")
			} else {
				block("}")
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.Emphasis:
			switch {
			case entering && v.Level >= 2:
				b.WriteString(`\textbf{`)
			case entering:
				b.WriteString(`\emph{`)
			default:
				b.WriteString("}")
			}
		case *ast.CodeSpan:
			if entering {
				b.WriteString(`\texttt{`)
			} else {
				b.WriteString("}")
			}
		case *ast.Blockquote:
			if entering {
				b.WriteString("\\begin{quote}\n")
			} else {
				trimBlankTail(&b)
				block("\n\\end{quote}")
			}
		case *ast.List:
			env := "itemize"
			if v.IsOrdered() {
				env = "enumerate"
			}
			if entering {
				b.WriteString(`\begin{` + env + "}\n")
			} else {
				block(`\end{` + env + "}")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString(`\item `)
			} else {
				trimBlankTail(&b)
				b.WriteByte('\n')
			}
		case *ast.ThematicBreak:
			if entering {
				block(`\bigskip\noindent\rule{\textwidth}{0.4pt}\bigskip`)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				b.WriteString("\\begin{verbatim}\n")
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				block("\\end{verbatim}")
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(blankRuns.ReplaceAllString(b.String(), "\n\n"))
}

func trimBlankTail(b *strings.Builder) {
	s := strings.TrimRight(b.String(), "\n")
	b.Reset()
	b.WriteString(s)
}
