package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quillborn-cli/internal/model"
)

type mapSource map[string]string

func (m mapSource) ReadChapterRaw(_ context.Context, id string) (string, error) {
	raw, ok := m[id]
	if !ok {
		return "", errors.New("not found")
	}
	return raw, nil
}

func testProject() model.Project {
	return model.Project{
		Metadata: model.ProjectMetadata{Title: "The Long Night", Author: "R. Vale"},
		Structure: &model.ManuscriptStructure{
			Root: "book",
			Nodes: map[string]*model.ManuscriptNode{
				"book": {ID: "book", Title: "The Long Night", Kind: model.NodeKindBook, Children: []string{"part", "cut"}},
				"part": {ID: "part", Title: "Winter", Kind: model.NodeKindPart, Children: []string{"ch-1", "ch-2"}},
				"ch-1": {ID: "ch-1", Title: "Snow", Kind: model.NodeKindChapter},
				"ch-2": {ID: "ch-2", Title: "Ice", Kind: model.NodeKindChapter},
				"cut":  {ID: "cut", Title: "Deleted", Kind: model.NodeKindPart, Status: model.StatusTrash, Children: []string{"ch-3"}},
				"ch-3": {ID: "ch-3", Title: "Gone", Kind: model.NodeKindChapter},
			},
			Order: []string{"part", "ch-1", "ch-2", "cut", "ch-3"},
		},
	}
}

func testSource() mapSource {
	return mapSource{
		"ch-1": "---\nid: ch-1\n---\n\nIt **snowed** for _days_.\n\n- one\n- two",
		"ch-3": "never exported",
	}
}

func TestCollect_DepthFirstSkipsTrash(t *testing.T) {
	t.Parallel()

	secs, err := Collect(context.Background(), testProject().Structure, testSource())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var titles []string
	for _, s := range secs {
		titles = append(titles, s.Title)
	}
	if strings.Join(titles, ",") != "Winter,Snow,Ice" {
		t.Fatalf("unexpected sections: %v", titles)
	}
	if secs[1].Text != "It **snowed** for _days_.\n\n- one\n- two" {
		t.Fatalf("expected front matter stripped; got %q", secs[1].Text)
	}
	if secs[2].Text != "" {
		t.Fatalf("unpersisted chapter must export empty; got %q", secs[2].Text)
	}
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	got := StripMarkdown("# Title\n\nIt **snowed** for _days_.\n\n- one\n- two\n\n***\n\n[link](http://x.test) and `code`")
	want := "Title\n\nIt snowed for days.\n\none\ntwo\n\n* * *\n\nlink and code"
	if got != want {
		t.Fatalf("expected %q; got %q", want, got)
	}
}

func TestRender_AllFormats(t *testing.T) {
	t.Parallel()

	p := testProject()
	secs, _ := Collect(context.Background(), p.Structure, testSource())

	md, _ := Render(p.Metadata, secs, FormatMarkdown)
	if !strings.HasPrefix(md, "# The Long Night\n\n*By R. Vale*\n\n---\n\n# Winter\n\n## Snow\n\n") {
		t.Fatalf("unexpected markdown head:\n%s", md)
	}

	txt, _ := Render(p.Metadata, secs, FormatText)
	if !strings.HasPrefix(txt, "THE LONG NIGHT\nby R. Vale\n\nWINTER\n\nSNOW\n\nIt snowed for days.") {
		t.Fatalf("unexpected text head:\n%s", txt)
	}
	if strings.Contains(txt, "never exported") {
		t.Fatalf("trashed content leaked into export")
	}

	html, err := Render(p.Metadata, secs, FormatHTML)
	if err != nil {
		t.Fatalf("Render html: %v", err)
	}
	for _, want := range []string{"<title>The Long Night</title>", `<h1 class="part">Winter</h1>`, "<h2>Snow</h2>", "<strong>snowed</strong>", "<li>one</li>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in html:\n%s", want, html)
		}
	}
}

func TestRender_HTMLEscapesTitlesAndRawHTML(t *testing.T) {
	t.Parallel()

	meta := model.ProjectMetadata{Title: "<b>Bold</b>"}
	secs := []Section{{Kind: model.NodeKindChapter, Title: "A & B", Text: "<script>alert(1)</script>\n\nok"}}
	html, err := HTML(meta, secs)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if strings.Contains(html, "<script>") || strings.Contains(html, "<b>Bold</b>") {
		t.Fatalf("expected escaped output:\n%s", html)
	}
	if !strings.Contains(html, "A &amp; B") {
		t.Fatalf("expected escaped chapter title:\n%s", html)
	}
}

func TestWrite_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out", "book.md")
	res, err := Write(context.Background(), testProject(), testSource(), FormatMarkdown, out, WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.Sections != 3 || res.Words != 8 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected file: %v", err)
	}
	if _, err := Write(context.Background(), testProject(), testSource(), FormatMarkdown, out, WriteOptions{}); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if _, err := Write(context.Background(), testProject(), testSource(), FormatMarkdown, out, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("Write overwrite: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{
		"md": FormatMarkdown, "Markdown": FormatMarkdown, "txt": FormatText, "html": FormatHTML,
		"latex": FormatLaTeX, "tex": FormatLaTeX, "EPUB": FormatEPUB,
	} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	if FormatEPUB.Extension() != ".epub" || FormatLaTeX.Extension() != ".tex" {
		t.Fatalf("unexpected extensions")
	}
}

func TestRender_LaTeX(t *testing.T) {
	t.Parallel()

	p := testProject()
	secs, _ := Collect(context.Background(), p.Structure, testSource())
	tex, err := Render(p.Metadata, secs, FormatLaTeX)
	if err != nil {
		t.Fatalf("Render latex: %v", err)
	}
	for _, want := range []string{
		"\\documentclass[12pt]{book}",
		"\\title{The Long Night}\n\\author{R. Vale}",
		"\\part{Winter}",
		"\\chapter{Snow}",
		"It \\textbf{snowed} for \\emph{days}.",
		"\\begin{itemize}\n\\item one\n\\item two\n\\end{itemize}",
		"\\chapter{Ice}",
	} {
		if !strings.Contains(tex, want) {
			t.Fatalf("expected %q in latex:\n%s", want, tex)
		}
	}
	if !strings.HasSuffix(tex, "\\end{document}\n") || strings.Contains(tex, "Gone") {
		t.Fatalf("unexpected latex document:\n%s", tex)
	}
}

func TestMarkdownToLaTeX_BlocksAndEscaping(t *testing.T) {
	t.Parallel()

	got := markdownToLaTeX("50% of $5 & a_b {x} ^2\n\n> quoted\n\n# Inner\n\n---\n\n1. first\n2. `code`")
	for _, want := range []string{
		`50\% of \$5 \& a\_b \{x\} \textasciicircum{}2`,
		"\\begin{quote}\nquoted\n\\end{quote}",
		"\\section{Inner}",
		"\\rule{\\textwidth}{0.4pt}",
		"\\begin{enumerate}\n\\item first\n\\item \\texttt{code}\n\\end{enumerate}",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if latexEscape(`\{`) != `\textbackslash{}\{` {
		t.Fatalf("escaping must be single pass; got %q", latexEscape(`\{`))
	}
}

func TestEPUB_Package(t *testing.T) {
	t.Parallel()

	meta := model.ProjectMetadata{Title: "Night & Day", Author: "R. Vale"}
	secs := []Section{
		{Kind: model.NodeKindPart, Title: "Winter"},
		{Kind: model.NodeKindChapter, Title: "Snow <1>", Text: "It **snowed**.\nAll night."},
	}
	b, err := Encode(meta, secs, FormatEPUB)
	if err != nil {
		t.Fatalf("Encode epub: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if f := zr.File[0]; f.Name != "mimetype" || f.Method != zip.Store {
		t.Fatalf("first entry = %s (method %d)", f.Name, f.Method)
	}

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
		if strings.HasSuffix(f.Name, ".xhtml") || strings.HasSuffix(f.Name, ".opf") || strings.HasSuffix(f.Name, ".ncx") {
			dec := xml.NewDecoder(bytes.NewReader(data))
			for {
				if _, err := dec.Token(); err == io.EOF {
					break
				} else if err != nil {
					t.Fatalf("%s is not well-formed: %v\n%s", f.Name, err, data)
				}
			}
		}
	}
	if files["mimetype"] != "application/epub+zip" {
		t.Fatalf("mimetype = %q", files["mimetype"])
	}
	ch := files["OEBPS/section-002.xhtml"]
	for _, want := range []string{"<h2>Snow &lt;1&gt;</h2>", "<strong>snowed</strong>", "<br />"} {
		if !strings.Contains(ch, want) {
			t.Fatalf("expected %q in chapter page:\n%s", want, ch)
		}
	}
	opf := files["OEBPS/content.opf"]
	if !strings.Contains(opf, "<dc:title>Night &amp; Day</dc:title>") || strings.Count(opf, "<itemref ") != 3 {
		t.Fatalf("unexpected package document:\n%s", opf)
	}
	if !strings.Contains(files["OEBPS/nav.xhtml"], `<a href="section-001.xhtml">Winter</a>`) {
		t.Fatalf("unexpected nav:\n%s", files["OEBPS/nav.xhtml"])
	}

	again, _ := Encode(meta, secs, FormatEPUB)
	zr2, _ := zip.NewReader(bytes.NewReader(again), int64(len(again)))
	rc, _ := zr2.Open("OEBPS/content.opf")
	opf2, _ := io.ReadAll(rc)
	id := func(s string) string { return s[strings.Index(s, "urn:uuid:"):][:45] }
	if id(opf) != id(string(opf2)) {
		t.Fatalf("book identifier should be stable across exports")
	}

	if _, err := Render(meta, secs, FormatEPUB); !errors.Is(err, ErrBinaryFormat) {
		t.Fatalf("Render(epub) err = %v; want ErrBinaryFormat", err)
	}
}
