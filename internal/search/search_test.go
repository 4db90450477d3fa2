package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"quillborn-cli/internal/model"
)

type mapSource map[string]string

func (m mapSource) ReadChapterRaw(_ context.Context, id string) (string, error) {
	raw, ok := m[id]
	if !ok {
		return "", fmt.Errorf("chapter %s: not found", id)
	}
	return raw, nil
}

func testStructure() *model.ManuscriptStructure {
	return &model.ManuscriptStructure{
		Root: "book",
		Nodes: map[string]*model.ManuscriptNode{
			"book": {ID: "book", Title: "Book", Kind: model.NodeKindBook, Children: []string{"part", "ch-1", "ch-2", "ch-3"}},
			"part": {ID: "part", Title: "The Wolf Years", Kind: model.NodeKindPart},
			"ch-1": {ID: "ch-1", Title: "Night", Kind: model.NodeKindChapter},
			"ch-2": {ID: "ch-2", Title: "Dawn", Kind: model.NodeKindChapter},
			"ch-3": {ID: "ch-3", Title: "Missing", Kind: model.NodeKindChapter},
		},
		Order: []string{"part", "ch-1", "ch-2", "ch-3"},
	}
}

func TestManuscript_FindsWolfOnLineThree(t *testing.T) {
	t.Parallel()

	src := mapSource{
		"ch-1": "---\ntitle: Night\nwolf: yes\n---\n\nThe night was cold.\nNothing stirred.\nThen a Wolf howled.",
		"ch-2": "No animals here.",
	}
	res, err := Manuscript(context.Background(), testStructure(), src, "wolf", Options{})
	if err != nil {
		t.Fatalf("Manuscript: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected one chapter with matches; got %+v", res)
	}
	r := res[0]
	if r.ChapterID != "ch-1" || r.ChapterTitle != "Night" {
		t.Fatalf("unexpected chapter: %+v", r)
	}
	want := []model.SearchMatch{{Line: 3, Text: "Then a Wolf howled.", Start: 7, End: 11}}
	if !reflect.DeepEqual(r.Matches, want) {
		t.Fatalf("expected %+v; got %+v", want, r.Matches)
	}
}

func TestManuscript_CaseSensitive(t *testing.T) {
	t.Parallel()

	src := mapSource{"ch-1": "Wolf wolf WOLF"}
	res, _ := Manuscript(context.Background(), testStructure(), src, "wolf", Options{CaseSensitive: true})
	if len(res) != 1 || len(res[0].Matches) != 1 || res[0].Matches[0].Start != 5 {
		t.Fatalf("expected only the lower-case match; got %+v", res)
	}
}

func TestManuscript_LiteralAndRegexModes(t *testing.T) {
	t.Parallel()

	src := mapSource{"ch-1": "a.b axb"}
	lit, _ := Manuscript(context.Background(), testStructure(), src, "a.b", Options{})
	if len(lit) != 1 || len(lit[0].Matches) != 1 {
		t.Fatalf("literal mode must escape metacharacters; got %+v", lit)
	}
	re, _ := Manuscript(context.Background(), testStructure(), src, "a.b", Options{Regex: true})
	if len(re) != 1 || len(re[0].Matches) != 2 {
		t.Fatalf("regex mode must interpret metacharacters; got %+v", re)
	}
	bad, err := Manuscript(context.Background(), testStructure(), src, "(unclosed", Options{Regex: true})
	if err != nil || len(bad) != 0 {
		t.Fatalf("invalid pattern must yield an empty result; got %+v, %v", bad, err)
	}
}

func TestManuscript_CapsMatchesPerChapter(t *testing.T) {
	t.Parallel()

	src := mapSource{
		"ch-1": strings.Repeat("echo\n", 150),
		"ch-2": "echo echo echo",
	}
	res, _ := Manuscript(context.Background(), testStructure(), src, "echo", Options{})
	if len(res) != 2 {
		t.Fatalf("expected two chapters; got %d", len(res))
	}
	if got := len(res[0].Matches); got != DefaultLimit {
		t.Fatalf("expected %d matches; got %d", DefaultLimit, got)
	}
	if got := len(res[1].Matches); got != 3 {
		t.Fatalf("expected 3 matches; got %d", got)
	}

	small, _ := Manuscript(context.Background(), testStructure(), src, "echo", Options{Limit: 2})
	if got := len(small[0].Matches); got != 2 {
		t.Fatalf("expected custom limit 2; got %d", got)
	}
}

func TestManuscript_EmptyQueryAndCancelledContext(t *testing.T) {
	t.Parallel()

	src := mapSource{"ch-1": "text"}
	res, err := Manuscript(context.Background(), testStructure(), src, "   ", Options{})
	if err != nil || len(res) != 0 {
		t.Fatalf("expected empty result for blank query; got %+v, %v", res, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Manuscript(ctx, testStructure(), src, "text", Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
}

type bufferSource struct {
	mapSource
	bodies map[string]string
}

func (b bufferSource) ReadChapterBody(ctx context.Context, id string) (string, error) {
	if text, ok := b.bodies[id]; ok {
		return text, nil
	}
	return ReadBody(ctx, b.mapSource, id)
}

func TestManuscript_FrontMatterNeverMatches(t *testing.T) {
	t.Parallel()

	src := mapSource{
		"ch-1": "---\ntitle: Act I --- Dawn\nstatus: draft\n---\n\nIt began.",
		"ch-2": "---\r\ntitle: Dawn\r\nstatus: draft\r\n---\r\n\r\nA first draft.",
	}
	res, err := Manuscript(context.Background(), testStructure(), src, "draft", Options{})
	if err != nil {
		t.Fatalf("Manuscript: %v", err)
	}
	if len(res) != 1 || res[0].ChapterID != "ch-2" || len(res[0].Matches) != 1 || res[0].Matches[0].Line != 1 {
		t.Fatalf("expected only the body match in ch-2; got %+v", res)
	}
}

func TestManuscript_BufferLinesMatchStoredLines(t *testing.T) {
	t.Parallel()

	text := "\n\nthe wolf"
	stored := mapSource{"ch-1": "---\ntitle: Night\n---\n\n" + text}
	buffered := bufferSource{mapSource: mapSource{}, bodies: map[string]string{"ch-1": text}}

	for name, src := range map[string]ChapterSource{"stored": stored, "buffer": buffered} {
		res, err := Manuscript(context.Background(), testStructure(), src, "wolf", Options{})
		if err != nil {
			t.Fatalf("%s: Manuscript: %v", name, err)
		}
		if len(res) != 1 || res[0].Matches[0].Line != 3 {
			t.Fatalf("%s: expected a match on line 3; got %+v", name, res)
		}
	}
}

func TestManuscript_BufferIsNotStripped(t *testing.T) {
	t.Parallel()

	src := bufferSource{
		mapSource: mapSource{"ch-2": "---\ntitle: Dawn\n---\n\n---\nwolf at dawn"},
		bodies:    map[string]string{"ch-1": "---\nprologue wolf\n---\nbody"},
	}
	res, err := Manuscript(context.Background(), testStructure(), src, "wolf", Options{})
	if err != nil {
		t.Fatalf("Manuscript: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected both chapters; got %+v", res)
	}
	if m := res[0].Matches[0]; res[0].ChapterID != "ch-1" || m.Line != 2 || m.Text != "prologue wolf" {
		t.Fatalf("unexpected buffer match: %+v", res[0])
	}
	if m := res[1].Matches[0]; m.Line != 2 || m.Text != "wolf at dawn" {
		t.Fatalf("unexpected stored match: %+v", res[1])
	}
}

func TestFindAndReplaceAll(t *testing.T) {
	t.Parallel()

	text := "Señor Grey met señor Black."
	spans := Find(text, "señor", Options{})
	want := []Span{{Start: 0, End: 5}, {Start: 15, End: 20}}
	if !reflect.DeepEqual(spans, want) {
		t.Fatalf("expected %+v; got %+v", want, spans)
	}

	out, n := ReplaceAll(text, "señor", "Mr.", Options{})
	if n != 2 || out != "Mr. Grey met Mr. Black." {
		t.Fatalf("unexpected literal replace: %q (%d)", out, n)
	}

	out, n = ReplaceAll("Grey, John", `(\w+), (\w+)`, "$2 $1", Options{Regex: true})
	if n != 1 || out != "John Grey" {
		t.Fatalf("unexpected regex replace: %q (%d)", out, n)
	}

	out, n = ReplaceAll("$1 stays", "stays", "$1", Options{})
	if n != 1 || out != "$1 $1" {
		t.Fatalf("literal replacements must not expand groups: %q", out)
	}

	out, n = ReplaceAll(text, "[", "x", Options{Regex: true})
	if n != 0 || out != text {
		t.Fatalf("invalid pattern must leave text unchanged")
	}
}
