package importer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplit_Heading(t *testing.T) {
	t.Parallel()

	got := Split("# A\nhello\n## B\nworld", StrategyHeading)
	want := []Segment{{Title: "A", Content: "hello"}, {Title: "B", Content: "world"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v; got %+v", want, got)
	}
}

func TestSplit_HeadingPreambleAndDeepHeadings(t *testing.T) {
	t.Parallel()

	in := "Preface text.\r\n\r\n# One\nfirst\n### not a split\nmore\n#\n## Two\n\n## Three\nthird"
	got := Split(in, StrategyHeading)
	want := []Segment{
		{Title: "Untitled", Content: "Preface text."},
		{Title: "One", Content: "first\n### not a split\nmore\n#"},
		{Title: "Three", Content: "third"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v; got %+v", want, got)
	}
}

func TestSplit_SceneBreak(t *testing.T) {
	t.Parallel()

	in := "first scene\n***\nsecond scene\n-----\n\n###\nthird scene\n**"
	got := Split(in, StrategySceneBreak)
	want := []Segment{
		{Title: "Chapter 1", Content: "first scene"},
		{Title: "Chapter 2", Content: "second scene"},
		{Title: "Chapter 3", Content: "third scene\n**"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v; got %+v", want, got)
	}
}

func TestSplit_NeverEmpty(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{StrategyHeading, StrategySceneBreak} {
		got := Split("# Only a heading\n", s)
		if s == StrategySceneBreak {
			// No breaks: the text is one segment named sequentially.
			if len(got) != 1 || got[0].Title != "Chapter 1" {
				t.Fatalf("%s: unexpected %+v", s, got)
			}
			continue
		}
		if len(got) != 1 || got[0].Title != "Untitled" || got[0].Content != "# Only a heading\n" {
			t.Fatalf("%s: expected whole input as untitled chapter; got %+v", s, got)
		}
	}

	for _, s := range []Strategy{StrategyHeading, StrategySceneBreak, StrategySingle} {
		if got := Split("", s); len(got) != 1 {
			t.Fatalf("%s: expected one segment for empty input; got %+v", s, got)
		}
	}
}

func TestSplit_Single(t *testing.T) {
	t.Parallel()

	got := Split("# A\nhello", StrategySingle)
	if len(got) != 1 || got[0].Title != "Imported Chapter" || got[0].Content != "# A\nhello" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	cases := map[string]Strategy{
		"heading":     StrategyHeading,
		"":            StrategyHeading,
		"sceneBreak":  StrategySceneBreak,
		"scene-break": StrategySceneBreak,
		"break":       StrategySceneBreak,
		"single":      StrategySingle,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("chapters"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestReadFile_TextStripsFrontMatter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "draft.md")
	if err := os.WriteFile(path, []byte("---\ntitle: x\n---\r\n\r\n# A\r\nhello\r\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "# A\nhello\n" {
		t.Fatalf("unexpected text %q", got)
	}
}
