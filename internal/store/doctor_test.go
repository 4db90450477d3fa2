package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
)

func TestDoctorProject_ReportsFileIssues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	p, err := s.CreateProject(ctx, t.TempDir(), "Doc", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	ch, err := s.CreateChapter(ctx, p.Path, "Kept")
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if err := s.SaveChapter(ctx, p.Path, ch.ID, "three little words"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if _, err := s.CreateChapter(ctx, p.Path, "Orphan"); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	for _, n := range []model.ManuscriptNode{
		{ID: ch.ID, Title: "Kept", Kind: model.NodeKindChapter},
		{ID: "ghost", Title: "Ghost", Kind: model.NodeKindChapter},
	} {
		if err := mutate.AddNode(p.Structure, n, ""); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if err := s.SaveStructure(p.Path, p.Structure); err != nil {
		t.Fatalf("SaveStructure: %v", err)
	}

	rep, err := s.DoctorProject(ctx, p.Path)
	if err != nil {
		t.Fatalf("DoctorProject: %v", err)
	}
	codes := map[string]bool{}
	for _, it := range rep.Issues {
		codes[it.Code] = true
	}
	for _, want := range []string{"chapter_file_missing", "chapter_file_orphaned", "word_count_stale"} {
		if !codes[want] {
			t.Fatalf("expected %s in %+v", want, rep.Issues)
		}
	}
	if rep.HasErrors() {
		t.Fatalf("file drift is a warning, not an error: %+v", rep.Issues)
	}

	fixed, err := s.RepairWordCounts(ctx, p.Path)
	if err != nil || fixed != 1 {
		t.Fatalf("RepairWordCounts = %d, %v", fixed, err)
	}
	reopened, err := s.OpenProject(ctx, p.Path)
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if n, _ := reopened.Structure.FindNode(ch.ID); n.WordCount != 3 {
		t.Fatalf("expected repaired count 3; got %d", n.WordCount)
	}
}

func TestDoctorProject_BadFrontMatterIsError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	p, err := s.CreateProject(ctx, t.TempDir(), "Bad", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := mutate.AddNode(p.Structure, model.ManuscriptNode{ID: "c1", Title: "C", Kind: model.NodeKindChapter}, ""); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := s.SaveStructure(p.Path, p.Structure); err != nil {
		t.Fatalf("SaveStructure: %v", err)
	}
	bad := "---\ntitle: [unclosed\n---\n\ntext"
	if err := os.WriteFile(filepath.Join(p.Path, chaptersDir, "c1.md"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rep, err := s.DoctorProject(ctx, p.Path)
	if err != nil {
		t.Fatalf("DoctorProject: %v", err)
	}
	if !rep.HasErrors() {
		t.Fatalf("expected error for invalid front matter: %+v", rep.Issues)
	}
}
