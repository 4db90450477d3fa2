package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quillborn-cli/internal/export"
	"quillborn-cli/internal/importer"
	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
	"quillborn-cli/internal/search"
	"quillborn-cli/internal/store"
)

type failingBackend struct {
	*store.Store
	saveErr error
}

func (f *failingBackend) SaveChapter(ctx context.Context, path, id, text string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveChapter(ctx, path, id, text)
}

type testEnv struct {
	e     *Engine
	store *store.Store
	path  string
}

func newTestEngine(t *testing.T, backend func(*store.Store) Backend, opt Options) testEnv {
	t.Helper()
	ctx := context.Background()
	st := store.New()
	p, err := st.CreateProject(ctx, t.TempDir(), "Test Book", "A. Writer")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	ix, err := store.OpenIndex(ctx, p.Path)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	var b Backend = st
	if backend != nil {
		b = backend(st)
	}
	if opt.Debounce == 0 {
		// Saves in tests happen through Flush, Save and Close only.
		opt.Debounce = time.Hour
	}
	opt.Index = ix
	e, err := Open(ctx, b, p.Path, opt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return testEnv{e: e, store: st, path: p.Path}
}

func mustChapter(t *testing.T, e *Engine, title string) model.ManuscriptNode {
	t.Helper()
	n, err := e.CreateChapter(context.Background(), title, "")
	if err != nil {
		t.Fatalf("CreateChapter(%q): %v", title, err)
	}
	return n
}

func TestEdit_FlushPersistsAndUpdatesTree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Opening")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	for _, text := range []string{"The", "The night", "The night was long"} {
		if _, err := env.e.Edit(text, -1); err != nil {
			t.Fatalf("Edit: %v", err)
		}
	}
	if !env.e.SessionState().IsDirty {
		t.Fatalf("expected dirty buffer before save")
	}
	if err := env.e.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	state := env.e.SessionState()
	if state.IsDirty || state.SessionWordCount != 4 || state.ActiveChapterID != n.ID {
		t.Fatalf("unexpected session state: %+v", state)
	}
	ch, err := env.store.LoadChapter(ctx, env.path, n.ID)
	if err != nil || ch.Text != "The night was long" {
		t.Fatalf("expected persisted text; got %q, %v", ch.Text, err)
	}
	if node, _ := env.e.Structure().FindNode(n.ID); node.WordCount != 4 {
		t.Fatalf("expected tree word count 4; got %d", node.WordCount)
	}
	reopened, err := env.store.OpenProject(ctx, env.path)
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if node, _ := reopened.Structure.FindNode(n.ID); node.WordCount != 4 {
		t.Fatalf("expected stored word count 4; got %d", node.WordCount)
	}
	if at, err := env.e.LastSave(); at.IsZero() || err != nil {
		t.Fatalf("expected a recorded save; got %v, %v", at, err)
	}
}

func TestEdit_WithoutActiveChapter(t *testing.T) {
	t.Parallel()

	env := newTestEngine(t, nil, Options{})
	if _, err := env.e.Edit("text", -1); !errors.Is(err, ErrNoActiveChapter) {
		t.Fatalf("expected ErrNoActiveChapter; got %v", err)
	}
}

func TestOpenChapter_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	if _, err := env.e.OpenChapter(ctx, "missing"); !errors.As(err, &mutate.NotFoundError{}) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
	part, err := env.e.AddNode(ctx, model.NodeKindPart, "Part One", "")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := env.e.OpenChapter(ctx, part.ID); !errors.Is(err, ErrNotChapter) {
		t.Fatalf("expected ErrNotChapter; got %v", err)
	}
}

func TestOpenChapter_SwitchKeepsPreviousEdits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	a := mustChapter(t, env.e, "A")
	b := mustChapter(t, env.e, "B")

	if _, err := env.e.OpenChapter(ctx, a.ID); err != nil {
		t.Fatalf("OpenChapter(a): %v", err)
	}
	if _, err := env.e.Edit("text of chapter a", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if _, err := env.e.OpenChapter(ctx, b.ID); err != nil {
		t.Fatalf("OpenChapter(b): %v", err)
	}
	if _, err := env.e.Edit("chapter b", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// Switching back waits for the background save of a.
	got, err := env.e.OpenChapter(ctx, a.ID)
	if err != nil {
		t.Fatalf("OpenChapter(a again): %v", err)
	}
	if got.Text != "text of chapter a" {
		t.Fatalf("expected saved text of a; got %q", got.Text)
	}
	if err := env.e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	chB, err := env.store.LoadChapter(ctx, env.path, b.ID)
	if err != nil || chB.Text != "chapter b" {
		t.Fatalf("expected b saved on switch; got %q, %v", chB.Text, err)
	}
}

func TestSaveFailure_LeavesBufferDirty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var fb *failingBackend
	env := newTestEngine(t, func(s *store.Store) Backend {
		fb = &failingBackend{Store: s}
		return fb
	}, Options{})
	n := mustChapter(t, env.e, "Fragile")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	fb.saveErr = errors.New("disk full")
	if _, err := env.e.Edit("unsaved words", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := env.e.Flush(ctx); err == nil {
		t.Fatalf("expected Flush error")
	}
	if !env.e.SessionState().IsDirty {
		t.Fatalf("failed save must leave the buffer dirty")
	}
	if _, err := env.e.LastSave(); err == nil || err.Error() != "disk full" {
		t.Fatalf("expected last save error; got %v", err)
	}

	fb.saveErr = nil
	if err := env.e.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if env.e.SessionState().IsDirty {
		t.Fatalf("expected clean buffer after successful save")
	}
	if _, err := env.e.LastSave(); err != nil {
		t.Fatalf("expected error cleared; got %v", err)
	}
}

func TestRenameNode_SyncsBufferAndFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Old")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if err := env.e.RenameNode(ctx, n.ID, "  New  "); err != nil {
		t.Fatalf("RenameNode: %v", err)
	}
	if ch, _ := env.e.Active(); ch.Title != "New" {
		t.Fatalf("expected active title New; got %q", ch.Title)
	}
	ch, err := env.store.LoadChapter(ctx, env.path, n.ID)
	if err != nil || ch.Title != "New" {
		t.Fatalf("expected file title New; got %q, %v", ch.Title, err)
	}
	if err := env.e.RenameNode(ctx, n.ID, " "); !errors.Is(err, mutate.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle; got %v", err)
	}
}

func TestRemoveNode_ClearsActiveChapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	part, err := env.e.AddNode(ctx, model.NodeKindPart, "Part", "")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	n, err := env.e.CreateChapter(ctx, "Inside", part.ID)
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("doomed text", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	removed, err := env.e.RemoveNode(ctx, part.ID)
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected part and chapter removed; got %v", removed)
	}
	if _, ok := env.e.Active(); ok {
		t.Fatalf("expected no active chapter")
	}
	if _, err := os.Stat(filepath.Join(env.path, "chapters", n.ID+".md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected chapter file deleted; got %v", err)
	}
	if rep := mutate.Validate(env.e.Structure()); rep.HasErrors() {
		t.Fatalf("tree invalid after remove: %+v", rep.Issues)
	}
}

func TestSetStatus_WritesFrontMatter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Status")
	next, err := env.e.CycleStatus(ctx, n.ID)
	if err != nil || next != model.StatusRevised {
		t.Fatalf("CycleStatus = %q, %v", next, err)
	}
	if err := env.e.SetMood(ctx, n.ID, "tense"); err != nil {
		t.Fatalf("SetMood: %v", err)
	}
	ch, err := env.store.LoadChapter(ctx, env.path, n.ID)
	if err != nil {
		t.Fatalf("LoadChapter: %v", err)
	}
	if ch.Status != model.StatusRevised || ch.Mood == nil || *ch.Mood != "tense" {
		t.Fatalf("unexpected front matter: %+v", ch)
	}
	if err := env.e.SetStatus(ctx, n.ID, "bogus"); !errors.Is(err, mutate.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus; got %v", err)
	}
}

func TestSearch_SeesUnsavedBuffer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	a := mustChapter(t, env.e, "A")
	b := mustChapter(t, env.e, "B")
	if err := env.store.SaveChapter(ctx, env.path, b.ID, "a wolf on disk"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if _, err := env.e.OpenChapter(ctx, a.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("line one\nthe Wolf in memory", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	res, err := env.e.Search(ctx, "wolf", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 || res[0].ChapterID != a.ID || res[1].ChapterID != b.ID {
		t.Fatalf("unexpected results: %+v", res)
	}
	if m := res[0].Matches[0]; m.Line != 2 || m.Start != 4 || m.End != 8 {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestSearchAndExport_IgnoreFrontMatter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	dawn := mustChapter(t, env.e, "Act I --- Dawn")
	plain := mustChapter(t, env.e, "Plain")
	if err := env.store.SaveChapter(ctx, env.path, dawn.ID, "It began."); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if err := env.store.SaveChapter(ctx, env.path, plain.ID, "\n\nthe wolf"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}

	if res, err := env.e.Search(ctx, "draft", search.Options{}); err != nil || len(res) != 0 {
		t.Fatalf("front matter must not match: %+v, %v", res, err)
	}

	wolfLine := func() int {
		t.Helper()
		res, err := env.e.Search(ctx, "wolf", search.Options{})
		if err != nil || len(res) != 1 {
			t.Fatalf("Search(wolf) = %+v, %v", res, err)
		}
		return res[0].Matches[0].Line
	}
	if got := wolfLine(); got != 3 {
		t.Fatalf("stored chapter: wolf on line %d, want 3", got)
	}
	if _, err := env.e.OpenChapter(ctx, plain.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if got := wolfLine(); got != 3 {
		t.Fatalf("open chapter: wolf on line %d, want 3", got)
	}

	if _, err := env.e.Edit("---\nprologue wolf\n---\nbody", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got := wolfLine(); got != 2 {
		t.Fatalf("scene break buffer: wolf on line %d, want 2", got)
	}

	md, err := env.e.Render(ctx, export.FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(md, "status: draft") || strings.Contains(md, "word_count") {
		t.Fatalf("front matter leaked into export:\n%s", md)
	}
	if !strings.Contains(md, "It began.") || !strings.Contains(md, "prologue wolf") {
		t.Fatalf("missing chapter text:\n%s", md)
	}
}

func TestReplaceAll_IsOneEdit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Names")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("Anna met anna.", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	spans, err := env.e.Find("anna", search.Options{})
	if err != nil || len(spans) != 2 {
		t.Fatalf("Find = %v, %v", spans, err)
	}
	count, err := env.e.ReplaceAll("anna", "Mara", search.Options{})
	if err != nil || count != 2 {
		t.Fatalf("ReplaceAll = %d, %v", count, err)
	}
	if ch, _ := env.e.Active(); ch.Text != "Mara met Mara." {
		t.Fatalf("unexpected text: %q", ch.Text)
	}
}

func TestPalimpsest_RecordRestoreAndPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Drafty")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("alpha beta gamma", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	res, err := env.e.Edit("alpha gamma", -1)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.Fragment == nil || res.Fragment.Text != "beta " || res.Fragment.Position != 6 {
		t.Fatalf("expected fragment %q at 6; got %+v", "beta ", res.Fragment)
	}
	if err := env.e.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Fragments survive a reopen through the index.
	ix, err := store.OpenIndex(ctx, env.path)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	frags, err := ix.LoadFragments(ctx)
	_ = ix.Close()
	if err != nil || len(frags) != 1 {
		t.Fatalf("expected one stored fragment; got %v, %v", frags, err)
	}

	got, err := env.e.RestoreFragment(ctx, res.Fragment.ID)
	if err != nil {
		t.Fatalf("RestoreFragment: %v", err)
	}
	if got.ID != res.Fragment.ID {
		t.Fatalf("unexpected restored fragment: %+v", got)
	}
	if ch, _ := env.e.Active(); ch.Text != "alpha beta gamma" {
		t.Fatalf("expected restored text; got %q", ch.Text)
	}
	if len(env.e.Fragments(n.ID)) != 0 {
		t.Fatalf("restored fragment must be removed")
	}
	if _, err := env.e.RestoreFragment(ctx, res.Fragment.ID); err == nil {
		t.Fatalf("expected error restoring twice")
	}
}

func TestImportAndExport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	segs := importer.Split("# One\nfirst chapter text\n# Two\nsecond one", importer.StrategyHeading)
	nodes, err := env.e.Import(ctx, segs, "")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Title != "One" || nodes[0].WordCount != 3 {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	st := env.e.Structure()
	if ids := st.ChapterIDs(); len(ids) != 2 || ids[0] != nodes[0].ID {
		t.Fatalf("unexpected chapter order: %v", ids)
	}
	if st.TotalWordCount() != 5 {
		t.Fatalf("expected 5 words; got %d", st.TotalWordCount())
	}

	out := filepath.Join(t.TempDir(), "book.md")
	res, err := env.e.Export(ctx, export.FormatMarkdown, out, export.WriteOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	b, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(b), "## One\n\nfirst chapter text") {
		t.Fatalf("unexpected export:\n%s", b)
	}
	snaps, err := env.e.Snapshots(ctx)
	if err != nil || len(snaps) != 1 || snaps[0].Name != "export" {
		t.Fatalf("expected export snapshot; got %+v, %v", snaps, err)
	}

	if got := env.e.DefaultExportPath(export.FormatHTML); got != filepath.Join(env.path, "exports", "Test Book.html") {
		t.Fatalf("unexpected default export path: %s", got)
	}
}

func TestSave_TakesManualSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEngine(t, nil, Options{})
	n := mustChapter(t, env.e, "Snap")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("kept forever", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	snap, err := env.e.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snap.Name != "manual" {
		t.Fatalf("expected manual snapshot; got %+v", snap)
	}
	raw, err := os.ReadFile(filepath.Join(env.path, "snapshots", snap.File))
	if err != nil || !strings.Contains(string(raw), "kept forever") {
		t.Fatalf("expected chapter text in snapshot; err=%v", err)
	}
}

func TestStats_StreakAndTotals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	env := newTestEngine(t, nil, Options{Now: func() time.Time { return now }})

	n := mustChapter(t, env.e, "Daily")
	if _, err := env.e.OpenChapter(ctx, n.ID); err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if _, err := env.e.Edit("one two three", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	// Deleting words never reduces the tally.
	if _, err := env.e.Edit("one", -1); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := env.e.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ix, err := store.OpenIndex(ctx, env.path)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	for day, words := range map[string]int{"2026-06-09": 200, "2026-06-08": 50, "2026-06-06": 10} {
		if err := ix.AddWritingWords(ctx, day, words); err != nil {
			t.Fatalf("AddWritingWords: %v", err)
		}
	}
	_ = ix.Close()

	stats, err := env.e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Streak != 3 || stats.ActiveDays != 4 || stats.Total != 263 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
