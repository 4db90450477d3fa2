package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"quillborn-cli/internal/export"
	"quillborn-cli/internal/importer"
	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
	"quillborn-cli/internal/search"
	"quillborn-cli/internal/session"
)

// overlaySource serves the active chapter from the in-memory buffer and everything else from the
// backend, so searches and exports see unsaved edits.
type overlaySource struct {
	e      *Engine
	active model.ChapterContent
	ok     bool
}

func (e *Engine) source() overlaySource {
	ch, ok := e.session.Active()
	return overlaySource{e: e, active: ch, ok: ok}
}

func (s overlaySource) ReadChapterRaw(ctx context.Context, id string) (string, error) {
	return s.e.backend.ReadChapterRaw(ctx, s.e.path, id)
}

// ReadChapterBody serves the buffer as is; only stored files carry front matter.
func (s overlaySource) ReadChapterBody(ctx context.Context, id string) (string, error) {
	if s.ok && s.active.ID == id {
		return s.active.Text, nil
	}
	return search.ReadBody(ctx, fileSource{s.e}, id)
}

type fileSource struct{ e *Engine }

func (f fileSource) ReadChapterRaw(ctx context.Context, id string) (string, error) {
	return f.e.backend.ReadChapterRaw(ctx, f.e.path, id)
}

// Search runs a cross-chapter search over the current tree.
func (e *Engine) Search(ctx context.Context, query string, opt search.Options) ([]model.SearchResult, error) {
	return search.Manuscript(ctx, e.Structure(), e.source(), query, opt)
}

// Find returns the matches of query in the active chapter.
func (e *Engine) Find(query string, opt search.Options) ([]search.Span, error) {
	ch, ok := e.session.Active()
	if !ok {
		return nil, ErrNoActiveChapter
	}
	return search.Find(ch.Text, query, opt), nil
}

// ReplaceAll replaces every match in the active chapter as a single edit.
func (e *Engine) ReplaceAll(query, replacement string, opt search.Options) (int, error) {
	ch, ok := e.session.Active()
	if !ok {
		return 0, ErrNoActiveChapter
	}
	out, n := search.ReplaceAll(ch.Text, query, replacement, opt)
	if n == 0 {
		return 0, nil
	}
	if _, err := e.Edit(out, -1); err != nil {
		return 0, err
	}
	return n, nil
}

// Fragments lists palimpsest fragments of chapterID, or of every chapter when empty.
func (e *Engine) Fragments(chapterID string) []model.PalimpsestFragment {
	return e.palimpsest.Fragments(strings.TrimSpace(chapterID))
}

// RestoreFragment re-inserts a fragment of the active chapter at its recorded position.
func (e *Engine) RestoreFragment(ctx context.Context, fragmentID string) (model.PalimpsestFragment, error) {
	ch, ok := e.session.Active()
	if !ok {
		return model.PalimpsestFragment{}, ErrNoActiveChapter
	}
	belongs := false
	for _, f := range e.palimpsest.Fragments(ch.ID) {
		if f.ID == fragmentID {
			belongs = true
			break
		}
	}
	if !belongs {
		return model.PalimpsestFragment{}, fmt.Errorf("%s: %w", fragmentID, session.ErrFragmentNotFound)
	}
	text, frag, err := e.palimpsest.Restore(fragmentID, ch.Text)
	if err != nil {
		return model.PalimpsestFragment{}, err
	}
	if _, err := e.Edit(text, frag.Position); err != nil {
		return model.PalimpsestFragment{}, err
	}
	e.persistFragments(ctx)
	return frag, nil
}

// ClearFragments forgets the fragments of chapterID (all chapters when empty).
func (e *Engine) ClearFragments(ctx context.Context, chapterID string) int {
	n := e.palimpsest.Clear(strings.TrimSpace(chapterID))
	if n > 0 {
		e.persistFragments(ctx)
	}
	return n
}

// Import creates one chapter per segment under parentID. Imported text does not count toward
// the writing stats.
func (e *Engine) Import(ctx context.Context, segments []importer.Segment, parentID string) ([]model.ManuscriptNode, error) {
	if len(segments) == 0 {
		return nil, errors.New("nothing to import")
	}
	if err := e.checkParent(parentID); err != nil {
		return nil, err
	}

	nodes := make([]model.ManuscriptNode, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, e.discardChapters(ctx, nodes, err)
		}
		ch, err := e.backend.CreateChapter(ctx, e.path, seg.Title)
		if err != nil {
			return nil, e.discardChapters(ctx, nodes, err)
		}
		node := model.ManuscriptNode{ID: ch.ID, Title: ch.Title, Kind: model.NodeKindChapter, Status: ch.Status}
		nodes = append(nodes, node)
		if err := e.backend.SaveChapter(ctx, e.path, ch.ID, seg.Content); err != nil {
			return nil, e.discardChapters(ctx, nodes, err)
		}
		nodes[len(nodes)-1].WordCount = session.CountWords(seg.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range nodes {
		if err := mutate.AddNode(e.project.Structure, n, parentID); err != nil {
			return nil, err
		}
	}
	return nodes, e.saveStructureLocked()
}

func (e *Engine) discardChapters(ctx context.Context, nodes []model.ManuscriptNode, cause error) error {
	for _, n := range nodes {
		_ = e.backend.DeleteChapter(context.WithoutCancel(ctx), e.path, n.ID)
	}
	return cause
}

// DefaultExportPath is exports/<title>.<ext> inside the project.
func (e *Engine) DefaultExportPath(format export.Format) string {
	e.mu.Lock()
	title := e.project.Metadata.Title
	e.mu.Unlock()
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "manuscript"
	}
	return filepath.Join(e.path, "exports", name+format.Extension())
}

// Export writes the manuscript, unsaved edits included, and takes an "export" snapshot.
func (e *Engine) Export(ctx context.Context, format export.Format, outPath string, opt export.WriteOptions) (export.WriteResult, error) {
	if strings.TrimSpace(outPath) == "" {
		outPath = e.DefaultExportPath(format)
	}
	res, err := export.Write(ctx, e.Project(), e.source(), format, outPath, opt)
	if err != nil {
		return export.WriteResult{}, err
	}
	if _, err := e.Snapshot(ctx, "export"); err != nil {
		e.log.Warn("export snapshot", "err", err)
	}
	return res, nil
}

// Render returns the export document without writing it or taking a snapshot.
func (e *Engine) Render(ctx context.Context, format export.Format) (string, error) {
	p := e.Project()
	sections, err := export.Collect(ctx, p.Structure, e.source())
	if err != nil {
		return "", err
	}
	return export.Render(p.Metadata, sections, format)
}

// Stats summarizes the last year of writing. The streak counts consecutive days with words
// ending today, or yesterday while today is still empty.
func (e *Engine) Stats(ctx context.Context) (model.WritingStats, error) {
	out := model.WritingStats{Days: []model.WritingDay{}}
	if e.index == nil {
		return out, nil
	}
	now := e.now()
	from := now.AddDate(-1, 0, 0).Format(time.DateOnly)
	days, err := e.index.WritingDays(ctx, from, now.Format(time.DateOnly))
	if err != nil {
		return out, err
	}

	byDay := make(map[string]int, len(days))
	for _, d := range days {
		if d.Words <= 0 {
			continue
		}
		out.Days = append(out.Days, d)
		byDay[d.Date] = d.Words
		out.ActiveDays++
		out.Total += d.Words
	}

	day := now
	if byDay[day.Format(time.DateOnly)] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	for byDay[day.Format(time.DateOnly)] > 0 {
		out.Streak++
		day = day.AddDate(0, 0, -1)
	}
	return out, nil
}
