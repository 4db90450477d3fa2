package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quillborn-cli/internal/autosave"
	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
	"quillborn-cli/internal/session"
)

var (
	ErrNoActiveChapter = errors.New("no chapter is open")
	ErrNotChapter      = errors.New("node is not a chapter")
)

// Backend is the project persistence the engine needs. *store.Store implements it.
type Backend interface {
	OpenProject(ctx context.Context, path string) (model.Project, error)
	SaveStructure(path string, st *model.ManuscriptStructure) error
	SaveMetadata(path string, meta model.ProjectMetadata) error

	LoadChapter(ctx context.Context, path, id string) (model.ChapterContent, error)
	ReadChapterRaw(ctx context.Context, path, id string) (string, error)
	SaveChapter(ctx context.Context, path, id, text string) error
	CreateChapter(ctx context.Context, path, title string) (model.ChapterContent, error)
	RenameChapter(ctx context.Context, path, id, title string) error
	UpdateChapterMeta(ctx context.Context, path, id string, status model.NodeStatus, mood, pov *string) error
	DeleteChapter(ctx context.Context, path, id string) error

	CreateSnapshot(ctx context.Context, path, name string) (model.Snapshot, error)
	ListSnapshots(ctx context.Context, path string) ([]model.Snapshot, error)
}

// Index is the optional side store for palimpsest fragments and writing stats. *store.Index
// implements it.
type Index interface {
	SaveFragments(ctx context.Context, frags []model.PalimpsestFragment) error
	LoadFragments(ctx context.Context) ([]model.PalimpsestFragment, error)
	AddWritingWords(ctx context.Context, day string, n int) error
	WritingDays(ctx context.Context, from, to string) ([]model.WritingDay, error)
	SetMeta(ctx context.Context, k, v string) error
	GetMeta(ctx context.Context, k string) (string, bool, error)
	Close() error
}

type Options struct {
	// Debounce overrides the autosave quiet period.
	Debounce time.Duration
	// Index may be nil; fragments then live only in memory and Stats is empty.
	Index  Index
	Logger *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// Engine owns one open project: its node tree, the content session of the active chapter,
// the palimpsest tracker and the autosave scheduler.
//
// Lock order: the scheduler's write lock may be held while e.mu is taken (OnSaved), so e.mu
// is never held while calling into the scheduler.
type Engine struct {
	backend Backend
	index   Index
	path    string
	log     *slog.Logger
	now     func() time.Time
	newID   func() string

	session    *session.Session
	palimpsest *session.Palimpsest
	autosave   *autosave.Scheduler

	mu           sync.Mutex
	project      model.Project
	unsavedWords int
	fragsDirty   bool
	lastSavedAt  time.Time
	lastSaveErr  error
	detachedIDs  map[string]bool
}

func Open(ctx context.Context, backend Backend, path string, opt Options) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("nil backend")
	}
	p, err := backend.OpenProject(ctx, path)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		backend:     backend,
		index:       opt.Index,
		path:        p.Path,
		log:         opt.Logger,
		now:         opt.Now,
		newID:       opt.NewID,
		session:     session.New(),
		palimpsest:  session.NewPalimpsest(),
		project:     p,
		detachedIDs: map[string]bool{},
	}
	if e.path == "" {
		e.path = path
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	e.session.Reset(e.now())

	if e.index != nil {
		frags, err := e.index.LoadFragments(ctx)
		if err != nil {
			e.log.Warn("load palimpsest fragments", "err", err)
		} else {
			e.palimpsest.Load(frags)
		}
	}

	e.autosave = autosave.New(autosave.Opts{
		Debounce: opt.Debounce,
		Pending:  e.pendingJob,
		Save: func(ctx context.Context, job autosave.Job) error {
			return e.backend.SaveChapter(ctx, e.path, job.ChapterID, job.Text)
		},
		OnSaved: e.onSaved,
		OnError: e.onSaveError,
		Logger:  e.log,
	})
	return e, nil
}

func (e *Engine) Path() string { return e.path }

// Project returns a copy of the project that callers may read freely.
func (e *Engine) Project() model.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.project
	p.Structure = e.project.Structure.Clone()
	return p
}

func (e *Engine) Structure() *model.ManuscriptStructure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project.Structure.Clone()
}

func (e *Engine) Active() (model.ChapterContent, bool) { return e.session.Active() }

func (e *Engine) SessionState() model.SessionState { return e.session.State() }

// LastSave reports the time of the last successful chapter save and the error of the most
// recent failed one (cleared by the next success).
func (e *Engine) LastSave() (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSavedAt, e.lastSaveErr
}

func (e *Engine) pendingJob() (autosave.Job, bool) {
	ch, ok := e.session.Dirty()
	if !ok {
		return autosave.Job{}, false
	}
	return autosave.Job{ChapterID: ch.ID, Text: ch.Text, WordCount: ch.WordCount}, true
}

// onSaved runs on whichever goroutine performed the save, under the scheduler's write lock.
func (e *Engine) onSaved(job autosave.Job) {
	e.session.MarkClean(job.ChapterID, job.Text)

	e.mu.Lock()
	e.lastSavedAt = e.now()
	e.lastSaveErr = nil
	if err := mutate.UpdateWordCount(e.project.Structure, job.ChapterID, job.WordCount); err == nil {
		if err := e.backend.SaveStructure(e.path, e.project.Structure); err != nil {
			e.log.Warn("save structure", "err", err)
		}
	}
	words := e.unsavedWords
	e.unsavedWords = 0
	saveFrags := e.fragsDirty
	e.fragsDirty = false
	e.mu.Unlock()

	ctx := context.Background()
	if e.index == nil {
		return
	}
	if words > 0 {
		if err := e.index.AddWritingWords(ctx, e.today(), words); err != nil {
			e.log.Warn("record writing words", "err", err)
			e.mu.Lock()
			e.unsavedWords += words
			e.mu.Unlock()
		}
	}
	if saveFrags {
		e.persistFragments(ctx)
	}
}

func (e *Engine) onSaveError(_ autosave.Job, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSaveErr = err
}

func (e *Engine) today() string {
	return e.now().Format(time.DateOnly)
}

func (e *Engine) persistFragments(ctx context.Context) {
	if e.index == nil {
		return
	}
	if err := e.index.SaveFragments(ctx, e.palimpsest.Fragments("")); err != nil {
		e.log.Warn("save palimpsest fragments", "err", err)
		e.mu.Lock()
		e.fragsDirty = true
		e.mu.Unlock()
	}
}

// saveStructureLocked requires e.mu.
func (e *Engine) saveStructureLocked() error {
	return e.backend.SaveStructure(e.path, e.project.Structure)
}

// OpenChapter makes id the active chapter. Unsaved edits to the previous chapter are written in
// the background.
func (e *Engine) OpenChapter(ctx context.Context, id string) (model.ChapterContent, error) {
	id = strings.TrimSpace(id)
	e.mu.Lock()
	n, found := e.project.Structure.FindNode(id)
	var (
		title string
		kind  model.NodeKind
	)
	if found {
		title, kind = n.Title, n.Kind
	}
	e.mu.Unlock()
	if !found {
		return model.ChapterContent{}, mutate.NotFoundError{Kind: "chapter", ID: id}
	}
	if kind != model.NodeKindChapter {
		return model.ChapterContent{}, fmt.Errorf("%s: %w", id, ErrNotChapter)
	}

	if job, dirty := e.pendingJob(); dirty {
		e.mu.Lock()
		e.detachedIDs[job.ChapterID] = true
		e.mu.Unlock()
	}
	e.autosave.Detach()

	e.mu.Lock()
	waitForDetached := e.detachedIDs[id]
	if waitForDetached {
		e.detachedIDs = map[string]bool{}
	}
	e.mu.Unlock()
	if waitForDetached {
		// Reopening a chapter whose background save may still be in flight.
		e.autosave.Wait()
	}

	ch, err := e.backend.LoadChapter(ctx, e.path, id)
	if err != nil {
		return model.ChapterContent{}, err
	}
	ch.Title = title
	e.session.Open(ch)
	e.palimpsest.Reset(ch.ID, ch.Text)
	if e.index != nil {
		if err := e.index.SetMeta(ctx, "last_chapter", id); err != nil {
			e.log.Debug("remember last chapter", "err", err)
		}
	}
	active, _ := e.session.Active()
	return active, nil
}

// LastChapter returns the chapter that was open when the project was last used.
func (e *Engine) LastChapter(ctx context.Context) (string, bool) {
	if e.index == nil {
		return "", false
	}
	id, ok, err := e.index.GetMeta(ctx, "last_chapter")
	if err != nil || !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, found := e.project.Structure.FindNode(id); !found || n.Kind != model.NodeKindChapter {
		return "", false
	}
	return id, true
}

// EditResult describes the effect of one buffer change.
type EditResult struct {
	WordDelta int
	Fragment  *model.PalimpsestFragment
}

// Edit replaces the active chapter's text. It is called on every keystroke and never waits on
// I/O. cursor is the caret position in characters, or -1 when unknown.
func (e *Engine) Edit(newText string, cursor int) (EditResult, error) {
	delta, ok := e.session.Mutate(newText)
	if !ok {
		return EditResult{}, ErrNoActiveChapter
	}
	res := EditResult{WordDelta: delta}
	frag, recorded := e.palimpsest.Observe(newText, cursor)
	if recorded {
		res.Fragment = &frag
	}

	e.mu.Lock()
	e.unsavedWords += delta
	if recorded {
		e.fragsDirty = true
	}
	e.mu.Unlock()

	e.autosave.Notify()
	return res, nil
}

// Flush persists the active chapter now without taking a snapshot.
func (e *Engine) Flush(ctx context.Context) error {
	return e.autosave.Flush(ctx)
}

// Save is the manual save: flush the active chapter, stamp the project and take a "manual"
// snapshot.
func (e *Engine) Save(ctx context.Context) (model.Snapshot, error) {
	if err := e.autosave.Flush(ctx); err != nil {
		return model.Snapshot{}, err
	}
	e.mu.Lock()
	e.project.Metadata.ModifiedAt = e.now().UTC()
	meta := e.project.Metadata
	e.mu.Unlock()
	if err := e.backend.SaveMetadata(e.path, meta); err != nil {
		return model.Snapshot{}, err
	}
	return e.Snapshot(ctx, "manual")
}

func (e *Engine) Snapshot(ctx context.Context, name string) (model.Snapshot, error) {
	return e.backend.CreateSnapshot(ctx, e.path, name)
}

func (e *Engine) Snapshots(ctx context.Context) ([]model.Snapshot, error) {
	return e.backend.ListSnapshots(ctx, e.path)
}

// Close flushes pending edits, waits for background saves and persists fragments.
func (e *Engine) Close(ctx context.Context) error {
	err := e.autosave.Close(ctx)
	e.persistFragments(ctx)
	if e.index != nil {
		if cerr := e.index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
