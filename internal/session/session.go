package session

import (
	"strings"
	"sync"
	"time"

	"quillborn-cli/internal/model"
)

// CountWords returns the number of maximal non-whitespace runs in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Session holds the single materialized chapter of an open project.
//
// Every method is non-blocking: typing calls Mutate while the autosave goroutine calls
// MarkClean, and neither waits on I/O while holding the lock.
type Session struct {
	mu sync.Mutex

	active    *model.ChapterContent
	persisted string
	dirty     bool

	sessionWords int
	startedAt    time.Time

	now func() time.Time
}

func New() *Session {
	s := &Session{now: time.Now}
	s.startedAt = s.now()
	return s
}

// Reset starts a new writing session (a project was opened).
func (s *Session) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.persisted = ""
	s.dirty = false
	s.sessionWords = 0
	s.startedAt = now
}

// Open replaces the active chapter. The chapter's text is taken as the last persisted text.
func (s *Session) Open(ch model.ChapterContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.WordCount = CountWords(ch.Text)
	s.active = &ch
	s.persisted = ch.Text
	s.dirty = false
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.persisted = ""
	s.dirty = false
}

// Mutate replaces the active chapter's text. It returns the positive word delta credited to the
// session counter and false when no chapter is active.
func (s *Session) Mutate(newText string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	oldCount := s.active.WordCount
	newCount := CountWords(newText)
	s.active.Text = newText
	s.active.WordCount = newCount
	s.active.ModifiedAt = s.now()
	s.dirty = newText != s.persisted

	delta := newCount - oldCount
	if delta < 0 {
		delta = 0
	}
	s.sessionWords += delta
	return delta, true
}

// MarkClean records savedText as persisted for chapterID. It only affects the buffer when that
// chapter is still active, and the buffer stays dirty if it moved on since the save was issued.
// It reports whether the buffer is clean afterwards.
func (s *Session) MarkClean(chapterID, savedText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != chapterID {
		return false
	}
	s.persisted = savedText
	s.dirty = s.active.Text != savedText
	return !s.dirty
}

// Active returns a copy of the active chapter.
func (s *Session) Active() (model.ChapterContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.ChapterContent{}, false
	}
	return *s.active, true
}

// Dirty returns a copy of the active chapter when it has unsaved edits.
func (s *Session) Dirty() (model.ChapterContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !s.dirty {
		return model.ChapterContent{}, false
	}
	return *s.active, true
}

func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.SessionState{
		IsDirty:          s.dirty,
		SessionWordCount: s.sessionWords,
		SessionStartTime: s.startedAt,
	}
	if s.active != nil {
		st.ActiveChapterID = s.active.ID
	}
	return st
}

// SetTitle keeps the buffer title in step with a tree rename.
func (s *Session) SetTitle(chapterID, title string) bool {
	return s.update(chapterID, func(ch *model.ChapterContent) { ch.Title = title })
}

func (s *Session) SetStatus(chapterID string, status model.NodeStatus) bool {
	return s.update(chapterID, func(ch *model.ChapterContent) { ch.Status = status })
}

func (s *Session) SetMood(chapterID string, mood *string) bool {
	return s.update(chapterID, func(ch *model.ChapterContent) { ch.Mood = mood })
}

func (s *Session) SetPointOfView(chapterID string, pov *string) bool {
	return s.update(chapterID, func(ch *model.ChapterContent) { ch.PointOfView = pov })
}

func (s *Session) update(chapterID string, fn func(ch *model.ChapterContent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != chapterID {
		return false
	}
	fn(s.active)
	return true
}
