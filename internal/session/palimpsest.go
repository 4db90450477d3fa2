package session

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"quillborn-cli/internal/model"

	"github.com/google/uuid"
)

var ErrFragmentNotFound = errors.New("palimpsest fragment not found")

// DeletedSpan returns the character offset and text removed from before to produce after.
// The common suffix is never allowed to overlap the common prefix. after must be shorter.
func DeletedSpan(before, after string) (int, string) {
	b := []rune(before)
	a := []rune(after)
	if len(a) >= len(b) {
		return 0, ""
	}
	p := 0
	for p < len(a) && b[p] == a[p] {
		p++
	}
	s := 0
	for s < len(a)-p && b[len(b)-1-s] == a[len(a)-1-s] {
		s++
	}
	return p, string(b[p : len(b)-s])
}

// Palimpsest records spans deleted from the active chapter so they can be restored later.
// Fragments outlive chapter switches; only Restore and Clear remove them.
type Palimpsest struct {
	mu sync.Mutex

	chapterID string
	baseline  string
	fragments []model.PalimpsestFragment

	newID func() string
	now   func() time.Time
}

func NewPalimpsest() *Palimpsest {
	return &Palimpsest{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Reset sets the comparison baseline, typically when a chapter is opened.
func (p *Palimpsest) Reset(chapterID, baseline string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chapterID = chapterID
	p.baseline = baseline
}

// Observe compares newText with the previous text of the chapter and records a fragment when
// more than one character disappeared. cursor < 0 means "use the start of the deleted span".
func (p *Palimpsest) Observe(newText string, cursor int) (model.PalimpsestFragment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.baseline
	p.baseline = newText
	if p.chapterID == "" || utf8.RuneCountInString(newText) >= utf8.RuneCountInString(prev) {
		return model.PalimpsestFragment{}, false
	}
	pos, deleted := DeletedSpan(prev, newText)
	if utf8.RuneCountInString(deleted) <= 1 {
		return model.PalimpsestFragment{}, false
	}
	if cursor < 0 {
		cursor = pos
	}
	frag := model.PalimpsestFragment{
		ID:        p.newID(),
		ChapterID: p.chapterID,
		Text:      deleted,
		Position:  cursor,
		DeletedAt: p.now().UTC(),
	}
	p.fragments = append(p.fragments, frag)
	return frag, true
}

// Fragments returns the chapter's fragments in deletion order (all fragments when chapterID is empty).
func (p *Palimpsest) Fragments(chapterID string) []model.PalimpsestFragment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []model.PalimpsestFragment{}
	for _, f := range p.fragments {
		if chapterID == "" || f.ChapterID == chapterID {
			out = append(out, f)
		}
	}
	return out
}

// Restore re-inserts the fragment into currentText and forgets it.
func (p *Palimpsest) Restore(fragmentID, currentText string) (string, model.PalimpsestFragment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := -1
	for i := range p.fragments {
		if p.fragments[i].ID == fragmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return currentText, model.PalimpsestFragment{}, ErrFragmentNotFound
	}
	frag := p.fragments[idx]
	p.fragments = append(p.fragments[:idx], p.fragments[idx+1:]...)

	runes := []rune(currentText)
	pos := frag.Position
	if pos > len(runes) {
		pos = len(runes)
	}
	if pos < 0 {
		pos = 0
	}
	return string(runes[:pos]) + frag.Text + string(runes[pos:]), frag, nil
}

// Clear drops the chapter's fragments (every fragment when chapterID is empty) and returns how many.
func (p *Palimpsest) Clear(chapterID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chapterID == "" {
		n := len(p.fragments)
		p.fragments = nil
		return n
	}
	kept := p.fragments[:0]
	n := 0
	for _, f := range p.fragments {
		if f.ChapterID == chapterID {
			n++
			continue
		}
		kept = append(kept, f)
	}
	p.fragments = kept
	return n
}

// Load merges previously persisted fragments, skipping ids already known.
func (p *Palimpsest) Load(frags []model.PalimpsestFragment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	known := make(map[string]bool, len(p.fragments))
	for _, f := range p.fragments {
		known[f.ID] = true
	}
	for _, f := range frags {
		if known[f.ID] {
			continue
		}
		known[f.ID] = true
		p.fragments = append(p.fragments, f)
	}
}
