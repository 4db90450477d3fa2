package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quillborn-cli/internal/frontmatter"
	"quillborn-cli/internal/model"
)

// frontMatter is the YAML header of chapters/<id>.md. Times are RFC 3339 strings so files
// written by older releases (quoted timestamps) keep parsing.
type frontMatter struct {
	ID         string  `yaml:"id"`
	Title      string  `yaml:"title"`
	Status     string  `yaml:"status"`
	Mood       *string `yaml:"mood,omitempty"`
	POV        *string `yaml:"pov,omitempty"`
	WordCount  int     `yaml:"word_count"`
	CreatedAt  string  `yaml:"created_at"`
	ModifiedAt string  `yaml:"modified_at"`
}

func chapterPath(projectPath, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid chapter id %q", id)
	}
	return filepath.Join(projectPath, chaptersDir, id+".md"), nil
}

// ParseChapter decodes a stored chapter. Files without front matter are accepted as plain text.
func ParseChapter(id string, raw []byte) (model.ChapterContent, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	ch := model.ChapterContent{ID: id, Title: "Untitled", Status: model.StatusDraft}

	header, body, ok := frontmatter.Split(text)
	if !ok {
		ch.Text = text
		ch.WordCount = len(strings.Fields(text))
		return ch, nil
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return model.ChapterContent{}, fmt.Errorf("chapter %s: front matter: %w", id, err)
	}
	if t := strings.TrimSpace(fm.Title); t != "" {
		ch.Title = t
	}
	if st := model.NodeStatus(strings.ToLower(strings.TrimSpace(fm.Status))); st.Valid() {
		ch.Status = st
	}
	ch.Mood = fm.Mood
	ch.PointOfView = fm.POV
	ch.CreatedAt = parseTime(fm.CreatedAt)
	ch.ModifiedAt = parseTime(fm.ModifiedAt)
	ch.Text = body
	ch.WordCount = len(strings.Fields(body))
	return ch, nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// FormatChapter encodes a chapter for disk: front matter, a blank line, then the text.
func FormatChapter(ch model.ChapterContent) ([]byte, error) {
	fm := frontMatter{
		ID:         ch.ID,
		Title:      ch.Title,
		Status:     string(ch.Status),
		Mood:       ch.Mood,
		POV:        ch.PointOfView,
		WordCount:  len(strings.Fields(ch.Text)),
		CreatedAt:  ch.CreatedAt.UTC().Format(time.RFC3339),
		ModifiedAt: ch.ModifiedAt.UTC().Format(time.RFC3339),
	}
	if fm.Status == "" {
		fm.Status = string(model.StatusDraft)
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(ch.Text)
	return buf.Bytes(), nil
}

func (s *Store) LoadChapter(_ context.Context, projectPath, id string) (model.ChapterContent, error) {
	p, err := chapterPath(projectPath, id)
	if err != nil {
		return model.ChapterContent{}, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.ChapterContent{}, fmt.Errorf("chapter %s: %w", id, ErrNotFound)
		}
		return model.ChapterContent{}, err
	}
	return ParseChapter(id, raw)
}

// ReadChapterRaw returns the chapter file as stored, front matter included.
func (s *Store) ReadChapterRaw(_ context.Context, projectPath, id string) (string, error) {
	p, err := chapterPath(projectPath, id)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("chapter %s: %w", id, ErrNotFound)
		}
		return "", err
	}
	return string(raw), nil
}

func (s *Store) writeChapter(projectPath string, ch model.ChapterContent) error {
	p, err := chapterPath(projectPath, ch.ID)
	if err != nil {
		return err
	}
	b, err := FormatChapter(ch)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, ch.ID+".md.*.tmp", p, b, 0o644)
}

// SaveChapter overwrites the chapter text, keeping its front matter and refreshing the word
// count and modified time. The chapter must have been created first.
func (s *Store) SaveChapter(ctx context.Context, projectPath, id, text string) error {
	ch, err := s.LoadChapter(ctx, projectPath, id)
	if err != nil {
		return err
	}
	ch.Text = text
	ch.ModifiedAt = s.now().UTC()
	return s.writeChapter(projectPath, ch)
}

func (s *Store) CreateChapter(_ context.Context, projectPath, title string) (model.ChapterContent, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	now := s.now().UTC()
	ch := model.ChapterContent{
		ID:         s.newID(),
		Title:      title,
		Status:     model.StatusDraft,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.writeChapter(projectPath, ch); err != nil {
		return model.ChapterContent{}, err
	}
	return ch, nil
}

// RenameChapter updates the stored title. Nodes without a chapter file are ignored.
func (s *Store) RenameChapter(ctx context.Context, projectPath, id, title string) error {
	return s.updateChapterMeta(ctx, projectPath, id, func(ch *model.ChapterContent) {
		ch.Title = strings.TrimSpace(title)
	})
}

// UpdateChapterMeta rewrites status, mood and point of view in the front matter.
func (s *Store) UpdateChapterMeta(ctx context.Context, projectPath, id string, status model.NodeStatus, mood, pov *string) error {
	return s.updateChapterMeta(ctx, projectPath, id, func(ch *model.ChapterContent) {
		if status != "" {
			ch.Status = status
		}
		ch.Mood = mood
		ch.PointOfView = pov
	})
}

func (s *Store) updateChapterMeta(ctx context.Context, projectPath, id string, fn func(ch *model.ChapterContent)) error {
	ch, err := s.LoadChapter(ctx, projectPath, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	fn(&ch)
	ch.ModifiedAt = s.now().UTC()
	return s.writeChapter(projectPath, ch)
}

func (s *Store) DeleteChapter(_ context.Context, projectPath, id string) error {
	p, err := chapterPath(projectPath, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
