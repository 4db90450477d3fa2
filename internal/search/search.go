package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"quillborn-cli/internal/frontmatter"
	"quillborn-cli/internal/model"
)

// DefaultLimit caps the matches reported per chapter.
const DefaultLimit = 100

var ErrInvalidPattern = errors.New("invalid search pattern")

type Options struct {
	CaseSensitive bool
	Regex         bool
	// Limit is the per-chapter match cap; <= 0 means DefaultLimit.
	Limit int
}

// ChapterSource returns the stored representation of a chapter (front matter included).
type ChapterSource interface {
	ReadChapterRaw(ctx context.Context, chapterID string) (string, error)
}

// BodySource is implemented by sources that already hold chapter text without front matter,
// such as an open editor buffer.
type BodySource interface {
	ReadChapterBody(ctx context.Context, chapterID string) (string, error)
}

// ReadBody returns the text of a chapter with its front matter removed.
func ReadBody(ctx context.Context, src ChapterSource, chapterID string) (string, error) {
	if b, ok := src.(BodySource); ok {
		return b.ReadChapterBody(ctx, chapterID)
	}
	raw, err := src.ReadChapterRaw(ctx, chapterID)
	if err != nil {
		return "", err
	}
	return frontmatter.Strip(strings.ReplaceAll(raw, "\r\n", "\n")), nil
}

// Span is a match inside a single text, in character offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Compile builds the matcher for query. Without Regex the query is matched literally.
func Compile(query string, opt Options) (*regexp.Regexp, error) {
	pattern := query
	if !opt.Regex {
		pattern = regexp.QuoteMeta(query)
	}
	if !opt.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// Manuscript searches every chapter of st in tree order. Chapters the source cannot read are
// skipped, and an invalid pattern yields no results. Only context cancellation is returned.
func Manuscript(ctx context.Context, st *model.ManuscriptStructure, src ChapterSource, query string, opt Options) ([]model.SearchResult, error) {
	out := []model.SearchResult{}
	if strings.TrimSpace(query) == "" || st == nil || src == nil {
		return out, nil
	}
	re, err := Compile(query, opt)
	if err != nil {
		return out, nil
	}
	limit := opt.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	for _, id := range st.ChapterIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := ReadBody(ctx, src, id)
		if err != nil {
			continue
		}
		matches := matchLines(re, text, limit)
		if len(matches) == 0 {
			continue
		}
		title := id
		if n, ok := st.FindNode(id); ok {
			title = n.Title
		}
		out = append(out, model.SearchResult{ChapterID: id, ChapterTitle: title, Matches: matches})
	}
	return out, nil
}

func matchLines(re *regexp.Regexp, text string, limit int) []model.SearchMatch {
	var out []model.SearchMatch
	for i, line := range strings.Split(text, "\n") {
		for _, loc := range re.FindAllStringIndex(line, -1) {
			if loc[0] == loc[1] {
				continue
			}
			out = append(out, model.SearchMatch{
				Line:  i + 1,
				Text:  line,
				Start: utf8.RuneCountInString(line[:loc[0]]),
				End:   utf8.RuneCountInString(line[:loc[1]]),
			})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// Find returns every non-empty match of query in text.
func Find(text, query string, opt Options) []Span {
	out := []Span{}
	if query == "" {
		return out
	}
	re, err := Compile(query, opt)
	if err != nil {
		return out
	}
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		out = append(out, Span{
			Start: utf8.RuneCountInString(text[:loc[0]]),
			End:   utf8.RuneCountInString(text[:loc[1]]),
		})
	}
	return out
}

// ReplaceAll substitutes every match and reports how many were replaced. In regex mode the
// replacement may reference groups as $1 or ${name}.
func ReplaceAll(text, query, replacement string, opt Options) (string, int) {
	if query == "" {
		return text, 0
	}
	re, err := Compile(query, opt)
	if err != nil {
		return text, 0
	}
	var b strings.Builder
	last, n := 0, 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		b.WriteString(text[last:loc[0]])
		if opt.Regex {
			b.Write(re.ExpandString(nil, replacement, text, loc))
		} else {
			b.WriteString(replacement)
		}
		last = loc[1]
		n++
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}
