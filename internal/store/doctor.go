package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"quillborn-cli/internal/mutate"
)

// DoctorProject checks a project directory: the node tree invariants, chapter files that the
// tree references but are missing, chapter files nothing references, and front matter that no
// longer parses.
func (s *Store) DoctorProject(ctx context.Context, projectPath string) (mutate.Report, error) {
	p, err := s.OpenProject(ctx, projectPath)
	if err != nil {
		return mutate.Report{}, err
	}
	rep := mutate.Validate(p.Structure)

	referenced := map[string]bool{}
	for _, id := range p.Structure.ChapterIDs() {
		referenced[id] = true
		raw, err := s.ReadChapterRaw(ctx, projectPath, id)
		if err != nil {
			rep.Issues = append(rep.Issues, mutate.Issue{
				Level:   mutate.IssueLevelWarn,
				Code:    "chapter_file_missing",
				Message: "chapter has no file yet; it exports empty",
				NodeID:  id,
			})
			continue
		}
		ch, err := ParseChapter(id, []byte(raw))
		if err != nil {
			rep.Issues = append(rep.Issues, mutate.Issue{
				Level:   mutate.IssueLevelError,
				Code:    "chapter_front_matter_invalid",
				Message: err.Error(),
				NodeID:  id,
			})
			continue
		}
		if n, ok := p.Structure.FindNode(id); ok && n.WordCount != ch.WordCount {
			rep.Issues = append(rep.Issues, mutate.Issue{
				Level:   mutate.IssueLevelWarn,
				Code:    "word_count_stale",
				Message: "tree word count differs from chapter file",
				NodeID:  id,
			})
		}
	}

	ents, err := os.ReadDir(filepath.Join(projectPath, chaptersDir))
	if err != nil && !os.IsNotExist(err) {
		return rep, err
	}
	var orphans []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		if !referenced[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		rep.Issues = append(rep.Issues, mutate.Issue{
			Level:   mutate.IssueLevelWarn,
			Code:    "chapter_file_orphaned",
			Message: "chapter file is not referenced by the tree",
			NodeID:  id,
		})
	}
	return rep, nil
}

// RepairWordCounts resets every chapter node's word count from its file and saves the tree.
func (s *Store) RepairWordCounts(ctx context.Context, projectPath string) (int, error) {
	p, err := s.OpenProject(ctx, projectPath)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range p.Structure.ChapterIDs() {
		ch, err := s.LoadChapter(ctx, projectPath, id)
		if err != nil {
			continue
		}
		n, _ := p.Structure.FindNode(id)
		if n.WordCount != ch.WordCount {
			if err := mutate.UpdateWordCount(p.Structure, id, ch.WordCount); err != nil {
				return fixed, err
			}
			fixed++
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	return fixed, s.SaveStructure(projectPath, p.Structure)
}
