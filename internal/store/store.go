package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"quillborn-cli/internal/model"
)

const (
	projectExt     = ".qb"
	manuscriptFile = "manuscript.json"
	metadataFile   = "metadata.toml"
	chaptersDir    = "chapters"
	snapshotsDir   = "snapshots"
	exportsDir     = "exports"
	indexDir       = ".quillborn"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrProjectExists = errors.New("project already exists")
)

// Store persists projects as plain directories:
//
//	<title>.qb/
//	  manuscript.json        node tree
//	  metadata.toml          title, author, targets
//	  chapters/<id>.md       YAML front matter + chapter text
//	  snapshots/<ts>-<name>.json
//	  .quillborn/index.sqlite  palimpsest fragments, writing days
//
// A Store holds no per-project state; every call names the project path.
type Store struct {
	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{now: time.Now, newID: uuid.NewString}
}

// DiscoverProject walks up from start looking for a directory holding manuscript.json.
func DiscoverProject(start string) (string, bool) {
	dir := start
	for {
		if st, err := os.Stat(filepath.Join(dir, manuscriptFile)); err == nil && !st.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ProjectDirName returns the directory name used for a new project titled title.
func ProjectDirName(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if strings.TrimSpace(name) == "" {
		name = "Untitled"
	}
	return name + projectExt
}

func (s *Store) CreateProject(_ context.Context, parentDir, title, author string) (model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Project{}, errors.New("missing title")
	}
	path := filepath.Join(parentDir, ProjectDirName(title))
	if _, err := os.Stat(filepath.Join(path, manuscriptFile)); err == nil {
		return model.Project{}, fmt.Errorf("%s: %w", path, ErrProjectExists)
	}
	for _, sub := range []string{chaptersDir, snapshotsDir, exportsDir, indexDir} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o755); err != nil {
			return model.Project{}, err
		}
	}

	now := s.now().UTC()
	rootID := s.newID()
	p := model.Project{
		Path: path,
		Metadata: model.ProjectMetadata{
			Title:      title,
			Author:     strings.TrimSpace(author),
			CreatedAt:  now,
			ModifiedAt: now,
		},
		Structure: &model.ManuscriptStructure{
			Root: rootID,
			Nodes: map[string]*model.ManuscriptNode{
				rootID: {
					ID:       rootID,
					Title:    title,
					Kind:     model.NodeKindBook,
					Children: []string{},
					Status:   model.StatusDraft,
				},
			},
			Order: []string{},
		},
	}
	if err := s.SaveStructure(path, p.Structure); err != nil {
		return model.Project{}, err
	}
	if err := s.SaveMetadata(path, p.Metadata); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

func (s *Store) OpenProject(_ context.Context, path string) (model.Project, error) {
	path = filepath.Clean(path)
	b, err := os.ReadFile(filepath.Join(path, manuscriptFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Project{}, fmt.Errorf("project %s: %w", path, ErrNotFound)
		}
		return model.Project{}, err
	}
	var st model.ManuscriptStructure
	if err := json.Unmarshal(b, &st); err != nil {
		return model.Project{}, fmt.Errorf("parse %s: %w", manuscriptFile, err)
	}
	normalizeStructure(&st)

	meta, err := s.loadMetadata(path)
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{Path: path, Metadata: meta, Structure: &st}, nil
}

func normalizeStructure(st *model.ManuscriptStructure) {
	if st.Nodes == nil {
		st.Nodes = map[string]*model.ManuscriptNode{}
	}
	if st.Order == nil {
		st.Order = []string{}
	}
	for id, n := range st.Nodes {
		if n == nil {
			delete(st.Nodes, id)
			continue
		}
		if n.ID == "" {
			n.ID = id
		}
		if n.Children == nil {
			n.Children = []string{}
		}
		if n.Status == "" {
			n.Status = model.StatusDraft
		}
	}
}

func (s *Store) loadMetadata(path string) (model.ProjectMetadata, error) {
	b, err := os.ReadFile(filepath.Join(path, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			now := s.now().UTC()
			return model.ProjectMetadata{Title: "Untitled", CreatedAt: now, ModifiedAt: now}, nil
		}
		return model.ProjectMetadata{}, err
	}
	var meta model.ProjectMetadata
	if err := toml.Unmarshal(b, &meta); err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return meta, nil
}

func (s *Store) SaveStructure(path string, st *model.ManuscriptStructure) error {
	if st == nil {
		return errors.New("nil structure")
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(path, manuscriptFile+".*.tmp", filepath.Join(path, manuscriptFile), b, 0o644)
}

func (s *Store) SaveMetadata(path string, meta model.ProjectMetadata) error {
	b, err := toml.Marshal(meta)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, metadataFile+".*.tmp", filepath.Join(path, metadataFile), b, 0o644)
}

// Touch stamps the project's modified time.
func (s *Store) Touch(path string, meta *model.ProjectMetadata) error {
	meta.ModifiedAt = s.now().UTC()
	return s.SaveMetadata(path, *meta)
}
