package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quillborn-cli/internal/model"
)

const snapshotTimeLayout = "2006-01-02T15-04-05"

type snapshotFile struct {
	Timestamp time.Time                  `json:"timestamp"`
	Name      string                     `json:"name"`
	Metadata  model.ProjectMetadata      `json:"metadata"`
	Structure *model.ManuscriptStructure `json:"structure"`
	Chapters  map[string]string          `json:"chapters,omitempty"`
}

func snapshotName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "snapshot"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// CreateSnapshot writes the structure, metadata and every chapter file to
// snapshots/<timestamp>-<name>.json. Snapshots are append-only.
func (s *Store) CreateSnapshot(ctx context.Context, projectPath, name string) (model.Snapshot, error) {
	p, err := s.OpenProject(ctx, projectPath)
	if err != nil {
		return model.Snapshot{}, err
	}
	chapters := map[string]string{}
	for _, id := range p.Structure.ChapterIDs() {
		raw, err := s.ReadChapterRaw(ctx, projectPath, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return model.Snapshot{}, err
		}
		chapters[id] = raw
	}

	now := s.now().UTC()
	name = snapshotName(name)
	snap := snapshotFile{
		Timestamp: now,
		Name:      name,
		Metadata:  p.Metadata,
		Structure: p.Structure,
		Chapters:  chapters,
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return model.Snapshot{}, err
	}

	dir := filepath.Join(projectPath, snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Snapshot{}, err
	}
	base := now.Format(snapshotTimeLayout) + "-" + name
	file := base + ".json"
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, file)); errors.Is(err, os.ErrNotExist) {
			break
		}
		file = fmt.Sprintf("%s-%d.json", base, i)
	}
	if err := atomicWriteFile(dir, "snapshot.*.tmp", filepath.Join(dir, file), b, 0o644); err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{Name: name, File: file, CreatedAt: now}, nil
}

// ListSnapshots returns snapshots newest first. Files that do not parse are skipped.
func (s *Store) ListSnapshots(_ context.Context, projectPath string) ([]model.Snapshot, error) {
	dir := filepath.Join(projectPath, snapshotsDir)
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []model.Snapshot
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var hdr struct {
			Timestamp time.Time `json:"timestamp"`
			Name      string    `json:"name"`
		}
		if err := json.Unmarshal(b, &hdr); err != nil {
			continue
		}
		out = append(out, model.Snapshot{Name: hdr.Name, File: e.Name(), CreatedAt: hdr.Timestamp.UTC()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].File > out[j].File
	})
	return out, nil
}
