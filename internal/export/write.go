package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/search"
)

type WriteOptions struct {
	Overwrite bool
}

type WriteResult struct {
	Path     string `json:"path"`
	Format   Format `json:"format"`
	Sections int    `json:"sections"`
	Words    int    `json:"words"`
}

// ErrBinaryFormat is returned by Render for formats that only exist as files.
var ErrBinaryFormat = errors.New("binary export format; write it to a file")

// Render produces a text document for format without touching the filesystem.
func Render(meta model.ProjectMetadata, sections []Section, format Format) (string, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(meta, sections), nil
	case FormatText:
		return PlainText(meta, sections), nil
	case FormatHTML:
		return HTML(meta, sections)
	case FormatLaTeX:
		return LaTeX(meta, sections), nil
	case FormatEPUB:
		return "", fmt.Errorf("%s: %w", format, ErrBinaryFormat)
	default:
		return "", errors.New("unsupported export format: " + string(format))
	}
}

// Encode produces the file contents for any format.
func Encode(meta model.ProjectMetadata, sections []Section, format Format) ([]byte, error) {
	if format == FormatEPUB {
		return EPUB(meta, sections)
	}
	doc, err := Render(meta, sections, format)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func Write(ctx context.Context, p model.Project, src search.ChapterSource, format Format, outPath string, opt WriteOptions) (WriteResult, error) {
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		return WriteResult{}, errors.New("missing --out")
	}
	outPath = filepath.Clean(outPath)

	sections, err := Collect(ctx, p.Structure, src)
	if err != nil {
		return WriteResult{}, err
	}
	doc, err := Encode(p.Metadata, sections, format)
	if err != nil {
		return WriteResult{}, err
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WriteResult{}, err
		}
	}
	if err := writeFile(outPath, doc, opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{
		Path:     outPath,
		Format:   format,
		Sections: len(sections),
		Words:    countWords(sections),
	}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
