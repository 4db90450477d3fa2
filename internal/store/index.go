package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quillborn-cli/internal/model"

	_ "modernc.org/sqlite"
)

// Index is the per-project SQLite side store (.quillborn/index.sqlite). It holds data that is
// derived from editing sessions rather than the manuscript itself: palimpsest fragments and
// the daily word tally behind `quillborn stats`.
type Index struct {
	db *sql.DB
}

func indexPath(projectPath string) string {
	return filepath.Join(projectPath, indexDir, "index.sqlite")
}

func OpenIndex(ctx context.Context, projectPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Join(projectPath, indexDir), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", indexPath(projectPath))
	if err != nil {
		return nil, err
	}
	// The CLI and the editor may have the same project open.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateIndex(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func migrateIndex(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fragments (
			id TEXT PRIMARY KEY,
			chapter_id TEXT NOT NULL,
			text TEXT NOT NULL,
			position INTEGER NOT NULL,
			deleted_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_chapter ON fragments(chapter_id);`,
		`CREATE TABLE IF NOT EXISTS writing_days (
			day TEXT PRIMARY KEY,
			words INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// SaveFragments replaces every stored fragment with frags.
func (ix *Index) SaveFragments(ctx context.Context, frags []model.PalimpsestFragment) error {
	tx, err := ix.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments`); err != nil {
		return err
	}
	for _, f := range frags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO fragments(id, chapter_id, text, position, deleted_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			f.ID, f.ChapterID, f.Text, f.Position, f.DeletedAt.UTC().UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadFragments returns fragments oldest first.
func (ix *Index) LoadFragments(ctx context.Context) ([]model.PalimpsestFragment, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, chapter_id, text, position, deleted_at_unixms FROM fragments ORDER BY deleted_at_unixms ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PalimpsestFragment
	for rows.Next() {
		var (
			f  model.PalimpsestFragment
			ms int64
		)
		if err := rows.Scan(&f.ID, &f.ChapterID, &f.Text, &f.Position, &ms); err != nil {
			return nil, err
		}
		f.DeletedAt = time.UnixMilli(ms).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddWritingWords adds n words to the tally for day (YYYY-MM-DD). Non-positive n is ignored.
func (ix *Index) AddWritingWords(ctx context.Context, day string, n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return errors.New("invalid day: " + day)
	}
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO writing_days(day, words) VALUES(?, ?)
		 ON CONFLICT(day) DO UPDATE SET words = words + excluded.words`, day, n)
	return err
}

// WritingDays returns the recorded days in [from, to], oldest first. Empty bounds are open.
func (ix *Index) WritingDays(ctx context.Context, from, to string) ([]model.WritingDay, error) {
	q := `SELECT day, words FROM writing_days`
	var (
		conds []string
		args  []any
	)
	if from != "" {
		conds = append(conds, "day >= ?")
		args = append(args, from)
	}
	if to != "" {
		conds = append(conds, "day <= ?")
		args = append(args, to)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY day ASC"

	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WritingDay
	for rows.Next() {
		var d model.WritingDay
		if err := rows.Scan(&d.Date, &d.Words); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (ix *Index) SetMeta(ctx context.Context, k, v string) error {
	_, err := ix.db.ExecContext(ctx, `INSERT OR REPLACE INTO state_meta(k, v) VALUES(?, ?)`, k, v)
	return err
}

// GetMeta returns ("", false, nil) for a missing key.
func (ix *Index) GetMeta(ctx context.Context, k string) (string, bool, error) {
	var v string
	err := ix.db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
