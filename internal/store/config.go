package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultDailyTarget = 1000
	maxRecentProjects  = 10
)

type GlobalConfig struct {
	CurrentProject string `json:"currentProject,omitempty"`

	// RecentProjects is most-recently-opened first.
	RecentProjects []RecentProject `json:"recentProjects,omitempty"`

	// DailyTarget is the words-per-day goal used by `quillborn stats`.
	DailyTarget int `json:"dailyTarget,omitempty"`

	// AutosaveMillis overrides the autosave quiet period.
	AutosaveMillis int `json:"autosaveMillis,omitempty"`

	// TUI holds optional preferences for the interactive editor.
	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// PreviewStyle is a glamour standard style name ("dark", "light", "notty", ...).
	PreviewStyle string `json:"previewStyle,omitempty"`
}

type RecentProject struct {
	Path       string `json:"path"`
	Title      string `json:"title,omitempty"`
	LastOpened string `json:"lastOpened,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.quillborn).
	if v := strings.TrimSpace(os.Getenv("QUILLBORN_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quillborn"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep the previous config around; recovering from a bad write should not need a backup tool.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}

	// Unique temp names: the CLI and the editor may write config concurrently.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

func (c *GlobalConfig) DailyTargetOrDefault() int {
	if c == nil || c.DailyTarget <= 0 {
		return DefaultDailyTarget
	}
	return c.DailyTarget
}

// AutosaveDebounce returns the configured quiet period, or 0 for the scheduler default.
func (c *GlobalConfig) AutosaveDebounce() time.Duration {
	if c == nil || c.AutosaveMillis <= 0 {
		return 0
	}
	return time.Duration(c.AutosaveMillis) * time.Millisecond
}

func (c *GlobalConfig) PreviewStyle() string {
	if c == nil || c.TUI == nil {
		return ""
	}
	return strings.TrimSpace(c.TUI.PreviewStyle)
}

// TouchRecent records path as the current project and moves it to the front of the MRU list.
func (c *GlobalConfig) TouchRecent(path, title string, now time.Time) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return
	}
	c.CurrentProject = path
	kept := []RecentProject{{Path: path, Title: title, LastOpened: now.UTC().Format(time.RFC3339)}}
	for _, r := range c.RecentProjects {
		if filepath.Clean(r.Path) == path {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > maxRecentProjects {
		kept = kept[:maxRecentProjects]
	}
	c.RecentProjects = kept
}

// ForgetMissing drops recent entries whose directory no longer holds a project.
func (c *GlobalConfig) ForgetMissing() int {
	kept := c.RecentProjects[:0]
	n := 0
	for _, r := range c.RecentProjects {
		if _, err := os.Stat(filepath.Join(r.Path, manuscriptFile)); err != nil {
			n++
			continue
		}
		kept = append(kept, r)
	}
	c.RecentProjects = kept
	if n > 0 && c.CurrentProject != "" {
		if _, err := os.Stat(filepath.Join(c.CurrentProject, manuscriptFile)); err != nil {
			c.CurrentProject = ""
		}
	}
	return n
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
