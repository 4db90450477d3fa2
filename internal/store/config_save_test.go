package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSaveConfig_ConcurrentWriters_DoesNotCorruptConfig(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("QUILLBORN_CONFIG_DIR", cfgDir)

	seed := &GlobalConfig{CurrentProject: "/tmp/seed.qb", DailyTarget: 500}
	if err := SaveConfig(seed); err != nil {
		t.Fatalf("SaveConfig(seed): %v", err)
	}

	const n = 32
	errCh := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			cfg, err := LoadConfig()
			if err != nil {
				errCh <- err
				return
			}
			cfg.TouchRecent(fmt.Sprintf("/tmp/p-%d.qb", i), fmt.Sprintf("P%d", i), time.Now())
			if err := SaveConfig(cfg); err != nil {
				errCh <- err
				return
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent SaveConfig: %v", err)
	}
	if t.Failed() {
		return
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config.json: %v", err)
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("config.json corrupted/unparseable: %v\nraw:\n%s", err, string(raw))
	}

	ents, err := os.ReadDir(cfgDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range ents {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(cfgDir, "config.json.bak")); err != nil {
		t.Fatalf("expected config.json.bak: %v", err)
	}
}

func TestGlobalConfig_Defaults(t *testing.T) {
	t.Parallel()

	var cfg *GlobalConfig
	if cfg.DailyTargetOrDefault() != DefaultDailyTarget || cfg.AutosaveDebounce() != 0 || cfg.PreviewStyle() != "" {
		t.Fatalf("nil config should yield defaults")
	}
	cfg = &GlobalConfig{DailyTarget: 250, AutosaveMillis: 800, TUI: &TUIConfig{PreviewStyle: " light "}}
	if cfg.DailyTargetOrDefault() != 250 || cfg.AutosaveDebounce() != 800*time.Millisecond || cfg.PreviewStyle() != "light" {
		t.Fatalf("unexpected values: %+v", cfg)
	}
}

func TestGlobalConfig_TouchRecentIsMRU(t *testing.T) {
	t.Parallel()

	cfg := &GlobalConfig{}
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxRecentProjects+3; i++ {
		cfg.TouchRecent(fmt.Sprintf("/p/%d.qb", i), "", now)
	}
	cfg.TouchRecent("/p/5.qb", "Five", now)

	if len(cfg.RecentProjects) != maxRecentProjects {
		t.Fatalf("expected %d entries; got %d", maxRecentProjects, len(cfg.RecentProjects))
	}
	if cfg.RecentProjects[0].Path != "/p/5.qb" || cfg.RecentProjects[0].Title != "Five" || cfg.CurrentProject != "/p/5.qb" {
		t.Fatalf("expected /p/5.qb first; got %+v", cfg.RecentProjects[0])
	}
	seen := map[string]bool{}
	for _, r := range cfg.RecentProjects {
		if seen[r.Path] {
			t.Fatalf("duplicate entry %s", r.Path)
		}
		seen[r.Path] = true
	}
}

func TestGlobalConfig_ForgetMissing(t *testing.T) {
	t.Parallel()

	live := t.TempDir()
	if err := os.WriteFile(filepath.Join(live, manuscriptFile), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gone := filepath.Join(t.TempDir(), "gone.qb")

	cfg := &GlobalConfig{
		CurrentProject: gone,
		RecentProjects: []RecentProject{{Path: gone}, {Path: live}},
	}
	if n := cfg.ForgetMissing(); n != 1 {
		t.Fatalf("expected 1 removed; got %d", n)
	}
	if len(cfg.RecentProjects) != 1 || cfg.RecentProjects[0].Path != live || cfg.CurrentProject != "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
