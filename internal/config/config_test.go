package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultServer(t *testing.T) {
	cfg := DefaultServer()

	if cfg.Cols != 80 || cfg.Rows != 24 {
		t.Errorf("dimensions = %dx%d, want 80x24", cfg.Cols, cfg.Rows)
	}
	if cfg.ScrollbackLines != 10000 {
		t.Errorf("ScrollbackLines = %d, want 10000", cfg.ScrollbackLines)
	}
	if cfg.SyncInterval() != 20*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 20ms", cfg.SyncInterval())
	}
	if cfg.Socket == "" {
		t.Error("Socket should have a default")
	}
	if cfg.ShmName != "" {
		t.Errorf("ShmName = %q, want empty (generated per session)", cfg.ShmName)
	}
}

func TestDefaultSocketPathHonorsRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	want := "/run/user/1000/yetty/server.sock"
	if got := DefaultSocketPath(); got != want {
		t.Errorf("DefaultSocketPath = %q, want %q", got, want)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := DefaultSocketPath(); got != "/tmp/yetty-server.sock" {
		t.Errorf("DefaultSocketPath = %q, want /tmp fallback", got)
	}
}

func TestConfigPathHonorsXDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	want := filepath.Join(tmp, "yetty", "server.yaml")
	if got := ConfigPath(); got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultServer() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte("cols: 132\nshell: /bin/zsh\nsync_interval_ms: 8\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cols != 132 {
		t.Errorf("Cols = %d, want 132", cfg.Cols)
	}
	if cfg.Shell != "/bin/zsh" {
		t.Errorf("Shell = %q", cfg.Shell)
	}
	if cfg.SyncInterval() != 8*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 8ms", cfg.SyncInterval())
	}
	// Unset fields keep their defaults.
	if cfg.Rows != 24 {
		t.Errorf("Rows = %d, want default 24", cfg.Rows)
	}
	if cfg.ScrollbackLines != 10000 {
		t.Errorf("ScrollbackLines = %d, want default 10000", cfg.ScrollbackLines)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("cols: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestNegativeValuesFallBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("cols: -5\nrows: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cols != 80 || cfg.Rows != 24 {
		t.Errorf("dimensions = %dx%d, want defaults", cfg.Cols, cfg.Rows)
	}
}
