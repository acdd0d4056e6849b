package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
  "telegram": { "token": "123:abc" },
  "logging": { "level": "DEBUG", "console": true },
  "storage": { "driver": "file", "path": "./users.json" },
  "checker": { "concurrency": 2, "pace_min": "700ms" },
  "scheduler": { "schedule": "3h" }
}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Checker.Concurrency != 2 || cfg.Checker.PaceMin != "700ms" {
		t.Fatalf("checker = %+v", cfg.Checker)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Fatal("scheduler should default to enabled")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
logging:
  console: true
storage:
  driver: sqlite
  path: ./fragwatch.db
  busy_timeout: 5s
scheduler:
  enabled: false
  schedule: "0 */3 * * *"
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Scheduler.IsEnabled() {
		t.Fatal("scheduler should be disabled")
	}
	if cfg.Scheduler.Schedule != "0 */3 * * *" {
		t.Fatalf("schedule = %q", cfg.Scheduler.Schedule)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram": {"token": "x"}, "typo_section": {}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	d, err := Duration("x", "750ms", time.Second)
	if err != nil || d != 750*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := Duration("x", "-1s", 0); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := Duration("x", "nope", 0); err == nil {
		t.Fatal("expected error for garbage")
	}
	for _, raw := range []string{"", "  ", "0s"} {
		d, err := Duration("x", raw, 3*time.Hour)
		if err != nil || d != 3*time.Hour {
			t.Fatalf("default for %q: got %v, %v", raw, d, err)
		}
	}
}
