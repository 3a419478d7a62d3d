package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Errorf("expected default listen %q, got %q", defaultListen, cfg.Listen)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 perms, got %o", perm)
	}
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ":9000"
timezone: "America/Sao_Paulo"
week_start: "tuesday"
events_source: "https://example.com/events.json"
refresh: "off"
basic_auth:
  username: "me"
  password_hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.WeekStart != "sunday" {
		t.Errorf("unknown week_start should fall back to sunday, got %q", cfg.WeekStart)
	}
	if cfg.PersonSource != defaultPersonSource {
		t.Errorf("person_source should default, got %q", cfg.PersonSource)
	}
	if cfg.RefreshEnabled() {
		t.Error("refresh 'off' should disable background reloads")
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "me" {
		t.Errorf("basic auth not parsed: %+v", cfg.BasicAuth)
	}
	if cfg.Capture.Width != 1024 || cfg.Capture.TimeoutSeconds != 30 {
		t.Errorf("capture defaults missing: %+v", cfg.Capture)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.WeekStart = "monday"
	cfg.CacheTTLSeconds = 5

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.FirstWeekday() != time.Monday {
		t.Errorf("expected monday week start, got %s", got.FirstWeekday())
	}
	if got.CacheTTL() != 5*time.Second {
		t.Errorf("expected 5s ttl, got %s", got.CacheTTL())
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Local timezone should resolve to time.Local, got %v, %v", loc, err)
	}

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("expected UTC, got %v, %v", loc, err)
	}

	cfg.Timezone = "Not/AZone"
	loc, err = cfg.Location()
	if err == nil {
		t.Error("expected error for unknown timezone")
	}
	if loc != time.Local {
		t.Error("unknown timezone should fall back to time.Local")
	}
}
