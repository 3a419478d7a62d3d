package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"dietcal/internal/config"
	appLog "dietcal/internal/log"
)

func writeFixture(t *testing.T, events string) flagConfig {
	t.Helper()
	appLog.SetOutput(io.Discard)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.json")
	personPath := filepath.Join(dir, "person.json")
	if err := os.WriteFile(eventsPath, []byte(events), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(personPath, []byte(`{"personalData": {"name": "Ana"}, "weightHistory": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.EventsSource = eventsPath
	cfg.PersonSource = personPath
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "dietcal.yaml")
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	return flagConfig{configPath: cfgPath, once: true}
}

func silenceStdout(t *testing.T) {
	t.Helper()
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = devnull
	t.Cleanup(func() {
		os.Stdout = orig
		devnull.Close()
	})
}

func TestRunOnce(t *testing.T) {
	silenceStdout(t)
	flags := writeFixture(t, `[
	  {"title": "a", "start": "2024-10-01T08:00:00", "end": "2024-10-01T09:00:00",
	   "dieta": {"execution": "true"}, "excercise": {"execution": "true"}}
	]`)

	if code := run(flags); code != 0 {
		t.Fatalf("run -once exit code = %d, want 0", code)
	}
}

func TestRunOnce_EmptyEvents(t *testing.T) {
	silenceStdout(t)
	flags := writeFixture(t, `[]`)

	if code := run(flags); code != 1 {
		t.Fatalf("run -once with no events exit code = %d, want 1", code)
	}
}

func TestRunOnce_EmptyMonth(t *testing.T) {
	silenceStdout(t)
	flags := writeFixture(t, `[
	  {"title": "a", "start": "2024-10-01", "end": "2024-10-01", "dieta": {"execution": "true"}}
	]`)
	flags.month = "2024-11"

	if code := run(flags); code != 1 {
		t.Fatalf("run -once for a month without events exit code = %d, want 1", code)
	}
}

func TestRun_InvalidMonth(t *testing.T) {
	flags := writeFixture(t, `[]`)
	flags.month = "Oct 2024"

	if code := run(flags); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}
