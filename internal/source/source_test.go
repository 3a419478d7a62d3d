package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const eventsJSON = `[
  {"title": "Dia 1", "start": "2024-10-01T08:00:00", "end": "2024-10-01T09:00:00",
   "dieta": {"execution": "true"}, "excercise": {"execution": "true", "time": "30min", "distance": 5}},
  {"title": "Dia 2", "start": "2024-10-02", "end": "2024-10-02",
   "dieta": {"execution": "false"}, "excercise": {"execution": true}},
  {"title": "Dia 3", "start": "2024-10-03T23:30:00Z", "end": "2024-10-03T23:45:00Z",
   "dieta": {"execution": "TRUE"}},
  {"title": "Broken", "start": "not a date", "end": ""}
]`

const personJSON = `{
  "personalData": {"name": "Ana", "age": 31, "height": 1.68, "gender": "F", "goalWeight": 62},
  "weightHistory": [
    {"date": "2024-01-01", "weight": 70.5},
    {"date": "2024-02-01", "weight": 69.1}
  ]
}`

func TestDecodeEvents(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	events, err := DecodeEvents([]byte(eventsJSON), loc)
	if err != nil {
		t.Fatalf("DecodeEvents returned error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	first := events[0]
	if !first.DietDone() || !first.ExerciseDone() {
		t.Errorf("first event should have both flags done: %+v", first)
	}
	if first.Exercise.Time != "30min" || first.Exercise.Distance != "5" {
		t.Errorf("unexpected exercise details: %+v", first.Exercise)
	}
	if got := first.Start.Format("2006-01-02 15:04"); got != "2024-10-01 08:00" {
		t.Errorf("local start should stay in display location, got %s", got)
	}

	second := events[1]
	if second.DietDone() {
		t.Error(`"false" must not count as done`)
	}
	if second.ExerciseDone() {
		t.Error("JSON boolean true must not count as done")
	}
	if second.Start.Day() != 2 {
		t.Errorf("date-only start should be that day in display location, got %s", second.Start)
	}

	third := events[2]
	if third.DietDone() {
		t.Error(`"TRUE" must not count as done`)
	}
	if third.Exercise != nil {
		t.Error("missing excercise object should decode to nil")
	}
	// 23:30Z is 20:30 in UTC-3.
	if third.Start.Hour() != 20 || third.Start.Day() != 3 {
		t.Errorf("RFC3339 start should be converted to display location, got %s", third.Start)
	}

	if !events[3].Start.IsZero() {
		t.Errorf("unparseable start should be zero, got %s", events[3].Start)
	}
}

func TestDecodeEvents_Invalid(t *testing.T) {
	if _, err := DecodeEvents([]byte(`{"not": "a list"}`), time.UTC); err == nil {
		t.Error("expected error for non-array document")
	}
}

func TestDecodePerson(t *testing.T) {
	data, err := DecodePerson([]byte(personJSON))
	if err != nil {
		t.Fatalf("DecodePerson returned error: %v", err)
	}
	if data.PersonalData.Name != "Ana" || data.PersonalData.GoalWeight != 62 {
		t.Errorf("unexpected personal data: %+v", data.PersonalData)
	}
	if len(data.WeightHistory) != 2 || data.WeightHistory[1].Weight != 69.1 {
		t.Errorf("unexpected history: %+v", data.WeightHistory)
	}

	empty, err := DecodePerson([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodePerson({}) returned error: %v", err)
	}
	if empty.WeightHistory == nil {
		t.Error("missing weightHistory should decode to an empty slice")
	}
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	if err := os.WriteFile(path, []byte(eventsJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(filepath.Join(dir, "cache"))
	res, err := f.Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(res.Body) != eventsJSON {
		t.Error("file body mismatch")
	}

	if _, err := f.Fetch(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty location")
	}
}

func TestFetch_URLConditionalAndFallback(t *testing.T) {
	var (
		calls   atomic.Int32
		failing atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(personJSON))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()
	url := srv.URL + "/person.json?token=secret"

	res, err := f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.FromCache {
		t.Error("first fetch should not come from cache")
	}

	res, err = f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !res.FromCache || string(res.Body) != personJSON {
		t.Errorf("304 should reuse the cached body, got FromCache=%v", res.FromCache)
	}

	failing.Store(true)
	res, err = f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("fetch with failing origin should fall back to cache: %v", err)
	}
	if !res.FromCache {
		t.Error("expected cached fallback")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 origin calls, got %d", calls.Load())
	}
}

func TestFetch_URLErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	if _, err := f.Fetch(context.Background(), srv.URL+"/events.json"); err == nil {
		t.Error("expected error for 404 without cache")
	}
}

func TestRedactURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/private/events.json?token=abcd": "https://example.com/...(redacted)",
		"http://example.com":                                  "http://example.com",
		"::::":                                                "source://...(redacted)",
	}
	for in, want := range tests {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoader_IndependentFailures(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.json")
	if err := os.WriteFile(eventsPath, []byte(eventsJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(NewFetcher(filepath.Join(dir, "cache")), eventsPath, filepath.Join(dir, "missing.json"), time.UTC)
	snap := l.Load(context.Background())

	if snap.EventsErr != nil {
		t.Errorf("events should load: %v", snap.EventsErr)
	}
	if len(snap.Events) != 4 {
		t.Errorf("expected 4 events, got %d", len(snap.Events))
	}
	if snap.PersonErr == nil {
		t.Error("person load should fail")
	}
	if snap.Person.WeightHistory == nil || len(snap.Person.WeightHistory) != 0 {
		t.Errorf("failed person load should leave an empty history, got %+v", snap.Person)
	}
	if snap.LoadedAt.IsZero() {
		t.Error("LoadedAt should be set")
	}
}

func TestLoader_BadEventsDocument(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.json")
	personPath := filepath.Join(dir, "person.json")
	os.WriteFile(eventsPath, []byte("{broken"), 0o600)
	os.WriteFile(personPath, []byte(personJSON), 0o600)

	snap := NewLoader(NewFetcher(filepath.Join(dir, "cache")), eventsPath, personPath, nil).Load(context.Background())
	if snap.EventsErr == nil || !strings.Contains(snap.EventsErr.Error(), "decode events") {
		t.Errorf("expected decode error, got %v", snap.EventsErr)
	}
	if len(snap.Events) != 0 {
		t.Errorf("events should stay empty, got %d", len(snap.Events))
	}
	if snap.PersonErr != nil || len(snap.Person.WeightHistory) != 2 {
		t.Errorf("person should load independently: %v", snap.PersonErr)
	}
}
