package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appLog "dietcal/internal/log"
	"dietcal/internal/model"
)

// wireExecution mirrors the `dieta` / `excercise` objects of the events
// document. Fields are kept raw so that non-string values do not fail the
// whole document.
type wireExecution struct {
	Execution json.RawMessage `json:"execution"`
	Time      json.RawMessage `json:"time"`
	Distance  json.RawMessage `json:"distance"`
}

type wireEvent struct {
	Title    string         `json:"title"`
	Start    string         `json:"start"`
	End      string         `json:"end"`
	Diet     *wireExecution `json:"dieta"`
	Exercise *wireExecution `json:"excercise"`
}

// Layouts accepted for start/end, tried in order. Layouts without an
// offset are read in the display location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeEvents parses the events document. Each start/end is converted to
// loc; a value that matches no layout becomes the zero time, which groups
// under adherence.InvalidDayKey downstream.
func DecodeEvents(body []byte, loc *time.Location) ([]model.Event, error) {
	if loc == nil {
		loc = time.Local
	}
	var wire []wireEvent
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]model.Event, 0, len(wire))
	for _, w := range wire {
		ev := model.Event{
			Title:    w.Title,
			Start:    parseDate(w.Start, loc),
			End:      parseDate(w.End, loc),
			Diet:     decodeExecution(w.Diet),
			Exercise: decodeExecution(w.Exercise),
		}
		if ev.Start.IsZero() {
			appLog.Debug("events: unparseable start date", "title", w.Title, "start", w.Start)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DecodePerson parses the person document.
func DecodePerson(body []byte) (model.WeightData, error) {
	var data model.WeightData
	if err := json.Unmarshal(body, &data); err != nil {
		return model.WeightData{}, fmt.Errorf("decode person: %w", err)
	}
	if data.WeightHistory == nil {
		data.WeightHistory = []model.WeightEntry{}
	}
	return data, nil
}

func parseDate(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t.In(loc)
		}
	}
	return time.Time{}
}

// decodeExecution maps the wire object to a model.Execution. Only the JSON
// string "true" marks completion.
func decodeExecution(w *wireExecution) *model.Execution {
	if w == nil {
		return nil
	}
	return &model.Execution{
		Done:     isTrueString(w.Execution),
		Time:     rawString(w.Time),
		Distance: rawString(w.Distance),
	}
}

// isTrueString reports whether raw is exactly the JSON string "true".
// A JSON boolean true does not count.
func isTrueString(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == "true"
}

// rawString returns the value of a JSON string, the literal text of any
// other JSON value, or "" for null / missing.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
