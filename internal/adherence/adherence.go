// Package adherence derives per-day adherence colors and monthly adherence
// percentages from a list of diet/exercise events.
//
// All functions are pure: they never mutate their input and return freshly
// allocated results, so they are safe for concurrent use.
package adherence

import (
	"fmt"
	"sort"
	"time"

	"dietcal/internal/model"
)

// InvalidDayKey is the grouping key used for events whose start could not
// be parsed. Such events are still grouped, under this key.
const InvalidDayKey = "Invalid date"

const dayLayout = "2006-01-02"

// Per-day points used for the combined score.
const (
	scoreFull    = 100
	scorePartial = 50
)

// EmptyInputError is returned when monthly percentages are requested for an
// empty event list; the month length cannot be determined without events.
type EmptyInputError struct {
	Op string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("adherence: %s: empty event list", e.Op)
}

// InvalidDateError is returned when the event that determines the month has
// no usable start timestamp.
type InvalidDateError struct {
	Op    string
	Title string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("adherence: %s: event %q has an invalid start date", e.Op, e.Title)
}

// Percentages holds the three monthly summary values, each an integer in
// [0,100] under the one-status-per-day model.
type Percentages struct {
	Diet     int `json:"diet"`
	Exercise int `json:"exercise"`
	Combined int `json:"combined"`
}

// DayKey formats t as a calendar day in its own location.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return InvalidDayKey
	}
	return t.Format(dayLayout)
}

// DayStatuses groups events by the calendar day of their start and ORs the
// completion flags of each day's events.
func DayStatuses(events []model.Event) map[string]model.DayStatus {
	out := make(map[string]model.DayStatus)
	for _, ev := range events {
		day := DayKey(ev.Start)
		st, ok := out[day]
		if !ok {
			st = model.DayStatus{Day: day}
		}
		if ev.DietDone() {
			st.DietDone = true
		}
		if ev.ExerciseDone() {
			st.ExerciseDone = true
		}
		out[day] = st
	}
	return out
}

// Classify maps a day's status to its color.
func Classify(st model.DayStatus) model.DayColor {
	switch {
	case st.DietDone && st.ExerciseDone:
		return model.ColorFull
	case st.DietDone || st.ExerciseDone:
		return model.ColorPartial
	default:
		return model.ColorNone
	}
}

// ClassifyDays returns one color per distinct day present in events. Days
// without any event are absent from the result.
func ClassifyDays(events []model.Event) map[string]model.DayColor {
	statuses := DayStatuses(events)
	out := make(map[string]model.DayColor, len(statuses))
	for day, st := range statuses {
		out[day] = Classify(st)
	}
	return out
}

// ComputeMonthlyPercentages computes diet, exercise and combined adherence
// over the whole calendar month of the first event. Days of the month with no
// events count as zero adherence.
//
// The events are assumed to belong to a single month; this is not checked.
func ComputeMonthlyPercentages(events []model.Event) (Percentages, error) {
	const op = "compute monthly percentages"

	if len(events) == 0 {
		return Percentages{}, &EmptyInputError{Op: op}
	}
	first := events[0]
	if first.Start.IsZero() {
		return Percentages{}, &InvalidDateError{Op: op, Title: first.Title}
	}
	daysInMonth := DaysInMonth(first.Start.Year(), first.Start.Month())

	var dietDays, exerciseDays, totalScore int
	for _, st := range DayStatuses(events) {
		if st.DietDone {
			dietDays++
		}
		if st.ExerciseDone {
			exerciseDays++
		}
		switch {
		case st.DietDone && st.ExerciseDone:
			totalScore += scoreFull
		case st.DietDone || st.ExerciseDone:
			totalScore += scorePartial
		}
	}

	return Percentages{
		Diet:     roundDiv(100*dietDays, daysInMonth),
		Exercise: roundDiv(100*exerciseDays, daysInMonth),
		Combined: roundDiv(totalScore, daysInMonth),
	}, nil
}

// DaysInMonth returns the number of days of the given calendar month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FilterMonth returns the events whose start falls in the given month of
// the start's own location. Events with an invalid start are dropped.
func FilterMonth(events []model.Event, year int, month time.Month) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start.IsZero() {
			continue
		}
		if ev.Start.Year() == year && ev.Start.Month() == month {
			out = append(out, ev)
		}
	}
	return out
}

// SortedStatuses returns the day statuses ordered by day key.
func SortedStatuses(statuses map[string]model.DayStatus) []model.DayStatus {
	out := make([]model.DayStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day < out[j].Day
	})
	return out
}

// roundDiv returns num/den rounded half up, for non-negative num and
// positive den.
func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}
