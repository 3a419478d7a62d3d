// Package dashboard assembles everything the page shows from one source
// snapshot: day colors, monthly percentages, the month grid and the weight
// chart rows.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"dietcal/internal/adherence"
	"dietcal/internal/calendar"
	appLog "dietcal/internal/log"
	"dietcal/internal/model"
	"dietcal/internal/source"
)

// ErrInvalidMonth is returned by ParseMonth for values not in YYYY-MM form.
var ErrInvalidMonth = errors.New("dashboard: month must be YYYY-MM")

// Options selects what to build.
type Options struct {
	// Month, when non-zero, restricts the percentages to that month and
	// shows it in the grid. Only Year and Month are used.
	Month time.Time

	Location  *time.Location
	WeekStart time.Weekday

	// Now picks the grid month when there is neither Month nor any event.
	Now time.Time
}

// EventView is the JSON shape of a loaded event.
type EventView struct {
	Title            string    `json:"title"`
	Day              string    `json:"day"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	DietDone         bool      `json:"diet_done"`
	ExerciseDone     bool      `json:"exercise_done"`
	ExerciseTime     string    `json:"exercise_time,omitempty"`
	ExerciseDistance string    `json:"exercise_distance,omitempty"`
}

// View is the whole dashboard payload.
type View struct {
	Month           string                    `json:"month"` // "2006-01"
	Colors          map[string]model.DayColor `json:"colors"`
	Days            []model.DayStatus         `json:"days"`
	Percentages     adherence.Percentages     `json:"percentages"`
	Grid            calendar.Grid             `json:"grid"`
	Chart           [][]any                   `json:"chart"`
	PersonalData    model.PersonalData        `json:"personal_data"`
	Events          []EventView               `json:"events"`
	Errors          map[string]string         `json:"errors,omitempty"`
	LoadedAt        time.Time                 `json:"loaded_at"`
	DisplayTimeZone string                    `json:"display_timezone"`
}

// ParseMonth parses "2006-01" in loc. An empty string yields the zero time.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}

// Build derives the dashboard from snap.
//
// Colors always cover every loaded event. Without opts.Month the
// percentages are computed over all events, i.e. over the month of the
// first event.
func Build(snap source.Snapshot, opts Options) (View, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	v := View{
		Colors:          adherence.ClassifyDays(snap.Events),
		Chart:           ChartRows(snap.Person.WeightHistory),
		PersonalData:    snap.Person.PersonalData,
		Events:          EventViews(snap.Events),
		LoadedAt:        snap.LoadedAt,
		DisplayTimeZone: opts.Location.String(),
	}
	if snap.EventsErr != nil {
		v.addError("events", snap.EventsErr)
	}
	if snap.PersonErr != nil {
		v.addError("person", snap.PersonErr)
	}

	month := gridMonth(snap.Events, opts)
	v.Month = month.Format("2006-01")

	scoped := snap.Events
	if !opts.Month.IsZero() {
		scoped = adherence.FilterMonth(snap.Events, month.Year(), month.Month())
	}
	summary, err := adherence.Summarize(scoped)
	if err != nil {
		appLog.Error("dashboard: percentages unavailable", err, "month", v.Month)
		v.addError("percentages", err)
	}
	v.Days = summary.Days
	v.Percentages = summary.Percentages

	grid, err := calendar.MonthGrid(month.Year(), month.Month(), opts.Location, opts.WeekStart, v.Colors)
	if err != nil {
		return v, err
	}
	v.Grid = grid

	return v, nil
}

// ChartRows renders the weight history as header + [date, weight] rows.
func ChartRows(history []model.WeightEntry) [][]any {
	rows := make([][]any, 0, len(history)+1)
	rows = append(rows, []any{"Data", "Peso"})
	for _, e := range history {
		rows = append(rows, []any{e.Date, e.Weight})
	}
	return rows
}

// gridMonth picks the month to lay out: the requested one, else the first
// event's, else the current one.
func gridMonth(events []model.Event, opts Options) time.Time {
	ref := opts.Now
	switch {
	case !opts.Month.IsZero():
		ref = opts.Month
	case len(events) > 0 && !events[0].Start.IsZero():
		ref = events[0].Start
	}
	ref = ref.In(opts.Location)
	return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, opts.Location)
}

// EventViews converts events to their JSON shape.
func EventViews(events []model.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		ew := EventView{
			Title:        ev.Title,
			Day:          adherence.DayKey(ev.Start),
			Start:        ev.Start,
			End:          ev.End,
			DietDone:     ev.DietDone(),
			ExerciseDone: ev.ExerciseDone(),
		}
		if ev.Exercise != nil {
			ew.ExerciseTime = ev.Exercise.Time
			ew.ExerciseDistance = ev.Exercise.Distance
		}
		out = append(out, ew)
	}
	return out
}

func (v *View) addError(key string, err error) {
	if v.Errors == nil {
		v.Errors = make(map[string]string)
	}
	v.Errors[key] = err.Error()
}
