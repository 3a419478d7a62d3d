// Package calendar lays out a month as full weeks of day cells for the
// dashboard calendar view.
package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"dietcal/internal/adherence"
	"dietcal/internal/model"
)

// Cell is one day of the month grid.
type Cell struct {
	Day     string         `json:"day"` // "2006-01-02"
	Date    int            `json:"date"`
	InMonth bool           `json:"in_month"`
	Color   model.DayColor `json:"color"`
}

// Grid is a month laid out in weeks of seven cells.
type Grid struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Title     string   `json:"title"`
	Weekdays  []string `json:"weekdays"`
	Weeks     [][]Cell `json:"weeks"`
	DaysCount int      `json:"days_in_month"`
}

// MonthGrid builds the grid for year/month in loc, starting rows on
// weekStart. Days found in colors get their color; every other day is
// transparent.
func MonthGrid(year int, month time.Month, loc *time.Location, weekStart time.Weekday, colors map[string]model.DayColor) (Grid, error) {
	if month < time.January || month > time.December {
		return Grid{}, fmt.Errorf("calendar: invalid month %d", month)
	}
	if loc == nil {
		loc = time.Local
	}

	// Days are enumerated at noon: local midnight does not exist on days
	// where DST starts at 00:00.
	first := time.Date(year, month, 1, 12, 0, 0, 0, loc)
	last := time.Date(year, month, adherence.DaysInMonth(year, month), 12, 0, 0, 0, loc)

	gridStart := first.AddDate(0, 0, -offset(first.Weekday(), weekStart))
	gridEnd := last.AddDate(0, 0, 6-offset(last.Weekday(), weekStart))

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: gridStart,
		Until:   gridEnd,
	})
	if err != nil {
		return Grid{}, fmt.Errorf("calendar: build day rule: %w", err)
	}

	g := Grid{
		Year:      year,
		Month:     int(month),
		Title:     first.Format("January 2006"),
		Weekdays:  weekdayNames(weekStart),
		DaysCount: adherence.DaysInMonth(year, month),
	}

	var week []Cell
	for _, d := range r.All() {
		key := adherence.DayKey(d)
		color, ok := colors[key]
		if !ok {
			color = model.ColorTransparent
		}
		week = append(week, Cell{
			Day:     key,
			Date:    d.Day(),
			InMonth: d.Month() == month,
			Color:   color,
		})
		if len(week) == 7 {
			g.Weeks = append(g.Weeks, week)
			week = nil
		}
	}
	return g, nil
}

// offset is how many days wd is past weekStart.
func offset(wd, weekStart time.Weekday) int {
	return (int(wd) - int(weekStart) + 7) % 7
}

func weekdayNames(weekStart time.Weekday) []string {
	names := make([]string, 7)
	for i := range names {
		names[i] = time.Weekday((int(weekStart) + i) % 7).String()[:3]
	}
	return names
}
