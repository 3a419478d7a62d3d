package model

import "time"

// Execution records whether a tracked goal was completed on an event.
//
// The source documents encode completion as the literal string "true".
// Decoding maps exactly that string to Done=true and anything else
// (including "false", "", other casings or a missing field) to false.
type Execution struct {
	Done bool

	// Time and Distance are free-form exercise details. They are carried
	// through for display only; aggregation ignores them.
	Time     string
	Distance string
}

// Event is a single calendar-bound record from the events document.
type Event struct {
	Title string

	// Start / End are in the configured display timezone. A zero Start
	// means the source value could not be parsed.
	Start time.Time
	End   time.Time

	Diet     *Execution
	Exercise *Execution
}

// DietDone reports whether the event marks the diet goal as completed.
func (e Event) DietDone() bool {
	return e.Diet != nil && e.Diet.Done
}

// ExerciseDone reports whether the event marks the exercise goal as completed.
func (e Event) ExerciseDone() bool {
	return e.Exercise != nil && e.Exercise.Done
}

// PersonalData is the profile block of the person document. It is loaded
// and exposed but not used by any computation.
type PersonalData struct {
	Name       string  `json:"name"`
	Age        int     `json:"age"`
	Height     float64 `json:"height"`
	Gender     string  `json:"gender"`
	GoalWeight float64 `json:"goalWeight"`
}

// WeightEntry is one point of the weight time series.
type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// WeightData is the whole person document.
type WeightData struct {
	PersonalData  PersonalData  `json:"personalData"`
	WeightHistory []WeightEntry `json:"weightHistory"`
}

// DayStatus is the per-day OR of all events' completion flags.
type DayStatus struct {
	Day          string `json:"day"` // "2006-01-02"
	DietDone     bool   `json:"diet_done"`
	ExerciseDone bool   `json:"exercise_done"`
}

// DayColor is the categorical background color of a calendar day.
type DayColor string

const (
	ColorFull        DayColor = "#59c559" // diet and exercise done
	ColorPartial     DayColor = "#eded65" // exactly one done
	ColorNone        DayColor = "#ff5151" // neither done
	ColorTransparent DayColor = "transparent"
)
