package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"dietcal/internal/adherence"
	"dietcal/internal/model"
)

const productID = "-//dietcal//Adherence Calendar//EN"

// dayNamespace seeds the per-day UIDs so that the same day always maps to
// the same VEVENT across refreshes.
var dayNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:dietcal:adherence-day"))

// ExportOptions controls feed metadata.
type ExportOptions struct {
	// Name is the X-WR-CALNAME shown by calendar clients.
	Name string
	// Timezone is advertised as X-WR-TIMEZONE when set.
	Timezone string
	// Now stamps DTSTAMP; zero means time.Now().
	Now time.Time
}

// ExportAdherence renders one all-day VEVENT per classified day. Days keyed
// under adherence.InvalidDayKey are skipped since they have no date.
func ExportAdherence(days []model.DayStatus, opts ExportOptions) string {
	if opts.Name == "" {
		opts.Name = "Adherence"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(opts.Name)
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, st := range days {
		date, err := time.Parse("2006-01-02", st.Day)
		if err != nil {
			continue
		}
		color := adherence.Classify(st)

		ev := cal.AddEvent(DayUID(st.Day))
		ev.SetDtStampTime(opts.Now)
		ev.SetAllDayStartAt(date)
		ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
		ev.SetSummary(summaryFor(color))
		ev.SetDescription(descriptionFor(st))
		ev.SetColor(string(color))
		ev.SetTimeTransparency(ical.TransparencyTransparent)
	}

	return cal.Serialize()
}

// DayUID returns the stable UID of the feed event for day ("2006-01-02").
func DayUID(day string) string {
	return uuid.NewSHA1(dayNamespace, []byte(day)).String() + "@dietcal"
}

func summaryFor(c model.DayColor) string {
	switch c {
	case model.ColorFull:
		return "Diet and exercise done"
	case model.ColorPartial:
		return "Partially adherent"
	default:
		return "Not adherent"
	}
}

func descriptionFor(st model.DayStatus) string {
	return "Diet: " + doneWord(st.DietDone) + "\nExercise: " + doneWord(st.ExerciseDone)
}

func doneWord(b bool) string {
	if b {
		return "done"
	}
	return "not done"
}
