package adherence

import (
	"errors"

	appLog "dietcal/internal/log"
	"dietcal/internal/model"
)

// Summary bundles everything the dashboard derives from one set of events.
type Summary struct {
	Colors      map[string]model.DayColor `json:"colors"`
	Days        []model.DayStatus         `json:"days"`
	Percentages Percentages               `json:"percentages"`
}

// Summarize classifies every day and computes the monthly percentages.
//
// An empty event list is not an error here: the percentages stay at zero,
// which is what the dashboard shows before any event exists. Any other
// percentage error is returned alongside the (still usable) colors.
func Summarize(events []model.Event) (Summary, error) {
	statuses := DayStatuses(events)
	colors := make(map[string]model.DayColor, len(statuses))
	for day, st := range statuses {
		colors[day] = Classify(st)
	}

	s := Summary{
		Colors: colors,
		Days:   SortedStatuses(statuses),
	}

	pct, err := ComputeMonthlyPercentages(events)
	if err != nil {
		var empty *EmptyInputError
		if errors.As(err, &empty) {
			appLog.Debug("adherence: no events, percentages left at zero")
			return s, nil
		}
		return s, err
	}
	s.Percentages = pct
	return s, nil
}
