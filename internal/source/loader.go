package source

import (
	"context"
	"sync"
	"time"

	appLog "dietcal/internal/log"
	"dietcal/internal/model"
)

// Snapshot is one load of both documents. A failed half keeps its zero
// value and records the error; nothing is retried.
type Snapshot struct {
	Events    []model.Event
	Person    model.WeightData
	EventsErr error
	PersonErr error
	LoadedAt  time.Time
}

// Loader loads the events and person documents.
type Loader struct {
	fetcher      *Fetcher
	eventsSource string
	personSource string
	loc          *time.Location
}

// NewLoader constructs a Loader. loc is the display location used to
// assign events to calendar days.
func NewLoader(fetcher *Fetcher, eventsSource, personSource string, loc *time.Location) *Loader {
	if loc == nil {
		loc = time.Local
	}
	return &Loader{
		fetcher:      fetcher,
		eventsSource: eventsSource,
		personSource: personSource,
		loc:          loc,
	}
}

// Load issues both loads concurrently. They share no state and may complete
// in either order; each failure is logged and left on the snapshot.
func (l *Loader) Load(ctx context.Context) Snapshot {
	snap := Snapshot{
		Events: []model.Event{},
		Person: model.WeightData{WeightHistory: []model.WeightEntry{}},
	}

	var (
		wg     sync.WaitGroup
		events []model.Event
		person model.WeightData
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		events, snap.EventsErr = l.loadEvents(ctx)
		if snap.EventsErr != nil {
			appLog.Error("failed to load events", snap.EventsErr, "source", DisplayLocation(l.eventsSource))
		}
	}()

	go func() {
		defer wg.Done()
		person, snap.PersonErr = l.loadPerson(ctx)
		if snap.PersonErr != nil {
			appLog.Error("failed to load weight data", snap.PersonErr, "source", DisplayLocation(l.personSource))
		}
	}()

	wg.Wait()

	if snap.EventsErr == nil {
		snap.Events = events
	}
	if snap.PersonErr == nil {
		snap.Person = person
	}
	snap.LoadedAt = time.Now()

	appLog.Info("sources loaded",
		"events", len(snap.Events),
		"weight_entries", len(snap.Person.WeightHistory),
		"events_ok", snap.EventsErr == nil,
		"person_ok", snap.PersonErr == nil,
	)
	return snap
}

func (l *Loader) loadEvents(ctx context.Context) ([]model.Event, error) {
	res, err := l.fetcher.Fetch(ctx, l.eventsSource)
	if err != nil {
		return nil, err
	}
	return DecodeEvents(res.Body, l.loc)
}

func (l *Loader) loadPerson(ctx context.Context) (model.WeightData, error) {
	res, err := l.fetcher.Fetch(ctx, l.personSource)
	if err != nil {
		return model.WeightData{}, err
	}
	return DecodePerson(res.Body)
}

// DisplayLocation returns location fit for logs: URLs are redacted, paths
// kept as is.
func DisplayLocation(location string) string {
	if IsRemote(location) {
		return redactURL(location)
	}
	return location
}
