// Package merger folds special-event rows into the general event that shares
// their pickup start and location.
//
// The match key is exact equality of (start instant, pickup location label).
// There is no explicit foreign key upstream, so a special event whose address
// text differs from its general event's by formatting will not merge. Such
// events are reported in Result.Unmatched and left out of the output.
package merger

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/model"
)

const (
	DateLayout = "Monday, January 2"
	TimeLayout = "3:04 PM"
)

type Result struct {
	Events []model.Event
	// Unmatched holds special events with no general event on the same key.
	Unmatched []model.RawEvent
	// Invalid holds rows without a start instant.
	Invalid []model.RawEvent
}

type Merger struct {
	loc *time.Location
	log *zerolog.Logger
}

// New returns a Merger rendering display strings in loc (UTC when nil).
func New(loc *time.Location, log *zerolog.Logger) *Merger {
	if loc == nil {
		loc = time.UTC
	}
	return &Merger{loc: loc, log: log}
}

type matchKey struct {
	start    int64
	location string
}

func keyOf(ev model.RawEvent) matchKey {
	return matchKey{start: ev.Start.UnixNano(), location: ev.PickupLocation}
}

// Merge groups raw rows into one Event per physical pickup, sorted by start.
func (m *Merger) Merge(raw []model.RawEvent) Result {
	var (
		res     Result
		general []model.RawEvent
		special []model.RawEvent
	)
	bySpecKey := make(map[matchKey][]int)

	for _, ev := range raw {
		if ev.Start == nil || ev.Start.IsZero() {
			res.Invalid = append(res.Invalid, ev)
			m.log.Warn().Str("event_id", ev.ID).Msg("event has no start time, skipping")
			continue
		}
		if ev.Special {
			bySpecKey[keyOf(ev)] = append(bySpecKey[keyOf(ev)], len(special))
			special = append(special, ev)
		} else {
			general = append(general, ev)
		}
	}

	matched := make([]bool, len(special))
	res.Events = make([]model.Event, 0, len(general))
	for _, g := range general {
		e := model.Event{
			ID:             g.ID,
			Start:          *g.Start,
			DisplayDate:    g.Start.In(m.loc).Format(DateLayout),
			DisplayTime:    g.Start.In(m.loc).Format(TimeLayout),
			PickupLocation: g.PickupLocation,
			Counts:         g.Counts,
			SlotIDs:        append([]string(nil), g.SlotIDs...),
			AllEventIDs:    []string{g.ID},
		}

		for _, i := range bySpecKey[keyOf(g)] {
			s := special[i]
			e.Counts.Add(s.Counts)
			e.Counts.SpecialGroupsCount++
			e.SlotIDs = append(e.SlotIDs, s.SlotIDs...)
			e.AllEventIDs = append(e.AllEventIDs, s.ID)
			matched[i] = true
		}
		res.Events = append(res.Events, e)
	}

	for i, ok := range matched {
		if ok {
			continue
		}
		s := special[i]
		res.Unmatched = append(res.Unmatched, s)
		m.log.Warn().
			Str("event_id", s.ID).
			Time("start", *s.Start).
			Str("pickup_location", s.PickupLocation).
			Msg("special event matches no general event, excluded from aggregates")
	}

	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Start.Before(res.Events[j].Start)
	})
	return res
}
