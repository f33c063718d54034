package stock

import (
	"sort"
	"time"
)

// Event is a decoded ledger entry of one asset.
// Sequence is the insertion order and breaks ties between equal dates.
// Reference names the reservation an entry was recorded for, if any.
type Event struct {
	AssetID     string    `json:"asset_id"`
	Type        EventType `json:"event_type"`
	Quantity    int       `json:"quantity"`
	Date        time.Time `json:"date"`
	Sequence    int       `json:"sequence"`
	Description string    `json:"description,omitempty"`
	Reference   string    `json:"reference,omitempty"`
}

// Level is the stock reconstructed at one instant
type Level struct {
	Total   int `json:"total"`
	Damaged int `json:"damaged"`
}

func (l *Level) apply(e Event) {
	d := e.Type.Effect(e.Quantity)
	l.Total += d.Total
	l.Damaged += d.Damaged
}

// SortEvents orders events by (Date, Sequence) in place
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Sequence < events[j].Sequence
	})
}

// Replay folds every event dated at or before at onto the baseline quantity.
// The input slice is not modified.
func Replay(baseline int, events []Event, at time.Time) Level {
	ordered := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Date.After(at) {
			ordered = append(ordered, e)
		}
	}
	SortEvents(ordered)

	level := Level{Total: baseline}
	for _, e := range ordered {
		level.apply(e)
	}
	return level
}
