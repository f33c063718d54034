package period

import (
	"fmt"
	"time"
)

const layout = "2006-01-02 15:04"

// Period is a closed time interval with one-minute resolution.
// Seconds and sub-second parts are always discarded.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a normalized period: both bounds truncated to the minute,
// swapped if given in reverse order.
func New(start, end time.Time) Period {
	start = truncate(start)
	end = truncate(end)
	if start.After(end) {
		start, end = end, start
	}
	return Period{Start: start, End: end}
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// SetStart moves the start. A start past the current end drags the end along.
func (p *Period) SetStart(start time.Time) {
	start = truncate(start)
	if start.After(p.End) {
		p.End = start
	}
	p.Start = start
}

// SetEnd moves the end. An end before the current start drags the start along.
func (p *Period) SetEnd(end time.Time) {
	end = truncate(end)
	if end.Before(p.Start) {
		p.Start = end
	}
	p.End = end
}

// Valid reports whether Start <= End. Periods built with New always are.
func (p Period) Valid() bool {
	return !p.Start.After(p.End)
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Overlaps treats touching endpoints as an overlap.
func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !other.Start.After(p.End)
}

func (p Period) DurationDays() int {
	return int(p.End.Sub(p.Start) / (24 * time.Hour))
}

func (p Period) DurationMinutes() int {
	return int(p.End.Sub(p.Start) / time.Minute)
}

func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s to %s", p.Start.Format(layout), p.End.Format(layout))
}
