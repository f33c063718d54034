package availability

import (
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/period"
)

// booking is the demand one active reservation puts on one asset over its
// effective window [start, end]
type booking struct {
	reservationID string
	status        reservation.Status
	start         time.Time
	end           time.Time
	reserved      int
	checkedOut    int
}

// overlapIndex answers which reservations hold an asset at an instant or
// during a period. Windows are closed at both ends.
type overlapIndex struct {
	bookings []booking
}

// newOverlapIndex keeps the item for assetID of every reservation that is
// neither cancelled, returned nor excluded. A reservation listed twice is
// kept once.
func newOverlapIndex(assetID string, reservations []*reservation.Reservation, excludedID string, now time.Time) *overlapIndex {
	ix := &overlapIndex{}
	seen := make(map[string]bool, len(reservations))
	for _, r := range reservations {
		if r == nil || !r.Status.Active() {
			continue
		}
		if excludedID != "" && r.ID == excludedID {
			continue
		}
		if seen[r.ID] {
			continue
		}
		item, ok := r.Item(assetID)
		if !ok {
			continue
		}
		seen[r.ID] = true

		b := booking{
			reservationID: r.ID,
			status:        r.Status,
			start:         r.StartDate(),
			end:           r.ReturnDateAt(now),
			reserved:      item.QuantityReserved,
		}
		if r.Status == reservation.StatusCheckedOut {
			b.checkedOut = item.QuantityCheckedOut
		}
		ix.bookings = append(ix.bookings, b)
	}
	return ix
}

// activeAt returns the bookings whose window contains t
func (ix *overlapIndex) activeAt(t time.Time) []booking {
	var out []booking
	for _, b := range ix.bookings {
		if !t.Before(b.start) && !t.After(b.end) {
			out = append(out, b)
		}
	}
	return out
}

// overlapping returns the bookings whose window intersects p, touching
// endpoints included
func (ix *overlapIndex) overlapping(p period.Period) []booking {
	var out []booking
	for _, b := range ix.bookings {
		if !b.start.After(p.End) && !p.Start.After(b.end) {
			out = append(out, b)
		}
	}
	return out
}
