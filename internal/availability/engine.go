// Package availability computes how many units of an asset can be lent at
// an instant or over a period, from the stock ledger and the reservations.
// Every call re-derives its result from the Source; nothing is cached.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/period"
)

var ErrInvalidPeriod = errors.New("invalid period: start is after end")

// Source is the read side the engine depends on
type Source interface {
	Asset(ctx context.Context, id string) (*stock.Asset, error)
	// StockEvents returns the ledger entries of the asset dated at or
	// before until
	StockEvents(ctx context.Context, assetID string, until time.Time) ([]stock.Event, error)
	// Reservations returns the reservations holding an item for the asset
	Reservations(ctx context.Context, assetID string) ([]*reservation.Reservation, error)
}

// Status is the state of an asset at one instant.
// CheckedOut is the part of Reserved already handed out.
type Status struct {
	Total      int `json:"total"`
	Damaged    int `json:"damaged"`
	CheckedOut int `json:"checked_out"`
	Reserved   int `json:"reserved"`
	Available  int `json:"available"`
}

// Overcommitted reports whether damaged and reserved units exceed the
// stock, in which case Available was floored to zero
func (s Status) Overcommitted() bool {
	return s.Damaged+s.Reserved > s.Total
}

// Analysis holds the least favorable values observed over a period
type Analysis struct {
	Status
	Period  period.Period `json:"period"`
	Samples int           `json:"samples"`
}

// ItemShortfall describes an item that cannot be served
type ItemShortfall struct {
	ReservedQuantity  int `json:"reserved_quantity"`
	AvailableQuantity int `json:"available_quantity"`
}

// CheckResult is the feasibility of a whole reservation.
// ProblematicItems is keyed by asset name.
type CheckResult struct {
	IsOK             bool                     `json:"is_ok"`
	ProblematicItems map[string]ItemShortfall `json:"problematic_items"`
}

type Engine struct {
	source Source
	now    func() time.Time
}

// NewEngine creates an engine reading from source. now defaults to time.Now.
func NewEngine(source Source, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{source: source, now: now}
}

// snapshot is the data of one asset loaded once per call
type snapshot struct {
	baseline int
	events   []stock.Event
	index    *overlapIndex
}

func (e *Engine) load(ctx context.Context, asset *stock.Asset, until time.Time, excludedID string, now time.Time) (*snapshot, error) {
	events, err := e.source.StockEvents(ctx, asset.ID, until)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock events of %s: %w", asset.ID, err)
	}
	reservations, err := e.source.Reservations(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations of %s: %w", asset.ID, err)
	}
	return &snapshot{
		baseline: asset.StockQuantity,
		events:   events,
		index:    newOverlapIndex(asset.ID, reservations, excludedID, now),
	}, nil
}

func (s *snapshot) statusAt(at time.Time) Status {
	level := stock.Replay(s.baseline, s.events, at)

	st := Status{Total: level.Total, Damaged: level.Damaged}
	if st.Damaged < 0 {
		st.Damaged = 0
	}
	for _, b := range s.index.activeAt(at) {
		st.Reserved += b.reserved
		st.CheckedOut += b.checkedOut
	}

	st.Available = st.Total - (st.Damaged + st.Reserved)
	if st.Available < 0 {
		st.Available = 0
	}
	return st
}

// Status returns the state of asset at the given instant, leaving out the
// demand of excludedID. A zero at means now.
func (e *Engine) Status(ctx context.Context, asset *stock.Asset, at time.Time, excludedID string) (Status, error) {
	now := e.now()
	if at.IsZero() {
		at = now
	}

	snap, err := e.load(ctx, asset, at, excludedID, now)
	if err != nil {
		return Status{}, err
	}
	return snap.statusAt(at), nil
}

// Analyze returns the worst values of Status over p, leaving out the demand
// of excludedID. Available is a lower bound for every instant of p.
func (e *Engine) Analyze(ctx context.Context, asset *stock.Asset, p period.Period, excludedID string) (Analysis, error) {
	return e.analyze(ctx, asset, p, excludedID, e.now())
}

func (e *Engine) analyze(ctx context.Context, asset *stock.Asset, p period.Period, excludedID string, now time.Time) (Analysis, error) {
	if !p.Valid() {
		return Analysis{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}

	snap, err := e.load(ctx, asset, p.End, excludedID, now)
	if err != nil {
		return Analysis{}, err
	}

	dates := criticalDates(p, snap)
	result := Analysis{Period: p, Samples: len(dates)}
	for i, at := range dates {
		st := snap.statusAt(at)
		if i == 0 {
			result.Status = st
			continue
		}
		result.Total = min(result.Total, st.Total)
		result.Damaged = max(result.Damaged, st.Damaged)
		result.CheckedOut = max(result.CheckedOut, st.CheckedOut)
		result.Reserved = max(result.Reserved, st.Reserved)
		result.Available = min(result.Available, st.Available)
	}
	return result, nil
}

// criticalDates lists, in ascending order and without duplicates, the
// instants of p at which the status can change: the bounds of p, the ledger
// entries and the window bounds of overlapping bookings.
func criticalDates(p period.Period, snap *snapshot) []time.Time {
	dates := []time.Time{p.Start, p.End}
	for _, ev := range snap.events {
		if p.Contains(ev.Date) {
			dates = append(dates, ev.Date)
		}
	}
	for _, b := range snap.index.overlapping(p) {
		if p.Contains(b.start) {
			dates = append(dates, b.start)
		}
		if p.Contains(b.end) {
			dates = append(dates, b.end)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := dates[:0]
	for i, d := range dates {
		if i > 0 && d.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Check verifies that every item of r can be served over r's own window,
// r's demand excluded.
func (e *Engine) Check(ctx context.Context, r *reservation.Reservation) (CheckResult, error) {
	now := e.now()
	p := period.New(r.StartDate(), r.ReturnDateAt(now))

	result := CheckResult{IsOK: true, ProblematicItems: make(map[string]ItemShortfall)}
	for _, item := range r.Items {
		asset, err := e.source.Asset(ctx, item.AssetID)
		if err != nil {
			return CheckResult{}, fmt.Errorf("failed to load asset %s: %w", item.AssetID, err)
		}

		analysis, err := e.analyze(ctx, asset, p, r.ID, now)
		if err != nil {
			return CheckResult{}, err
		}

		if item.QuantityReserved > analysis.Available {
			result.IsOK = false
			result.ProblematicItems[asset.Name] = ItemShortfall{
				ReservedQuantity:  item.QuantityReserved,
				AvailableQuantity: analysis.Available,
			}
		}
	}
	return result, nil
}
