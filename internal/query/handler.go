package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/period"
)

// SearchFilter selects the assets of a search. A zero Start means now; a
// zero End searches a single instant.
type SearchFilter struct {
	Query      string
	CategoryID string
	Exclude    []string
	Start      time.Time
	End        time.Time
}

// ReservationFilter selects the rows of the reservation list. Status wins
// over ActiveOnly. Search matches the customer and the notes.
type ReservationFilter struct {
	Status     reservation.Status
	ActiveOnly bool
	Search     string
}

// ledgerHistoryWindow is how far back the ledger history goes by default
const ledgerHistoryWindow = 365 * 24 * time.Hour

type Handler struct {
	assets       stock.AssetRepository
	reservations reservation.Repository
	ledger       availability.LedgerReader
	engine       *availability.Engine
	now          func() time.Time
}

func NewHandler(
	assets stock.AssetRepository,
	reservations reservation.Repository,
	ledger availability.LedgerReader,
	engine *availability.Engine,
) *Handler {
	return &Handler{
		assets:       assets,
		reservations: reservations,
		ledger:       ledger,
		engine:       engine,
		now:          time.Now,
	}
}

func (h *Handler) GetAsset(ctx context.Context, id string) (*stock.Asset, error) {
	return h.assets.GetAsset(ctx, id)
}

func (h *Handler) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	return h.reservations.Get(ctx, id)
}

// AssetStatus returns the state of an asset at at. A zero at means now.
func (h *Handler) AssetStatus(ctx context.Context, assetID string, at time.Time) (*AssetStatusView, error) {
	asset, err := h.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	status, err := h.engine.Status(ctx, asset, at, "")
	if err != nil {
		return nil, err
	}
	return &AssetStatusView{Asset: asset, Status: status}, nil
}

// AssetAvailability returns the worst state of an asset over [start, end]
func (h *Handler) AssetAvailability(ctx context.Context, assetID string, start, end time.Time) (*AssetAvailabilityView, error) {
	p, err := newPeriod(start, end)
	if err != nil {
		return nil, err
	}
	asset, err := h.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	analysis, err := h.engine.Analyze(ctx, asset, p, "")
	if err != nil {
		return nil, err
	}
	return &AssetAvailabilityView{Asset: asset, Analysis: analysis}, nil
}

// CheckReservation reports whether a stored reservation can be served
func (h *Handler) CheckReservation(ctx context.Context, id string) (availability.CheckResult, error) {
	r, err := h.reservations.Get(ctx, id)
	if err != nil {
		return availability.CheckResult{}, err
	}
	return h.engine.Check(ctx, r)
}

// ListReservations returns the reservations matching f, latest planned
// checkout first. Created and validated rows carry their feasibility; the
// others have nothing left to serve and are always ok.
func (h *Handler) ListReservations(ctx context.Context, f ReservationFilter) ([]ReservationListRow, error) {
	all, err := h.reservations.List(ctx)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	rows := make([]ReservationListRow, 0, len(all))
	for _, r := range all {
		switch {
		case f.Status != "":
			if r.Status != f.Status {
				continue
			}
		case f.ActiveOnly:
			if !r.Status.Active() {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(r.CustomerID), search) && !strings.Contains(strings.ToLower(r.Notes), search) {
			continue
		}

		row := ReservationListRow{Reservation: r, IsOK: true}
		if r.Editable() {
			check, err := h.engine.Check(ctx, r)
			if err != nil {
				return nil, err
			}
			row.IsOK = check.IsOK
			row.Check = &check
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AssetLedger returns the ledger entries of an asset dated within
// [start, end], newest first. A zero end means now and a zero start goes
// back one year from end.
func (h *Handler) AssetLedger(ctx context.Context, assetID string, start, end time.Time) (*AssetLedgerView, error) {
	if end.IsZero() {
		end = h.now()
	}
	if start.IsZero() {
		start = end.Add(-ledgerHistoryWindow)
	}
	p, err := newPeriod(start, end)
	if err != nil {
		return nil, err
	}

	asset, err := h.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	events, err := h.ledger.Events(ctx, assetID, end)
	if err != nil {
		return nil, err
	}

	history := make([]stock.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].Date.Before(start) {
			history = append(history, events[i])
		}
	}
	return &AssetLedgerView{Asset: asset, Period: p, Events: history}, nil
}

// SearchAssets lists the assets with stock matching f, ordered by category
// and name, with their availability at f.Start or over [f.Start, f.End]
func (h *Handler) SearchAssets(ctx context.Context, f SearchFilter) ([]AssetSearchResult, error) {
	start := f.Start
	if start.IsZero() {
		start = h.now()
	}

	var p period.Period
	if !f.End.IsZero() {
		var err error
		if p, err = newPeriod(start, f.End); err != nil {
			return nil, err
		}
	}

	assets, err := h.assets.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	assets = filterAssets(assets, f)

	results := make([]AssetSearchResult, 0, len(assets))
	for _, asset := range assets {
		row := AssetSearchResult{Asset: asset}
		if f.End.IsZero() {
			status, err := h.engine.Status(ctx, asset, start, "")
			if err != nil {
				return nil, err
			}
			row.Status = &status
			row.Available = status.Available
		} else {
			analysis, err := h.engine.Analyze(ctx, asset, p, "")
			if err != nil {
				return nil, err
			}
			row.Analysis = &analysis
			row.Available = analysis.Available
		}
		results = append(results, row)
	}
	return results, nil
}

func filterAssets(assets []*stock.Asset, f SearchFilter) []*stock.Asset {
	excluded := make(map[string]bool, len(f.Exclude))
	for _, id := range f.Exclude {
		excluded[id] = true
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))

	var out []*stock.Asset
	for _, a := range assets {
		if a.StockQuantity <= 0 || excluded[a.ID] {
			continue
		}
		if f.CategoryID != "" && a.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Name), q) && !strings.Contains(strings.ToLower(a.Description), q) {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CategoryID != out[j].CategoryID {
			return out[i].CategoryID < out[j].CategoryID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// newPeriod rejects reversed bounds instead of swapping them
func newPeriod(start, end time.Time) (period.Period, error) {
	if start.After(end) {
		return period.Period{}, fmt.Errorf("%w: %s after %s", availability.ErrInvalidPeriod,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return period.New(start, end), nil
}
