package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/google/uuid"
)

var (
	ErrNotFeasible       = errors.New("reservation cannot be served")
	ErrInsufficientStock = errors.New("not enough units available for checkout")
)

// ReservationResult is a stored reservation with its feasibility
type ReservationResult struct {
	Reservation *reservation.Reservation `json:"reservation"`
	Check       availability.CheckResult `json:"check"`
}

type Handler struct {
	assets       stock.AssetRepository
	reservations reservation.Repository
	stockSvc     *stock.Service
	engine       *availability.Engine
	now          func() time.Time
}

func NewHandler(
	assets stock.AssetRepository,
	reservations reservation.Repository,
	stockSvc *stock.Service,
	engine *availability.Engine,
) *Handler {
	return &Handler{
		assets:       assets,
		reservations: reservations,
		stockSvc:     stockSvc,
		engine:       engine,
		now:          time.Now,
	}
}

// CreateAsset registers a lendable asset with its initial stock
func (h *Handler) CreateAsset(ctx context.Context, cmd CreateAsset) (*stock.Asset, error) {
	now := h.now()
	a := &stock.Asset{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(cmd.Name),
		Description:   cmd.Description,
		CategoryID:    cmd.CategoryID,
		StockQuantity: cmd.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := h.assets.CreateAsset(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RecordStockEvent appends a ledger entry for an existing asset
func (h *Handler) RecordStockEvent(ctx context.Context, cmd RecordStockEvent) (*stock.Event, error) {
	if _, err := h.assets.GetAsset(ctx, cmd.AssetID); err != nil {
		return nil, err
	}
	return h.stockSvc.RecordEvent(ctx, cmd.AssetID, cmd.EventType, cmd.Quantity, cmd.Date, cmd.Description)
}

// CreateReservation stores a new reservation whatever its feasibility and
// reports the feasibility alongside. Nothing is stored when the check
// itself errors.
func (h *Handler) CreateReservation(ctx context.Context, cmd CreateReservation) (*ReservationResult, error) {
	items, err := h.reservationItems(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}

	r, err := reservation.New(cmd.CustomerID, cmd.CheckoutDate, cmd.ReturnDate, items, h.now())
	if err != nil {
		return nil, err
	}
	r.Notes = cmd.Notes

	check, err := h.engine.Check(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := h.reservations.Create(ctx, r); err != nil {
		return nil, err
	}
	return &ReservationResult{Reservation: r, Check: check}, nil
}

// UpdateReservation replaces the dates, notes and items of a created or
// validated reservation. A validated reservation must stay feasible.
func (h *Handler) UpdateReservation(ctx context.Context, cmd UpdateReservation) (*ReservationResult, error) {
	items, err := h.reservationItems(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}

	now := h.now()
	var check availability.CheckResult
	r, err := h.reservations.Update(ctx, cmd.ReservationID, func(r *reservation.Reservation) error {
		if err := r.Edit(cmd.CheckoutDate, cmd.ReturnDate, cmd.Notes, items, now); err != nil {
			return err
		}
		var err error
		if check, err = h.engine.Check(ctx, r); err != nil {
			return err
		}
		if r.Status == reservation.StatusValidated && !check.IsOK {
			return fmt.Errorf("%w: %s", ErrNotFeasible, describeShortfalls(check.ProblematicItems))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ReservationResult{Reservation: r, Check: check}, nil
}

func (h *Handler) reservationItems(ctx context.Context, lines []ReservationItem) ([]reservation.Item, error) {
	items := make([]reservation.Item, 0, len(lines))
	for _, line := range lines {
		if _, err := h.assets.GetAsset(ctx, line.AssetID); err != nil {
			return nil, err
		}
		items = append(items, reservation.Item{AssetID: line.AssetID, QuantityReserved: line.Quantity})
	}
	return items, nil
}

// ValidateReservation confirms a reservation once every item can be served
func (h *Handler) ValidateReservation(ctx context.Context, cmd ValidateReservation) (*reservation.Reservation, error) {
	now := h.now()
	return h.reservations.Update(ctx, cmd.ReservationID, func(r *reservation.Reservation) error {
		if r.CanTransitionTo(reservation.StatusValidated) {
			check, err := h.engine.Check(ctx, r)
			if err != nil {
				return err
			}
			if !check.IsOK {
				return fmt.Errorf("%w: %s", ErrNotFeasible, describeShortfalls(check.ProblematicItems))
			}
		}
		return r.Validate(now)
	})
}

// CancelReservation releases the units a reservation holds
func (h *Handler) CancelReservation(ctx context.Context, cmd CancelReservation) (*reservation.Reservation, error) {
	now := h.now()
	return h.reservations.Update(ctx, cmd.ReservationID, func(r *reservation.Reservation) error {
		return r.Cancel(now)
	})
}

// CheckoutReservation hands units out. Every quantity must fit in what is
// available right now once the reservation's own demand is left out.
func (h *Handler) CheckoutReservation(ctx context.Context, cmd CheckoutReservation) (*reservation.Reservation, error) {
	now := h.now()
	return h.reservations.Update(ctx, cmd.ReservationID, func(r *reservation.Reservation) error {
		if !r.CanTransitionTo(reservation.StatusCheckedOut) {
			return r.Checkout(now, nil)
		}

		quantities := make(map[string]int, len(r.Items))
		for _, item := range r.Items {
			quantities[item.AssetID] = item.QuantityReserved
		}
		for assetID, qty := range cmd.Quantities {
			quantities[assetID] = qty
		}

		for _, item := range r.Items {
			qty := quantities[item.AssetID]
			if qty <= 0 {
				continue
			}
			asset, err := h.assets.GetAsset(ctx, item.AssetID)
			if err != nil {
				return err
			}
			status, err := h.engine.Status(ctx, asset, now, r.ID)
			if err != nil {
				return err
			}
			if qty > status.Available {
				return fmt.Errorf("%w: %s (requested %d, available %d)", ErrInsufficientStock, asset.Name, qty, status.Available)
			}
		}

		return r.Checkout(now, quantities)
	})
}

// ReturnReservation closes a checked out reservation. Damaged units are
// recorded as ISSUE and destroyed units as DESTRUCTION ledger entries dated
// at the return. The reservation stays checked out until every entry is
// recorded.
func (h *Handler) ReturnReservation(ctx context.Context, cmd ReturnReservation) (*reservation.Reservation, error) {
	now := h.now()
	return h.reservations.Update(ctx, cmd.ReservationID, func(r *reservation.Reservation) error {
		counts := make(map[string]reservation.ReturnCount, len(r.Items))
		for _, item := range r.Items {
			counts[item.AssetID] = reservation.ReturnCount{Returned: item.QuantityCheckedOut}
		}
		for assetID, c := range cmd.Counts {
			counts[assetID] = c
		}
		if err := r.Return(now, counts); err != nil {
			return err
		}
		return h.recordLosses(ctx, r, counts, now)
	})
}

type loss struct {
	eventType   stock.EventType
	quantity    int
	description string
}

// recordLosses appends the ledger entries of a return. Entries an earlier
// attempt already recorded for the reservation are not appended twice.
func (h *Handler) recordLosses(ctx context.Context, r *reservation.Reservation, counts map[string]reservation.ReturnCount, at time.Time) error {
	for _, item := range r.Items {
		c := counts[item.AssetID]
		losses := []loss{
			{stock.Issue, c.Damaged, fmt.Sprintf("damaged on return of reservation %s", r.ID)},
			{stock.Destruction, c.Destroyed, fmt.Sprintf("destroyed during reservation %s", r.ID)},
		}

		var recorded map[stock.EventType]bool
		for _, l := range losses {
			if l.quantity <= 0 {
				continue
			}
			if recorded == nil {
				var err error
				if recorded, err = h.recordedFor(ctx, item.AssetID, r.ID); err != nil {
					return err
				}
			}
			if recorded[l.eventType] {
				continue
			}
			if _, err := h.stockSvc.RecordReferencedEvent(ctx, item.AssetID, l.eventType, l.quantity, at, l.description, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) recordedFor(ctx context.Context, assetID, reservationID string) (map[stock.EventType]bool, error) {
	events, err := h.stockSvc.Events(ctx, assetID, time.Time{})
	if err != nil {
		return nil, err
	}
	recorded := make(map[stock.EventType]bool)
	for _, e := range events {
		if e.Reference == reservationID {
			recorded[e.Type] = true
		}
	}
	return recorded, nil
}

func describeShortfalls(items map[string]availability.ItemShortfall) string {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		s := items[name]
		parts[i] = fmt.Sprintf("%s (reserved %d, available %d)", name, s.ReservedQuantity, s.AvailableQuantity)
	}
	return strings.Join(parts, ", ")
}
