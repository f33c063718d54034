package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusValidated  Status = "validated"
	StatusCheckedOut Status = "checked_out"
	StatusReturned   Status = "returned"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNoItems             = errors.New("reservation must have at least one item")
	ErrInvalidDates        = errors.New("checkout date must not be after return date")
	ErrInvalidQuantity     = errors.New("reserved quantity must be positive")
	ErrDuplicateItem       = errors.New("asset appears twice in reservation")
	ErrUnknownItem         = errors.New("asset is not part of reservation")
	ErrInvalidCheckout     = errors.New("checked out quantity must not be negative")
	ErrInvalidReturn       = errors.New("returned, damaged and destroyed quantities exceed checked out quantity")
	ErrInvalidStatus       = errors.New("invalid reservation status transition")
	ErrAlreadyCancelled    = errors.New("reservation is already cancelled")
	ErrAlreadyReturned     = errors.New("reservation is already returned")
	ErrNotCheckedOut       = errors.New("reservation must be checked out before return")
	ErrCheckedOut          = errors.New("cannot cancel checked out reservation")
	ErrNotEditable         = errors.New("only created or validated reservations can be edited")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusCreated:    {StatusValidated, StatusCheckedOut, StatusCancelled},
	StatusValidated:  {StatusCheckedOut, StatusCancelled},
	StatusCheckedOut: {StatusReturned},
	StatusReturned:   {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Active reports whether reservations in this status hold stock
func (s Status) Active() bool {
	return s != StatusReturned && s != StatusCancelled
}

// Item is the per-asset line of a reservation
type Item struct {
	AssetID            string `json:"asset_id" db:"asset_id"`
	QuantityReserved   int    `json:"quantity_reserved" db:"quantity_reserved"`
	QuantityCheckedOut int    `json:"quantity_checked_out" db:"quantity_checked_out"`
	QuantityReturned   int    `json:"quantity_returned" db:"quantity_returned"`
	QuantityDamaged    int    `json:"quantity_damaged" db:"quantity_damaged"`
	Notes              string `json:"notes,omitempty" db:"notes"`
}

type Reservation struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	Status             Status     `json:"status"`
	CheckoutDate       time.Time  `json:"checkout_date"`
	ReturnDate         time.Time  `json:"return_date"`
	ActualCheckoutDate *time.Time `json:"actual_checkout_date,omitempty"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Items              []Item     `json:"items"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ValidatedAt        *time.Time `json:"validated_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

// New creates a reservation in the created status
func New(customerID string, checkout, ret time.Time, items []Item, now time.Time) (*Reservation, error) {
	if checkout.After(ret) {
		return nil, ErrInvalidDates
	}
	lines, err := newItems(items)
	if err != nil {
		return nil, err
	}

	return &Reservation{
		ID:           uuid.New().String(),
		CustomerID:   customerID,
		Status:       StatusCreated,
		CheckoutDate: checkout,
		ReturnDate:   ret,
		Items:        lines,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// newItems keeps only the reserved quantity of each line
func newItems(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	seen := make(map[string]bool, len(items))
	lines := make([]Item, 0, len(items))
	for _, item := range items {
		if item.QuantityReserved <= 0 {
			return nil, fmt.Errorf("%w: asset %s", ErrInvalidQuantity, item.AssetID)
		}
		if seen[item.AssetID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, item.AssetID)
		}
		seen[item.AssetID] = true
		lines = append(lines, Item{AssetID: item.AssetID, QuantityReserved: item.QuantityReserved})
	}
	return lines, nil
}

// Editable reports whether dates and items may still change
func (r *Reservation) Editable() bool {
	return r.Status == StatusCreated || r.Status == StatusValidated
}

// Edit replaces the planned dates, notes and items. The status is kept.
func (r *Reservation) Edit(checkout, ret time.Time, notes string, items []Item, at time.Time) error {
	if !r.Editable() {
		return fmt.Errorf("%w: reservation is %s", ErrNotEditable, r.Status)
	}
	if checkout.After(ret) {
		return ErrInvalidDates
	}
	lines, err := newItems(items)
	if err != nil {
		return err
	}

	r.CheckoutDate = checkout
	r.ReturnDate = ret
	r.Notes = notes
	r.Items = lines
	r.UpdatedAt = at
	return nil
}

// StartDate is the actual checkout date when known, else the planned one
func (r *Reservation) StartDate() time.Time {
	if r.ActualCheckoutDate != nil {
		return *r.ActualCheckoutDate
	}
	return r.CheckoutDate
}

// ReturnDateAt is the actual return date when known. An overdue checked out
// reservation is considered to end now.
func (r *Reservation) ReturnDateAt(now time.Time) time.Time {
	if r.ActualReturnDate != nil {
		return *r.ActualReturnDate
	}
	if r.Status == StatusCheckedOut && r.ReturnDate.Before(now) {
		return now
	}
	return r.ReturnDate
}

// Item returns the line for an asset
func (r *Reservation) Item(assetID string) (*Item, bool) {
	for i := range r.Items {
		if r.Items[i].AssetID == assetID {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// CanTransitionTo checks if the reservation can transition to the target status
func (r *Reservation) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[r.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (r *Reservation) transitionError(target Status) error {
	switch {
	case r.Status == StatusCancelled:
		return ErrAlreadyCancelled
	case r.Status == StatusReturned:
		return ErrAlreadyReturned
	case r.Status == StatusCheckedOut && target == StatusCancelled:
		return ErrCheckedOut
	case target == StatusReturned:
		return ErrNotCheckedOut
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, r.Status, target)
	}
}

func (r *Reservation) transition(target Status, at time.Time) error {
	if !r.CanTransitionTo(target) {
		return r.transitionError(target)
	}
	r.Status = target
	r.UpdatedAt = at
	return nil
}

func (r *Reservation) Validate(at time.Time) error {
	if err := r.transition(StatusValidated, at); err != nil {
		return err
	}
	r.ValidatedAt = &at
	return nil
}

func (r *Reservation) Cancel(at time.Time) error {
	if err := r.transition(StatusCancelled, at); err != nil {
		return err
	}
	r.CancelledAt = &at
	return nil
}

// Checkout hands out the given quantity per asset. Assets missing from
// quantities are checked out with zero units.
func (r *Reservation) Checkout(at time.Time, quantities map[string]int) error {
	if !r.CanTransitionTo(StatusCheckedOut) {
		return r.transitionError(StatusCheckedOut)
	}
	for assetID, qty := range quantities {
		if _, ok := r.Item(assetID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItem, assetID)
		}
		if qty < 0 {
			return fmt.Errorf("%w: asset %s", ErrInvalidCheckout, assetID)
		}
	}

	for i := range r.Items {
		r.Items[i].QuantityCheckedOut = quantities[r.Items[i].AssetID]
	}
	r.ActualCheckoutDate = &at
	return r.transition(StatusCheckedOut, at)
}

// ReturnCount is what came back for one asset
type ReturnCount struct {
	Returned  int `json:"returned"`
	Damaged   int `json:"damaged"`
	Destroyed int `json:"destroyed"`
}

func (c ReturnCount) total() int {
	return c.Returned + c.Damaged + c.Destroyed
}

// Return closes a checked out reservation. Every count is validated before
// any item is modified.
func (r *Reservation) Return(at time.Time, counts map[string]ReturnCount) error {
	if !r.CanTransitionTo(StatusReturned) {
		return r.transitionError(StatusReturned)
	}
	for assetID, c := range counts {
		item, ok := r.Item(assetID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItem, assetID)
		}
		if c.Returned < 0 || c.Damaged < 0 || c.Destroyed < 0 || c.total() > item.QuantityCheckedOut {
			return fmt.Errorf("%w: asset %s", ErrInvalidReturn, assetID)
		}
	}

	for i := range r.Items {
		c, ok := counts[r.Items[i].AssetID]
		if !ok {
			continue
		}
		r.Items[i].QuantityReturned = c.Returned
		r.Items[i].QuantityDamaged = c.Damaged
		if c.Destroyed > 0 {
			r.Items[i].Notes = fmt.Sprintf("destroyed: %d", c.Destroyed)
		}
	}
	r.ActualReturnDate = &at
	return r.transition(StatusReturned, at)
}
