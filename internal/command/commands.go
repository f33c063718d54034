package command

import (
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
)

// Asset Commands
type CreateAsset struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	CategoryID    string `json:"category_id"`
	StockQuantity int    `json:"stock_quantity"`
}

type RecordStockEvent struct {
	AssetID     string          `json:"asset_id"`
	EventType   stock.EventType `json:"event_type"`
	Quantity    int             `json:"quantity"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

// Reservation Commands
type ReservationItem struct {
	AssetID  string `json:"asset_id"`
	Quantity int    `json:"quantity"`
}

type CreateReservation struct {
	CustomerID   string            `json:"customer_id"`
	CheckoutDate time.Time         `json:"checkout_date"`
	ReturnDate   time.Time         `json:"return_date"`
	Notes        string            `json:"notes"`
	Items        []ReservationItem `json:"items"`
}

// UpdateReservation replaces the plan of a reservation that is not yet
// checked out
type UpdateReservation struct {
	ReservationID string            `json:"reservation_id"`
	CheckoutDate  time.Time         `json:"checkout_date"`
	ReturnDate    time.Time         `json:"return_date"`
	Notes         string            `json:"notes"`
	Items         []ReservationItem `json:"items"`
}

type ValidateReservation struct {
	ReservationID string `json:"reservation_id"`
}

type CancelReservation struct {
	ReservationID string `json:"reservation_id"`
}

// CheckoutReservation hands out units. Assets missing from Quantities are
// checked out with their reserved quantity.
type CheckoutReservation struct {
	ReservationID string         `json:"reservation_id"`
	Quantities    map[string]int `json:"quantities"`
}

// ReturnReservation closes a reservation. Assets missing from Counts are
// returned in full.
type ReturnReservation struct {
	ReservationID string                             `json:"reservation_id"`
	Counts        map[string]reservation.ReturnCount `json:"counts"`
}
