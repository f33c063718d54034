package query

import (
	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/period"
)

// AssetStatusView is an asset with its state at one instant
type AssetStatusView struct {
	Asset  *stock.Asset        `json:"asset"`
	Status availability.Status `json:"status"`
}

// AssetAvailabilityView is an asset with its worst state over a period
type AssetAvailabilityView struct {
	Asset    *stock.Asset          `json:"asset"`
	Analysis availability.Analysis `json:"analysis"`
}

// AssetSearchResult is one row of the asset search. Analysis is set when the
// search covers a period, Status when it targets a single instant.
type AssetSearchResult struct {
	Asset     *stock.Asset           `json:"asset"`
	Available int                    `json:"available"`
	Status    *availability.Status   `json:"status,omitempty"`
	Analysis  *availability.Analysis `json:"analysis,omitempty"`
}

// ReservationListRow is one row of the reservation list
type ReservationListRow struct {
	Reservation *reservation.Reservation  `json:"reservation"`
	IsOK        bool                      `json:"is_ok"`
	Check       *availability.CheckResult `json:"check,omitempty"`
}

// AssetLedgerView is the ledger history of an asset over a period
type AssetLedgerView struct {
	Asset  *stock.Asset  `json:"asset"`
	Period period.Period `json:"period"`
	Events []stock.Event `json:"events"`
}
