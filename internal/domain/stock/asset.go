package stock

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidName      = errors.New("asset name is required")
	ErrInvalidStock     = errors.New("stock quantity must not be negative")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidEventType = errors.New("unknown stock event type")
	ErrMissingEventDate = errors.New("stock event date is required")
)

// Asset is a lendable item. StockQuantity is the quantity of record
// before any ledger event is applied.
type Asset struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	CategoryID    string    `json:"category_id,omitempty" db:"category_id"`
	StockQuantity int       `json:"stock_quantity" db:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields a new asset must carry
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidName
	}
	if a.StockQuantity < 0 {
		return ErrInvalidStock
	}
	return nil
}
