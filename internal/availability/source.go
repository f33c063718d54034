package availability

import (
	"context"
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
)

// LedgerReader reads the stock ledger of an asset
type LedgerReader interface {
	Events(ctx context.Context, assetID string, until time.Time) ([]stock.Event, error)
}

type repositorySource struct {
	assets       stock.AssetRepository
	ledger       LedgerReader
	reservations reservation.Repository
}

// NewSource assembles a Source from the asset and reservation repositories
// and the stock ledger
func NewSource(assets stock.AssetRepository, ledger LedgerReader, reservations reservation.Repository) Source {
	return &repositorySource{
		assets:       assets,
		ledger:       ledger,
		reservations: reservations,
	}
}

func (s *repositorySource) Asset(ctx context.Context, id string) (*stock.Asset, error) {
	return s.assets.GetAsset(ctx, id)
}

func (s *repositorySource) StockEvents(ctx context.Context, assetID string, until time.Time) ([]stock.Event, error) {
	return s.ledger.Events(ctx, assetID, until)
}

func (s *repositorySource) Reservations(ctx context.Context, assetID string) ([]*reservation.Reservation, error) {
	return s.reservations.ListByAsset(ctx, assetID)
}
