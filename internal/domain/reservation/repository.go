package reservation

import "context"

// Repository persists reservations together with their items
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id string) (*Reservation, error)

	// List returns every reservation, latest planned checkout first
	List(ctx context.Context) ([]*Reservation, error)

	// ListByAsset returns every reservation holding an item for the asset,
	// whatever its status
	ListByAsset(ctx context.Context, assetID string) ([]*Reservation, error)

	// Update loads the reservation, applies fn and stores the result.
	// Concurrent updates of one reservation are serialized.
	Update(ctx context.Context, id string, fn func(r *Reservation) error) (*Reservation, error)
}
