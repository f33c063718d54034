package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
)

// MemoryRepository is an in-memory implementation of the asset and
// reservation repositories
type MemoryRepository struct {
	mu           sync.RWMutex
	assets       map[string]*stock.Asset
	reservations map[string]*reservation.Reservation

	// per-reservation update locks, held while fn runs so that fn may read
	// the repository again
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assets:       make(map[string]*stock.Asset),
		reservations: make(map[string]*reservation.Reservation),
		locks:        make(map[string]*sync.Mutex),
	}
}

func (m *MemoryRepository) CreateAsset(ctx context.Context, a *stock.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetAsset(ctx context.Context, id string) (*stock.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, stock.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAssets returns every asset ordered by name
func (m *MemoryRepository) ListAssets(ctx context.Context) ([]*stock.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*stock.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryRepository) Create(ctx context.Context, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reservations[r.ID] = cloneReservation(r)
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return cloneReservation(r), nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]*reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*reservation.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		result = append(result, cloneReservation(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CheckoutDate.Equal(result[j].CheckoutDate) {
			return result[i].CheckoutDate.After(result[j].CheckoutDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryRepository) ListByAsset(ctx context.Context, assetID string) ([]*reservation.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*reservation.Reservation
	for _, r := range m.reservations {
		if _, ok := r.Item(assetID); ok {
			result = append(result, cloneReservation(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id string, fn func(r *reservation.Reservation) error) (*reservation.Reservation, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.reservations[id] = cloneReservation(current)
	m.mu.Unlock()

	return current, nil
}

func (m *MemoryRepository) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	cp := *r
	cp.Items = append([]reservation.Item(nil), r.Items...)
	cp.ActualCheckoutDate = cloneTime(r.ActualCheckoutDate)
	cp.ActualReturnDate = cloneTime(r.ActualReturnDate)
	cp.ValidatedAt = cloneTime(r.ValidatedAt)
	cp.CancelledAt = cloneTime(r.CancelledAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
