package query

import (
	"context"
	"testing"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/infrastructure/repository"
	"github.com/example/asset-lending/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.August, 11, 14, 0, 0, 0, time.UTC)

type fixture struct {
	handler  *Handler
	repo     *repository.MemoryRepository
	stockSvc *stock.Service
}

func newTestQueryHandler() *fixture {
	repo := repository.NewMemoryRepository()
	stockSvc := stock.NewService(mocks.NewMockEventStore())
	clock := func() time.Time { return now }
	engine := availability.NewEngine(availability.NewSource(repo, stockSvc, repo), clock)

	handler := NewHandler(repo, repo, stockSvc, engine)
	handler.now = clock
	return &fixture{handler: handler, repo: repo, stockSvc: stockSvc}
}

func (f *fixture) addAsset(t *testing.T, id, name, category string, qty int) *stock.Asset {
	t.Helper()
	a := &stock.Asset{ID: id, Name: name, CategoryID: category, StockQuantity: qty}
	require.NoError(t, f.repo.CreateAsset(context.Background(), a))
	return a
}

func (f *fixture) addReservation(t *testing.T, assetID string, qty int, start, end time.Time) *reservation.Reservation {
	t.Helper()
	r, err := reservation.New("customer-1", start, end, []reservation.Item{{AssetID: assetID, QuantityReserved: qty}}, now)
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), r))
	return r
}

// ============================================
// Asset Status Tests
// ============================================

func TestHandler_AssetStatus(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "", 10)
	_, err := f.stockSvc.RecordEvent(context.Background(), "tent", stock.Acquisition, 5, now.Add(-24*time.Hour), "")
	require.NoError(t, err)

	view, err := f.handler.AssetStatus(context.Background(), "tent", time.Time{})

	require.NoError(t, err)
	assert.Equal(t, "Tent", view.Asset.Name)
	assert.Equal(t, 15, view.Status.Total)
	assert.Equal(t, 15, view.Status.Available)
}

func TestHandler_AssetStatus_NotFound(t *testing.T) {
	f := newTestQueryHandler()

	view, err := f.handler.AssetStatus(context.Background(), "missing", now)

	assert.ErrorIs(t, err, stock.ErrAssetNotFound)
	assert.Nil(t, view)
}

// ============================================
// Asset Availability Tests
// ============================================

func TestHandler_AssetAvailability(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "", 5)
	f.addReservation(t, "tent", 3, now.Add(2*time.Hour), now.Add(4*time.Hour))

	view, err := f.handler.AssetAvailability(context.Background(), "tent", now, now.Add(6*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 2, view.Analysis.Available)
	assert.Equal(t, 3, view.Analysis.Reserved)
}

func TestHandler_AssetAvailability_ReversedPeriod(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "", 5)

	_, err := f.handler.AssetAvailability(context.Background(), "tent", now.Add(time.Hour), now)

	assert.ErrorIs(t, err, availability.ErrInvalidPeriod)
}

// ============================================
// Check Reservation Tests
// ============================================

func TestHandler_CheckReservation(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "", 5)
	f.addReservation(t, "tent", 3, now, now.Add(24*time.Hour))
	second := f.addReservation(t, "tent", 3, now.Add(time.Hour), now.Add(30*time.Hour))

	result, err := f.handler.CheckReservation(context.Background(), second.ID)

	require.NoError(t, err)
	assert.False(t, result.IsOK)
	assert.Equal(t, 2, result.ProblematicItems["Tent"].AvailableQuantity)
}

func TestHandler_CheckReservation_NotFound(t *testing.T) {
	f := newTestQueryHandler()

	_, err := f.handler.CheckReservation(context.Background(), "missing")

	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

// ============================================
// Search Tests
// ============================================

func TestHandler_SearchAssets_AtInstant(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "outdoor", 5)
	f.addAsset(t, "chair", "Chair", "furniture", 20)
	f.addAsset(t, "gone", "Broken bench", "furniture", 0)
	f.addReservation(t, "tent", 2, now.Add(-time.Hour), now.Add(time.Hour))

	results, err := f.handler.SearchAssets(context.Background(), SearchFilter{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Chair", results[0].Asset.Name)
	assert.Equal(t, 20, results[0].Available)
	assert.Equal(t, "Tent", results[1].Asset.Name)
	assert.Equal(t, 3, results[1].Available)
	assert.NotNil(t, results[1].Status)
	assert.Nil(t, results[1].Analysis)
}

func TestHandler_SearchAssets_OverPeriod(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "outdoor", 5)
	f.addReservation(t, "tent", 4, now.Add(5*time.Hour), now.Add(6*time.Hour))

	results, err := f.handler.SearchAssets(context.Background(), SearchFilter{Start: now, End: now.Add(8 * time.Hour)})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Available)
	assert.NotNil(t, results[0].Analysis)
}

func TestHandler_SearchAssets_Filters(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "outdoor", 5)
	f.addAsset(t, "tarp", "Tarp", "outdoor", 5)
	f.addAsset(t, "chair", "Folding chair", "furniture", 20)

	tests := []struct {
		name   string
		filter SearchFilter
		want   []string
	}{
		{"by query", SearchFilter{Query: "FOLD"}, []string{"chair"}},
		{"by category", SearchFilter{CategoryID: "outdoor"}, []string{"tarp", "tent"}},
		{"with exclusion", SearchFilter{CategoryID: "outdoor", Exclude: []string{"tarp"}}, []string{"tent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := f.handler.SearchAssets(context.Background(), tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, r := range results {
				ids = append(ids, r.Asset.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestHandler_SearchAssets_ReversedPeriod(t *testing.T) {
	f := newTestQueryHandler()

	_, err := f.handler.SearchAssets(context.Background(), SearchFilter{Start: now, End: now.Add(-time.Hour)})

	assert.ErrorIs(t, err, availability.ErrInvalidPeriod)
}

// ============================================
// Reservation List Tests
// ============================================

func TestHandler_ListReservations(t *testing.T) {
	f := newTestQueryHandler()
	ctx := context.Background()
	f.addAsset(t, "tent", "Tent", "outdoor", 5)
	f.addAsset(t, "chair", "Chair", "furniture", 10)

	newReservation := func(customer, assetID string, qty int, start time.Time) *reservation.Reservation {
		r, err := reservation.New(customer, start, start.Add(3*time.Hour), []reservation.Item{{AssetID: assetID, QuantityReserved: qty}}, now)
		require.NoError(t, err)
		require.NoError(t, f.repo.Create(ctx, r))
		return r
	}
	fits := newReservation("alice", "chair", 4, now.Add(2*time.Hour))
	tooBig := newReservation("bob", "tent", 6, now)
	cancelled := newReservation("carol", "tent", 1, now.Add(-3*time.Hour))
	_, err := f.repo.Update(ctx, cancelled.ID, func(r *reservation.Reservation) error { return r.Cancel(now) })
	require.NoError(t, err)

	rows, err := f.handler.ListReservations(ctx, ReservationFilter{})

	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, fits.ID, rows[0].Reservation.ID)
	assert.True(t, rows[0].IsOK)
	assert.Equal(t, tooBig.ID, rows[1].Reservation.ID)
	assert.False(t, rows[1].IsOK)
	require.NotNil(t, rows[1].Check)
	assert.Equal(t, availability.ItemShortfall{ReservedQuantity: 6, AvailableQuantity: 5}, rows[1].Check.ProblematicItems["Tent"])
	assert.Equal(t, cancelled.ID, rows[2].Reservation.ID)
	assert.True(t, rows[2].IsOK)
	assert.Nil(t, rows[2].Check)
}

func TestHandler_ListReservations_Filters(t *testing.T) {
	f := newTestQueryHandler()
	ctx := context.Background()
	f.addAsset(t, "tent", "Tent", "outdoor", 5)

	ids := make(map[string]string)
	for i, customer := range []string{"alice", "bob", "carol"} {
		r, err := reservation.New(customer, now.Add(time.Duration(3-i)*time.Hour), now.Add(5*time.Hour),
			[]reservation.Item{{AssetID: "tent", QuantityReserved: 1}}, now)
		require.NoError(t, err)
		require.NoError(t, f.repo.Create(ctx, r))
		ids[customer] = r.ID
	}
	_, err := f.repo.Update(ctx, ids["carol"], func(r *reservation.Reservation) error {
		r.Notes = "Cancelled by phone"
		return r.Cancel(now)
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter ReservationFilter
		want   []string
	}{
		{"everything", ReservationFilter{}, []string{"alice", "bob", "carol"}},
		{"active only", ReservationFilter{ActiveOnly: true}, []string{"alice", "bob"}},
		{"status wins over active only", ReservationFilter{Status: reservation.StatusCancelled, ActiveOnly: true}, []string{"carol"}},
		{"search customer", ReservationFilter{Search: "BOB"}, []string{"bob"}},
		{"search notes", ReservationFilter{Search: "phone"}, []string{"carol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := f.handler.ListReservations(ctx, tt.filter)
			require.NoError(t, err)

			var got []string
			for _, row := range rows {
				got = append(got, row.Reservation.CustomerID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================
// Asset Ledger Tests
// ============================================

func TestHandler_AssetLedger(t *testing.T) {
	f := newTestQueryHandler()
	ctx := context.Background()
	f.addAsset(t, "tent", "Tent", "", 5)
	days := func(n int) time.Time { return now.Add(time.Duration(n) * 24 * time.Hour) }
	for _, e := range []struct {
		eventType stock.EventType
		date      time.Time
	}{
		{stock.Acquisition, days(-400)},
		{stock.Issue, days(-10)},
		{stock.Repair, days(-1)},
		{stock.Sale, days(1)},
	} {
		_, err := f.stockSvc.RecordEvent(ctx, "tent", e.eventType, 1, e.date, "")
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       []stock.EventType
	}{
		{"last year by default", time.Time{}, time.Time{}, []stock.EventType{stock.Repair, stock.Issue}},
		{"explicit window", days(-500), days(-5), []stock.EventType{stock.Issue, stock.Acquisition}},
		{"includes future entries up to end", days(-2), days(2), []stock.EventType{stock.Sale, stock.Repair}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.handler.AssetLedger(ctx, "tent", tt.start, tt.end)
			require.NoError(t, err)

			var got []stock.EventType
			for _, e := range view.Events {
				got = append(got, e.Type)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Tent", view.Asset.Name)
		})
	}
}

func TestHandler_AssetLedger_Invalid(t *testing.T) {
	f := newTestQueryHandler()
	f.addAsset(t, "tent", "Tent", "", 5)

	_, err := f.handler.AssetLedger(context.Background(), "tent", now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, availability.ErrInvalidPeriod)

	_, err = f.handler.AssetLedger(context.Background(), "missing", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, stock.ErrAssetNotFound)
}
