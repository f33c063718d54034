package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/command"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/infrastructure/repository"
	"github.com/example/asset-lending/internal/infrastructure/store/mocks"
	"github.com/example/asset-lending/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testServer struct {
	router http.Handler
	logs   *observer.ObservedLogs
}

func newTestServer() *testServer {
	repo := repository.NewMemoryRepository()
	stockSvc := stock.NewService(mocks.NewMockEventStore())
	engine := availability.NewEngine(availability.NewSource(repo, stockSvc, repo), nil)

	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	handlers := NewHandlers(
		command.NewHandler(repo, repo, stockSvc, engine),
		query.NewHandler(repo, repo, stockSvc, engine),
		log,
	)
	return &testServer{router: NewRouter(handlers, log), logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) createAsset(t *testing.T, name string, qty int) stock.Asset {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/assets", map[string]any{"name": name, "stock_quantity": qty})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[stock.Asset](t, rec)
}

func (s *testServer) createReservation(t *testing.T, assetID string, qty int) command.ReservationResult {
	t.Helper()
	start := time.Now().UTC().Add(-time.Hour)
	rec := s.do(t, http.MethodPost, "/reservations", map[string]any{
		"customer_id":   "customer-1",
		"checkout_date": start,
		"return_date":   start.Add(48 * time.Hour),
		"items":         []map[string]any{{"asset_id": assetID, "quantity": qty}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[command.ReservationResult](t, rec)
}

// ============================================
// Asset Endpoint Tests
// ============================================

func TestHealth(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAsset_Invalid(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/assets", map[string]any{"name": "", "stock_quantity": 3})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "name")
}

func TestCreateAsset_MalformedBody(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/assets", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetStatus(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 10)
	yesterday := time.Now().UTC().Add(-24 * time.Hour)

	rec := s.do(t, http.MethodPost, "/assets/"+a.ID+"/events", map[string]any{
		"event_type": "ACQUISITION",
		"quantity":   5,
		"date":       yesterday,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/assets/"+a.ID+"/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[query.AssetStatusView](t, rec)
	assert.Equal(t, availability.Status{Total: 15, Available: 15}, view.Status)
}

func TestGetAssetStatus_Errors(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 10)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"unknown asset", "/assets/missing/status", http.StatusNotFound},
		{"bad timestamp", "/assets/" + a.ID + "/status?at=yesterday", http.StatusBadRequest},
		{"trailing slash", "/assets/" + a.ID + "/status/", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRecordStockEvent_UnknownType(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 10)

	rec := s.do(t, http.MethodPost, "/assets/"+a.ID+"/events", map[string]any{
		"event_type": "THEFT",
		"quantity":   1,
		"date":       time.Now().UTC(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetAvailability(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	s.createReservation(t, a.ID, 3)
	start := time.Now().UTC().Format(time.RFC3339)
	end := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)

	rec := s.do(t, http.MethodGet, "/assets/"+a.ID+"/availability?start="+start+"&end="+end, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[query.AssetAvailabilityView](t, rec)
	assert.Equal(t, 2, view.Analysis.Available)
	assert.Equal(t, 3, view.Analysis.Reserved)
}

func TestGetAssetAvailability_BadRequests(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	later := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	earlier := time.Now().UTC().Format(time.RFC3339)

	tests := []struct {
		name  string
		query string
	}{
		{"missing end", "?start=" + earlier},
		{"reversed", "?start=" + later + "&end=" + earlier},
		{"malformed", "?start=today&end=" + later},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/assets/"+a.ID+"/availability"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSearchAssets(t *testing.T) {
	s := newTestServer()
	tent := s.createAsset(t, "Tent", 5)
	s.createAsset(t, "Chair", 20)
	s.createReservation(t, tent.ID, 2)

	rec := s.do(t, http.MethodGet, "/assets?q=tent", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Results []query.AssetSearchResult `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 1)
	assert.Equal(t, tent.ID, body.Results[0].Asset.ID)
	assert.Equal(t, 3, body.Results[0].Available)
}

func TestGetAssetStatus_LogsOvercommitment(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 2)
	s.createReservation(t, a.ID, 2)
	rec := s.do(t, http.MethodPost, "/assets/"+a.ID+"/events", map[string]any{
		"event_type": "ISSUE",
		"quantity":   1,
		"date":       time.Now().UTC().Add(-time.Minute),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/assets/"+a.ID+"/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[query.AssetStatusView](t, rec).Status.Available)
	assert.Equal(t, 1, s.logs.FilterMessage("asset is overcommitted").Len())
}

// ============================================
// Reservation Endpoint Tests
// ============================================

func TestReservationLifecycle(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	res := s.createReservation(t, a.ID, 3)
	id := res.Reservation.ID
	assert.True(t, res.Check.IsOK)

	rec := s.do(t, http.MethodGet, "/reservations/"+id+"/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[availability.CheckResult](t, rec).IsOK)

	rec = s.do(t, http.MethodPost, "/reservations/"+id+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/reservations/"+id+"/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/reservations/"+id+"/return", map[string]any{
		"counts": map[string]any{a.ID: map[string]int{"returned": 2, "damaged": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/reservations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"returned"`)

	rec = s.do(t, http.MethodPost, "/reservations/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidateReservation_NotFeasible(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	s.createReservation(t, a.ID, 3)
	second := s.createReservation(t, a.ID, 3)
	assert.False(t, second.Check.IsOK)
	assert.Equal(t, 2, second.Check.ProblematicItems["Tent"].AvailableQuantity)

	rec := s.do(t, http.MethodPost, "/reservations/"+second.Reservation.ID+"/validate", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "Tent")
}

func TestReservation_NotFound(t *testing.T) {
	s := newTestServer()

	for _, path := range []string{"/reservations/missing", "/reservations/missing/check"} {
		rec := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := s.do(t, http.MethodPost, "/reservations/missing/checkout", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReservation_InvalidDates(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	start := time.Now().UTC()

	rec := s.do(t, http.MethodPost, "/reservations", map[string]any{
		"customer_id":   "customer-1",
		"checkout_date": start,
		"return_date":   start.Add(-time.Hour),
		"items":         []map[string]any{{"asset_id": a.ID, "quantity": 1}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReservation(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	s.createReservation(t, a.ID, 3)
	res := s.createReservation(t, a.ID, 1)
	id := res.Reservation.ID
	start := time.Now().UTC().Add(2 * time.Hour)
	update := map[string]any{
		"checkout_date": start,
		"return_date":   start.Add(time.Hour),
		"notes":         "needs the large pegs",
		"items":         []map[string]any{{"asset_id": a.ID, "quantity": 4}},
	}

	rec := s.do(t, http.MethodPut, "/reservations/"+id, update)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[command.ReservationResult](t, rec)
	assert.False(t, result.Check.IsOK)
	assert.Equal(t, availability.ItemShortfall{ReservedQuantity: 4, AvailableQuantity: 2}, result.Check.ProblematicItems["Tent"])
	assert.Equal(t, "needs the large pegs", result.Reservation.Notes)

	update["items"] = []map[string]any{{"asset_id": a.ID, "quantity": 1}}
	rec = s.do(t, http.MethodPut, "/reservations/"+id, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[command.ReservationResult](t, rec).Check.IsOK)

	rec = s.do(t, http.MethodPost, "/reservations/"+id+"/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/reservations/"+id, update)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/reservations/missing", update)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReservations(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	first := s.createReservation(t, a.ID, 3)
	s.createReservation(t, a.ID, 3)
	rec := s.do(t, http.MethodPost, "/reservations/"+first.Reservation.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/reservations?active_only=true", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Reservations []query.ReservationListRow `json:"reservations"`
	}](t, rec)
	require.Len(t, body.Reservations, 1)
	assert.True(t, body.Reservations[0].IsOK)
	require.NotNil(t, body.Reservations[0].Check)

	rec = s.do(t, http.MethodGet, "/reservations?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetLedger(t *testing.T) {
	s := newTestServer()
	a := s.createAsset(t, "Tent", 5)
	for _, e := range []struct {
		eventType string
		age       time.Duration
	}{
		{"ACQUISITION", 48 * time.Hour},
		{"ISSUE", time.Hour},
	} {
		rec := s.do(t, http.MethodPost, "/assets/"+a.ID+"/events", map[string]any{
			"event_type": e.eventType,
			"quantity":   1,
			"date":       time.Now().UTC().Add(-e.age),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/assets/"+a.ID+"/events", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[query.AssetLedgerView](t, rec)
	require.Len(t, view.Events, 2)
	assert.Equal(t, stock.Issue, view.Events[0].Type)
	assert.Equal(t, stock.Acquisition, view.Events[1].Type)

	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	rec = s.do(t, http.MethodGet, "/assets/"+a.ID+"/events?start="+since, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[query.AssetLedgerView](t, rec).Events, 1)

	rec = s.do(t, http.MethodGet, "/assets/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/assets/"+a.ID+"/events?start=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(command.ErrInsufficientStock))
	assert.Equal(t, http.StatusBadRequest, statusFor(availability.ErrInvalidPeriod))
	assert.Equal(t, http.StatusNotFound, statusFor(stock.ErrAssetNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(reservation.ErrNotEditable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
