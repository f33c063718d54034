package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/command"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	log          *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, log *zap.Logger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		log:          log,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Asset Handlers

func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateAsset
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := h.cmdHandler.CreateAsset(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, asset)
}

// SearchAssets lists assets with their availability at start, or over
// [start, end] when end is given
func (h *Handlers) SearchAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTime(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.queryHandler.SearchAssets(r.Context(), query.SearchFilter{
		Query:      q.Get("q"),
		CategoryID: q.Get("category"),
		Exclude:    q["exclude"],
		Start:      start,
		End:        end,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.queryHandler.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

func (h *Handlers) GetAssetStatus(w http.ResponseWriter, r *http.Request) {
	at, err := parseTime(r.URL.Query().Get("at"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.queryHandler.AssetStatus(r.Context(), chi.URLParam(r, "assetID"), at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if view.Status.Overcommitted() {
		h.log.Warn("asset is overcommitted",
			zap.String("asset_id", view.Asset.ID),
			zap.Int("total", view.Status.Total),
			zap.Int("damaged", view.Status.Damaged),
			zap.Int("reserved", view.Status.Reserved))
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) GetAssetAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		respondError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, err := parseTime(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.queryHandler.AssetAvailability(r.Context(), chi.URLParam(r, "assetID"), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if view.Analysis.Overcommitted() {
		h.log.Warn("asset is overcommitted during period",
			zap.String("asset_id", view.Asset.ID),
			zap.Stringer("period", view.Analysis.Period))
	}

	respondJSON(w, http.StatusOK, view)
}

// GetAssetLedger lists the ledger entries of an asset, newest first
func (h *Handlers) GetAssetLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTime(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.queryHandler.AssetLedger(r.Context(), chi.URLParam(r, "assetID"), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) RecordStockEvent(w http.ResponseWriter, r *http.Request) {
	var cmd command.RecordStockEvent
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd.AssetID = chi.URLParam(r, "assetID")

	event, err := h.cmdHandler.RecordStockEvent(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// Reservation Handlers

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateReservation
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.cmdHandler.CreateReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ListReservations lists reservations with the feasibility of the open ones
func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.ReservationFilter{
		Status:     reservation.Status(q.Get("status")),
		ActiveOnly: q.Get("active_only") == "true",
		Search:     q.Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", filter.Status))
		return
	}

	rows, err := h.queryHandler.ListReservations(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reservations": rows})
}

func (h *Handlers) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateReservation
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd.ReservationID = chi.URLParam(r, "reservationID")

	result, err := h.cmdHandler.UpdateReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.queryHandler.GetReservation(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) CheckReservation(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryHandler.CheckReservation(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) ValidateReservation(w http.ResponseWriter, r *http.Request) {
	cmd := command.ValidateReservation{ReservationID: chi.URLParam(r, "reservationID")}
	res, err := h.cmdHandler.ValidateReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	cmd := command.CancelReservation{ReservationID: chi.URLParam(r, "reservationID")}
	res, err := h.cmdHandler.CancelReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) CheckoutReservation(w http.ResponseWriter, r *http.Request) {
	var cmd command.CheckoutReservation
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd.ReservationID = chi.URLParam(r, "reservationID")

	res, err := h.cmdHandler.CheckoutReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) ReturnReservation(w http.ResponseWriter, r *http.Request) {
	var cmd command.ReturnReservation
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd.ReservationID = chi.URLParam(r, "reservationID")

	res, err := h.cmdHandler.ReturnReservation(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// writeError maps domain errors to status codes. Anything unknown is logged
// and reported as an internal error.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stock.ErrAssetNotFound),
		errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrInvalidStatus),
		errors.Is(err, reservation.ErrAlreadyCancelled),
		errors.Is(err, reservation.ErrAlreadyReturned),
		errors.Is(err, reservation.ErrNotCheckedOut),
		errors.Is(err, reservation.ErrCheckedOut),
		errors.Is(err, reservation.ErrNotEditable),
		errors.Is(err, command.ErrNotFeasible),
		errors.Is(err, command.ErrInsufficientStock):
		return http.StatusConflict
	case isValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var validationErrors = []error{
	availability.ErrInvalidPeriod,
	stock.ErrInvalidName,
	stock.ErrInvalidStock,
	stock.ErrInvalidQuantity,
	stock.ErrInvalidEventType,
	stock.ErrMissingEventDate,
	reservation.ErrNoItems,
	reservation.ErrInvalidDates,
	reservation.ErrInvalidQuantity,
	reservation.ErrDuplicateItem,
	reservation.ErrUnknownItem,
	reservation.ErrInvalidCheckout,
	reservation.ErrInvalidReturn,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON accepts an empty body
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseTime reads an RFC 3339 timestamp. An empty value is the zero time.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339", value)
	}
	return t, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
