package api

import (
	"net/http"

	"github.com/example/asset-lending/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handlers *Handlers, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// e.g. /assets/1/ -> /assets/1
	r.Use(chimiddleware.StripSlashes)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handlers.Health)

	r.Route("/assets", func(r chi.Router) {
		r.Get("/", handlers.SearchAssets)
		r.Post("/", handlers.CreateAsset)

		r.Route("/{assetID}", func(r chi.Router) {
			r.Get("/", handlers.GetAsset)
			r.Get("/status", handlers.GetAssetStatus)
			r.Get("/availability", handlers.GetAssetAvailability)
			r.Get("/events", handlers.GetAssetLedger)
			r.Post("/events", handlers.RecordStockEvent)
		})
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Get("/", handlers.ListReservations)
		r.Post("/", handlers.CreateReservation)

		r.Route("/{reservationID}", func(r chi.Router) {
			r.Get("/", handlers.GetReservation)
			r.Put("/", handlers.UpdateReservation)
			r.Get("/check", handlers.CheckReservation)
			r.Post("/validate", handlers.ValidateReservation)
			r.Post("/cancel", handlers.CancelReservation)
			r.Post("/checkout", handlers.CheckoutReservation)
			r.Post("/return", handlers.ReturnReservation)
		})
	})

	return r
}
