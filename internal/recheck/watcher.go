// Package recheck re-runs the feasibility check of reservations whenever the
// stock ledger of one of their assets changes.
package recheck

import (
	"context"
	"fmt"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Finding is a reservation that can no longer be served
type Finding struct {
	ReservationID string
	Problems      map[string]availability.ItemShortfall
}

type Watcher struct {
	reservations reservation.Repository
	engine       *availability.Engine
	log          *zap.Logger
	now          func() time.Time
}

func NewWatcher(reservations reservation.Repository, engine *availability.Engine, log *zap.Logger) *Watcher {
	return &Watcher{
		reservations: reservations,
		engine:       engine,
		log:          log,
		now:          time.Now,
	}
}

// HandleEvent rechecks after every ledger entry and ignores other events
func (w *Watcher) HandleEvent(ctx context.Context, event store.Event) error {
	e, ok, err := stock.DecodeEvent(event)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	w.log.Debug("stock event received",
		zap.String("asset_id", e.AssetID),
		zap.String("event_type", string(e.Type)),
		zap.Int("quantity", e.Quantity),
		zap.Time("date", e.Date))

	findings, err := w.Recheck(ctx, e.AssetID, e.Date)
	if err != nil {
		return err
	}
	for _, f := range findings {
		for name, s := range f.Problems {
			w.log.Warn("reservation can no longer be served",
				zap.String("reservation_id", f.ReservationID),
				zap.String("asset", name),
				zap.Int("reserved", s.ReservedQuantity),
				zap.Int("available", s.AvailableQuantity))
		}
	}
	return nil
}

// Recheck checks every active reservation of the asset whose window reaches
// since. Ledger entries dated since cannot affect earlier windows.
func (w *Watcher) Recheck(ctx context.Context, assetID string, since time.Time) ([]Finding, error) {
	reservations, err := w.reservations.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations of %s: %w", assetID, err)
	}

	now := w.now()
	var findings []Finding
	for _, r := range reservations {
		if !r.Status.Active() || r.ReturnDateAt(now).Before(since) {
			continue
		}
		result, err := w.engine.Check(ctx, r)
		if err != nil {
			return nil, err
		}
		if !result.IsOK {
			findings = append(findings, Finding{ReservationID: r.ID, Problems: result.ProblematicItems})
		}
	}
	return findings, nil
}
