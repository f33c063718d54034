package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/asset-lending/internal/infrastructure/store"
)

const AggregateType = "Asset"

// Service records ledger entries in the event store and reads them back
type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

// RecordEvent appends one ledger entry for an asset. The entry takes effect
// at date, which may lie in the past or the future.
func (s *Service) RecordEvent(ctx context.Context, assetID string, eventType EventType, quantity int, date time.Time, description string) (*Event, error) {
	return s.RecordReferencedEvent(ctx, assetID, eventType, quantity, date, description, "")
}

// RecordReferencedEvent is RecordEvent for an entry caused by a reservation
func (s *Service) RecordReferencedEvent(ctx context.Context, assetID string, eventType EventType, quantity int, date time.Time, description, reference string) (*Event, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if date.IsZero() {
		return nil, ErrMissingEventDate
	}

	data := StockEventRecorded{
		AssetID:     assetID,
		EventType:   eventType,
		Quantity:    quantity,
		Date:        date,
		Description: description,
		Reference:   reference,
		RecordedAt:  s.now(),
	}

	stored, err := s.eventStore.Append(ctx, assetID, AggregateType, EventStockEventRecorded, data)
	if err != nil {
		return nil, fmt.Errorf("failed to append stock event: %w", err)
	}

	return &Event{
		AssetID:     assetID,
		Type:        eventType,
		Quantity:    quantity,
		Date:        date,
		Sequence:    stored.Version,
		Description: description,
		Reference:   reference,
	}, nil
}

// Events returns the ledger of an asset restricted to entries dated at or
// before until, ordered by (Date, Sequence). A zero until returns everything.
func (s *Service) Events(ctx context.Context, assetID string, until time.Time) ([]Event, error) {
	stored, err := s.eventStore.GetEvents(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock events: %w", err)
	}

	events := make([]Event, 0, len(stored))
	for _, se := range stored {
		e, ok, err := DecodeEvent(se)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !until.IsZero() && e.Date.After(until) {
			continue
		}
		events = append(events, e)
	}
	SortEvents(events)
	return events, nil
}

// DecodeEvent turns a stored event into a ledger entry. ok is false for
// events that are not ledger entries.
func DecodeEvent(se store.Event) (Event, bool, error) {
	if se.AggregateType != AggregateType || se.EventType != EventStockEventRecorded {
		return Event{}, false, nil
	}

	var data StockEventRecorded
	if err := json.Unmarshal(se.Data, &data); err != nil {
		return Event{}, false, fmt.Errorf("failed to decode stock event %s: %w", se.ID, err)
	}

	return Event{
		AssetID:     data.AssetID,
		Type:        data.EventType,
		Quantity:    data.Quantity,
		Date:        data.Date,
		Sequence:    se.Version,
		Description: data.Description,
		Reference:   data.Reference,
	}, true, nil
}
