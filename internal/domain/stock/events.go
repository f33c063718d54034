package stock

import "time"

const EventStockEventRecorded = "StockEventRecorded"

// EventType is the kind of a ledger entry
type EventType string

const (
	Acquisition         EventType = "ACQUISITION"
	Sale                EventType = "SALE"
	Destruction         EventType = "DESTRUCTION"
	InventoryAdjustment EventType = "INVENTORY_ADJUSTMENT"
	Issue               EventType = "ISSUE" // repairable fault
	Repair              EventType = "REPAIR"
)

// Delta is the change one event applies to the running totals
type Delta struct {
	Total   int
	Damaged int
}

// effects maps each event type to the sign it applies to (total, damaged)
var effects = map[EventType]Delta{
	Acquisition:         {Total: 1},
	InventoryAdjustment: {Total: 1},
	Sale:                {Total: -1},
	Destruction:         {Total: -1},
	Issue:               {Damaged: 1},
	Repair:              {Damaged: -1},
}

func (t EventType) Valid() bool {
	_, ok := effects[t]
	return ok
}

// Effect returns the delta of an event of this type carrying quantity.
// Unknown types have no effect.
func (t EventType) Effect(quantity int) Delta {
	sign := effects[t]
	return Delta{Total: sign.Total * quantity, Damaged: sign.Damaged * quantity}
}

// StockEventRecorded is the payload stored for every ledger entry
type StockEventRecorded struct {
	AssetID     string    `json:"asset_id"`
	EventType   EventType `json:"event_type"`
	Quantity    int       `json:"quantity"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}
