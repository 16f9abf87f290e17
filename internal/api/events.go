package api

import (
	"time"

	"github.com/0xtitan/perpquote/pkg/types"
)

// DashboardEvent wraps every event pushed to connected dashboard clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "order", "position", "kill"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FillEvent reports a single fill and the resulting position.
type FillEvent struct {
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	PositionSize  float64 `json:"position_size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// OrderEvent reports a create/amend/cancel/fill transition for one order.
type OrderEvent struct {
	ClientOrderID int64   `json:"client_order_id"`
	VenueOrderID  string  `json:"venue_order_id,omitempty"`
	Status        string  `json:"status"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
}

// PositionEvent is emitted whenever the position book changes.
type PositionEvent struct {
	Side          string  `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	ExposureUSD   float64 `json:"exposure_usd"`
	MidPrice      float64 `json:"mid_price"`
}

// KillEvent is emitted when the risk manager's kill switch activates.
type KillEvent struct {
	Reason string    `json:"reason"`
	Until  time.Time `json:"until"`
}

// NewFillEvent builds a FillEvent from a venue fill and the position it
// produced.
func NewFillEvent(fill types.Fill, pos types.Position) FillEvent {
	side := "buy"
	if fill.Side < 0 {
		side = "sell"
	}
	return FillEvent{
		Side:          side,
		Price:         fill.Price,
		Size:          fill.Size,
		PositionSize:  pos.Size,
		EntryPrice:    pos.EntryPrice,
		UnrealizedPnL: pos.UPnl,
	}
}

// NewOrderEvent builds an OrderEvent from an order.
func NewOrderEvent(o types.Order, status string) OrderEvent {
	side := "buy"
	if o.Side < 0 {
		side = "sell"
	}
	return OrderEvent{
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
		Status:        status,
		Side:          side,
		Price:         o.Price,
		Size:          o.Size,
	}
}

// NewPositionEvent builds a PositionEvent from the current position.
func NewPositionEvent(pos types.Position, midPrice float64) PositionEvent {
	side := "flat"
	switch {
	case pos.Side > 0:
		side = "long"
	case pos.Side < 0:
		side = "short"
	}
	return PositionEvent{
		Side:          side,
		Size:          pos.Size,
		EntryPrice:    pos.EntryPrice,
		UnrealizedPnL: pos.UPnl,
		ExposureUSD:   pos.Size * midPrice,
		MidPrice:      midPrice,
	}
}

// NewKillEvent builds a KillEvent.
func NewKillEvent(reason string, until time.Time) KillEvent {
	return KillEvent{Reason: reason, Until: until}
}
