// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — order, position,
// and order-book types, plus the wire payloads exchanged with the venue. It
// has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is sign-bearing so that side.Sign()*size yields a signed inventory
// delta directly.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

// Sign returns the side as +1/-1.
func (s Side) Sign() float64 {
	return float64(s)
}

// Opposite returns the other side, used when closing a position.
func (s Side) Opposite() Side {
	return -s
}

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// MarshalJSON encodes the side using the venue's string wire form.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both "BUY"/"SELL" and +1/-1.
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		switch strings.ToUpper(str) {
		case "BUY", "B":
			*s = Buy
		case "SELL", "A":
			*s = Sell
		default:
			return fmt.Errorf("types: unknown side %q", str)
		}
		return nil
	}
	var num int8
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("types: decode side: %w", err)
	}
	if num >= 0 {
		*s = Buy
	} else {
		*s = Sell
	}
	return nil
}

// OrderType enumerates the order lifecycles the venue client understands.
type OrderType string

const (
	Limit            OrderType = "LIMIT"
	Market           OrderType = "MARKET"
	StopLimit        OrderType = "STOP_LIMIT"
	TakeProfitLimit  OrderType = "TAKE_PROFIT_LIMIT"
	StopMarket       OrderType = "STOP_MARKET"
	TakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// IsConditional reports whether the order type only rests once triggered.
func (t OrderType) IsConditional() bool {
	switch t {
	case StopLimit, TakeProfitLimit, StopMarket, TakeProfitMarket:
		return true
	default:
		return false
	}
}

// TimeInForce controls how a resting order behaves against the book.
type TimeInForce string

const (
	GTC      TimeInForce = "GTC"
	IOC      TimeInForce = "IOC"
	FOK      TimeInForce = "FOK"
	PostOnly TimeInForce = "POST_ONLY"
)

// OrderStatus mirrors the lifecycle partition an order currently sits in.
// See internal/oss for the state machine that drives these transitions.
type OrderStatus string

const (
	InFlight          OrderStatus = "IN_FLIGHT"
	ToBeTriggered     OrderStatus = "TO_BE_TRIGGERED"
	InTheBook         OrderStatus = "IN_THE_BOOK"
	ToCancel          OrderStatus = "TO_CANCEL"
	RecentlyCancelled OrderStatus = "RECENTLY_CANCELLED"
)

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the venue-agnostic representation of a single order, whether
// proposed, in flight, or resting. Two orders compare equal per Equal
// regardless of VenueOrderID/ClientOrderID/Status/Timestamp — this backs
// duplicate-intent detection in the OMS reconciler.
type Order struct {
	Symbol        string
	Side          Side
	Size          float64
	OrderType     OrderType
	TimeInForce   TimeInForce
	Price         float64 // limit price; zero for MARKET orders
	TriggerPrice  float64 // stop/take-profit trigger; zero if not conditional
	ReduceOnly    bool
	VenueOrderID  string // assigned by the venue once acknowledged
	ClientOrderID int64  // locally unique, level-encoded (see internal/oss)
	Status        OrderStatus
	Timestamp     int64 // venue-epoch ms of last status change
}

// Equal implements the order-equality invariant from the data model: orders
// match on (symbol, side, orderType, timeInForce, price, size); ids and
// status are excluded so that a freshly generated proposal can be recognized
// as a duplicate of something already in flight.
func (o Order) Equal(other Order) bool {
	return o.Symbol == other.Symbol &&
		o.Side == other.Side &&
		o.OrderType == other.OrderType &&
		o.TimeInForce == other.TimeInForce &&
		floatEqual(o.Price, other.Price) &&
		floatEqual(o.Size, other.Size)
}

func floatEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

// ————————————————————————————————————————————————————————————————————————
// Position
// ————————————————————————————————————————————————————————————————————————

// Position is the authoritative in-process view of the symbol's net
// inventory. Size is signed: positive is long, negative is short.
type Position struct {
	Symbol        string
	Side          Side    // meaningful only while Size != 0
	EntryPrice    float64 // size-weighted average entry price
	Size          float64 // signed
	UPnl          float64
	OpenTime      int64 // venue-epoch ms the current position was opened
	UpdateCounter int64 // increments on same-side updates, resets on flip
}

// IsFlat reports whether the position is within epsilon of zero.
func (p Position) IsFlat() bool {
	const eps = 1e-9
	return p.Size < eps && p.Size > -eps
}

// ————————————————————————————————————————————————————————————————————————
// Order book wire shapes
// ————————————————————————————————————————————————————————————————————————

// BookLevel is a single price/size row from a venue snapshot or delta.
type BookLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot is the REST response for a full order-book fetch.
type BookSnapshot struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp int64
	SeqID     int64
}

// BookDelta is an incremental order-book update from the public stream.
// UpdateID, when nonzero, is compared against the replica's seq_id to
// detect and drop stale/duplicate deltas (spec §4.1, §8 boundary case).
type BookDelta struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp int64
	UpdateID  int64
}

// Trade is a single public trade print, appended to the trade ring buffer.
type Trade struct {
	Timestamp int64
	Side      Side
	Price     float64
	Size      float64
}

// Candle is a single OHLCV bar, appended to (or updated in-place within)
// the candle ring buffer.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Trades    int64
}

// Ticker holds the venue's latest mark/index price and funding state.
type Ticker struct {
	Timestamp   int64
	MarkPrice   float64
	IndexPrice  float64
	FundingRate float64
	FundingTime int64
}

// ————————————————————————————————————————————————————————————————————————
// Private-stream payloads (User-Event Reducer input)
// ————————————————————————————————————————————————————————————————————————

// OrderUpdate is a normalized order-lifecycle event from the private
// websocket, as consumed by the User-Event Reducer (spec §4.4).
type OrderUpdate struct {
	Symbol        string
	ClientOrderID int64 // 0 / absent means "foreign" (not ours)
	HasClientID   bool
	VenueOrderID  string
	Side          Side
	Price         float64
	Size          float64
	Status        string // "open" | "triggered" | "filled" | "canceled" | "rejected" | "marginCanceled"
	Timestamp     int64
}

// Fill is a single execution report from the private fills stream.
type Fill struct {
	Symbol       string
	Side         Side
	Price        float64
	Size         float64
	StartingSize float64 // signed position size immediately before this fill
	Timestamp    int64
}

// PositionSnapshot is an account/position reconciliation payload — when the
// venue pushes its own view of the position, the UER reconciles against it.
type PositionSnapshot struct {
	Symbol     string
	HasEntry   bool // false means "no position of this symbol on the venue"
	Side       Side
	EntryPrice float64
	Size       float64
	UPnl       float64
}

// AccountInfo is a coarse account-level snapshot (balance, margin) used by
// risk checks and the dashboard.
type AccountInfo struct {
	AccountValue float64
	MarginUsed   float64
}

// ExchangeInfo describes a symbol's trading rules as reported by the venue.
type ExchangeInfo struct {
	Symbol   string
	TickSize float64
	LotSize  float64
	MinSize  float64
}
