// Package venue defines the engine's abstraction over a perpetual-futures
// trading venue: the REST batch endpoints and websocket transports that
// internal/oms, internal/marketdata, and internal/engine drive the rest of
// the system through. Signing and request framing live inside a concrete
// implementation (internal/venue/hyperliquid); the core never constructs a
// signature itself.
package venue

import (
	"context"

	"github.com/0xtitan/perpquote/pkg/types"
)

// BatchResult reports the outcome of a single order within a batch
// create/amend/cancel call, matched back by ClientOrderID (or VenueOrderID
// for cancels-by-id, per spec §4.7).
type BatchResult struct {
	ClientOrderID int64
	VenueOrderID  string
	OK            bool
	Err           error
}

// Client is the full surface the venue exposes to the engine.
type Client interface {
	CreateOrder(ctx context.Context, symbol string, o types.Order) (BatchResult, error)
	AmendOrder(ctx context.Context, symbol string, o types.Order) (BatchResult, error)
	CancelOrder(ctx context.Context, symbol string, clientOrderID int64) (BatchResult, error)

	BatchCreate(ctx context.Context, symbol string, orders []types.Order) ([]BatchResult, error)
	BatchAmend(ctx context.Context, symbol string, orders []types.Order) ([]BatchResult, error)
	BatchCancel(ctx context.Context, symbol string, clientOrderIDs []int64) ([]BatchResult, error)
	BatchCancelByVenueID(ctx context.Context, symbol string, venueOrderIDs []string) ([]BatchResult, error)
	CancelAllOrders(ctx context.Context, symbol string) error

	GetOrderbook(ctx context.Context, symbol string) (types.BookSnapshot, error)
	GetTrades(ctx context.Context, symbol string, limit int) ([]types.Trade, error)
	GetOhlcv(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	GetTicker(ctx context.Context, symbol string) (types.Ticker, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]types.Order, error)
	GetPosition(ctx context.Context, symbol string) (types.PositionSnapshot, error)
	GetAccountInfo(ctx context.Context) (types.AccountInfo, error)
	GetExchangeInfo(ctx context.Context, symbol string) (types.ExchangeInfo, error)

	// GetListenKey/PingListenKey are only meaningful for venues that gate
	// private-stream access behind a session token; a venue without one can
	// implement both as no-ops returning ("", nil)/nil.
	GetListenKey(ctx context.Context) (string, error)
	PingListenKey(ctx context.Context, key string) error
}
