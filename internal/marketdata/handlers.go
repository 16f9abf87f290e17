// Package marketdata implements the Market-Data Handlers: the dispatch
// layer between a venue's public websocket stream and the Order Book
// Replica / ring buffers / ticker record. Grounded on the source's per-kind
// ws_handlers (orderbook.py, trades.py, candle.py, ticker.py), each mapped to
// one typed Handle* method, and on the teacher's engine.go event dispatch
// loop for the Go idiom (goroutine-per-feed, channel fan-in).
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/ringbuffer"
	"github.com/0xtitan/perpquote/pkg/types"
)

// candle ring buffer columns: openTs, closeTs, open, high, low, close,
// volume, trades — matching the source's eight-column format array.
const candleColumns = 8

// trade ring buffer columns: ts, side, price, size.
const tradeColumns = 4

// Snapshotter fetches a fresh order-book snapshot from the venue, used by
// the periodic resync task.
type Snapshotter interface {
	GetOrderbook(ctx context.Context, symbol string) (types.BookSnapshot, error)
}

// Handlers owns one symbol's market-data state: the order book replica, a
// trade ring buffer, a candle ring buffer, and the latest ticker.
type Handlers struct {
	symbol string
	logger *slog.Logger

	Book    *book.Replica
	Trades  *ringbuffer.RingBuffer
	Candles *ringbuffer.RingBuffer

	ticker         types.Ticker
	hasTicker      bool
	lastCandleOpen int64
}

// New returns handlers for symbol with the given book depth and ring-buffer
// capacities.
func New(symbol string, depth, tradeCapacity, candleCapacity int, logger *slog.Logger) *Handlers {
	return &Handlers{
		symbol:  symbol,
		logger:  logger.With("component", "marketdata", "symbol", symbol),
		Book:    book.New(symbol, depth),
		Trades:  ringbuffer.New(tradeCapacity, tradeColumns, true),
		Candles: ringbuffer.New(candleCapacity, candleColumns, true),
	}
}

// HandleBookSnapshot applies a full order-book snapshot (initial load or
// resync) to the replica.
func (h *Handlers) HandleBookSnapshot(snap types.BookSnapshot) {
	h.Book.Refresh(snap.Bids, snap.Asks, snap.Timestamp, snap.SeqID)
}

// HandleBookDelta applies an incremental order-book update, dropping it if
// its UpdateID is not newer than the replica's own sequence counter.
func (h *Handlers) HandleBookDelta(delta types.BookDelta) error {
	if delta.UpdateID != 0 && delta.UpdateID <= h.Book.SeqID() {
		return nil
	}
	if err := validateLevels(delta.Bids); err != nil {
		return fmt.Errorf("marketdata: book delta bids: %w", err)
	}
	if err := validateLevels(delta.Asks); err != nil {
		return fmt.Errorf("marketdata: book delta asks: %w", err)
	}
	if len(delta.Bids) > 0 {
		h.Book.UpdateBids(delta.Bids, delta.Timestamp, delta.UpdateID)
	}
	if len(delta.Asks) > 0 {
		h.Book.UpdateAsks(delta.Asks, delta.Timestamp, delta.UpdateID)
	}
	return nil
}

func validateLevels(levels []types.BookLevel) error {
	for _, lvl := range levels {
		if lvl.Price < 0 || lvl.Size < 0 || lvl.Price != lvl.Price || lvl.Size != lvl.Size {
			return fmt.Errorf("malformed level %+v", lvl)
		}
	}
	return nil
}

// HandleTrade appends a public trade print to the trade ring buffer.
func (h *Handlers) HandleTrade(tr types.Trade) {
	h.Trades.Append([]float64{float64(tr.Timestamp), tr.Side.Sign(), tr.Price, tr.Size})
}

// HandleCandle appends a new bar or updates the still-open one in place,
// mirroring the source's "pop-then-append when not strictly newer" rule.
func (h *Handlers) HandleCandle(c types.Candle) {
	row := []float64{
		float64(c.OpenTime), float64(c.CloseTime),
		c.Open, c.High, c.Low, c.Close, c.Volume, float64(c.Trades),
	}
	if h.Candles.Len() > 0 && c.OpenTime <= h.lastCandleOpen {
		h.Candles.Pop()
	}
	h.Candles.Append(row)
	h.lastCandleOpen = c.OpenTime
}

// HandleTicker replaces the stored ticker if the incoming record is not
// older than what's already there.
func (h *Handlers) HandleTicker(t types.Ticker) {
	if h.hasTicker && t.Timestamp < h.ticker.Timestamp {
		return
	}
	h.ticker = t
	h.hasTicker = true
}

// Ticker returns the latest stored ticker record.
func (h *Handlers) Ticker() (types.Ticker, bool) {
	return h.ticker, h.hasTicker
}

// RunResync periodically refetches the order-book snapshot via src and
// reloads the replica — the sole recovery path from silent
// desynchronization between deltas and the replica's own state.
func (h *Handlers) RunResync(ctx context.Context, src Snapshotter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := src.GetOrderbook(ctx, h.symbol)
			if err != nil {
				h.logger.Error("resync fetch failed", "error", err)
				continue
			}
			h.HandleBookSnapshot(snap)
			h.logger.Debug("resync applied", "seq_id", h.Book.SeqID())
		}
	}
}
