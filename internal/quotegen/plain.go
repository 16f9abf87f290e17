package quotegen

import (
	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

// PlainGenerator is a trivial single-level-per-side variant: one bid and one
// ask at minimum_spread, each sized to the full position-adjusted budget.
// No reference implementation exists for "plain" in the source — the
// quote_generator config value is named but undocumented beyond "sandbox"
// (see DESIGN.md) — so this is intentionally the simplest generator that
// still satisfies the Generator interface, not a stand-in for a richer
// algorithm that was dropped.
type PlainGenerator struct {
	base
	clock Clock
}

// NewPlain returns a plain generator for symbol.
func NewPlain(symbol string, b *book.Replica, pos *oss.PositionBook, ids *oss.IDGenerator, params Params, clock Clock) *PlainGenerator {
	p := Params{
		TotalOrders:     2,
		MaxPositionUSD:  params.MaxPositionUSD,
		MinimumSpreadBp: params.MinimumSpreadBp,
		TickSize:        params.TickSize,
		LotSize:         params.LotSize,
	}
	return &PlainGenerator{base: newBase(symbol, b, pos, ids, p), clock: clock}
}

// GenerateOrders returns a single bid/ask pair at minimum_spread.
func (g *PlainGenerator) GenerateOrders() []types.Order {
	mid, ok := g.book.Mid()
	if !ok || mid == 0 {
		return nil
	}
	spread := bpsToDecimal(g.params.MinimumSpreadBp)
	maxPos := g.maxPositionSize(mid)
	pos := g.pos.Snapshot()

	bidSize, askSize := maxPos, maxPos
	if !pos.IsFlat() {
		if pos.Side == types.Buy {
			bidSize = max0(maxPos - abs(pos.Size))
		} else {
			askSize = max0(maxPos - abs(pos.Size))
		}
	}

	now := int64(0)
	if g.clock != nil {
		now = g.clock()
	}

	bidPrice := g.roundBid(mid - (mid*spread)/2)
	askPrice := g.roundAsk(mid + (mid*spread)/2)

	var orders []types.Order
	if bidSize > 0 {
		orders = append(orders, g.singleQuote(types.Buy, types.Limit, types.PostOnly, bidPrice, g.roundSize(bidSize), 1, now))
	}
	if askSize > 0 {
		orders = append(orders, g.singleQuote(types.Sell, types.Limit, types.PostOnly, askPrice, g.roundSize(askSize), -1, now))
	}
	return orders
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
