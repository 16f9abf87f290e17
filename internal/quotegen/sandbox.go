package quotegen

import (
	"math"

	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

// Clock returns the current venue-epoch ms; injected so tests are
// deterministic without calling time.Now directly in this package.
type Clock func() int64

// SandboxGenerator is the "sandbox" quote_generator variant — the only one
// with a fully specified algorithm in the source (sandbox.py's
// generate_stinky_orders / generate_orders). It ladders N/2 levels per side
// from minimum_spread out to minimum_spread^1.5, sizing each rung with
// geometric weights that sum to the position-adjusted size budget.
type SandboxGenerator struct {
	base
	clock Clock
}

// NewSandbox returns a sandbox generator for symbol.
func NewSandbox(symbol string, b *book.Replica, pos *oss.PositionBook, ids *oss.IDGenerator, params Params, clock Clock) *SandboxGenerator {
	return &SandboxGenerator{base: newBase(symbol, b, pos, ids, params), clock: clock}
}

// GenerateOrders returns the full quote ladder for the current tick, or nil
// if the book has no two-sided top of book yet.
func (g *SandboxGenerator) GenerateOrders() []types.Order {
	mid, ok := g.book.Mid()
	if !ok || mid == 0 {
		return nil
	}
	n := g.params.TotalOrders / 2
	if n <= 0 {
		return nil
	}

	spreads := geomSpace(g.params.MinimumSpreadBp, math.Pow(g.params.MinimumSpreadBp, 1.5), n)
	weights := geometricWeights(n, true)

	maxPos := g.maxPositionSize(mid)
	pos := g.pos.Snapshot()

	bidBudget, askBudget := maxPos, maxPos
	if !pos.IsFlat() {
		if pos.Side == types.Buy {
			bidBudget = math.Max(0, maxPos-math.Abs(pos.Size))
		} else {
			askBudget = math.Max(0, maxPos-math.Abs(pos.Size))
		}
	}

	now := int64(0)
	if g.clock != nil {
		now = g.clock()
	}

	orders := make([]types.Order, 0, 2*n)
	for i := 0; i < n; i++ {
		level := int64(i + 1)
		spread := bpsToDecimal(spreads[i])
		bidSize := g.roundSize(bidBudget * weights[i])
		askSize := g.roundSize(askBudget * weights[i])

		bidPrice := g.roundBid(mid - (mid*spread)/2)
		askPrice := g.roundAsk(mid + (mid*spread)/2)

		if bidSize > 0 {
			orders = append(orders, g.singleQuote(types.Buy, types.Limit, types.PostOnly, bidPrice, bidSize, level, now))
		}
		if askSize > 0 {
			orders = append(orders, g.singleQuote(types.Sell, types.Limit, types.PostOnly, askPrice, askSize, -level, now))
		}
	}
	return orders
}
