// Package quotegen implements the Quote Generator: given the current book
// and position, produces the ladder of orders the OMS reconciler should
// converge the book toward. Grounded on the source's
// marketmaking/quote_generators/{base.py,sandbox.py}.
package quotegen

import (
	"math"

	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/internal/rounding"
	"github.com/0xtitan/perpquote/pkg/types"
)

// Params mirrors the source's per-strategy parameter block
// (parameters.<quote_generator> in config).
type Params struct {
	TotalOrders     int     // total rungs across both sides; N/2 per side
	MaxPositionUSD  float64 // USD notional cap converted to quote size via mid
	MinimumSpreadBp float64 // bps, the innermost rung's bid-ask spread (each quote sits half of it from mid)
	TickSize        float64
	LotSize         float64
}

// Generator produces a quote ladder for one tick.
type Generator interface {
	GenerateOrders() []types.Order
}

// base bundles the dependencies every generator variant reads from: the
// book, the position, the id allocator and the parameter block. Mirrors
// QuoteGenerator's constructor/property set in base.py.
type base struct {
	symbol string
	book   *book.Replica
	pos    *oss.PositionBook
	ids    *oss.IDGenerator
	params Params
}

func newBase(symbol string, b *book.Replica, pos *oss.PositionBook, ids *oss.IDGenerator, params Params) base {
	ids.SetLevels(params.TotalOrders / 2)
	return base{symbol: symbol, book: b, pos: pos, ids: ids, params: params}
}

func bpsToDecimal(bps float64) float64 { return bps / 10000.0 }

// maxPositionSize converts the USD notional cap to a quote-size cap using
// the current mid price (base.py's max_position property).
func (b base) maxPositionSize(mid float64) float64 {
	if mid == 0 {
		return 0
	}
	return b.params.MaxPositionUSD / mid
}

func (b base) roundBid(price float64) float64 { return rounding.Floor(price, b.params.TickSize) }
func (b base) roundAsk(price float64) float64 { return rounding.Ceil(price, b.params.TickSize) }
func (b base) roundSize(size float64) float64 { return rounding.Ceil(size, b.params.LotSize) }

func (b base) singleQuote(side types.Side, orderType types.OrderType, tif types.TimeInForce, price, size float64, level int64, now int64) types.Order {
	id := b.ids.Next(level)
	return types.Order{
		Symbol:        b.symbol,
		Side:          side,
		Size:          size,
		OrderType:     orderType,
		TimeInForce:   tif,
		Price:         price,
		ClientOrderID: id,
		Timestamp:     now,
	}
}

// geomSpace returns n values spaced geometrically from start to end
// inclusive (numpy.geomspace semantics), used for the per-level spread
// ladder. Not grounded in a specific source file — the retrieval pack did
// not include tools/weights.py / the geomspace helper the source imports —
// so this implements the documented behavior (geometric progression from
// minimum_spread to minimum_spread^1.5 across N/2 levels) directly.
func geomSpace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = start
		return out
	}
	logStart := math.Log(start)
	logEnd := math.Log(end)
	step := (logEnd - logStart) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = math.Exp(logStart + step*float64(i))
	}
	return out
}

// geometricWeights returns n positive weights summing to 1, decreasing
// outside-in when reverse is true (the rung farthest from mid gets the
// largest weight) — mirrors generate_geometric_weights(reverse=True).
func geometricWeights(n int, reverse bool) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	const ratio = 0.7
	total := 0.0
	for i := 0; i < n; i++ {
		w := math.Pow(ratio, float64(i))
		out[i] = w
		total += w
	}
	for i := range out {
		out[i] /= total
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}
