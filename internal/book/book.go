// Package book implements the Order Book Replica: a depth-limited local
// mirror of one symbol's public order book, maintained from REST snapshots
// and incremental websocket deltas. It is grounded in the source's
// BaseOrderbook (exchanges/common/localorderbook.py), reimplemented over
// plain Go slices and sort.Slice in place of the numpy/numba arrays the
// source jitclass used — there is no Go equivalent of jitclass, and a
// depth-bounded slice sort is already fast enough without one.
package book

import (
	"math"
	"sort"
	"sync"

	"github.com/0xtitan/perpquote/pkg/types"
)

// Replica is the Order Book Replica for a single symbol. Bids are kept
// sorted descending by price, asks ascending, both capped at depth rows —
// sortedness is restored at the end of every mutating call. A crossed book
// is not pruned: levels on one side that cross the other side's best price
// stay in the replica.
type Replica struct {
	mu sync.RWMutex

	symbol string
	depth  int

	bids []types.BookLevel
	asks []types.BookLevel

	timestamp int64
	seqID     int64
}

// New returns an empty replica for symbol, capped to depth levels per side.
func New(symbol string, depth int) *Replica {
	return &Replica{
		symbol: symbol,
		depth:  depth,
		bids:   make([]types.BookLevel, 0, depth),
		asks:   make([]types.BookLevel, 0, depth),
	}
}

// Refresh replaces the book wholesale from a full snapshot. A zero
// newSeqID means the source is a stream that doesn't carry its own sequence
// number, in which case the replica's internal counter is bumped instead
// (mirrors BaseOrderbook.refresh).
func (r *Replica) Refresh(bids, asks []types.BookLevel, timestamp, newSeqID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bids = truncate(bids, r.depth)
	r.asks = truncate(asks, r.depth)
	r.timestamp = timestamp
	r.bumpSeq(newSeqID)

	sortBids(r.bids)
	sortAsks(r.asks)
}

// UpdateBids merges an incremental bid delta: rows are first removed from
// the resting side if their price matches an incoming row (regardless of
// the incoming size), then non-zero-size incoming rows are added back in —
// a zero size therefore deletes a level. Mirrors update_bids.
func (r *Replica) UpdateBids(delta []types.BookLevel, timestamp, newSeqID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(delta) == 0 {
		return
	}
	r.bumpSeq(newSeqID)
	r.bids = mergeSide(r.bids, delta, r.depth)
	sortBids(r.bids)
	if r.timestamp < timestamp {
		r.timestamp = timestamp
	}
}

// UpdateAsks is UpdateBids' ask-side counterpart.
func (r *Replica) UpdateAsks(delta []types.BookLevel, timestamp, newSeqID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(delta) == 0 {
		return
	}
	r.bumpSeq(newSeqID)
	r.asks = mergeSide(r.asks, delta, r.depth)
	sortAsks(r.asks)
	if r.timestamp < timestamp {
		r.timestamp = timestamp
	}
}

func (r *Replica) bumpSeq(newSeqID int64) {
	if newSeqID == 0 {
		r.seqID++
	} else {
		r.seqID = newSeqID
	}
}

// SeqID returns the replica's current sequence counter, for staleness /
// duplicate-delta detection against BookDelta.UpdateID.
func (r *Replica) SeqID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seqID
}

// Timestamp returns the venue-epoch ms of the last applied snapshot or
// delta, used by the dashboard to flag a stale book.
func (r *Replica) Timestamp() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timestamp
}

func truncate(levels []types.BookLevel, depth int) []types.BookLevel {
	out := make([]types.BookLevel, len(levels))
	copy(out, levels)
	if len(out) > depth {
		out = out[:depth]
	}
	return out
}

func mergeSide(existing, delta []types.BookLevel, depth int) []types.BookLevel {
	replace := make(map[float64]struct{}, len(delta))
	for _, lvl := range delta {
		replace[lvl.Price] = struct{}{}
	}
	kept := existing[:0:0]
	for _, lvl := range existing {
		if _, ok := replace[lvl.Price]; !ok {
			kept = append(kept, lvl)
		}
	}
	for _, lvl := range delta {
		if lvl.Size != 0 {
			kept = append(kept, lvl)
		}
	}
	if len(kept) > depth {
		kept = kept[:depth]
	}
	return kept
}

func sortBids(levels []types.BookLevel) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
}

func sortAsks(levels []types.BookLevel) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
}

// BestBidAsk returns the top-of-book levels. ok is false if either side is
// empty.
func (r *Replica) BestBidAsk() (bid, ask types.BookLevel, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.bids) == 0 || len(r.asks) == 0 {
		return types.BookLevel{}, types.BookLevel{}, false
	}
	return r.bids[0], r.asks[0], true
}

// Mid returns (bestBid + bestAsk) / 2.
func (r *Replica) Mid() (float64, bool) {
	bid, ask, ok := r.BestBidAsk()
	if !ok {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Wmid returns the size-weighted mid price, which leans toward whichever
// side of the top of book carries more size.
func (r *Replica) Wmid() (float64, bool) {
	bid, ask, ok := r.BestBidAsk()
	if !ok {
		return 0, false
	}
	total := bid.Size + ask.Size
	if total == 0 {
		return (bid.Price + ask.Price) / 2, true
	}
	imbalance := bid.Size / total
	return bid.Price*imbalance + ask.Price*(1-imbalance), true
}

// Vamp returns the volume-weighted average price across both sides of the
// book, accumulating size up to depth on each side independently and
// averaging the combined notional by the combined size actually consumed.
func (r *Replica) Vamp(depth float64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bidNotional, bidSize := vampSide(r.bids, depth)
	askNotional, askSize := vampSide(r.asks, depth)
	total := bidSize + askSize
	if total == 0 {
		return 0
	}
	return (bidNotional + askNotional) / total
}

func vampSide(levels []types.BookLevel, depth float64) (notional, size float64) {
	for _, lvl := range levels {
		if size+lvl.Size > depth {
			remaining := depth - size
			notional += lvl.Price * remaining
			size += remaining
			break
		}
		notional += lvl.Price * lvl.Size
		size += lvl.Size
		if size >= depth {
			break
		}
	}
	return notional, size
}

// Spread returns bestAsk - bestBid.
func (r *Replica) Spread() (float64, bool) {
	bid, ask, ok := r.BestBidAsk()
	if !ok {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// Slippage estimates the volume-weighted average deviation from mid for a
// hypothetical order of the given size walking one side of the book,
// clamped to mid if the book can't absorb it without exceeding mid itself.
func (r *Replica) Slippage(side types.Side, size float64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mid, ok := r.midLocked()
	if !ok {
		return 0
	}
	levels := r.asks
	if side == types.Sell {
		levels = r.bids
	}

	cum := 0.0
	slip := 0.0
	for _, lvl := range levels {
		cum += lvl.Size
		slip += math.Abs(mid-lvl.Price) * lvl.Size
		if cum >= size {
			slip /= cum
			break
		}
	}
	if cum > 0 && cum < size {
		slip /= cum
	}
	if slip > mid {
		return mid
	}
	return slip
}

func (r *Replica) midLocked() (float64, bool) {
	if len(r.bids) == 0 || len(r.asks) == 0 {
		return 0, false
	}
	return (r.bids[0].Price + r.asks[0].Price) / 2, true
}

// Snapshot returns a defensive copy of the current bid/ask levels.
func (r *Replica) Snapshot() ([]types.BookLevel, []types.BookLevel) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bids := make([]types.BookLevel, len(r.bids))
	asks := make([]types.BookLevel, len(r.asks))
	copy(bids, r.bids)
	copy(asks, r.asks)
	return bids, asks
}
