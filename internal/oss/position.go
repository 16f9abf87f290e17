package oss

import (
	"sync"

	"github.com/0xtitan/perpquote/pkg/types"
)

// epsilon below which a position is considered flat, matching the source's
// EPSILON = 1e-6 used across its position handlers.
const epsilon = 1e-6

// PositionBook holds the symbol's single Position record and applies the
// weighted-average entry-price rules from the data model (spec §3). It is
// mutated by the User-Event Reducer, and once by the engine at startup to
// restore a persisted position; the quote generator and position executor
// read it via Snapshot.
type PositionBook struct {
	mu  sync.Mutex
	pos types.Position
}

// NewPositionBook returns a flat position for the given symbol.
func NewPositionBook(symbol string) *PositionBook {
	return &PositionBook{pos: types.Position{Symbol: symbol}}
}

// Snapshot returns a copy of the current position.
func (p *PositionBook) Snapshot() types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Reset zeroes the position, per the data-model invariant
// |size| < eps => side=None, entryPrice=None, openTime=now.
func (p *PositionBook) Reset(now int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	symbol := p.pos.Symbol
	p.pos = types.Position{Symbol: symbol, OpenTime: now}
}

// ApplyFill folds a single fill into the position using the size-weighted
// average entry-price rule: same-side fills average the entry price
// weighted by size; a side flip or a fresh position resets the entry price
// to the fill price and restarts the open timer. Returns the position after
// the fill and whether it is now flat.
func (p *PositionBook) ApplyFill(fill types.Fill, markPrice float64, now int64) (types.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startSize := fill.StartingSize
	newSize := startSize + fill.Side.Sign()*fill.Size

	if newSize < epsilon && newSize > -epsilon {
		symbol := p.pos.Symbol
		p.pos = types.Position{Symbol: symbol, OpenTime: now}
		return p.pos, true
	}

	sameSide := startSize*newSize > 0
	var entry float64
	var openTime int64
	var counter int64

	switch {
	case sameSide && absF(newSize) >= absF(startSize):
		// increased on the same side: size-weighted average entry
		entry = (p.pos.EntryPrice*absF(startSize) + fill.Price*fill.Size) / absF(newSize)
		openTime = p.pos.OpenTime
		counter = p.pos.UpdateCounter + 1
	case sameSide:
		// reduced on the same side: entry price unchanged
		entry = p.pos.EntryPrice
		openTime = p.pos.OpenTime
		counter = p.pos.UpdateCounter + 1
	default:
		// side flip or a fresh position: entry resets to the fill price
		entry = fill.Price
		openTime = now
		counter = 0
	}

	var side types.Side
	if newSize > 0 {
		side = types.Buy
	} else {
		side = types.Sell
	}

	p.pos = types.Position{
		Symbol:        p.pos.Symbol,
		Side:          side,
		EntryPrice:    entry,
		Size:          newSize,
		UPnl:          (markPrice - entry) * newSize,
		OpenTime:      openTime,
		UpdateCounter: counter,
	}
	return p.pos, false
}

// ReconcileSnapshot replaces the local position with the venue's own view,
// used when an account/position snapshot arrives over the private stream
// (spec §4.4). A snapshot with HasEntry=false resets the position.
func (p *PositionBook) ReconcileSnapshot(snap types.PositionSnapshot, now int64) types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !snap.HasEntry || (snap.Size < epsilon && snap.Size > -epsilon) {
		symbol := p.pos.Symbol
		p.pos = types.Position{Symbol: symbol, OpenTime: now}
		return p.pos
	}

	p.pos = types.Position{
		Symbol:        p.pos.Symbol,
		Side:          snap.Side,
		EntryPrice:    snap.EntryPrice,
		Size:          snap.Size,
		UPnl:          snap.UPnl,
		OpenTime:      p.pos.OpenTime,
		UpdateCounter: p.pos.UpdateCounter,
	}
	return p.pos
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
