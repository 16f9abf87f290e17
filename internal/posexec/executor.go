// Package posexec implements the Position Executor: a long-lived task that
// wakes on the OSS position flag and keeps a take-profit order (or, past the
// liquidation timer, a reduce-only market order) tracking the open
// position. Grounded on the source's sandbox.py's position_executor.
package posexec

import (
	"context"
	"log/slog"

	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

const tpEpsilon = 1e-6

// Clock returns the current venue-epoch ms.
type Clock func() int64

// Params is the subset of quote-generator parameters the executor needs.
type Params struct {
	TakeProfitBp     float64
	LiquidationTimer int64 // ms
	LotSize          float64
}

// Rounder rounds a take-profit price to the venue's price rules. Grounded
// on hl_round_floor/hl_round_ceil (internal/rounding), injected so the
// executor doesn't need to know sig-figs/decimals configuration.
type Rounder interface {
	RoundCeil(price float64) float64
	RoundFloor(price float64) float64
	RoundSize(size float64) float64
}

// Executor drives one symbol's take-profit/liquidation logic.
type Executor struct {
	symbol string
	store  *oss.Store
	pos    *oss.PositionBook
	ids    *oss.IDGenerator
	params Params
	round  Rounder
	clock  Clock
	logger *slog.Logger
}

// New returns an executor for symbol. ids allocates inventory-management
// client order ids at level 0 (spec §9).
func New(symbol string, store *oss.Store, pos *oss.PositionBook, ids *oss.IDGenerator, params Params, round Rounder, clock Clock, logger *slog.Logger) *Executor {
	return &Executor{
		symbol: symbol,
		store:  store,
		pos:    pos,
		ids:    ids,
		params: params,
		round:  round,
		clock:  clock,
		logger: logger.With("component", "posexec", "symbol", symbol),
	}
}

// Run blocks waiting on the position flag and reacts on every wake, until
// ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	for {
		e.logger.Debug("waiting for position flag")
		if err := e.store.Flags.Position.Wait(ctx); err != nil {
			return err
		}
		e.onWake()
	}
}

func (e *Executor) onWake() {
	defer e.store.Flags.Position.Clear()

	pos := e.pos.Snapshot()
	if pos.IsFlat() {
		return
	}

	closingSide := types.Sell
	if pos.Size < 0 {
		closingSide = types.Buy
	}

	tpOffset := bpsToDecimal(e.params.TakeProfitBp) * pos.EntryPrice
	var tpPrice float64
	if closingSide == types.Sell {
		tpPrice = pos.EntryPrice + tpOffset
	} else {
		tpPrice = pos.EntryPrice - tpOffset
	}
	if closingSide == types.Sell {
		tpPrice = e.round.RoundCeil(tpPrice)
	} else {
		tpPrice = e.round.RoundFloor(tpPrice)
	}

	tpIDs := e.store.TPIDs()
	hasPreviousTP := len(tpIDs) > 0

	var active []int64
	for _, id := range tpIDs {
		if e.store.Contains(oss.PartInTheBook, id) {
			active = append(active, id)
		}
	}
	inactiveCount := len(tpIDs) - len(active)

	var amendTargetID int64
	amending := false

	if hasPreviousTP {
		switch {
		case len(active) > 1:
			newest := active[0]
			var newestOrder *types.Order
			if o, ok := e.store.Get(newest); ok {
				newestOrder = o
			}
			for _, id := range active[1:] {
				o, ok := e.store.Get(id)
				if ok && newestOrder != nil && o.Timestamp > newestOrder.Timestamp {
					newest = id
					newestOrder = o
				}
			}
			for _, id := range active {
				if id == newest {
					continue
				}
				e.store.Move(oss.PartInTheBook, oss.PartToCancel, id, types.ToCancel)
			}
			if len(active) > 0 {
				e.store.Flags.ToCancel.Set()
			}
			amendTargetID = newest
			amending = true

		case len(active) > 0 && inactiveCount == 0:
			amendTargetID = active[0]
			amending = true

		default:
			e.logger.Debug("previous tp generated but not yet acknowledged by the venue")
			return
		}
	}

	size := e.round.RoundSize(absF(pos.Size))
	now := int64(0)
	if e.clock != nil {
		now = e.clock()
	}

	order := types.Order{
		Symbol:      e.symbol,
		Side:        closingSide,
		Size:        size,
		OrderType:   types.Limit,
		TimeInForce: types.PostOnly,
		Price:       tpPrice,
		Timestamp:   now,
	}

	pastLiquidationDeadline := now-pos.OpenTime >= e.params.LiquidationTimer

	if pastLiquidationDeadline {
		e.logger.Debug("liquidation timer elapsed, closing with a market order")
		order = types.Order{
			Symbol:        e.symbol,
			Side:          closingSide,
			Size:          size,
			OrderType:     types.Market,
			TimeInForce:   types.FOK,
			ReduceOnly:    true,
			ClientOrderID: e.ids.Next(0),
		}
		e.store.Put(oss.PartToCreate, &order)
		e.store.Flags.ToCreate.Set()
		return
	}

	if amending {
		if existing, ok := e.store.Get(amendTargetID); ok && existing.Equal(order) {
			e.logger.Debug("planned tp equals the active tp, skipping (idempotence)")
			return
		}
		order.ClientOrderID = amendTargetID
		e.store.RemoveFrom(oss.PartInTheBook, amendTargetID)
		e.store.Put(oss.PartToAmend, &order)
		e.store.TagTP(order.ClientOrderID)
		e.store.Flags.ToAmend.Set()
		return
	}

	order.ClientOrderID = e.ids.Next(0)
	e.store.Put(oss.PartToCreate, &order)
	e.store.TagTP(order.ClientOrderID)
	e.store.Flags.ToCreate.Set()
}

func bpsToDecimal(bps float64) float64 { return bps / 10000.0 }

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
