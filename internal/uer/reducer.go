// Package uer implements the User-Event Reducer: the single-threaded
// consumer of the private websocket stream that drives the Order State
// Store's lifecycle transitions and folds fills into the Position. Grounded
// on the source's ws_handlers/{orders.py,position.py}.
package uer

import (
	"log/slog"

	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

// Reducer processes normalized order/fill/position events against a single
// symbol's OrderStateStore and PositionBook. Not safe for concurrent use —
// the engine feeds it from one goroutine per symbol (spec §5).
type Reducer struct {
	symbol string
	store  *oss.Store
	pos    *oss.PositionBook
	ids    *oss.IDGenerator
	logger *slog.Logger
}

// New returns a reducer wired to store and pos for symbol. ids mints the
// local client order id a foreign-order cancel placeholder is keyed by in
// the arena (spec §9); it's the same generator the OMS reconciler and
// position executor allocate from.
func New(symbol string, store *oss.Store, pos *oss.PositionBook, ids *oss.IDGenerator, logger *slog.Logger) *Reducer {
	return &Reducer{
		symbol: symbol,
		store:  store,
		pos:    pos,
		ids:    ids,
		logger: logger.With("component", "uer", "symbol", symbol),
	}
}

// ProcessOrderUpdate applies one order-lifecycle event (spec §4.4).
func (r *Reducer) ProcessOrderUpdate(u types.OrderUpdate) {
	if u.Symbol != r.symbol {
		return
	}

	if !u.HasClientID {
		r.cancelForeign(u)
		return
	}
	id := u.ClientOrderID

	switch u.Status {
	case "open":
		if !r.store.Contains(oss.PartInFlight, id) {
			r.cancelForeign(u)
			return
		}
		order, ok := r.store.Get(id)
		if !ok {
			return
		}
		order.VenueOrderID = u.VenueOrderID
		order.Timestamp = u.Timestamp

		if r.store.Contains(oss.PartToBeTriggered, id) {
			// conditional order still waiting on its trigger: leave it there.
			return
		}
		r.store.Move(oss.PartInFlight, oss.PartInTheBook, id, types.InTheBook)

	case "triggered":
		r.store.Move(oss.PartToBeTriggered, oss.PartInTheBook, id, types.InTheBook)

	case "filled", "canceled", "rejected", "marginCanceled":
		r.store.UntagTP(id)
		r.store.UntagSL(id)
		r.store.RemoveFrom(oss.PartToCancel, id)

		if u.Status == "rejected" {
			if r.store.Contains(oss.PartInFlight, id) {
				r.store.Move(oss.PartInFlight, oss.PartRecentlyCancelled, id, types.RecentlyCancelled)
			}
			return
		}
		if r.store.Contains(oss.PartInTheBook, id) {
			r.store.Move(oss.PartInTheBook, oss.PartRecentlyCancelled, id, types.RecentlyCancelled)
		}

	default:
		r.logger.Warn("unrecognized order status", "status", u.Status, "client_order_id", id)
	}
}

// cancelForeign queues a cancel for an order this engine did not recognize
// as its own, per spec §4.4's "treat as foreign" rule and spec §8 scenario
// 6: a minimal cancel-only order (symbol, side, venueOrderId, size) goes
// into to_cancel carrying the flag, exactly like any other cancel — the
// OMS reconciler's RunCancelMonitor drains it and issues the actual venue
// cancel, keyed by venueOrderId since a foreign order has no cloid.
func (r *Reducer) cancelForeign(u types.OrderUpdate) {
	r.logger.Debug("foreign order observed, requesting cancel", "venue_order_id", u.VenueOrderID)
	order := types.Order{
		Symbol:        u.Symbol,
		Side:          u.Side,
		Size:          u.Size,
		VenueOrderID:  u.VenueOrderID,
		ClientOrderID: r.ids.Next(0),
		Status:        types.ToCancel,
		Timestamp:     u.Timestamp,
	}
	r.store.Put(oss.PartToCancel, &order)
	r.store.Flags.ToCancel.Set()
}

// ProcessFill folds a single execution report into the position and
// updates the position flag accordingly (spec §4.4).
func (r *Reducer) ProcessFill(fill types.Fill, markPrice float64, now int64) {
	if fill.Symbol != r.symbol {
		return
	}
	snap, flat := r.pos.ApplyFill(fill, markPrice, now)
	r.applyPositionFlag(flat, snap)
}

// ProcessPositionSnapshot reconciles the position against the venue's own
// account/position view (spec §4.4).
func (r *Reducer) ProcessPositionSnapshot(snap types.PositionSnapshot, now int64) {
	if snap.Symbol != "" && snap.Symbol != r.symbol {
		return
	}
	pos := r.pos.ReconcileSnapshot(snap, now)
	r.applyPositionFlag(pos.IsFlat(), pos)
}

func (r *Reducer) applyPositionFlag(flat bool, pos types.Position) {
	if flat {
		r.store.Flags.Position.Clear()
		r.logger.Debug("position neutralized, flag cleared")
		return
	}
	r.store.Flags.Position.Set()
	r.logger.Debug("position non-null, flag raised", "size", pos.Size, "entry", pos.EntryPrice)
}
