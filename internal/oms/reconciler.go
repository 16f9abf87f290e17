// Package oms implements the OMS Reconciler: the authority on which of the
// engine's own orders exist at the venue. It runs two independent modes —
// a monitored drain over the to_create/to_amend/to_cancel flags (orders
// proposed by the Position Executor and the User-Event Reducer's own
// cancel-foreign path), and a tick-driven reconciliation that diffs the
// quote generator's desired ladder against what's currently resting.
// Grounded on the source's marketmaking/oms/oms.py (update, find_matched_order,
// is_out_of_bounds, order_error, monitor).
package oms

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/internal/venue"
	"github.com/0xtitan/perpquote/pkg/types"
)

// Clock returns the current venue-epoch ms.
type Clock func() int64

// Params configures the tick-driven reconciliation thresholds.
type Params struct {
	Sensitivity       float64 // out-of-bounds buffer factor; spec default 0.2
	MaxPositionUSD    float64
	TotalOrders       int
	InFlightStaleness int64 // ms; in_flight orders older than this are considered lost
}

// Reconciler drives one symbol's order lifecycle against a venue.Client.
type Reconciler struct {
	symbol string
	store  *oss.Store
	book   *book.Replica
	pos    *oss.PositionBook
	ids    *oss.IDGenerator
	client venue.Client
	params Params
	clock  Clock
	logger *slog.Logger
}

// New returns a reconciler for symbol.
func New(symbol string, store *oss.Store, b *book.Replica, pos *oss.PositionBook, ids *oss.IDGenerator, client venue.Client, params Params, clock Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		symbol: symbol,
		store:  store,
		book:   b,
		pos:    pos,
		ids:    ids,
		client: client,
		params: params,
		clock:  clock,
		logger: logger.With("component", "oms", "symbol", symbol),
	}
}

func (r *Reconciler) now() int64 {
	if r.clock != nil {
		return r.clock()
	}
	return 0
}

// ————————————————————————————————————————————————————————————————————————
// Monitored drain: waits on to_create/to_amend/to_cancel, drains the
// matching partition into a batch, and dispatches it. The flag clears only
// after the batch call completes (spec §4.7).
// ————————————————————————————————————————————————————————————————————————

// RunMonitors blocks running all three drain loops until ctx is cancelled
// or one of them returns an error.
func (r *Reconciler) RunMonitors(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.RunCreateMonitor(ctx) })
	g.Go(func() error { return r.RunAmendMonitor(ctx) })
	g.Go(func() error { return r.RunCancelMonitor(ctx) })
	return g.Wait()
}

// RunCreateMonitor drains to_create whenever the flag is set.
func (r *Reconciler) RunCreateMonitor(ctx context.Context) error {
	for {
		if err := r.store.Flags.ToCreate.Wait(ctx); err != nil {
			return err
		}
		batch := r.store.Snapshot(oss.PartToCreate)
		if len(batch) == 0 {
			r.store.Flags.ToCreate.Clear()
			continue
		}
		// The proposer must be observable in in_flight before the REST
		// call returns (spec §5 ordering guarantee).
		for i := range batch {
			r.store.Move(oss.PartToCreate, oss.PartInFlight, batch[i].ClientOrderID, types.InFlight)
		}
		results, err := r.client.BatchCreate(ctx, r.symbol, batch)
		r.store.Flags.ToCreate.Clear()
		if err != nil {
			r.logger.Error("batch create failed", "error", err)
			continue
		}
		r.applyResults(results)
	}
}

// RunAmendMonitor drains to_amend whenever the flag is set.
func (r *Reconciler) RunAmendMonitor(ctx context.Context) error {
	for {
		if err := r.store.Flags.ToAmend.Wait(ctx); err != nil {
			return err
		}
		batch := r.store.Snapshot(oss.PartToAmend)
		if len(batch) == 0 {
			r.store.Flags.ToAmend.Clear()
			continue
		}
		for i := range batch {
			r.store.Move(oss.PartToAmend, oss.PartInFlight, batch[i].ClientOrderID, types.InFlight)
		}
		results, err := r.client.BatchAmend(ctx, r.symbol, batch)
		r.store.Flags.ToAmend.Clear()
		if err != nil {
			r.logger.Error("batch amend failed", "error", err)
			continue
		}
		r.applyResults(results)
	}
}

// RunCancelMonitor drains to_cancel whenever the flag is set. Unlike
// create/amend, a cancel intent doesn't pass through in_flight — the id
// was already moved out of in_the_book (or, for a foreign order, never
// held a venue cloid to begin with) by whoever queued the cancel. Every
// to_cancel entry already carries its venueOrderId by the time it lands
// here, so the batch is dispatched keyed by venueOrderId, matching the
// source's batch_cancel_orders.
func (r *Reconciler) RunCancelMonitor(ctx context.Context) error {
	for {
		if err := r.store.Flags.ToCancel.Wait(ctx); err != nil {
			return err
		}
		batch := r.store.Snapshot(oss.PartToCancel)
		if len(batch) == 0 {
			r.store.Flags.ToCancel.Clear()
			continue
		}
		results, err := r.batchCancelByVenueID(ctx, batch)
		r.store.Flags.ToCancel.Clear()
		if err != nil {
			r.logger.Error("batch cancel failed", "error", err)
			continue
		}
		for _, res := range results {
			if res.OK {
				r.store.Move(oss.PartToCancel, oss.PartRecentlyCancelled, res.id, types.RecentlyCancelled)
			} else {
				r.logger.Info("cancel rejected by venue", "venueOrderId", res.VenueOrderID, "err", res.Err)
				r.store.OrderError(res.id)
			}
		}
	}
}

// cancelByVenueIDResult pairs a venue.BatchResult back with the local
// ClientOrderID the arena is keyed by, since the venue has no notion of it
// once dispatch happens by venueOrderId.
type cancelByVenueIDResult struct {
	venue.BatchResult
	id int64
}

// batchCancelByVenueID issues one BatchCancelByVenueID call for every order
// in batch and resolves each result back to its local arena id.
func (r *Reconciler) batchCancelByVenueID(ctx context.Context, batch []types.Order) ([]cancelByVenueIDResult, error) {
	venueIDs := make([]string, len(batch))
	localID := make(map[string]int64, len(batch))
	for i := range batch {
		venueIDs[i] = batch[i].VenueOrderID
		localID[batch[i].VenueOrderID] = batch[i].ClientOrderID
	}
	raw, err := r.client.BatchCancelByVenueID(ctx, r.symbol, venueIDs)
	if err != nil {
		return nil, err
	}
	out := make([]cancelByVenueIDResult, len(raw))
	for i, res := range raw {
		out[i] = cancelByVenueIDResult{BatchResult: res, id: localID[res.VenueOrderID]}
	}
	return out, nil
}

// applyResults is shared by the create/amend paths: on success it records
// the venue-assigned order id; on failure it runs order_error (spec §4.7.1).
func (r *Reconciler) applyResults(results []venue.BatchResult) {
	for _, res := range results {
		if res.OK {
			if o, ok := r.store.Get(res.ClientOrderID); ok && res.VenueOrderID != "" {
				o.VenueOrderID = res.VenueOrderID
			}
			continue
		}
		r.logger.Info("order rejected by venue", "clientOrderId", res.ClientOrderID, "err", res.Err)
		r.store.OrderError(res.ClientOrderID)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Tick-driven reconciliation: diffs the quote generator's proposed ladder
// against what's resting, dispatching directly to the venue client (not
// through the flag queues) (spec §4.7).
// ————————————————————————————————————————————————————————————————————————

// Reconcile processes one quote-generator tick's proposed orders.
func (r *Reconciler) Reconcile(ctx context.Context, proposals []types.Order) error {
	mid, ok := r.book.Mid()
	if !ok {
		r.logger.Debug("skipping reconciliation: no two-sided book yet")
		return nil
	}

	now := r.now()
	inFlight := r.store.Snapshot(oss.PartInFlight)
	resting := r.store.Snapshot(oss.PartInTheBook)
	pos := r.pos.Snapshot()

	var toCreate []types.Order
	var cancelIDs []int64

	for _, proposal := range proposals {
		if r.isDuplicateInFlight(proposal, inFlight, now, &toCreate) {
			continue
		}

		matched, hasMatch := r.findMatchedOrder(proposal, resting)
		if hasMatch {
			if r.isOutOfBounds(matched, proposal, mid) {
				cancelIDs = append(cancelIDs, matched.ClientOrderID)
				toCreate = append(toCreate, proposal)
			}
			continue
		}

		projected := absF(pos.Size*pos.EntryPrice + proposal.Side.Sign()*proposal.Size*proposal.Price)
		if projected >= r.params.MaxPositionUSD {
			r.logger.Debug("skipping proposal: would exceed max position", "price", proposal.Price, "size", proposal.Size)
			continue
		}

		tpCount := len(r.store.TPIDs())
		if len(resting)-tpCount >= r.params.TotalOrders {
			if id, ok := r.closestRestingOnSide(resting, proposal.Side, mid); ok {
				cancelIDs = append(cancelIDs, id)
			}
		}
		toCreate = append(toCreate, proposal)
	}

	g, ctx := errgroup.WithContext(ctx)
	if len(cancelIDs) > 0 {
		ids := cancelIDs
		g.Go(func() error { return r.cancelOrders(ctx, ids) })
	}
	if len(toCreate) > 0 {
		orders := toCreate
		g.Go(func() error { return r.createOrders(ctx, orders) })
	}
	return g.Wait()
}

// isDuplicateInFlight implements step 1 (duplicate suppression). It
// appends to toCreate when a stale in_flight duplicate is evicted and the
// proposal should be resent, and reports whether the proposal was handled
// (either dropped or re-queued) and should be skipped from further steps.
func (r *Reconciler) isDuplicateInFlight(proposal types.Order, inFlight []types.Order, now int64, toCreate *[]types.Order) bool {
	for _, o := range inFlight {
		if !proposal.Equal(o) {
			continue
		}
		age := now - o.Timestamp
		if age < r.params.InFlightStaleness {
			r.logger.Debug("dropping proposal: matching order already in flight", "clientOrderId", o.ClientOrderID)
			return true
		}
		r.logger.Debug("in_flight order considered lost, re-proposing", "clientOrderId", o.ClientOrderID)
		r.store.RemoveFrom(oss.PartInFlight, o.ClientOrderID)
		*toCreate = append(*toCreate, proposal)
		return true
	}
	return false
}

// findMatchedOrder implements step 2: locate a resting order at the same
// ladder level as the proposal, via id decoding.
func (r *Reconciler) findMatchedOrder(proposal types.Order, resting []types.Order) (types.Order, bool) {
	level := oss.DecodeLevel(proposal.ClientOrderID)
	for _, o := range resting {
		if oss.DecodeLevel(o.ClientOrderID) == level {
			return o, true
		}
	}
	return types.Order{}, false
}

// isOutOfBounds implements step 3.
func (r *Reconciler) isOutOfBounds(old, proposal types.Order, mid float64) bool {
	sensitivity := r.params.Sensitivity
	if sensitivity == 0 {
		sensitivity = 0.2
	}
	distance := absF(proposal.Price - mid)
	buffer := distance * sensitivity
	return absF(old.Price-proposal.Price) > buffer
}

// closestRestingOnSide implements step 5's eviction target: the resting,
// untagged (non-TP) limit order on the proposal's side nearest to mid.
func (r *Reconciler) closestRestingOnSide(resting []types.Order, side types.Side, mid float64) (int64, bool) {
	var bestID int64
	var bestDist float64
	found := false
	for _, o := range resting {
		if o.Side != side || o.OrderType != types.Limit || r.store.IsTP(o.ClientOrderID) {
			continue
		}
		dist := absF(o.Price - mid)
		if !found || dist < bestDist {
			bestID, bestDist, found = o.ClientOrderID, dist, true
		}
	}
	return bestID, found
}

func (r *Reconciler) createOrders(ctx context.Context, orders []types.Order) error {
	for i := range orders {
		r.store.Put(oss.PartInFlight, &orders[i])
	}
	results, err := r.client.BatchCreate(ctx, r.symbol, orders)
	if err != nil {
		r.logger.Error("batch create failed", "error", err)
		return err
	}
	r.applyResults(results)
	return nil
}

func (r *Reconciler) cancelOrders(ctx context.Context, ids []int64) error {
	batch := make([]types.Order, 0, len(ids))
	for _, id := range ids {
		r.store.Move(oss.PartInTheBook, oss.PartToCancel, id, types.ToCancel)
		if o, ok := r.store.Get(id); ok {
			batch = append(batch, *o)
		}
	}
	results, err := r.batchCancelByVenueID(ctx, batch)
	if err != nil {
		r.logger.Error("batch cancel failed", "error", err)
		return err
	}
	for _, res := range results {
		if res.OK {
			r.store.Move(oss.PartToCancel, oss.PartRecentlyCancelled, res.id, types.RecentlyCancelled)
		} else {
			r.logger.Info("cancel rejected by venue", "venueOrderId", res.VenueOrderID, "err", res.Err)
			r.store.OrderError(res.id)
		}
	}
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Shutdown sequence (spec §4.8, steps 1-2; step 3 — awaiting everything and
// closing websockets — is internal/engine's responsibility once this
// returns).
// ————————————————————————————————————————————————————————————————————————

// Shutdown issues up to three concurrent cancelAllOrders requests and, if
// the position is non-flat, up to three concurrent reduce-only market
// orders opposite to it.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 3; i++ {
		g.Go(func() error { return r.client.CancelAllOrders(ctx, r.symbol) })
	}

	pos := r.pos.Snapshot()
	if !pos.IsFlat() {
		side := pos.Side.Opposite()
		size := absF(pos.Size)
		for i := 0; i < 3; i++ {
			order := types.Order{
				Symbol:        r.symbol,
				Side:          side,
				Size:          size,
				OrderType:     types.Market,
				TimeInForce:   types.FOK,
				ReduceOnly:    true,
				ClientOrderID: r.ids.Next(0),
			}
			g.Go(func() error {
				_, err := r.client.CreateOrder(ctx, r.symbol, order)
				return err
			})
		}
	}
	return g.Wait()
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
