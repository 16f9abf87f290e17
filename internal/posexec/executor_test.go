package posexec

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

type passthroughRounder struct{}

func (passthroughRounder) RoundCeil(p float64) float64  { return p }
func (passthroughRounder) RoundFloor(p float64) float64 { return p }
func (passthroughRounder) RoundSize(s float64) float64  { return s }

func newTestExecutor(params Params) (*Executor, *oss.Store, *oss.PositionBook) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := oss.New()
	pos := oss.NewPositionBook("BTC")
	ids := oss.NewIDGenerator()
	clock := func() int64 { return 1_000_000 }
	return New("BTC", store, pos, ids, params, passthroughRounder{}, clock, logger), store, pos
}

func TestOnWakeCreatesTakeProfitForFreshPosition(t *testing.T) {
	e, store, pos := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 3_600_000, LotSize: 0.01})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 1, StartingSize: 0}, 100, 1)
	store.Flags.Position.Set()

	e.onWake()

	if store.Count(oss.PartToCreate) != 1 {
		t.Fatalf("expected a tp order queued to_create, got %d", store.Count(oss.PartToCreate))
	}
	if !store.Flags.ToCreate.IsSet() {
		t.Fatalf("expected to_create flag set")
	}
	if store.Flags.Position.IsSet() {
		t.Fatalf("expected position flag cleared after processing")
	}
}

func TestOnWakeAmendsSingleActiveTP(t *testing.T) {
	e, store, pos := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 3_600_000, LotSize: 0.01})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 1, StartingSize: 0}, 100, 1)

	existing := &types.Order{Symbol: "BTC", Side: types.Sell, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 50, ClientOrderID: 1}
	store.Put(oss.PartInTheBook, existing)
	store.TagTP(1)

	store.Flags.Position.Set()
	e.onWake()

	if store.Count(oss.PartToAmend) != 1 {
		t.Fatalf("expected one order queued to_amend, got %d", store.Count(oss.PartToAmend))
	}
}

func TestOnWakeSkipsIdempotentAmend(t *testing.T) {
	e, store, pos := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 3_600_000, LotSize: 0.01})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 1, StartingSize: 0}, 100, 1)

	tp := pos.Snapshot().EntryPrice + bpsToDecimal(100)*pos.Snapshot().EntryPrice
	existing := &types.Order{Symbol: "BTC", Side: types.Sell, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: tp, ClientOrderID: 1}
	store.Put(oss.PartInTheBook, existing)
	store.TagTP(1)

	store.Flags.Position.Set()
	e.onWake()

	if store.Count(oss.PartToAmend) != 0 {
		t.Fatalf("expected the idempotent amend to be skipped, got %d queued", store.Count(oss.PartToAmend))
	}
}

func TestOnWakePastLiquidationTimerClosesWithMarketOrder(t *testing.T) {
	e, store, pos := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 1, LotSize: 0.01})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 1, StartingSize: 0}, 100, 0)

	store.Flags.Position.Set()
	e.onWake()

	snap := store.Snapshot(oss.PartToCreate)
	if len(snap) != 1 || snap[0].OrderType != types.Market {
		t.Fatalf("expected a single reduce-only market order, got %+v", snap)
	}
}

func TestOnWakePastLiquidationTimerForcesCloseEvenWithMatchingTP(t *testing.T) {
	e, store, pos := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 1, LotSize: 0.01})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 1, StartingSize: 0}, 100, 0)

	tp := pos.Snapshot().EntryPrice + bpsToDecimal(100)*pos.Snapshot().EntryPrice
	existing := &types.Order{Symbol: "BTC", Side: types.Sell, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: tp, ClientOrderID: 1}
	store.Put(oss.PartInTheBook, existing)
	store.TagTP(1)

	store.Flags.Position.Set()
	e.onWake()

	snap := store.Snapshot(oss.PartToCreate)
	if len(snap) != 1 || snap[0].OrderType != types.Market {
		t.Fatalf("expected liquidation to force a market order despite the matching resting tp, got %+v", snap)
	}
}

func TestOnWakeFlatPositionIsNoop(t *testing.T) {
	e, store, _ := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 3_600_000, LotSize: 0.01})
	store.Flags.Position.Set()
	e.onWake()
	if store.Count(oss.PartToCreate) != 0 {
		t.Fatalf("expected no orders for a flat position")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	e, _, _ := newTestExecutor(Params{TakeProfitBp: 100, LiquidationTimer: 3_600_000, LotSize: 0.01})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); err == nil {
		t.Fatalf("expected Run to return an error once the context is cancelled")
	}
}
