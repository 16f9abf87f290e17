package oms

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/0xtitan/perpquote/internal/book"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/internal/venue"
	"github.com/0xtitan/perpquote/pkg/types"
)

// fakeClient is a minimal venue.Client stub: it records every batch call
// and returns a caller-scripted result set, OK for every id by default.
type fakeClient struct {
	mu sync.Mutex

	createCalls      [][]types.Order
	amendCalls       [][]types.Order
	cancelVenueCalls [][]string
	cancelAll        int
	createOrder      []types.Order

	createResult      func([]types.Order) []venue.BatchResult
	cancelVenueResult func([]string) []venue.BatchResult
}

func okResults(ids []int64) []venue.BatchResult {
	out := make([]venue.BatchResult, len(ids))
	for i, id := range ids {
		out[i] = venue.BatchResult{ClientOrderID: id, VenueOrderID: "v", OK: true}
	}
	return out
}

func okResultsForOrders(orders []types.Order) []venue.BatchResult {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ClientOrderID
	}
	return okResults(ids)
}

func (f *fakeClient) CreateOrder(ctx context.Context, symbol string, o types.Order) (venue.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createOrder = append(f.createOrder, o)
	return venue.BatchResult{ClientOrderID: o.ClientOrderID, OK: true}, nil
}
func (f *fakeClient) AmendOrder(ctx context.Context, symbol string, o types.Order) (venue.BatchResult, error) {
	return venue.BatchResult{ClientOrderID: o.ClientOrderID, OK: true}, nil
}
func (f *fakeClient) CancelOrder(ctx context.Context, symbol string, id int64) (venue.BatchResult, error) {
	return venue.BatchResult{ClientOrderID: id, OK: true}, nil
}

func (f *fakeClient) BatchCreate(ctx context.Context, symbol string, orders []types.Order) ([]venue.BatchResult, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, orders)
	f.mu.Unlock()
	if f.createResult != nil {
		return f.createResult(orders), nil
	}
	return okResultsForOrders(orders), nil
}
func (f *fakeClient) BatchAmend(ctx context.Context, symbol string, orders []types.Order) ([]venue.BatchResult, error) {
	f.mu.Lock()
	f.amendCalls = append(f.amendCalls, orders)
	f.mu.Unlock()
	return okResultsForOrders(orders), nil
}
func (f *fakeClient) BatchCancel(ctx context.Context, symbol string, ids []int64) ([]venue.BatchResult, error) {
	return okResults(ids), nil
}
func (f *fakeClient) BatchCancelByVenueID(ctx context.Context, symbol string, venueOrderIDs []string) ([]venue.BatchResult, error) {
	f.mu.Lock()
	f.cancelVenueCalls = append(f.cancelVenueCalls, venueOrderIDs)
	f.mu.Unlock()
	if f.cancelVenueResult != nil {
		return f.cancelVenueResult(venueOrderIDs), nil
	}
	out := make([]venue.BatchResult, len(venueOrderIDs))
	for i, id := range venueOrderIDs {
		out[i] = venue.BatchResult{VenueOrderID: id, OK: true}
	}
	return out, nil
}
func (f *fakeClient) CancelAllOrders(ctx context.Context, symbol string) error {
	f.mu.Lock()
	f.cancelAll++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) GetOrderbook(ctx context.Context, symbol string) (types.BookSnapshot, error) {
	return types.BookSnapshot{}, nil
}
func (f *fakeClient) GetTrades(ctx context.Context, symbol string, limit int) ([]types.Trade, error) {
	return nil, nil
}
func (f *fakeClient) GetOhlcv(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return nil, nil
}
func (f *fakeClient) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	return types.Ticker{}, nil
}
func (f *fakeClient) GetOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}
func (f *fakeClient) GetPosition(ctx context.Context, symbol string) (types.PositionSnapshot, error) {
	return types.PositionSnapshot{}, nil
}
func (f *fakeClient) GetAccountInfo(ctx context.Context) (types.AccountInfo, error) {
	return types.AccountInfo{}, nil
}
func (f *fakeClient) GetExchangeInfo(ctx context.Context, symbol string) (types.ExchangeInfo, error) {
	return types.ExchangeInfo{}, nil
}
func (f *fakeClient) GetListenKey(ctx context.Context) (string, error)    { return "", nil }
func (f *fakeClient) PingListenKey(ctx context.Context, key string) error { return nil }

func newTestReconciler(client *fakeClient, params Params) (*Reconciler, *oss.Store, *book.Replica, *oss.PositionBook) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := oss.New()
	b := book.New("BTC", 10)
	b.Refresh([]types.BookLevel{{Price: 99, Size: 10}}, []types.BookLevel{{Price: 101, Size: 10}}, 1, 1)
	pos := oss.NewPositionBook("BTC")
	ids := oss.NewIDGenerator()
	ids.SetLevels(5)
	clock := func() int64 { return 10_000 }
	r := New("BTC", store, b, pos, ids, client, params, clock, logger)
	return r, store, b, pos
}

func defaultParams() Params {
	return Params{Sensitivity: 0.2, MaxPositionUSD: 10000, TotalOrders: 4, InFlightStaleness: 3000}
}

func TestReconcileCreatesFreshProposalWithNoMatch(t *testing.T) {
	client := &fakeClient{}
	r, _, _, _ := newTestReconciler(client, defaultParams())

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createCalls) != 1 || len(client.createCalls[0]) != 1 {
		t.Fatalf("expected one order batch-created, got %+v", client.createCalls)
	}
}

func TestReconcileDropsFreshInFlightDuplicate(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	existing := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1, Timestamp: 9000}
	store.Put(oss.PartInFlight, existing)

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 2}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createCalls) != 0 {
		t.Fatalf("expected the duplicate proposal to be dropped, got %+v", client.createCalls)
	}
}

func TestReconcileReProposesStaleInFlightDuplicate(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	existing := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1, Timestamp: 1000}
	store.Put(oss.PartInFlight, existing)

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 2}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createCalls) != 1 || len(client.createCalls[0]) != 1 {
		t.Fatalf("expected the stale duplicate to be evicted and re-proposed, got %+v", client.createCalls)
	}
	if store.Contains(oss.PartInFlight, 1) {
		t.Fatalf("expected the lost in_flight order to be evicted")
	}
}

func TestReconcileReplacesOutOfBoundsMatch(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	// level 0 resting order far from the new proposal's price.
	existing := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 90, ClientOrderID: 1, VenueOrderID: "v1"}
	store.Put(oss.PartInTheBook, existing)

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.cancelVenueCalls) != 1 {
		t.Fatalf("expected the out-of-bounds match to be cancelled, got %+v", client.cancelVenueCalls)
	}
	if len(client.createCalls) != 1 {
		t.Fatalf("expected the replacement to be created, got %+v", client.createCalls)
	}
}

func TestReconcileSkipsInBoundsMatch(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	existing := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98.01, ClientOrderID: 1}
	store.Put(oss.PartInTheBook, existing)

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.cancelVenueCalls) != 0 || len(client.createCalls) != 0 {
		t.Fatalf("expected an in-bounds match to be left alone, got cancel=%+v create=%+v", client.cancelVenueCalls, client.createCalls)
	}
}

func TestReconcileSkipsProposalExceedingMaxPosition(t *testing.T) {
	client := &fakeClient{}
	r, _, _, pos := newTestReconciler(client, Params{Sensitivity: 0.2, MaxPositionUSD: 50, TotalOrders: 4, InFlightStaleness: 3000})
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 10, StartingSize: 0}, 100, 1)

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 98, ClientOrderID: 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createCalls) != 0 {
		t.Fatalf("expected the proposal to be skipped on risk grounds, got %+v", client.createCalls)
	}
}

func TestReconcileSkipsProposalExceedingMaxPositionWhenFlat(t *testing.T) {
	client := &fakeClient{}
	r, _, _, _ := newTestReconciler(client, Params{Sensitivity: 0.2, MaxPositionUSD: 50, TotalOrders: 4, InFlightStaleness: 3000})

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 100, ClientOrderID: 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createCalls) != 0 {
		t.Fatalf("expected the proposal to be skipped on risk grounds even from flat, got %+v", client.createCalls)
	}
}

func TestReconcileOverflowEvictsClosestToMid(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, Params{Sensitivity: 0.2, MaxPositionUSD: 10000, TotalOrders: 1, InFlightStaleness: 3000})

	// Distinct ladder levels (id = level*1e7 + seq) so the new proposal's
	// level has no resting match; total_orders=1 means resting count >= 1
	// overflows.
	store.Put(oss.PartInTheBook, &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, Price: 98, ClientOrderID: 1*10_000_000 + 1, VenueOrderID: "v1"})
	store.Put(oss.PartInTheBook, &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, Price: 90, ClientOrderID: 2*10_000_000 + 1, VenueOrderID: "v2"})

	proposal := types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, TimeInForce: types.PostOnly, Price: 97, ClientOrderID: 3*10_000_000 + 1}
	if err := r.Reconcile(context.Background(), []types.Order{proposal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.cancelVenueCalls) != 1 || len(client.cancelVenueCalls[0]) != 1 || client.cancelVenueCalls[0][0] != "v1" {
		t.Fatalf("expected the order closest to mid (100) to be evicted, got %+v", client.cancelVenueCalls)
	}
}

func TestCreateMonitorDrainsAndMovesToInFlight(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	order := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, ClientOrderID: 1}
	store.Put(oss.PartToCreate, order)
	store.Flags.ToCreate.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunCreateMonitor(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !store.Contains(oss.PartInFlight, 1) {
		t.Fatalf("expected order moved to in_flight after create monitor drains it")
	}
}

func TestCancelMonitorMovesToRecentlyCancelledOnSuccess(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())

	order := &types.Order{Symbol: "BTC", Side: types.Buy, Size: 1, OrderType: types.Limit, ClientOrderID: 1, VenueOrderID: "v1"}
	store.Put(oss.PartToCancel, order)
	store.Flags.ToCancel.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunCancelMonitor(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !store.Contains(oss.PartRecentlyCancelled, 1) {
		t.Fatalf("expected the cancelled order moved to recently_cancelled")
	}
}

func TestApplyResultsRunsOrderErrorOnFailure(t *testing.T) {
	client := &fakeClient{}
	r, store, _, _ := newTestReconciler(client, defaultParams())
	store.Put(oss.PartInFlight, &types.Order{ClientOrderID: 1})
	store.TagTP(1)

	r.applyResults([]venue.BatchResult{{ClientOrderID: 1, OK: false}})

	if store.IsTP(1) {
		t.Fatalf("expected order_error to clear the tp tag")
	}
}

func TestShutdownCancelsAllAndClosesPositionWithMarketOrders(t *testing.T) {
	client := &fakeClient{}
	r, _, _, pos := newTestReconciler(client, defaultParams())
	pos.ApplyFill(types.Fill{Symbol: "BTC", Side: types.Buy, Price: 100, Size: 2, StartingSize: 0}, 100, 1)

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.cancelAll != 3 {
		t.Fatalf("expected 3 concurrent cancelAllOrders calls, got %d", client.cancelAll)
	}
	if len(client.createOrder) != 3 {
		t.Fatalf("expected 3 concurrent reduce-only market orders, got %d", len(client.createOrder))
	}
	for _, o := range client.createOrder {
		if o.Side != types.Sell || o.OrderType != types.Market || !o.ReduceOnly {
			t.Errorf("unexpected close order: %+v", o)
		}
	}
}

func TestShutdownSkipsMarketOrdersWhenFlat(t *testing.T) {
	client := &fakeClient{}
	r, _, _, _ := newTestReconciler(client, defaultParams())

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.createOrder) != 0 {
		t.Fatalf("expected no close orders for a flat position, got %+v", client.createOrder)
	}
}
