package hyperliquid

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/0xtitan/perpquote/pkg/types"
)

func newDryRunClient() *Client {
	return &Client{
		dryRun: true,
		rl:     NewRateLimiter(),
		assets: make(map[string]int),
	}
}

func TestDryRunBatchCreate(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	orders := []types.Order{
		{Symbol: "ETH", Side: types.Buy, Size: 1, Price: 3000, OrderType: types.Limit, TimeInForce: types.GTC, ClientOrderID: 1},
		{Symbol: "ETH", Side: types.Sell, Size: 1, Price: 3100, OrderType: types.Limit, TimeInForce: types.GTC, ClientOrderID: 2},
	}

	results, err := c.BatchCreate(context.Background(), "ETH", orders)
	if err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("result[%d].OK = false, want true", i)
		}
		if r.ClientOrderID != orders[i].ClientOrderID {
			t.Errorf("result[%d].ClientOrderID = %d, want %d", i, r.ClientOrderID, orders[i].ClientOrderID)
		}
	}
}

func TestDryRunBatchCreateEmpty(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	results, err := c.BatchCreate(context.Background(), "ETH", nil)
	if err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil for empty orders, got %v", results)
	}
}

func TestDryRunBatchCancel(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	results, err := c.BatchCancel(context.Background(), "ETH", []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("BatchCancel: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("result[%d].OK = false, want true", i)
		}
	}
}

func TestDryRunCreateOrder(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	o := types.Order{Symbol: "ETH", Side: types.Buy, Size: 1, Price: 3000, OrderType: types.Limit, TimeInForce: types.GTC, ClientOrderID: 7}
	result, err := c.CreateOrder(context.Background(), "ETH", o)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !result.OK {
		t.Error("result.OK = false, want true")
	}
	if result.ClientOrderID != 7 {
		t.Errorf("ClientOrderID = %d, want 7", result.ClientOrderID)
	}
}

func TestDryRunCancelAllOrdersNoop(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	if err := c.CancelAllOrders(context.Background(), "ETH"); err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
}

func TestGetTradesUnsupported(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	if _, err := c.GetTrades(context.Background(), "ETH", 10); err == nil {
		t.Fatal("expected error, Hyperliquid has no REST trade-history endpoint")
	}
}

func TestListenKeyNoops(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	key, err := c.GetListenKey(context.Background())
	if err != nil {
		t.Fatalf("GetListenKey: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, want empty", key)
	}
	if err := c.PingListenKey(context.Background(), key); err != nil {
		t.Fatalf("PingListenKey: %v", err)
	}
}

func TestDryRunBatchCancelByVenueID(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	results, err := c.BatchCancelByVenueID(context.Background(), "ETH", []string{"555", "556"})
	if err != nil {
		t.Fatalf("BatchCancelByVenueID: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("result[%d].OK = false, want true", i)
		}
	}
}

func TestBatchCancelByVenueIDRejectsBadID(t *testing.T) {
	t.Parallel()
	c := &Client{dryRun: false, rl: NewRateLimiter(), assets: map[string]int{"ETH": 0}}

	if _, err := c.BatchCancelByVenueID(context.Background(), "ETH", []string{"not-a-number"}); err == nil {
		t.Fatal("expected error for non-numeric venue order id")
	}
}

func TestTifWire(t *testing.T) {
	t.Parallel()
	cases := map[types.TimeInForce]string{
		types.GTC:      "Gtc",
		types.IOC:      "Ioc",
		types.FOK:      "Ioc",
		types.PostOnly: "Alo",
	}
	for tif, want := range cases {
		if got := tifWire(tif); got != want {
			t.Errorf("tifWire(%v) = %q, want %q", tif, got, want)
		}
	}
}

func TestDecodeOrderStatusesResting(t *testing.T) {
	t.Parallel()
	orders := []types.Order{{ClientOrderID: 42}}
	statuses := []json.RawMessage{json.RawMessage(`{"resting":{"oid":555}}`)}

	results := decodeOrderStatuses(orders, statuses)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].OK {
		t.Error("OK = false, want true")
	}
	if results[0].VenueOrderID != "555" {
		t.Errorf("VenueOrderID = %q, want \"555\"", results[0].VenueOrderID)
	}
}

func TestDecodeOrderStatusesError(t *testing.T) {
	t.Parallel()
	orders := []types.Order{{ClientOrderID: 42}}
	statuses := []json.RawMessage{json.RawMessage(`{"error":"insufficient margin"}`)}

	results := decodeOrderStatuses(orders, statuses)
	if results[0].OK {
		t.Error("OK = true, want false")
	}
	if results[0].Err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestDecodeOrderStatusesMissing(t *testing.T) {
	t.Parallel()
	orders := []types.Order{{ClientOrderID: 1}, {ClientOrderID: 2}}
	statuses := []json.RawMessage{json.RawMessage(`{"resting":{"oid":1}}`)}

	results := decodeOrderStatuses(orders, statuses)
	if results[1].Err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestPow10(t *testing.T) {
	t.Parallel()
	if got := pow10(2); got != 100 {
		t.Errorf("pow10(2) = %v, want 100", got)
	}
	if got := pow10(-2); got != 0.01 {
		t.Errorf("pow10(-2) = %v, want 0.01", got)
	}
	if got := pow10(0); got != 1 {
		t.Errorf("pow10(0) = %v, want 1", got)
	}
}

func TestIntervalMillis(t *testing.T) {
	t.Parallel()
	if got := intervalMillis("1m"); got != 60_000 {
		t.Errorf("intervalMillis(1m) = %d, want 60000", got)
	}
	if got := intervalMillis("1h"); got != 3_600_000 {
		t.Errorf("intervalMillis(1h) = %d, want 3600000", got)
	}
	if got := intervalMillis("unknown"); got != 60_000 {
		t.Errorf("intervalMillis(unknown) = %d, want fallback 60000", got)
	}
}
