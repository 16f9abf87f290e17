// client.go implements venue.Client against Hyperliquid's /info (public +
// authenticated reads) and /exchange (signed order actions) REST
// endpoints, grounded on sdk/ainfo.py and sdk/aexchange.py.
package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/internal/venue"
	"github.com/0xtitan/perpquote/pkg/types"
)

// Client is the REST implementation of venue.Client for Hyperliquid.
type Client struct {
	http   *resty.Client
	signer *Signer
	rl     *RateLimiter
	dryRun bool

	assetMu sync.RWMutex
	assets  map[string]int // coin -> asset index, populated lazily from meta()
}

// NewClient creates a REST client with rate limiting and retry on 5xx,
// following the teacher's resty setup.
func NewClient(baseURL string, signer *Signer, dryRun bool) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		signer: signer,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		assets: make(map[string]int),
	}
}

var _ venue.Client = (*Client)(nil)

func (c *Client) postInfo(ctx context.Context, body any, out any) error {
	if err := c.rl.Info.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(out).Post("/info")
	if err != nil {
		return fmt.Errorf("post /info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("post /info: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// exchangeResponse is the common {"status","response":{"type","data":{"statuses":[...]}}}
// envelope every /exchange action returns, grounded on the observed
// order/cancel response shape in aexchange.py's callers.
type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

func (c *Client) postExchange(ctx context.Context, action any) (exchangeResponse, error) {
	var out exchangeResponse
	if c.dryRun {
		return out, nil
	}
	if err := c.rl.Exchange.Wait(ctx); err != nil {
		return out, err
	}
	nonce := time.Now().UnixMilli()
	signed, err := c.signer.Sign(action, nonce)
	if err != nil {
		return out, fmt.Errorf("sign action: %w", err)
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(signed).SetResult(&out).Post("/exchange")
	if err != nil {
		return out, fmt.Errorf("post /exchange: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return out, fmt.Errorf("post /exchange: status %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

// asset resolves a coin symbol to its numeric asset index, fetching and
// caching the universe from /info{"type":"meta"} on first use.
func (c *Client) asset(ctx context.Context, symbol string) (int, error) {
	c.assetMu.RLock()
	idx, ok := c.assets[symbol]
	c.assetMu.RUnlock()
	if ok {
		return idx, nil
	}

	var meta struct {
		Universe []struct {
			Name       string `json:"name"`
			SzDecimals int    `json:"szDecimals"`
		} `json:"universe"`
	}
	if err := c.postInfo(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
		return 0, fmt.Errorf("fetch meta: %w", err)
	}

	c.assetMu.Lock()
	defer c.assetMu.Unlock()
	for i, a := range meta.Universe {
		c.assets[a.Name] = i
	}
	idx, ok = c.assets[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown symbol %q in exchange universe", symbol)
	}
	return idx, nil
}

// orderWire is the signed-action wire shape for a single order, grounded
// on order_request_to_order_wire's {a,b,p,s,r,t,c} fields.
type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  orderTypeWire `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type orderTypeWire struct {
	Limit *limitWire `json:"limit,omitempty"`
}

type limitWire struct {
	Tif string `json:"tif"`
}

// tifWire maps the core's time-in-force to Hyperliquid's limit order tif
// strings. Hyperliquid has no native FOK; IOC is the closest
// fill-or-kill-ish semantic (fills what it can, cancels the remainder —
// a FOK's "all or nothing" guarantee is therefore only approximate).
func tifWire(tif types.TimeInForce) string {
	switch tif {
	case types.IOC, types.FOK:
		return "Ioc"
	case types.PostOnly:
		return "Alo"
	default:
		return "Gtc"
	}
}

func (c *Client) toOrderWire(ctx context.Context, symbol string, o types.Order) (orderWire, error) {
	asset, err := c.asset(ctx, symbol)
	if err != nil {
		return orderWire{}, err
	}
	return orderWire{
		Asset:      asset,
		IsBuy:      o.Side == types.Buy,
		Price:      strconv.FormatFloat(o.Price, 'f', -1, 64),
		Size:       strconv.FormatFloat(o.Size, 'f', -1, 64),
		ReduceOnly: o.ReduceOnly,
		OrderType:  orderTypeWire{Limit: &limitWire{Tif: tifWire(o.TimeInForce)}},
		Cloid:      oss.Cloid(o.ClientOrderID),
	}, nil
}

type orderAction struct {
	Type   string      `json:"type"`
	Orders []orderWire `json:"orders"`
}

// orderStatusWire decodes one entry of an order action's response
// statuses array: either {"resting":{"oid":N}}, {"filled":{"oid":N,...}},
// or {"error":"message"}.
type orderStatusWire struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid int64 `json:"oid"`
	} `json:"filled"`
	Error string `json:"error"`
}

func decodeOrderStatuses(orders []types.Order, statuses []json.RawMessage) []venue.BatchResult {
	results := make([]venue.BatchResult, len(orders))
	for i, o := range orders {
		results[i] = venue.BatchResult{ClientOrderID: o.ClientOrderID}
		if i >= len(statuses) {
			results[i].Err = fmt.Errorf("hyperliquid: missing status for order %d", o.ClientOrderID)
			continue
		}
		var s orderStatusWire
		if err := json.Unmarshal(statuses[i], &s); err != nil {
			results[i].Err = fmt.Errorf("hyperliquid: decode status: %w", err)
			continue
		}
		switch {
		case s.Resting != nil:
			results[i].OK = true
			results[i].VenueOrderID = strconv.FormatInt(s.Resting.Oid, 10)
		case s.Filled != nil:
			results[i].OK = true
			results[i].VenueOrderID = strconv.FormatInt(s.Filled.Oid, 10)
		case s.Error != "":
			results[i].Err = fmt.Errorf("hyperliquid: %s", s.Error)
		default:
			results[i].Err = fmt.Errorf("hyperliquid: unrecognized order status")
		}
	}
	return results
}

// CreateOrder submits a single order.
func (c *Client) CreateOrder(ctx context.Context, symbol string, o types.Order) (venue.BatchResult, error) {
	results, err := c.BatchCreate(ctx, symbol, []types.Order{o})
	if err != nil {
		return venue.BatchResult{}, err
	}
	if len(results) == 0 {
		return venue.BatchResult{}, fmt.Errorf("hyperliquid: empty batch response for create")
	}
	return results[0], nil
}

// AmendOrder modifies a single resting order in place.
func (c *Client) AmendOrder(ctx context.Context, symbol string, o types.Order) (venue.BatchResult, error) {
	results, err := c.BatchAmend(ctx, symbol, []types.Order{o})
	if err != nil {
		return venue.BatchResult{}, err
	}
	if len(results) == 0 {
		return venue.BatchResult{}, fmt.Errorf("hyperliquid: empty batch response for amend")
	}
	return results[0], nil
}

// CancelOrder cancels a single order by client order id.
func (c *Client) CancelOrder(ctx context.Context, symbol string, clientOrderID int64) (venue.BatchResult, error) {
	results, err := c.BatchCancel(ctx, symbol, []int64{clientOrderID})
	if err != nil {
		return venue.BatchResult{}, err
	}
	if len(results) == 0 {
		return venue.BatchResult{}, fmt.Errorf("hyperliquid: empty batch response for cancel")
	}
	return results[0], nil
}

// BatchCreate places orders in a single signed action, grounded on
// aexchange.py's bulk_orders.
func (c *Client) BatchCreate(ctx context.Context, symbol string, orders []types.Order) ([]venue.BatchResult, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if c.dryRun {
		return dryRunResults(orders), nil
	}

	wires := make([]orderWire, len(orders))
	for i, o := range orders {
		w, err := c.toOrderWire(ctx, symbol, o)
		if err != nil {
			return nil, err
		}
		wires[i] = w
	}

	resp, err := c.postExchange(ctx, orderAction{Type: "order", Orders: wires})
	if err != nil {
		return nil, err
	}
	return decodeOrderStatuses(orders, resp.Response.Data.Statuses), nil
}

// modifyWire is one entry of a batchModify action.
type modifyWire struct {
	Oid   string    `json:"oid"` // cloid hex string; Hyperliquid accepts either oid or cloid here
	Order orderWire `json:"order"`
}

type modifyAction struct {
	Type     string       `json:"type"`
	Modifies []modifyWire `json:"modifies"`
}

// BatchAmend modifies resting orders in place, grounded on
// bulk_modify_orders_new.
func (c *Client) BatchAmend(ctx context.Context, symbol string, orders []types.Order) ([]venue.BatchResult, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if c.dryRun {
		return dryRunResults(orders), nil
	}

	modifies := make([]modifyWire, len(orders))
	for i, o := range orders {
		w, err := c.toOrderWire(ctx, symbol, o)
		if err != nil {
			return nil, err
		}
		modifies[i] = modifyWire{Oid: oss.Cloid(o.ClientOrderID), Order: w}
	}

	resp, err := c.postExchange(ctx, modifyAction{Type: "batchModify", Modifies: modifies})
	if err != nil {
		return nil, err
	}
	return decodeOrderStatuses(orders, resp.Response.Data.Statuses), nil
}

type cancelByCloidWire struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

type cancelByCloidAction struct {
	Type    string              `json:"type"`
	Cancels []cancelByCloidWire `json:"cancels"`
}

// BatchCancel cancels orders by client order id, grounded on
// bulk_cancel_by_cloid (cancelling by cloid avoids a round trip to learn
// the venue-assigned oid first).
func (c *Client) BatchCancel(ctx context.Context, symbol string, clientOrderIDs []int64) ([]venue.BatchResult, error) {
	if len(clientOrderIDs) == 0 {
		return nil, nil
	}
	if c.dryRun {
		results := make([]venue.BatchResult, len(clientOrderIDs))
		for i, id := range clientOrderIDs {
			results[i] = venue.BatchResult{ClientOrderID: id, OK: true}
		}
		return results, nil
	}

	asset, err := c.asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	cancels := make([]cancelByCloidWire, len(clientOrderIDs))
	for i, id := range clientOrderIDs {
		cancels[i] = cancelByCloidWire{Asset: asset, Cloid: oss.Cloid(id)}
	}

	resp, err := c.postExchange(ctx, cancelByCloidAction{Type: "cancelByCloid", Cancels: cancels})
	if err != nil {
		return nil, err
	}

	results := make([]venue.BatchResult, len(clientOrderIDs))
	for i, id := range clientOrderIDs {
		results[i] = venue.BatchResult{ClientOrderID: id}
		if i >= len(resp.Response.Data.Statuses) {
			results[i].Err = fmt.Errorf("hyperliquid: missing cancel status for %d", id)
			continue
		}
		var raw string
		if err := json.Unmarshal(resp.Response.Data.Statuses[i], &raw); err == nil && raw == "success" {
			results[i].OK = true
			continue
		}
		var errWire struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.Response.Data.Statuses[i], &errWire); err == nil && errWire.Error != "" {
			results[i].Err = fmt.Errorf("hyperliquid: %s", errWire.Error)
			continue
		}
		results[i].OK = true
	}
	return results, nil
}

func dryRunResults(orders []types.Order) []venue.BatchResult {
	results := make([]venue.BatchResult, len(orders))
	for i, o := range orders {
		results[i] = venue.BatchResult{ClientOrderID: o.ClientOrderID, OK: true, VenueOrderID: "dry-run"}
	}
	return results
}

// cancelWire is the wire shape for a plain oid-keyed cancel, shared by
// BatchCancelByVenueID and CancelAllOrders.
type cancelWire struct {
	Asset int   `json:"a"`
	Oid   int64 `json:"o"`
}

type cancelAction struct {
	Type    string       `json:"type"`
	Cancels []cancelWire `json:"cancels"`
}

// BatchCancelByVenueID cancels orders by their venue-assigned oid rather
// than client order id — the to_cancel monitor's drain path, since an
// entry there may be a foreign order the reducer never placed itself
// (spec §4.4's "foreign order" case, where no cloid is known). Grounded
// on aexchange.py's bulk_cancel.
func (c *Client) BatchCancelByVenueID(ctx context.Context, symbol string, venueOrderIDs []string) ([]venue.BatchResult, error) {
	if len(venueOrderIDs) == 0 {
		return nil, nil
	}
	if c.dryRun {
		results := make([]venue.BatchResult, len(venueOrderIDs))
		for i, id := range venueOrderIDs {
			results[i] = venue.BatchResult{VenueOrderID: id, OK: true}
		}
		return results, nil
	}

	asset, err := c.asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	cancels := make([]cancelWire, len(venueOrderIDs))
	for i, id := range venueOrderIDs {
		oid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hyperliquid: invalid venue order id %q: %w", id, err)
		}
		cancels[i] = cancelWire{Asset: asset, Oid: oid}
	}

	resp, err := c.postExchange(ctx, cancelAction{Type: "cancel", Cancels: cancels})
	if err != nil {
		return nil, err
	}

	results := make([]venue.BatchResult, len(venueOrderIDs))
	for i, id := range venueOrderIDs {
		results[i] = venue.BatchResult{VenueOrderID: id}
		if i >= len(resp.Response.Data.Statuses) {
			results[i].Err = fmt.Errorf("hyperliquid: missing cancel status for %s", id)
			continue
		}
		var raw string
		if err := json.Unmarshal(resp.Response.Data.Statuses[i], &raw); err == nil && raw == "success" {
			results[i].OK = true
			continue
		}
		var errWire struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.Response.Data.Statuses[i], &errWire); err == nil && errWire.Error != "" {
			results[i].Err = fmt.Errorf("hyperliquid: %s", errWire.Error)
			continue
		}
		results[i].OK = true
	}
	return results, nil
}

// CancelAllOrders cancels every open order on symbol. Hyperliquid has no
// native "cancel all" action (no such type in aexchange.py); this fetches
// the open-order set via /info{"type":"openOrders"} and cancels each by
// its venue oid through a plain "cancel" action, grounded on
// aexchange.py's bulk_cancel.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	if c.dryRun {
		return nil
	}
	addr := c.signer.Address().Hex()
	var open []struct {
		Coin string `json:"coin"`
		Oid  int64  `json:"oid"`
	}
	if err := c.postInfo(ctx, map[string]string{"type": "openOrders", "user": addr}, &open); err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}

	asset, err := c.asset(ctx, symbol)
	if err != nil {
		return err
	}
	var cancels []cancelWire
	for _, o := range open {
		if o.Coin != symbol {
			continue
		}
		cancels = append(cancels, cancelWire{Asset: asset, Oid: o.Oid})
	}
	if len(cancels) == 0 {
		return nil
	}

	_, err = c.postExchange(ctx, cancelAction{Type: "cancel", Cancels: cancels})
	return err
}

// GetOrderbook fetches a full L2 snapshot, grounded on ainfo.py's l2_snapshot.
func (c *Client) GetOrderbook(ctx context.Context, symbol string) (types.BookSnapshot, error) {
	var msg l2BookMsg
	if err := c.postInfo(ctx, map[string]string{"type": "l2Book", "coin": symbol}, &msg); err != nil {
		return types.BookSnapshot{}, err
	}
	delta := msg.toDelta()
	return types.BookSnapshot{
		Symbol:    symbol,
		Bids:      delta.Bids,
		Asks:      delta.Asks,
		Timestamp: delta.Timestamp,
		SeqID:     delta.Timestamp,
	}, nil
}

// GetTrades has no grounded REST counterpart: aexchange.py/ainfo.py expose
// no public trade-history endpoint, only the push-only "trades"
// websocket channel this package's Feed already subscribes to. Returning
// an explicit error here is preferable to silently returning an empty
// slice that a caller might mistake for "no recent trades".
func (c *Client) GetTrades(ctx context.Context, symbol string, limit int) ([]types.Trade, error) {
	return nil, fmt.Errorf("hyperliquid: no REST trade-history endpoint; subscribe to the trades websocket channel instead")
}

// GetOhlcv fetches recent candles, grounded on ainfo.py's candles_snapshot.
func (c *Client) GetOhlcv(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	end := time.Now().UnixMilli()
	start := end - int64(limit)*intervalMillis(interval)

	req := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      symbol,
			"interval":  interval,
			"startTime": start,
			"endTime":   end,
		},
	}
	var msgs []candleMsg
	if err := c.postInfo(ctx, req, &msgs); err != nil {
		return nil, err
	}
	candles := make([]types.Candle, 0, len(msgs))
	for _, m := range msgs {
		candles = append(candles, m.toCandle())
	}
	return candles, nil
}

func intervalMillis(interval string) int64 {
	switch interval {
	case "1m":
		return 60_000
	case "5m":
		return 5 * 60_000
	case "15m":
		return 15 * 60_000
	case "1h":
		return 3_600_000
	case "4h":
		return 4 * 3_600_000
	case "1d":
		return 24 * 3_600_000
	default:
		return 60_000
	}
}

// GetTicker derives mark/index/funding from metaAndAssetCtxs, grounded on
// ws_handlers/ticker.py's refresh (the same fields, read once via REST
// instead of the allMids/assetCtx websocket push).
func (c *Client) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	var resp []json.RawMessage
	if err := c.postInfo(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &resp); err != nil {
		return types.Ticker{}, err
	}
	if len(resp) < 2 {
		return types.Ticker{}, fmt.Errorf("hyperliquid: malformed metaAndAssetCtxs response")
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(resp[0], &meta); err != nil {
		return types.Ticker{}, fmt.Errorf("decode universe: %w", err)
	}
	var ctxs []struct {
		MarkPx   string `json:"markPx"`
		OraclePx string `json:"oraclePx"`
		Funding  string `json:"funding"`
	}
	if err := json.Unmarshal(resp[1], &ctxs); err != nil {
		return types.Ticker{}, fmt.Errorf("decode asset contexts: %w", err)
	}

	for i, u := range meta.Universe {
		if u.Name != symbol || i >= len(ctxs) {
			continue
		}
		return types.Ticker{
			Timestamp:   time.Now().UnixMilli(),
			MarkPrice:   parseFloat(ctxs[i].MarkPx),
			IndexPrice:  parseFloat(ctxs[i].OraclePx),
			FundingRate: parseFloat(ctxs[i].Funding),
			FundingTime: nextFundingTime(),
		}, nil
	}
	return types.Ticker{}, fmt.Errorf("hyperliquid: symbol %q not found in asset contexts", symbol)
}

// nextFundingTime returns the next top-of-hour venue-epoch ms, grounded
// on ws_handlers/ticker.py's time_to_funding_ms (Hyperliquid settles
// funding hourly).
func nextFundingTime() int64 {
	now := time.Now()
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.UnixMilli()
}

// GetOpenOrders fetches the user's resting orders, grounded on
// ainfo.py's open_orders.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	var raw []struct {
		Coin    string `json:"coin"`
		LimitPx string `json:"limitPx"`
		Oid     int64  `json:"oid"`
		Side    string `json:"side"`
		Sz      string `json:"sz"`
		Cloid   string `json:"cloid"`
	}
	addr := c.signer.Address().Hex()
	if err := c.postInfo(ctx, map[string]string{"type": "openOrders", "user": addr}, &raw); err != nil {
		return nil, err
	}

	var orders []types.Order
	for _, o := range raw {
		if o.Coin != symbol {
			continue
		}
		side := types.Buy
		if o.Side == "A" {
			side = types.Sell
		}
		ord := types.Order{
			Symbol:       o.Coin,
			Side:         side,
			Size:         parseFloat(o.Sz),
			Price:        parseFloat(o.LimitPx),
			OrderType:    types.Limit,
			VenueOrderID: strconv.FormatInt(o.Oid, 10),
			Status:       types.InTheBook,
		}
		if o.Cloid != "" {
			if id, err := oss.ParseCloid(o.Cloid); err == nil {
				ord.ClientOrderID = id
			}
		}
		orders = append(orders, ord)
	}
	return orders, nil
}

// GetPosition fetches the user's position for symbol, grounded on
// ainfo.py's user_state and ws_handlers/position.py's refresh.
func (c *Client) GetPosition(ctx context.Context, symbol string) (types.PositionSnapshot, error) {
	var state struct {
		AssetPositions []struct {
			Position struct {
				Coin          string `json:"coin"`
				EntryPx       string `json:"entryPx"`
				Szi           string `json:"szi"`
				UnrealizedPnl string `json:"unrealizedPnl"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	addr := c.signer.Address().Hex()
	if err := c.postInfo(ctx, map[string]string{"type": "clearinghouseState", "user": addr}, &state); err != nil {
		return types.PositionSnapshot{}, err
	}

	for _, p := range state.AssetPositions {
		if p.Position.Coin != symbol {
			continue
		}
		size := parseFloat(p.Position.Szi)
		side := types.Buy
		if size < 0 {
			side = types.Sell
		}
		return types.PositionSnapshot{
			Symbol:     symbol,
			HasEntry:   true,
			Side:       side,
			EntryPrice: parseFloat(p.Position.EntryPx),
			Size:       size,
			UPnl:       parseFloat(p.Position.UnrealizedPnl),
		}, nil
	}
	return types.PositionSnapshot{Symbol: symbol, HasEntry: false}, nil
}

// GetAccountInfo fetches coarse balance/margin figures, grounded on
// ainfo.py's user_state MarginSummary fields.
func (c *Client) GetAccountInfo(ctx context.Context) (types.AccountInfo, error) {
	var state struct {
		MarginSummary struct {
			AccountValue    string `json:"accountValue"`
			TotalMarginUsed string `json:"totalMarginUsed"`
		} `json:"marginSummary"`
	}
	addr := c.signer.Address().Hex()
	if err := c.postInfo(ctx, map[string]string{"type": "clearinghouseState", "user": addr}, &state); err != nil {
		return types.AccountInfo{}, err
	}
	return types.AccountInfo{
		AccountValue: parseFloat(state.MarginSummary.AccountValue),
		MarginUsed:   parseFloat(state.MarginSummary.TotalMarginUsed),
	}, nil
}

// GetExchangeInfo derives a symbol's trading rules from its szDecimals,
// grounded on exchange.py's use of szDecimals for lot size. Hyperliquid
// prices aren't quantized to a fixed tick — they're constrained to 5
// significant figures and at most (6 - szDecimals) decimals (the
// sig-fig+decimals rounding family, internal/rounding) — so TickSize here
// is an approximation (10^-(6-szDecimals)) for callers that only
// understand a flat tick, documented in DESIGN.md.
func (c *Client) GetExchangeInfo(ctx context.Context, symbol string) (types.ExchangeInfo, error) {
	var meta struct {
		Universe []struct {
			Name       string `json:"name"`
			SzDecimals int    `json:"szDecimals"`
		} `json:"universe"`
	}
	if err := c.postInfo(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
		return types.ExchangeInfo{}, err
	}
	for _, a := range meta.Universe {
		if a.Name != symbol {
			continue
		}
		lotSize := pow10(-a.SzDecimals)
		priceDecimals := 6 - a.SzDecimals
		if priceDecimals < 0 {
			priceDecimals = 0
		}
		return types.ExchangeInfo{
			Symbol:   symbol,
			TickSize: pow10(-priceDecimals),
			LotSize:  lotSize,
			MinSize:  lotSize,
		}, nil
	}
	return types.ExchangeInfo{}, fmt.Errorf("hyperliquid: symbol %q not found in universe", symbol)
}

func pow10(exp int) float64 {
	v := 1.0
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i < -exp; i++ {
		v /= 10
	}
	return v
}

// GetListenKey/PingListenKey are no-ops: Hyperliquid's private channel
// authenticates by address inside the subscription payload (Feed.SubscribeUser),
// not a session token (spec §6's "venues that require session tokens" carve-out).
func (c *Client) GetListenKey(ctx context.Context) (string, error)    { return "", nil }
func (c *Client) PingListenKey(ctx context.Context, key string) error { return nil }
