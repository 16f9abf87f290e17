// ws.go implements Hyperliquid's combined websocket feed: a single
// connection carrying both public market-data subscriptions (l2Book,
// trades, candle) and, once authenticated by address, the private
// orderUpdates/userFills channels.
//
// Unlike the Polymarket feed this package generalizes from, Hyperliquid
// multiplexes every channel over one socket and reconnects on a fixed 1s
// backoff rather than exponential (the core's reconnect contract, spec
// §5 / §6's startPublicWs/startPrivateWs collaborator).
package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xtitan/perpquote/pkg/types"
)

const (
	reconnectBackoff = time.Second
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 256
)

// subscription is one entry of Hyperliquid's {"method":"subscribe","subscription":{...}} envelope.
type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// Feed manages one websocket connection carrying an arbitrary set of
// public and (optionally) private channel subscriptions.
type Feed struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu sync.Mutex
	subs  []subscription

	bookCh   chan types.BookDelta
	tradeCh  chan types.Trade
	candleCh chan types.Candle
	tickerCh chan types.Ticker
	orderCh  chan types.OrderUpdate
	fillCh   chan types.Fill

	logger *slog.Logger
}

// NewFeed returns a feed dialing wsURL. Channels are populated as
// subscribed messages arrive; callers that never subscribe to a channel
// simply never receive on the corresponding chan.
func NewFeed(wsURL string, logger *slog.Logger) *Feed {
	return &Feed{
		url:      wsURL,
		bookCh:   make(chan types.BookDelta, eventBufferSize),
		tradeCh:  make(chan types.Trade, eventBufferSize),
		candleCh: make(chan types.Candle, eventBufferSize),
		tickerCh: make(chan types.Ticker, eventBufferSize),
		orderCh:  make(chan types.OrderUpdate, eventBufferSize),
		fillCh:   make(chan types.Fill, eventBufferSize),
		logger:   logger.With("component", "venue.hyperliquid.ws"),
	}
}

func (f *Feed) BookDeltas() <-chan types.BookDelta     { return f.bookCh }
func (f *Feed) Trades() <-chan types.Trade             { return f.tradeCh }
func (f *Feed) Candles() <-chan types.Candle           { return f.candleCh }
func (f *Feed) Tickers() <-chan types.Ticker           { return f.tickerCh }
func (f *Feed) OrderUpdates() <-chan types.OrderUpdate { return f.orderCh }
func (f *Feed) Fills() <-chan types.Fill               { return f.fillCh }

// SubscribeBook adds an l2Book subscription for symbol.
func (f *Feed) SubscribeBook(symbol string) { f.addSub(subscription{Type: "l2Book", Coin: symbol}) }

// SubscribeTrades adds a trades subscription for symbol.
func (f *Feed) SubscribeTrades(symbol string) { f.addSub(subscription{Type: "trades", Coin: symbol}) }

// SubscribeCandle adds a candle subscription for symbol at the given interval.
func (f *Feed) SubscribeCandle(symbol, interval string) {
	f.addSub(subscription{Type: "candle", Coin: symbol + ":" + interval})
}

// SubscribeUser adds the authenticated orderUpdates/userFills channels
// for the given address.
func (f *Feed) SubscribeUser(address string) {
	f.addSub(subscription{Type: "orderUpdates", User: address})
	f.addSub(subscription{Type: "userFills", User: address})
}

func (f *Feed) addSub(s subscription) {
	f.subMu.Lock()
	f.subs = append(f.subs, s)
	f.subMu.Unlock()
}

// Run connects and maintains the websocket connection, reconnecting on a
// fixed 1s backoff until ctx is cancelled — the core's reconnect
// contract (spec §5) rather than the exponential backoff this package's
// REST/rate-limit siblings were generalized from.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", reconnectBackoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

// Close closes the live connection, if any.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	f.logger.Info("websocket connected")

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *Feed) resubscribeAll() error {
	f.subMu.Lock()
	subs := append([]subscription(nil), f.subs...)
	f.subMu.Unlock()

	for _, s := range subs {
		envelope := map[string]any{"method": "subscribe", "subscription": s}
		if err := f.writeJSON(envelope); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeJSON(map[string]string{"method": "ping"}); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

// wsEnvelope is Hyperliquid's outer {"channel": "...", "data": ...} shape.
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

func (f *Feed) dispatch(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(raw))
		return
	}

	switch env.Channel {
	case "l2Book":
		var msg l2BookMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			f.logger.Error("unmarshal l2Book", "error", err)
			return
		}
		f.sendBook(msg.toDelta())

	case "trades":
		var msgs []tradeMsg
		if err := json.Unmarshal(env.Data, &msgs); err != nil {
			f.logger.Error("unmarshal trades", "error", err)
			return
		}
		for _, m := range msgs {
			f.sendTrade(m.toTrade())
		}

	case "candle":
		var msg candleMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			f.logger.Error("unmarshal candle", "error", err)
			return
		}
		f.sendCandle(msg.toCandle())

	case "allMids":
		// allMids carries a mid-price map keyed by coin, not a per-symbol
		// ticker; the venue client's GetTicker REST call is the source of
		// truth for funding/mark/index, so this channel is intentionally
		// not decoded into a Ticker here.
		f.logger.Debug("ignoring allMids (ticker comes from REST)")

	case "orderUpdates":
		var msgs []orderUpdateMsg
		if err := json.Unmarshal(env.Data, &msgs); err != nil {
			f.logger.Error("unmarshal orderUpdates", "error", err)
			return
		}
		for _, m := range msgs {
			f.sendOrderUpdate(m.toOrderUpdate())
		}

	case "userFills":
		var payload userFillsMsg
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			f.logger.Error("unmarshal userFills", "error", err)
			return
		}
		for _, m := range payload.Fills {
			f.sendFill(m.toFill())
		}

	case "subscriptionResponse", "pong":
		f.logger.Debug("ignoring control message", "channel", env.Channel)

	default:
		f.logger.Debug("unknown ws channel", "channel", env.Channel)
	}
}

func (f *Feed) sendBook(d types.BookDelta) {
	select {
	case f.bookCh <- d:
	default:
		f.logger.Warn("book channel full, dropping delta", "symbol", d.Symbol)
	}
}

func (f *Feed) sendTrade(t types.Trade) {
	select {
	case f.tradeCh <- t:
	default:
		f.logger.Warn("trade channel full, dropping trade")
	}
}

func (f *Feed) sendCandle(c types.Candle) {
	select {
	case f.candleCh <- c:
	default:
		f.logger.Warn("candle channel full, dropping candle")
	}
}

func (f *Feed) sendOrderUpdate(u types.OrderUpdate) {
	select {
	case f.orderCh <- u:
	default:
		f.logger.Warn("order channel full, dropping update")
	}
}

func (f *Feed) sendFill(fl types.Fill) {
	select {
	case f.fillCh <- fl:
	default:
		f.logger.Warn("fill channel full, dropping fill")
	}
}
