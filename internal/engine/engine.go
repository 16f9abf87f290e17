// Package engine is the central orchestrator of the market-making bot.
//
// It wires together the subsystems for one symbol on one venue:
//
//  1. The Market-Data Handlers maintain an Order Book Replica plus trade/
//     candle ring buffers from the venue's public websocket stream.
//  2. The Order State Store and Position Book hold the engine's in-process
//     view of its own orders and inventory; the User-Event Reducer folds
//     the private stream into both.
//  3. The Quote Generator proposes a ladder on every tick; the OMS
//     Reconciler diffs it against what's resting and drives create/amend/
//     cancel through the venue client. The Position Executor independently
//     tracks a take-profit (or liquidation) order off the Position flag.
//  4. The risk manager watches for a daily-loss or rapid-price-movement
//     breach and triggers the shutdown sequence.
//
// Lifecycle: New() → Start() → [runs until the caller cancels] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/0xtitan/perpquote/internal/api"
	"github.com/0xtitan/perpquote/internal/config"
	"github.com/0xtitan/perpquote/internal/marketdata"
	"github.com/0xtitan/perpquote/internal/oms"
	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/internal/posexec"
	"github.com/0xtitan/perpquote/internal/quotegen"
	"github.com/0xtitan/perpquote/internal/risk"
	"github.com/0xtitan/perpquote/internal/rounding"
	"github.com/0xtitan/perpquote/internal/secrets"
	"github.com/0xtitan/perpquote/internal/store"
	"github.com/0xtitan/perpquote/internal/uer"
	"github.com/0xtitan/perpquote/internal/venue/hyperliquid"
	"github.com/0xtitan/perpquote/pkg/types"
)

const (
	bookDepth            = 50
	tradeCapacity        = 1000
	candleCapacity       = 500
	resyncInterval       = 30 * time.Second
	positionPollPeriod   = 15 * time.Second
	candleInterval       = "1m"
	inFlightStaleness    = 3000 // ms, spec's duplicate-suppression window
	reconcileSensitivity = 0.2
)

// tickRounder adapts a symbol's tick/lot size (from the venue's exchange
// info) to the posexec.Rounder interface, per internal/rounding's
// step-size family.
type tickRounder struct {
	tickSize float64
	lotSize  float64
}

func (r tickRounder) RoundCeil(price float64) float64  { return rounding.Ceil(price, r.tickSize) }
func (r tickRounder) RoundFloor(price float64) float64 { return rounding.Floor(price, r.tickSize) }
func (r tickRounder) RoundSize(size float64) float64   { return rounding.Ceil(size, r.lotSize) }

// Engine orchestrates every component trading one symbol on one venue.
type Engine struct {
	cfg    config.Config
	symbol string
	logger *slog.Logger

	client *hyperliquid.Client
	feed   *hyperliquid.Feed

	md         *marketdata.Handlers
	ossStore   *oss.Store
	posBook    *oss.PositionBook
	ids        *oss.IDGenerator
	reducer    *uer.Reducer
	generator  quotegen.Generator
	reconciler *oms.Reconciler
	executor   *posexec.Executor
	riskMgr    *risk.Manager
	posStore   *store.Store

	generationInterval time.Duration

	dashboardEvents chan api.DashboardEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component for the single exchanges entry in cfg. The
// single-symbol-per-venue design means exactly one entry is expected; a
// multi-symbol deployment runs one Engine per symbol.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if len(cfg.Exchanges) != 1 {
		return nil, fmt.Errorf("engine: exactly one exchanges entry is required, got %d", len(cfg.Exchanges))
	}
	var ex config.ExchangeConfig
	for _, v := range cfg.Exchanges {
		ex = v
	}
	symbol := ex.Symbol

	params, ok := cfg.Parameters[cfg.QuoteGenerator]
	if !ok {
		return nil, fmt.Errorf("engine: no parameters for quote_generator %q", cfg.QuoteGenerator)
	}

	var signer *hyperliquid.Signer
	if !cfg.DryRun {
		blob, err := os.ReadFile(cfg.Secrets.Path)
		if err != nil {
			return nil, fmt.Errorf("engine: read secrets: %w", err)
		}
		credSets, err := secrets.Load(blob, cfg.Secrets.Password)
		if err != nil {
			return nil, fmt.Errorf("engine: decrypt secrets: %w", err)
		}
		creds, ok := credSets["hyperliquid"]
		if !ok {
			return nil, fmt.Errorf("engine: secrets file has no hyperliquid credentials")
		}
		privKey, ok := creds["secret_key"]
		if !ok {
			return nil, fmt.Errorf("engine: hyperliquid credentials missing secret_key")
		}
		signer, err = hyperliquid.NewSigner(privKey, cfg.Venue.VaultAddress)
		if err != nil {
			return nil, fmt.Errorf("engine: init signer: %w", err)
		}
	}

	client := hyperliquid.NewClient(cfg.Venue.BaseURL, signer, cfg.DryRun)

	exInfo, err := client.GetExchangeInfo(context.Background(), symbol)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch exchange info: %w", err)
	}

	feed := hyperliquid.NewFeed(cfg.Venue.WSURL, logger)
	feed.SubscribeBook(symbol)
	feed.SubscribeTrades(symbol)
	feed.SubscribeCandle(symbol, candleInterval)
	if signer != nil {
		feed.SubscribeUser(signer.Address().Hex())
	}

	md := marketdata.New(symbol, bookDepth, tradeCapacity, candleCapacity, logger)
	ossStore := oss.New()
	posBook := oss.NewPositionBook(symbol)
	ids := oss.NewIDGenerator()

	reducer := uer.New(symbol, ossStore, posBook, ids, logger)

	clock := func() int64 { return time.Now().UnixMilli() }

	qgParams := quotegen.Params{
		TotalOrders:     params.TotalOrders,
		MaxPositionUSD:  params.MaxPosition,
		MinimumSpreadBp: params.MinimumSpread,
		TickSize:        exInfo.TickSize,
		LotSize:         exInfo.LotSize,
	}
	var generator quotegen.Generator
	switch cfg.QuoteGenerator {
	case "sandbox":
		generator = quotegen.NewSandbox(symbol, md.Book, posBook, ids, qgParams, clock)
	default:
		generator = quotegen.NewPlain(symbol, md.Book, posBook, ids, qgParams, clock)
	}

	reconciler := oms.New(symbol, ossStore, md.Book, posBook, ids, client, oms.Params{
		Sensitivity:       reconcileSensitivity,
		MaxPositionUSD:    params.MaxPosition,
		TotalOrders:       params.TotalOrders,
		InFlightStaleness: inFlightStaleness,
	}, clock, logger)

	round := tickRounder{tickSize: exInfo.TickSize, lotSize: exInfo.LotSize}
	executor := posexec.New(symbol, ossStore, posBook, ids, posexec.Params{
		TakeProfitBp:     params.TakeProfit,
		LiquidationTimer: params.LiquidationTimer.Milliseconds(),
		LotSize:          exInfo.LotSize,
	}, round, clock, logger)

	riskMgr := risk.NewManager(cfg.Risk, logger)

	posStore, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open position store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var dashEvents chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashEvents = make(chan api.DashboardEvent, 100)
	}

	return &Engine{
		cfg:                cfg,
		symbol:             symbol,
		logger:             logger.With("component", "engine", "symbol", symbol),
		client:             client,
		feed:               feed,
		md:                 md,
		ossStore:           ossStore,
		posBook:            posBook,
		ids:                ids,
		reducer:            reducer,
		generator:          generator,
		reconciler:         reconciler,
		executor:           executor,
		riskMgr:            riskMgr,
		posStore:           posStore,
		generationInterval: params.GenerationInterval,
		dashboardEvents:    dashEvents,
		ctx:                ctx,
		cancel:             cancel,
	}, nil
}

// Start loads persisted state, takes an initial book snapshot, and launches
// every background goroutine.
func (e *Engine) Start() error {
	if pos, err := e.posStore.LoadPosition(e.symbol); err != nil {
		e.logger.Error("failed to load persisted position", "error", err)
	} else if pos != nil {
		snap := types.PositionSnapshot{
			Symbol:     pos.Symbol,
			HasEntry:   !pos.IsFlat(),
			Side:       pos.Side,
			EntryPrice: pos.EntryPrice,
			Size:       pos.Size,
			UPnl:       pos.UPnl,
		}
		e.posBook.ReconcileSnapshot(snap, time.Now().UnixMilli())
		e.logger.Info("restored persisted position", "size", pos.Size, "entry", pos.EntryPrice)
	}

	if snap, err := e.client.GetOrderbook(e.ctx, e.symbol); err != nil {
		e.logger.Error("failed to fetch initial book snapshot", "error", err)
	} else {
		e.md.HandleBookSnapshot(snap)
	}

	e.goFeed()
	e.goDispatchMarketData()
	e.goDispatchUserEvents()
	e.goResync()
	e.goPositionPoll()
	e.goReconcilerMonitors()
	e.goPositionExecutor()
	e.goRiskManager()
	e.goQuoteLoop()
	e.goKillSwitchWatcher()

	return nil
}

func (e *Engine) goFeed() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.feed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("feed error", "error", err)
		}
	}()
}

func (e *Engine) goDispatchMarketData() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ctx.Done():
				return
			case delta := <-e.feed.BookDeltas():
				if err := e.md.HandleBookDelta(delta); err != nil {
					e.logger.Warn("dropping malformed book delta", "error", err)
				}
			case tr := <-e.feed.Trades():
				e.md.HandleTrade(tr)
			case c := <-e.feed.Candles():
				e.md.HandleCandle(c)
			case t := <-e.feed.Tickers():
				e.md.HandleTicker(t)
			}
		}
	}()
}

func (e *Engine) goDispatchUserEvents() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ctx.Done():
				return
			case u := <-e.feed.OrderUpdates():
				e.reducer.ProcessOrderUpdate(u)
				e.emitDashboardEvent("order", api.NewOrderEvent(e.orderFromUpdate(u), u.Status))
			case fill := <-e.feed.Fills():
				mark, _ := e.md.Book.Mid()
				e.reducer.ProcessFill(fill, mark, time.Now().UnixMilli())
				pos := e.posBook.Snapshot()
				if err := e.posStore.SavePosition(e.symbol, pos); err != nil {
					e.logger.Warn("failed to save position after fill", "error", err)
				}
				e.emitDashboardEvent("fill", api.NewFillEvent(fill, pos))
				e.emitDashboardEvent("position", api.NewPositionEvent(pos, mark))
			}
		}
	}()
}

// orderFromUpdate builds a minimal types.Order for dashboard display from an
// order-lifecycle event; the OSS arena entry (if any) has the authoritative
// full order but the update itself carries enough for a status line.
func (e *Engine) orderFromUpdate(u types.OrderUpdate) types.Order {
	return types.Order{
		Symbol:        u.Symbol,
		Side:          u.Side,
		Size:          u.Size,
		Price:         u.Price,
		ClientOrderID: u.ClientOrderID,
		VenueOrderID:  u.VenueOrderID,
		Timestamp:     u.Timestamp,
	}
}

func (e *Engine) goResync() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.md.RunResync(e.ctx, e.client, resyncInterval)
	}()
}

// goPositionPoll periodically reconciles the local position against the
// venue's own account view — the private fills stream is the primary path,
// this is the backstop against a missed or malformed fill event.
func (e *Engine) goPositionPoll() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(positionPollPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				snap, err := e.client.GetPosition(e.ctx, e.symbol)
				if err != nil {
					e.logger.Warn("position poll failed", "error", err)
					continue
				}
				e.reducer.ProcessPositionSnapshot(snap, time.Now().UnixMilli())
			}
		}
	}()
}

func (e *Engine) goReconcilerMonitors() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.reconciler.RunMonitors(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("oms monitors stopped", "error", err)
		}
	}()
}

func (e *Engine) goPositionExecutor() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.executor.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("position executor stopped", "error", err)
		}
	}()
}

func (e *Engine) goRiskManager() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.riskMgr.Run(e.ctx)
	}()
}

// goQuoteLoop regenerates the quote ladder on every tick and hands it to
// the reconciler, and feeds the risk manager a fresh position report.
func (e *Engine) goQuoteLoop() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		interval := e.generationInterval
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

func (e *Engine) tick() {
	if !e.riskMgr.IsKillSwitchActive() {
		proposals := e.generator.GenerateOrders()
		if err := e.reconciler.Reconcile(e.ctx, proposals); err != nil && e.ctx.Err() == nil {
			e.logger.Error("reconcile failed", "error", err)
		}
	}

	mid, _ := e.md.Book.Mid()
	pos := e.posBook.Snapshot()
	e.riskMgr.Report(risk.PositionReport{
		Symbol:        e.symbol,
		MidPrice:      mid,
		ExposureUSD:   math.Abs(pos.Size) * mid,
		UnrealizedPnL: pos.UPnl,
		RealizedPnL:   0, // not tracked separately; UPnl is the only P&L signal this engine carries
		Timestamp:     time.Now(),
	})
}

// goKillSwitchWatcher runs the shutdown sequence when the risk manager
// fires, without tearing down the process. tick skips quote generation
// while the kill switch is active, so quoting resumes once the cooldown
// has elapsed.
func (e *Engine) goKillSwitchWatcher() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ctx.Done():
				return
			case kill := <-e.riskMgr.KillCh():
				e.logger.Error("KILL SWITCH triggered", "reason", kill.Reason)
				e.emitDashboardEvent("kill", api.NewKillEvent(kill.Reason, time.Now().Add(e.cfg.Risk.CooldownAfterKill)))

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := e.reconciler.Shutdown(shutdownCtx); err != nil {
					e.logger.Error("kill-switch shutdown sequence failed", "error", err)
				}
				cancel()
			}
		}
	}()
}

// Stop runs the spec's shutdown sequence (cancelling all resting orders and
// flattening any residual position, concurrently), persists the final position, waits for
// every goroutine, and releases resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := e.reconciler.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("shutdown sequence failed", "error", err)
	}
	cancel()

	if err := e.posStore.SavePosition(e.symbol, e.posBook.Snapshot()); err != nil {
		e.logger.Error("failed to save position on shutdown", "error", err)
	}

	e.cancel()
	e.wg.Wait()

	if err := e.feed.Close(); err != nil {
		e.logger.Error("failed to close feed", "error", err)
	}
	if e.dashboardEvents != nil {
		close(e.dashboardEvents)
	}
	e.posStore.Close()

	e.logger.Info("shutdown complete")
}

// emitDashboardEvent sends an event to the dashboard (non-blocking).
func (e *Engine) emitDashboardEvent(kind string, data interface{}) {
	if e.dashboardEvents == nil {
		return
	}
	evt := api.DashboardEvent{Type: kind, Timestamp: time.Now(), Data: data}
	select {
	case e.dashboardEvents <- evt:
	default:
		e.logger.Warn("dashboard event channel full, dropping event", "type", kind)
	}
}

// DashboardEvents implements api.SnapshotProvider.
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent {
	return e.dashboardEvents
}

// GetBookStatus implements api.SnapshotProvider.
func (e *Engine) GetBookStatus() api.BookStatus {
	mid, _ := e.md.Book.Mid()
	bid, ask, ok := e.md.Book.BestBidAsk()

	var spread, spreadBps float64
	if ok {
		spread = ask.Price - bid.Price
		if mid > 0 {
			spreadBps = (spread / mid) * 10000
		}
	}

	ts := e.md.Book.Timestamp()
	lastUpdated := time.UnixMilli(ts)
	isStale := ts == 0 || time.Since(lastUpdated) > resyncInterval

	return api.BookStatus{
		MidPrice:    mid,
		BestBid:     bid.Price,
		BestAsk:     ask.Price,
		Spread:      spread,
		SpreadBps:   spreadBps,
		LastUpdated: lastUpdated,
		IsStale:     isStale,
	}
}

// GetPositionSnapshot implements api.SnapshotProvider.
func (e *Engine) GetPositionSnapshot() api.PositionSnapshot {
	pos := e.posBook.Snapshot()
	mid, _ := e.md.Book.Mid()

	side := "flat"
	switch {
	case pos.Side > 0 && !pos.IsFlat():
		side = "long"
	case pos.Side < 0 && !pos.IsFlat():
		side = "short"
	}

	var openTime time.Time
	if pos.OpenTime > 0 {
		openTime = time.UnixMilli(pos.OpenTime)
	}

	return api.PositionSnapshot{
		Side:          side,
		Size:          pos.Size,
		EntryPrice:    pos.EntryPrice,
		UnrealizedPnL: pos.UPnl,
		ExposureUSD:   math.Abs(pos.Size) * mid,
		OpenTime:      openTime,
	}
}

// GetQuotes implements api.SnapshotProvider, reporting every order
// currently resting or in flight.
func (e *Engine) GetQuotes() []api.QuoteInfo {
	var quotes []api.QuoteInfo
	for _, part := range []string{oss.PartInFlight, oss.PartToBeTriggered, oss.PartInTheBook} {
		for _, o := range e.ossStore.Snapshot(part) {
			quotes = append(quotes, api.QuoteInfo{
				ClientOrderID: o.ClientOrderID,
				VenueOrderID:  o.VenueOrderID,
				Side:          o.Side.String(),
				Price:         o.Price,
				Size:          o.Size,
				ReduceOnly:    o.ReduceOnly,
				Status:        string(o.Status),
				Timestamp:     time.UnixMilli(o.Timestamp),
			})
		}
	}
	return quotes
}

// GetOSSStatus implements api.SnapshotProvider.
func (e *Engine) GetOSSStatus() api.OSSStatus {
	return api.OSSStatus{
		InFlight:          e.ossStore.Count(oss.PartInFlight),
		ToBeTriggered:     e.ossStore.Count(oss.PartToBeTriggered),
		InTheBook:         e.ossStore.Count(oss.PartInTheBook),
		ToCancel:          e.ossStore.Count(oss.PartToCancel),
		RecentlyCancelled: e.ossStore.Count(oss.PartRecentlyCancelled),
		ToCreate:          e.ossStore.Count(oss.PartToCreate),
		ToAmend:           e.ossStore.Count(oss.PartToAmend),
	}
}

// GetRiskManager implements api.SnapshotProvider.
func (e *Engine) GetRiskManager() *risk.Manager {
	return e.riskMgr
}
