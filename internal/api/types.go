package api

import (
	"time"

	"github.com/0xtitan/perpquote/internal/config"
)

// DashboardSnapshot is the complete state pushed to the dashboard: one
// symbol's book, position, resting quotes, and OMS/risk status.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`

	Book     BookStatus       `json:"book"`
	Position PositionSnapshot `json:"position"`
	Quotes   []QuoteInfo      `json:"quotes"`
	OSS      OSSStatus        `json:"oss"`

	Risk   RiskSnapshot  `json:"risk"`
	Config ConfigSummary `json:"config"`
}

// BookStatus mirrors the order book replica's current top-of-book state.
type BookStatus struct {
	MidPrice    float64   `json:"mid_price"`
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	Spread      float64   `json:"spread"`
	SpreadBps   float64   `json:"spread_bps"`
	LastUpdated time.Time `json:"last_updated"`
	IsStale     bool      `json:"is_stale"`
}

// PositionSnapshot is the current inventory and P&L for the traded symbol.
type PositionSnapshot struct {
	Side          string    `json:"side"` // "long", "short", "flat"
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	ExposureUSD   float64   `json:"exposure_usd"`
	OpenTime      time.Time `json:"open_time,omitempty"`
}

// QuoteInfo is one resting (or in-flight) order on the ladder.
type QuoteInfo struct {
	ClientOrderID int64     `json:"client_order_id"`
	VenueOrderID  string    `json:"venue_order_id,omitempty"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Size          float64   `json:"size"`
	ReduceOnly    bool      `json:"reduce_only"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// OSSStatus reports the order state store's partition sizes, so the
// dashboard can show how much reconciliation work is in flight.
type OSSStatus struct {
	InFlight          int `json:"in_flight"`
	ToBeTriggered     int `json:"to_be_triggered"`
	InTheBook         int `json:"in_the_book"`
	ToCancel          int `json:"to_cancel"`
	RecentlyCancelled int `json:"recently_cancelled"`
	ToCreate          int `json:"to_create"`
	ToAmend           int `json:"to_amend"`
}

// RiskSnapshot mirrors risk.Snapshot for the dashboard.
type RiskSnapshot struct {
	ExposureUSD      float64   `json:"exposure_usd"`
	RealizedPnL      float64   `json:"realized_pnl"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	MaxDailyLoss     float64   `json:"max_daily_loss"`
	KillSwitchActive bool      `json:"kill_switch_active"`
	KillSwitchUntil  time.Time `json:"kill_switch_until,omitempty"`
}

// ConfigSummary is the read-only subset of config.Config worth showing on
// the dashboard.
type ConfigSummary struct {
	Symbol             string  `json:"symbol"`
	QuoteGenerator     string  `json:"quote_generator"`
	TotalOrders        int     `json:"total_orders"`
	MaxPosition        float64 `json:"max_position"`
	MinimumSpread      float64 `json:"minimum_spread"`
	TakeProfit         float64 `json:"take_profit"`
	LiquidationTimer   string  `json:"liquidation_timer"`
	GenerationInterval string  `json:"generation_interval"`

	MaxDailyLoss        float64 `json:"max_daily_loss"`
	KillSwitchDropPct   float64 `json:"kill_switch_drop_pct"`
	KillSwitchWindowSec int     `json:"kill_switch_window_sec"`
	CooldownAfterKill   string  `json:"cooldown_after_kill"`

	DryRun bool `json:"dry_run"`
}

// NewConfigSummary builds a dashboard-facing summary of cfg for the given
// symbol's active quote generator parameters.
func NewConfigSummary(cfg config.Config, symbol string) ConfigSummary {
	params := cfg.Parameters[cfg.QuoteGenerator]

	return ConfigSummary{
		Symbol:             symbol,
		QuoteGenerator:     cfg.QuoteGenerator,
		TotalOrders:        params.TotalOrders,
		MaxPosition:        params.MaxPosition,
		MinimumSpread:      params.MinimumSpread,
		TakeProfit:         params.TakeProfit,
		LiquidationTimer:   params.LiquidationTimer.String(),
		GenerationInterval: params.GenerationInterval.String(),

		MaxDailyLoss:        cfg.Risk.MaxDailyLoss,
		KillSwitchDropPct:   cfg.Risk.KillSwitchDropPct,
		KillSwitchWindowSec: cfg.Risk.KillSwitchWindowSec,
		CooldownAfterKill:   cfg.Risk.CooldownAfterKill.String(),

		DryRun: cfg.DryRun,
	}
}
