// Package risk enforces a kill switch above the OMS's own per-proposal
// max_position check (spec §4.7 step 4): a realized+unrealized daily loss
// cap and a rapid-price-movement breaker, scoped to the single symbol an
// engine instance trades. When a limit is breached the manager emits a
// KillSignal on KillCh(); internal/engine reads it and runs the shutdown
// sequence (spec §4.8).
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0xtitan/perpquote/internal/config"
)

// PositionReport is sent by the engine every quote-generator tick. It
// carries the current inventory/PnL and mid price for risk evaluation.
type PositionReport struct {
	Symbol        string
	MidPrice      float64
	ExposureUSD   float64
	UnrealizedPnL float64
	RealizedPnL   float64
	Timestamp     time.Time
}

// KillSignal tells the engine to run the shutdown sequence.
type KillSignal struct {
	Reason string
}

type priceAnchor struct {
	price     float64
	timestamp time.Time
}

// Manager aggregates position reports for one symbol, checks them against
// configured limits, and emits kill signals when breached.
type Manager struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu               sync.RWMutex
	last             PositionReport
	killSwitchActive bool
	killSwitchUntil  time.Time
	anchor           priceAnchor

	reportCh chan PositionReport
	killCh   chan KillSignal
}

// NewManager returns a risk manager for one symbol.
func NewManager(cfg config.RiskConfig, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.With("component", "risk"),
		reportCh: make(chan PositionReport, 100),
		killCh:   make(chan KillSignal, 10),
	}
}

// Run starts the risk monitoring loop. A periodic tick clears an expired
// kill switch even when no reports arrive.
func (rm *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case report := <-rm.reportCh:
			rm.processReport(report)
		case <-ticker.C:
			rm.clearExpiredKillSwitch()
		}
	}
}

// Report submits a position report (non-blocking).
func (rm *Manager) Report(report PositionReport) {
	select {
	case rm.reportCh <- report:
	default:
		rm.logger.Warn("risk report channel full, dropping report")
	}
}

// KillCh returns the channel for reading kill signals.
func (rm *Manager) KillCh() <-chan KillSignal {
	return rm.killCh
}

// IsKillSwitchActive reports whether the kill switch is currently engaged.
func (rm *Manager) IsKillSwitchActive() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.killSwitchActive {
		return false
	}
	if time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
		return false
	}
	return true
}

// Snapshot returns the latest reported risk state for the dashboard.
type Snapshot struct {
	ExposureUSD      float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	MaxDailyLoss     float64
	KillSwitchActive bool
	KillSwitchUntil  time.Time
}

// GetSnapshot returns the current risk state.
func (rm *Manager) GetSnapshot() Snapshot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return Snapshot{
		ExposureUSD:      rm.last.ExposureUSD,
		RealizedPnL:      rm.last.RealizedPnL,
		UnrealizedPnL:    rm.last.UnrealizedPnL,
		MaxDailyLoss:     rm.cfg.MaxDailyLoss,
		KillSwitchActive: rm.killSwitchActive,
		KillSwitchUntil:  rm.killSwitchUntil,
	}
}

func (rm *Manager) processReport(report PositionReport) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.last = report

	if rm.cfg.MaxDailyLoss > 0 {
		totalPnL := report.RealizedPnL + report.UnrealizedPnL
		if totalPnL < -rm.cfg.MaxDailyLoss {
			rm.emitKill(fmt.Sprintf("max daily loss breached: %.2f", totalPnL))
		}
	}

	rm.checkPriceMovement(report)
}

// checkPriceMovement detects rapid price swings using a rolling anchor: if
// the anchor is stale (older than the configured window) it resets to the
// current price; otherwise a move beyond KillSwitchDropPct fires the
// switch.
func (rm *Manager) checkPriceMovement(report PositionReport) {
	if rm.cfg.KillSwitchDropPct <= 0 {
		return
	}
	window := time.Duration(rm.cfg.KillSwitchWindowSec) * time.Second

	if rm.anchor.price == 0 || report.Timestamp.Sub(rm.anchor.timestamp) > window {
		rm.anchor = priceAnchor{price: report.MidPrice, timestamp: report.Timestamp}
		return
	}

	pctChange := (report.MidPrice - rm.anchor.price) / rm.anchor.price
	if pctChange < 0 {
		pctChange = -pctChange
	}
	if pctChange > rm.cfg.KillSwitchDropPct {
		rm.emitKill(fmt.Sprintf("rapid price movement: %.1f%% in %ds", pctChange*100, rm.cfg.KillSwitchWindowSec))
	}
}

func (rm *Manager) clearExpiredKillSwitch() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.killSwitchActive && time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
	}
}

// emitKill activates the kill switch, starts the cooldown timer, and sends
// a KillSignal to the engine. If the kill channel is full, the stale
// signal is drained first so the latest reason is always delivered.
func (rm *Manager) emitKill(reason string) {
	rm.killSwitchActive = true
	rm.killSwitchUntil = time.Now().Add(rm.cfg.CooldownAfterKill)

	rm.logger.Error("KILL SWITCH", "reason", reason, "cooldown_until", rm.killSwitchUntil)

	sig := KillSignal{Reason: reason}
	select {
	case rm.killCh <- sig:
	default:
		select {
		case <-rm.killCh:
		default:
		}
		rm.killCh <- sig
	}
}
