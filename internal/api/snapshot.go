package api

import (
	"time"

	"github.com/0xtitan/perpquote/internal/config"
	"github.com/0xtitan/perpquote/internal/risk"
)

// SnapshotProvider gives the dashboard read-only access to the engine's
// live state. internal/engine implements this.
type SnapshotProvider interface {
	GetBookStatus() BookStatus
	GetPositionSnapshot() PositionSnapshot
	GetQuotes() []QuoteInfo
	GetOSSStatus() OSSStatus
	GetRiskManager() *risk.Manager
	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates state from all components into a dashboard
// snapshot for symbol.
func BuildSnapshot(provider SnapshotProvider, cfg config.Config, symbol string) DashboardSnapshot {
	riskMgr := provider.GetRiskManager()
	riskSnap := riskMgr.GetSnapshot()

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Symbol:    symbol,
		Book:      provider.GetBookStatus(),
		Position:  provider.GetPositionSnapshot(),
		Quotes:    provider.GetQuotes(),
		OSS:       provider.GetOSSStatus(),
		Risk:      convertRiskSnapshot(riskSnap),
		Config:    NewConfigSummary(cfg, symbol),
	}
}

func convertRiskSnapshot(snap risk.Snapshot) RiskSnapshot {
	return RiskSnapshot{
		ExposureUSD:      snap.ExposureUSD,
		RealizedPnL:      snap.RealizedPnL,
		UnrealizedPnL:    snap.UnrealizedPnL,
		MaxDailyLoss:     snap.MaxDailyLoss,
		KillSwitchActive: snap.KillSwitchActive,
		KillSwitchUntil:  snap.KillSwitchUntil,
	}
}
