package risk

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/0xtitan/perpquote/internal/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxDailyLoss:        50,
		KillSwitchDropPct:   0.10, // 10%
		KillSwitchWindowSec: 60,
		CooldownAfterKill:   5 * time.Minute,
	}
}

func newTestManager() *Manager {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewManager(testRiskConfig(), logger)
}

func TestProcessReportUnderLimits(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.processReport(PositionReport{
		Symbol:        "ETH",
		ExposureUSD:   50,
		RealizedPnL:   0,
		UnrealizedPnL: 0,
		MidPrice:      2000,
		Timestamp:     time.Now(),
	})

	if rm.killSwitchActive {
		t.Error("kill switch should not fire for report under limits")
	}

	select {
	case sig := <-rm.killCh:
		t.Errorf("unexpected kill signal: %+v", sig)
	default:
	}
}

func TestProcessReportDailyLossBreach(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.processReport(PositionReport{
		Symbol:        "ETH",
		RealizedPnL:   -30,
		UnrealizedPnL: -25, // total -55, exceeds the 50 limit
		MidPrice:      2000,
		Timestamp:     time.Now(),
	})

	if !rm.killSwitchActive {
		t.Fatal("expected kill switch to activate on daily loss breach")
	}

	select {
	case sig := <-rm.killCh:
		if sig.Reason == "" {
			t.Error("expected a non-empty kill reason")
		}
	default:
		t.Error("expected a kill signal on the channel")
	}
}

func TestCheckPriceMovementNormal(t *testing.T) {
	t.Parallel()
	rm := newTestManager()
	now := time.Now()

	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 2000, Timestamp: now})
	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 2080, Timestamp: now.Add(10 * time.Second)}) // 4% move

	if rm.killSwitchActive {
		t.Error("should not fire kill for a 4% move against a 10% threshold")
	}
}

func TestCheckPriceMovementSpike(t *testing.T) {
	t.Parallel()
	rm := newTestManager()
	now := time.Now()

	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 2000, Timestamp: now})
	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 1400, Timestamp: now.Add(10 * time.Second)}) // 30% drop

	if !rm.killSwitchActive {
		t.Error("kill switch should fire for a 30% move within the window")
	}
}

func TestCheckPriceMovementResetsAnchorAfterWindow(t *testing.T) {
	t.Parallel()
	rm := newTestManager()
	now := time.Now()

	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 2000, Timestamp: now})
	rm.processReport(PositionReport{Symbol: "ETH", MidPrice: 1400, Timestamp: now.Add(61 * time.Second)})

	if rm.killSwitchActive {
		t.Error("a move spanning more than the window should reset the anchor instead of firing")
	}
}

func TestIsKillSwitchActiveExpiresAfterCooldown(t *testing.T) {
	t.Parallel()
	rm := newTestManager()
	rm.cfg.CooldownAfterKill = 100 * time.Millisecond

	rm.processReport(PositionReport{
		Symbol:        "ETH",
		RealizedPnL:   -60,
		UnrealizedPnL: 0,
		MidPrice:      2000,
		Timestamp:     time.Now(),
	})

	if !rm.IsKillSwitchActive() {
		t.Fatal("kill switch should be active immediately after breach")
	}

	time.Sleep(150 * time.Millisecond)

	if rm.IsKillSwitchActive() {
		t.Error("kill switch should expire after cooldown")
	}
}

func TestReportNonBlockingWhenChannelFull(t *testing.T) {
	t.Parallel()
	rm := newTestManager()
	for i := 0; i < cap(rm.reportCh); i++ {
		rm.Report(PositionReport{Symbol: "ETH"})
	}
	// one more must not block
	rm.Report(PositionReport{Symbol: "ETH"})
}

func TestGetSnapshotReflectsLastReport(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.processReport(PositionReport{
		Symbol:        "ETH",
		ExposureUSD:   120,
		RealizedPnL:   5,
		UnrealizedPnL: -2,
		MidPrice:      2000,
		Timestamp:     time.Now(),
	})

	snap := rm.GetSnapshot()
	if snap.ExposureUSD != 120 || snap.RealizedPnL != 5 || snap.UnrealizedPnL != -2 {
		t.Errorf("snapshot = %+v, unexpected", snap)
	}
}
