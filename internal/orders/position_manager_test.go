package orders

import (
	"errors"
	"math"
	"testing"

	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/risk"

	"github.com/rs/zerolog"
)

func newManager(balance float64) *PositionManager {
	return NewPositionManager(balance, risk.NewBreakevenTrail(risk.DefaultTrailingConfig()), zerolog.Nop())
}

func openAt(t *testing.T, pm *PositionManager, entry, sl, tp, qty float64, lev int, atr float64) {
	t.Helper()
	_, err := pm.Open(OpenRequest{
		Plan:        risk.Plan{Price: entry, StopLoss: sl, TakeProfit: tp, Quantity: qty, Leverage: lev},
		ATR:         atr,
		MarketHash:  "REGIME:TRENDING_RSI:NEUTRAL",
		PatternName: "BULLISH_ENGULFING",
		Time:        60,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
}

func TestOpenInvariants(t *testing.T) {
	pm := newManager(27)

	tests := []struct {
		name string
		plan risk.Plan
		want error
	}{
		{"stop above entry", risk.Plan{Price: 100, StopLoss: 101, TakeProfit: 110, Quantity: 1, Leverage: 5}, ErrInvalidBracket},
		{"target below entry", risk.Plan{Price: 100, StopLoss: 95, TakeProfit: 99, Quantity: 1, Leverage: 5}, ErrInvalidBracket},
		{"zero quantity", risk.Plan{Price: 100, StopLoss: 95, TakeProfit: 110, Quantity: 0, Leverage: 5}, ErrInvalidQuantity},
		{"leverage above cap", risk.Plan{Price: 100, StopLoss: 95, TakeProfit: 110, Quantity: 1, Leverage: 21}, ErrInvalidLeverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := pm.Open(OpenRequest{Plan: tt.plan}); !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
			if pm.HasPosition() {
				t.Error("rejected open should leave the manager flat")
			}
		})
	}
}

func TestSinglePosition(t *testing.T) {
	pm := newManager(27)
	openAt(t, pm, 100, 95, 110, 1, 5, 2)

	_, err := pm.Open(OpenRequest{Plan: risk.Plan{Price: 100, StopLoss: 95, TakeProfit: 110, Quantity: 1, Leverage: 5}})
	if !errors.Is(err, ErrPositionOpen) {
		t.Errorf("second Open() error = %v, want ErrPositionOpen", err)
	}
}

func TestLiquidation(t *testing.T) {
	tests := []struct {
		price      float64
		liquidated bool
	}{
		{80.01, false},
		{80, true},
		{70, true},
	}

	for _, tt := range tests {
		pm := newManager(27)
		// stop far away so only liquidation can fire
		openAt(t, pm, 100, 1, 200, 1, 5, 2)

		trade, _ := pm.Manage(tt.price, 120)
		if got := trade != nil; got != tt.liquidated {
			t.Fatalf("price %v: closed = %v, want %v", tt.price, got, tt.liquidated)
		}
		if tt.liquidated && trade.Reason != CloseLiquidation {
			t.Errorf("price %v: reason = %v, want LIQUIDATION", tt.price, trade.Reason)
		}
	}
}

func TestBreakevenTrailThenStop(t *testing.T) {
	pm := newManager(27)
	openAt(t, pm, 100, 97, 106, 1, 5, 2)

	// arms at 101.6 and locks 100.2
	trade, update := pm.Manage(101.5, 120)
	if trade != nil || update != nil {
		t.Fatal("Should hold below activation")
	}

	trade, update = pm.Manage(101.7, 180)
	if trade != nil {
		t.Fatal("Should not close on trail")
	}
	if update == nil || math.Abs(update.NewStopLoss-100.2) > 1e-9 {
		t.Fatalf("update = %+v, want stop 100.2", update)
	}

	p := pm.Position()
	if !p.IsTrailed || math.Abs(p.StopLoss-100.2) > 1e-9 {
		t.Errorf("position = %+v", p)
	}

	if _, update = pm.Manage(105, 240); update != nil {
		t.Error("Should trail only once")
	}

	trade, _ = pm.Manage(100.1, 300)
	if trade == nil || trade.Reason != CloseStopLoss {
		t.Fatalf("trade = %+v, want SL close", trade)
	}
	if trade.Result != learning.Win {
		t.Errorf("trailed stop at 100.1 should be a win, got %v", trade.Result)
	}
}

func TestTakeProfitAndWallet(t *testing.T) {
	pm := newManager(27)
	openAt(t, pm, 100, 97, 106, 2, 10, 2)

	trade, _ := pm.Manage(106, 120)
	if trade == nil || trade.Reason != CloseTakeProfit {
		t.Fatalf("trade = %+v, want TP close", trade)
	}
	if trade.PnL != 12 || trade.Result != learning.Win {
		t.Errorf("pnl = %v result = %v", trade.PnL, trade.Result)
	}

	w := pm.Wallet()
	if w.Balance != 39 || w.TotalPnL != 12 {
		t.Errorf("wallet = %+v", w)
	}
	if pm.HasPosition() {
		t.Error("position should be cleared")
	}
}

func TestWalletRoundTrip(t *testing.T) {
	pm := newManager(27)
	start := pm.Wallet().Balance
	sum := 0.0

	exits := []float64{106, 97, 101, 99.5}
	for _, exit := range exits {
		openAt(t, pm, 100, 90, 110, 0.5, 5, 2)
		trade, err := pm.Close(exit, CloseManual, 600)
		if err != nil {
			t.Fatal(err)
		}
		sum += trade.PnL
	}

	w := pm.Wallet()
	if math.Abs(w.Balance-(start+sum)) > 1e-9 || math.Abs(w.TotalPnL-sum) > 1e-9 {
		t.Errorf("wallet = %+v, want balance %v pnl %v", w, start+sum, sum)
	}
}

func TestBreakevenCloseIsLoss(t *testing.T) {
	pm := newManager(27)
	openAt(t, pm, 100, 90, 110, 1, 5, 2)

	trade, _ := pm.Close(100, CloseManual, 120)
	if trade.Result != learning.Loss {
		t.Errorf("zero pnl result = %v, want LOSS", trade.Result)
	}

	if _, err := pm.Close(100, CloseManual, 180); !errors.Is(err, ErrNoPosition) {
		t.Errorf("Close while flat error = %v, want ErrNoPosition", err)
	}
}

func TestRestore(t *testing.T) {
	pm := newManager(27)
	pm.Restore(Wallet{Balance: 40, TotalPnL: 13}, &Position{Type: PositionLong, EntryPrice: 100, StopLoss: 95, TakeProfit: 110, Quantity: 1, Leverage: 5, ATR: 2})

	if !pm.HasPosition() || pm.Wallet().Balance != 40 {
		t.Fatal("restore should install wallet and position")
	}
	trade, _ := pm.Manage(94, 60)
	if trade == nil || trade.Reason != CloseStopLoss {
		t.Errorf("restored position should be managed, got %+v", trade)
	}
}
