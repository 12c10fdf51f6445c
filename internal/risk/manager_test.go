package risk

import (
	"math"
	"testing"

	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/strategy"
)

func TestLeverage(t *testing.T) {
	sizer := NewSizer(DefaultConfig())

	tests := []struct {
		name   string
		rank   learning.Rank
		regime strategy.Regime
		rsi    float64
		want   int
	}{
		{"base", learning.RankNew, strategy.RegimeNormal, 50, 5},
		{"rank S", learning.RankS, strategy.RegimeNormal, 50, 10},
		{"rank A", learning.RankA, strategy.RegimeNormal, 50, 8},
		{"trending", learning.RankNew, strategy.RegimeTrending, 50, 10},
		{"S and trending", learning.RankS, strategy.RegimeTrending, 50, 15},
		{"overbought cut", learning.RankNew, strategy.RegimeNormal, 75, 2},
		{"overbought S trending", learning.RankS, strategy.RegimeTrending, 75, 10},
		{"rsi 70 is not cut", learning.RankNew, strategy.RegimeNormal, 70, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizer.Leverage(tt.rank, tt.regime, tt.rsi); got != tt.want {
				t.Errorf("Leverage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLeverageCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseLeverage = 15
	sizer := NewSizer(cfg)

	if got := sizer.Leverage(learning.RankS, strategy.RegimeTrending, 50); got != 20 {
		t.Errorf("Leverage() = %d, want cap 20", got)
	}
}

func TestUsableBalance(t *testing.T) {
	sizer := NewSizer(DefaultConfig())

	tests := []struct {
		balance float64
		want    float64
	}{
		{27, 27 * 0.95},
		{100, 50},
		{1999, 999.5},
		{2000, 100},
		{10000, 500},
		{15, 15 * 0.95},
	}
	for _, tt := range tests {
		if got := sizer.UsableBalance(tt.balance); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("UsableBalance(%v) = %v, want %v", tt.balance, got, tt.want)
		}
	}
}

func TestUsableBalanceMinimumFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GrowthFraction = 0.05
	sizer := NewSizer(cfg)

	// 5% of 100 is below the 10 unit minimum, so the micro share applies
	if got := sizer.UsableBalance(100); got != 95 {
		t.Errorf("UsableBalance(100) = %v, want 95", got)
	}
}

func TestPlan(t *testing.T) {
	sizer := NewSizer(DefaultConfig())
	params := strategy.Params{RSILimit: 60, TPMult: 3, SLMult: 1.5, RiskScale: 1}

	plan, err := sizer.Plan(100, 2, params, 27, 10)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if plan.StopLoss != 97 || plan.TakeProfit != 106 {
		t.Errorf("bracket = %v/%v, want 97/106", plan.StopLoss, plan.TakeProfit)
	}
	wantQty := 27 * 0.95 * 10 / 100
	if math.Abs(plan.Quantity-wantQty) > 1e-12 {
		t.Errorf("quantity = %v, want %v", plan.Quantity, wantQty)
	}
	if !(plan.StopLoss < plan.Price && plan.Price < plan.TakeProfit) || plan.Quantity <= 0 {
		t.Errorf("invalid plan %+v", plan)
	}

	half := params
	half.RiskScale = 0.5
	halfPlan, _ := sizer.Plan(100, 2, half, 27, 10)
	if math.Abs(halfPlan.Quantity-wantQty/2) > 1e-12 {
		t.Errorf("half risk quantity = %v, want %v", halfPlan.Quantity, wantQty/2)
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	sizer := NewSizer(DefaultConfig())
	params := strategy.BaseParams()

	if _, err := sizer.Plan(0, 1, params, 27, 5); err == nil {
		t.Error("Should reject zero price")
	}
	if _, err := sizer.Plan(100, 0, params, 27, 5); err == nil {
		t.Error("Should reject zero ATR")
	}
	if _, err := sizer.Plan(100, 1, params, 0, 5); err == nil {
		t.Error("Should reject empty balance")
	}
}
