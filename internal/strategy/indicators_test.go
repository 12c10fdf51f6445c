package strategy

import (
	"math"
	"testing"

	"adaptive-trading-bot/internal/market"
)

func closes(values ...float64) []market.Candle {
	out := make([]market.Candle, len(values))
	for i, v := range values {
		out[i] = market.Candle{Time: int64(i * 60), Open: v, High: v, Low: v, Close: v}
	}
	return out
}

func ascending(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		base := 100 + float64(i)
		out[i] = market.Candle{Time: int64(i * 60), Open: base, High: base + 1.5, Low: base - 0.5, Close: base + 1}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMA(t *testing.T) {
	ema := EMA(closes(1, 2, 3), 2)
	if len(ema) != 3 {
		t.Fatalf("len = %d, want 3", len(ema))
	}
	want := []float64{1, 5.0 / 3.0, 3*2.0/3.0 + (5.0/3.0)/3.0}
	for i := range want {
		if !approx(ema[i], want[i]) {
			t.Errorf("ema[%d] = %v, want %v", i, ema[i], want[i])
		}
	}

	if EMA(closes(1, 2), 5) != nil {
		t.Error("Should not be ready below period")
	}
}

func TestEMAIsPure(t *testing.T) {
	candles := ascending(80)
	a := EMA(candles, 5)
	b := EMA(candles, 5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ema differs at %d on identical input", i)
		}
	}
}

func TestRSI(t *testing.T) {
	rsi := RSI(closes(10, 11, 10, 12), 2)
	if len(rsi) != 2 {
		t.Fatalf("len = %d, want 2", len(rsi))
	}
	if !approx(rsi[0], 50) {
		t.Errorf("rsi[0] = %v, want 50", rsi[0])
	}
	if !approx(rsi[1], 100-100.0/6.0) {
		t.Errorf("rsi[1] = %v, want %v", rsi[1], 100-100.0/6.0)
	}

	if RSI(closes(1, 2), 2) != nil {
		t.Error("Should need period+1 candles")
	}
}

func TestRSISaturatesWithoutLosses(t *testing.T) {
	rsi := RSI(ascending(30), 14)
	for i, v := range rsi {
		if v != 100 {
			t.Fatalf("rsi[%d] = %v, want 100 for a loss-free window", i, v)
		}
	}
}

func TestRSIBounded(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	for _, v := range RSI(closes(values...), 21) {
		if v < 0 || v > 100 || math.IsNaN(v) {
			t.Fatalf("rsi out of range: %v", v)
		}
	}
}

func TestATR(t *testing.T) {
	candles := make([]market.Candle, 20)
	for i := range candles {
		candles[i] = market.Candle{Time: int64(i), Open: 100, High: 101, Low: 99, Close: 100}
	}

	atr := ATR(candles, 14)
	if len(atr) != 20-14 {
		t.Fatalf("len = %d, want %d", len(atr), 20-14)
	}
	for _, v := range atr {
		if !approx(v, 2) {
			t.Fatalf("atr = %v, want 2", v)
		}
	}

	if ATR(candles[:14], 14) != nil {
		t.Error("Should need period+1 candles")
	}
}

func TestADX(t *testing.T) {
	adx := ADX(ascending(40), 14)
	if adx == nil {
		t.Fatal("Should be ready with 40 candles")
	}
	if !approx(adx[len(adx)-1], 100) {
		t.Errorf("adx on a one-way market = %v, want 100", adx[len(adx)-1])
	}

	flat := ADX(closes(make([]float64, 40)...), 14)
	if flat == nil || flat[len(flat)-1] != 0 {
		t.Errorf("adx on a flat market = %v, want 0", flat)
	}

	if ADX(ascending(27), 14) != nil {
		t.Error("Should need 2*period candles")
	}
}

func TestMACD(t *testing.T) {
	if MACD(ascending(34), 12, 26, 9) != nil {
		t.Error("Should need slow+signal candles")
	}

	values := make([]float64, 40)
	for i := range values {
		values[i] = 50
	}
	m := MACD(closes(values...), 12, 26, 9)
	if m == nil {
		t.Fatal("Should be ready with 40 candles")
	}
	if m.Histogram[len(m.Histogram)-1] != 0 {
		t.Errorf("histogram on constant prices = %v, want 0", m.Histogram[len(m.Histogram)-1])
	}

	up := MACD(ascending(60), 12, 26, 9)
	if up.MACD[len(up.MACD)-1] <= 0 {
		t.Error("MACD line should be positive in an uptrend")
	}
}

func TestCompute(t *testing.T) {
	if _, _, ok := Compute(ascending(30), DefaultPeriods()); ok {
		t.Error("Should not be ready before MACD warmup")
	}

	snap, series, ok := Compute(ascending(70), DefaultPeriods())
	if !ok {
		t.Fatal("Should be ready with 70 candles")
	}
	if snap.Price != 170 {
		t.Errorf("price = %v, want 170", snap.Price)
	}
	if snap.EMA >= snap.Price {
		t.Error("EMA should lag below price in an uptrend")
	}
	if series.ATR[len(series.ATR)-1] != snap.ATR {
		t.Error("snapshot ATR should be the last series value")
	}
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4}, 2); got != 3.5 {
		t.Errorf("SMA = %v, want 3.5", got)
	}
	if got := SMA([]float64{1, 2}, 3); got != 0 {
		t.Errorf("SMA with short history = %v, want 0", got)
	}
}

func TestRollingRSIBaseline(t *testing.T) {
	if got := RollingRSIBaseline(make([]float64, 50)); got != 45 {
		t.Errorf("short history baseline = %v, want 45", got)
	}

	history := make([]float64, 120)
	for i := range history {
		if i%2 == 0 {
			history[i] = 30
		} else {
			history[i] = 70
		}
	}
	if got := RollingRSIBaseline(history); got != 30 {
		t.Errorf("baseline = %v, want 30", got)
	}
}
