package strategy

import "testing"

func flatATR(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectRegime(t *testing.T) {
	history := flatATR(60, 1.0)

	tests := []struct {
		name    string
		adx     float64
		atr     float64
		history []float64
		want    Regime
	}{
		{"strong trend", 30, 1, history, RegimeTrending},
		{"adx exactly 25 is not trending", 25, 1, history, RegimeNormal},
		{"weak trend", 15, 1, history, RegimeRanging},
		{"adx exactly 20 is not ranging", 20, 1, history, RegimeNormal},
		{"volatility burst", 22, 1.6, history, RegimeVolatile},
		{"burst at exactly 1.5x", 22, 1.5, history, RegimeNormal},
		{"short atr history never volatile", 22, 5, flatATR(10, 1), RegimeNormal},
		{"trend wins over volatility", 40, 5, history, RegimeTrending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectRegime(tt.adx, tt.atr, tt.history); got != tt.want {
				t.Errorf("DetectRegime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTune(t *testing.T) {
	tests := []struct {
		name   string
		regime Regime
		guard  bool
		want   Params
	}{
		{"normal", RegimeNormal, false, Params{55, 2.5, 1.5, 1.0}},
		{"trending", RegimeTrending, false, Params{60, 3.0, 1.5, 1.0}},
		{"ranging", RegimeRanging, false, Params{35, 2.0, 1.2, 1.0}},
		{"volatile", RegimeVolatile, false, Params{55, 2.5, 3.0, 0.5}},
		{"guard widens ranging stop", RegimeRanging, true, Params{35, 2.0, 3.0, 1.0}},
		{"guard on trending", RegimeTrending, true, Params{60, 3.0, 3.0, 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tune(tt.regime, tt.guard); got != tt.want {
				t.Errorf("Tune() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
