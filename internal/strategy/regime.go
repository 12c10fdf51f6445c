package strategy

// Regime is the coarse market state driving parameter choice
type Regime string

const (
	RegimeTrending Regime = "TRENDING"
	RegimeRanging  Regime = "RANGING"
	RegimeVolatile Regime = "VOLATILE"
	RegimeNormal   Regime = "NORMAL"
)

const (
	trendingADX      = 25.0
	rangingADX       = 20.0
	volatileATRRatio = 1.5
	atrBaselineBars  = 50
)

// DetectRegime classifies the market from trend strength and volatility.
// The first matching rule wins.
func DetectRegime(adx, atr float64, atrHistory []float64) Regime {
	avgATR := SMA(atrHistory, atrBaselineBars)

	switch {
	case adx > trendingADX:
		return RegimeTrending
	case adx < rangingADX:
		return RegimeRanging
	case avgATR > 0 && atr > avgATR*volatileATRRatio:
		return RegimeVolatile
	default:
		return RegimeNormal
	}
}
