package strategy

// Params is the working parameter set for one tick
type Params struct {
	RSILimit  float64 `json:"rsi_limit"`
	TPMult    float64 `json:"tp_mult"`
	SLMult    float64 `json:"sl_mult"`
	RiskScale float64 `json:"risk_scale"`
}

// BaseParams are used when no regime override applies
func BaseParams() Params {
	return Params{RSILimit: 55, TPMult: 2.5, SLMult: 1.5, RiskScale: 1.0}
}

// survivalSLMult is the wide stop used in volatile markets and under the guard
const survivalSLMult = 3.0

// Tune returns a fresh parameter set for the regime. The volatility guard
// forces the wide stop whatever the regime says.
func Tune(regime Regime, volatilityGuard bool) Params {
	p := BaseParams()

	switch regime {
	case RegimeTrending:
		p.RSILimit = 60
		p.TPMult = 3.0
	case RegimeRanging:
		p.RSILimit = 35
		p.TPMult = 2.0
		p.SLMult = 1.2
	case RegimeVolatile:
		p.RiskScale = 0.5
		p.SLMult = survivalSLMult
	}

	if volatilityGuard {
		p.SLMult = survivalSLMult
	}
	return p
}
