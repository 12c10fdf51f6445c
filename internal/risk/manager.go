package risk

import (
	"fmt"
	"math"

	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/strategy"
)

// Config holds sizing and leverage configuration
type Config struct {
	MicroBalance   float64 `json:"micro_balance" yaml:"micro_balance" default:"50"`       // below this: micro tier
	GrowthBalance  float64 `json:"growth_balance" yaml:"growth_balance" default:"2000"`   // below this: growth tier
	MicroFraction  float64 `json:"micro_fraction" yaml:"micro_fraction" default:"0.95"`   // margin share in the micro tier
	GrowthFraction float64 `json:"growth_fraction" yaml:"growth_fraction" default:"0.5"`  // margin share in the growth tier
	ProFraction    float64 `json:"pro_fraction" yaml:"pro_fraction" default:"0.05"`       // margin share above the growth tier
	MinMargin      float64 `json:"min_margin" yaml:"min_margin" default:"10"`             // below this the micro share applies
	BaseLeverage   int     `json:"base_leverage" yaml:"base_leverage" default:"5"`        // starting leverage
	MaxLeverage    int     `json:"max_leverage" yaml:"max_leverage" default:"20"`         // hard cap
	MinLeverage    int     `json:"min_leverage" yaml:"min_leverage" default:"2"`          // floor
	OverboughtRSI  float64 `json:"overbought_rsi" yaml:"overbought_rsi" default:"70"`     // leverage is cut above this
}

// DefaultConfig returns the standard tiers
func DefaultConfig() Config {
	return Config{
		MicroBalance:   50,
		GrowthBalance:  2000,
		MicroFraction:  0.95,
		GrowthFraction: 0.5,
		ProFraction:    0.05,
		MinMargin:      10,
		BaseLeverage:   5,
		MaxLeverage:    20,
		MinLeverage:    2,
		OverboughtRSI:  70,
	}
}

// Sizer derives margin, leverage and the initial bracket for an entry
type Sizer struct {
	config Config
}

// NewSizer creates a sizer
func NewSizer(config Config) *Sizer {
	return &Sizer{config: config}
}

// Config returns the sizer configuration
func (s *Sizer) Config() Config {
	return s.config
}

// Leverage scales leverage with pattern quality and trend, cutting it when
// RSI is stretched
func (s *Sizer) Leverage(rank learning.Rank, regime strategy.Regime, rsi float64) int {
	lev := s.config.BaseLeverage

	switch rank {
	case learning.RankS:
		lev += 5
	case learning.RankA:
		lev += 3
	}

	if regime == strategy.RegimeTrending {
		lev += 5
	}

	if rsi > s.config.OverboughtRSI {
		lev -= 5
	}

	if lev > s.config.MaxLeverage {
		lev = s.config.MaxLeverage
	}
	if lev < s.config.MinLeverage {
		lev = s.config.MinLeverage
	}
	return lev
}

// UsableBalance returns the margin committed for a new position
func (s *Sizer) UsableBalance(balance float64) float64 {
	var usable float64
	switch {
	case balance < s.config.MicroBalance:
		usable = balance * s.config.MicroFraction
	case balance < s.config.GrowthBalance:
		usable = balance * s.config.GrowthFraction
	default:
		usable = balance * s.config.ProFraction
	}

	if usable < s.config.MinMargin {
		usable = balance * s.config.MicroFraction
	}
	return usable
}

// Plan is a sized entry
type Plan struct {
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Quantity   float64 `json:"quantity"`
	Margin     float64 `json:"margin"`
	Leverage   int     `json:"leverage"`
}

// Notional returns the position value at entry
func (p Plan) Notional() float64 {
	return p.Price * p.Quantity
}

// Plan sizes an entry. RiskScale shrinks the committed margin.
func (s *Sizer) Plan(price, atr float64, params strategy.Params, balance float64, leverage int) (Plan, error) {
	if price <= 0 || math.IsNaN(price) {
		return Plan{}, fmt.Errorf("invalid entry price %v", price)
	}
	if atr <= 0 || math.IsNaN(atr) {
		return Plan{}, fmt.Errorf("invalid ATR %v", atr)
	}
	if balance <= 0 {
		return Plan{}, fmt.Errorf("no balance to trade (%.2f)", balance)
	}

	scale := params.RiskScale
	if scale <= 0 {
		scale = 1
	}

	margin := s.UsableBalance(balance) * scale
	plan := Plan{
		Price:      price,
		StopLoss:   price - params.SLMult*atr,
		TakeProfit: price + params.TPMult*atr,
		Margin:     margin,
		Leverage:   leverage,
		Quantity:   margin * float64(leverage) / price,
	}

	if !(plan.StopLoss < price && price < plan.TakeProfit) {
		return Plan{}, fmt.Errorf("invalid bracket sl=%.4f entry=%.4f tp=%.4f", plan.StopLoss, price, plan.TakeProfit)
	}
	return plan, nil
}
