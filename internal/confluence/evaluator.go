package confluence

import (
	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"
	"adaptive-trading-bot/internal/patterns"
	"adaptive-trading-bot/internal/strategy"
)

// Setup labels the confluence rule that produced a signal
type Setup string

const (
	SetupNone      Setup = ""
	SetupTrend     Setup = "Trend"
	SetupReversal  Setup = "Reversal"
	SetupRange     Setup = "Range"
	SetupTrendRide Setup = "Trend Velocity Ride"
)

// RejectReason names the gate that vetoed a candidate
type RejectReason string

const (
	ReasonNone         RejectReason = ""
	ReasonNoSignal     RejectReason = "no_signal"
	ReasonRankF        RejectReason = "rank_f"
	ReasonRankBNoTrend RejectReason = "rank_b_weak_trend"
	ReasonLowStrength  RejectReason = "low_strength"
	ReasonMicroBalance RejectReason = "micro_balance"
	ReasonHTFBearish   RejectReason = "htf_bearish"
	ReasonBrainVeto    RejectReason = "brain_veto"
	ReasonFeeGate      RejectReason = "fee_gate"
)

// Fee gate modes
const (
	FeeModeFixed    = "fixed"
	FeeModeAdaptive = "adaptive"
)

// FeeGateConfig rejects entries whose projected profit cannot cover fees
type FeeGateConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled" default:"true"`
	FeeRate          float64 `json:"fee_rate" yaml:"fee_rate" default:"0.0012" validate:"gte=0"` // round trip
	Mode             string  `json:"mode" yaml:"mode" default:"fixed" validate:"oneof=fixed adaptive"`
	Multiplier       float64 `json:"multiplier" yaml:"multiplier" default:"1.2" validate:"gte=0"`
	StrongTrendADX   float64 `json:"strong_trend_adx" yaml:"strong_trend_adx" default:"40"`
	StrongMultiplier float64 `json:"strong_multiplier" yaml:"strong_multiplier" default:"1.5"`
	WeakMultiplier   float64 `json:"weak_multiplier" yaml:"weak_multiplier" default:"2.5"`
	MicroFraction    float64 `json:"micro_fraction" yaml:"micro_fraction" default:"0.95"`
	FeeSizeFraction  float64 `json:"fee_size_fraction" yaml:"fee_size_fraction" default:"0.20"`
}

// DefaultFeeGateConfig returns the fee gate used in paper trading
func DefaultFeeGateConfig() FeeGateConfig {
	return FeeGateConfig{
		Enabled:          true,
		FeeRate:          0.0012,
		Mode:             FeeModeFixed,
		Multiplier:       1.2,
		StrongTrendADX:   40,
		StrongMultiplier: 1.5,
		WeakMultiplier:   2.5,
		MicroFraction:    0.95,
		FeeSizeFraction:  0.20,
	}
}

// Config holds evaluator thresholds
type Config struct {
	MicroBalance   float64       `json:"micro_balance" yaml:"micro_balance" default:"50"`
	SniperMinADX   float64       `json:"sniper_min_adx" yaml:"sniper_min_adx" default:"30"`
	RankBMinADX    float64       `json:"rank_b_min_adx" yaml:"rank_b_min_adx" default:"20"`
	HashIncludeHTF bool          `json:"hash_include_htf" yaml:"hash_include_htf"`
	FeeGate        FeeGateConfig `json:"fee_gate" yaml:"fee_gate"`
}

// DefaultConfig returns the standard evaluator thresholds
func DefaultConfig() Config {
	return Config{
		MicroBalance: 50,
		SniperMinADX: 30,
		RankBMinADX:  20,
		FeeGate:      DefaultFeeGateConfig(),
	}
}

// DevFlags bypass individual gates
type DevFlags struct {
	SkipFeeGuard  bool `json:"skip_fee_guard" yaml:"skip_fee_guard"`
	SkipHTFFilter bool `json:"skip_htf_filter" yaml:"skip_htf_filter"`
	SkipBrainVeto bool `json:"skip_brain_veto" yaml:"skip_brain_veto"`
}

// RankSource grades patterns
type RankSource interface {
	Rank(name string, now int64) learning.Rank
}

// MemorySource approves or vetoes market contexts
type MemorySource interface {
	Consult(hash string) learning.Verdict
}

// Input is the market view for one evaluation
type Input struct {
	Candles  []market.Candle
	Snapshot strategy.Snapshot
	Regime   strategy.Regime
	Params   strategy.Params
	HTFBias  string
	Balance  float64
	Time     int64
}

// Decision is the evaluator's verdict for one tick
type Decision struct {
	Approved bool                   `json:"approved"`
	Pattern  patterns.PatternType   `json:"pattern,omitempty"`
	Active   []patterns.PatternType `json:"active,omitempty"`
	Rank     learning.Rank          `json:"rank,omitempty"`
	Strength int                    `json:"strength"`
	Setup    Setup                  `json:"setup,omitempty"`
	Params   strategy.Params        `json:"params"`
	Hash     string                 `json:"hash,omitempty"`
	Reason   RejectReason           `json:"reason,omitempty"`
	// Found is set when a pattern or trend ride produced a candidate
	Found bool `json:"found"`
	// Skipped is set when a pattern fired without enough strength
	Skipped bool `json:"skipped"`
}

// Label renders the setup the way it appears in logs
func (d Decision) Label() string {
	if d.Setup == SetupTrendRide || d.Setup == SetupNone {
		return string(d.Setup)
	}
	label := string(d.Setup) + " " + string(d.Pattern)
	switch {
	case d.Rank.IsElite():
		label += " [Rank " + string(d.Rank) + "]"
	case d.Rank == learning.RankTest:
		label += " [TEST MODE]"
	}
	return label
}

// SignalEvaluator turns patterns and context into a go/no-go decision
type SignalEvaluator struct {
	config   Config
	detector *patterns.PatternDetector
	ranks    RankSource
	memory   MemorySource
	logger   *logging.Logger
}

// NewSignalEvaluator creates an evaluator
func NewSignalEvaluator(config Config, detector *patterns.PatternDetector, ranks RankSource, memory MemorySource, logger *logging.Logger) *SignalEvaluator {
	if detector == nil {
		detector = patterns.NewPatternDetector(patterns.DefaultBreakoutLookback)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SignalEvaluator{
		config:   config,
		detector: detector,
		ranks:    ranks,
		memory:   memory,
		logger:   logger.WithComponent("signal_evaluator"),
	}
}

// Config returns the evaluator thresholds
func (e *SignalEvaluator) Config() Config {
	return e.config
}

// Evaluate runs the pattern scan, confluence rules and gate cascade
func (e *SignalEvaluator) Evaluate(in Input, flags DevFlags) Decision {
	snap := in.Snapshot
	d := Decision{Params: in.Params}
	if len(in.Candles) == 0 {
		d.Reason = ReasonNoSignal
		return d
	}
	lastCandle := in.Candles[len(in.Candles)-1]

	d.Active = e.detector.Scan(in.Candles, snap.ATR)
	if len(d.Active) > 0 {
		d.Pattern = d.Active[0]
		d.Setup, d.Strength = confluenceRule(snap, in.Regime)
		if patterns.IsHighConviction(d.Pattern) {
			d.Strength++
		}
		d.Found = true
	} else if in.Regime == strategy.RegimeTrending && snap.Price > snap.EMA &&
		snap.RSI > 25 && snap.RSI < 75 && lastCandle.IsBullish() {
		d.Pattern = patterns.TrendRide
		d.Setup = SetupTrendRide
		d.Strength = 2
		d.Found = true
	}

	if !d.Found {
		d.Reason = ReasonNoSignal
		return d
	}

	d.Rank = e.ranks.Rank(string(d.Pattern), in.Time)
	switch d.Rank {
	case learning.RankF:
		return e.reject(d, ReasonRankF)
	case learning.RankB:
		if snap.ADX < e.config.RankBMinADX {
			return e.reject(d, ReasonRankBNoTrend)
		}
	case learning.RankS, learning.RankA:
		d.Params.RSILimit += 5
		d.Params.TPMult *= 1.2
	case learning.RankTest:
		d.Params.RiskScale = 0.5
	}

	if d.Strength < 2 {
		d.Skipped = true
		return e.reject(d, ReasonLowStrength)
	}

	if in.Balance < e.config.MicroBalance && !d.Rank.IsElite() && snap.ADX < e.config.SniperMinADX {
		return e.reject(d, ReasonMicroBalance)
	}

	if !flags.SkipHTFFilter && in.HTFBias == learning.BiasBearish {
		if d.Strength < 4 || snap.RSI > 40 {
			return e.reject(d, ReasonHTFBearish)
		}
	}

	hashBias := ""
	if e.config.HashIncludeHTF {
		hashBias = in.HTFBias
	}
	d.Hash = learning.MarketHash(in.Regime, snap.RSI, hashBias)
	if !flags.SkipBrainVeto && d.Rank != learning.RankS {
		if verdict := e.memory.Consult(d.Hash); !verdict.Approved {
			return e.reject(d, ReasonBrainVeto)
		}
	}

	if e.config.FeeGate.Enabled && !flags.SkipFeeGuard && !e.feeViable(in.Balance, snap, d.Params) {
		return e.reject(d, ReasonFeeGate)
	}

	d.Approved = true
	return d
}

// confluenceRule applies the first matching rule
func confluenceRule(snap strategy.Snapshot, regime strategy.Regime) (Setup, int) {
	switch {
	case snap.Price > snap.EMA && snap.RSI > 25 && snap.RSI < 75:
		return SetupTrend, 2
	case snap.RSI < 35:
		return SetupReversal, 3
	case regime == strategy.RegimeRanging && snap.RSI < 45:
		return SetupRange, 2
	}
	return SetupNone, 0
}

// FeeMultiplier returns the required profit/fee ratio for the ADX reading
func (c FeeGateConfig) FeeMultiplier(adx float64) float64 {
	if c.Mode != FeeModeAdaptive {
		return c.Multiplier
	}
	if adx > c.StrongTrendADX {
		return c.StrongMultiplier
	}
	return c.WeakMultiplier
}

func (e *SignalEvaluator) feeViable(balance float64, snap strategy.Snapshot, params strategy.Params) bool {
	if snap.Price <= 0 {
		return false
	}
	cfg := e.config.FeeGate

	usable := balance * cfg.FeeSizeFraction
	if balance < e.config.MicroBalance {
		usable = balance * cfg.MicroFraction
	}
	qty := usable / snap.Price
	fee := qty * snap.Price * cfg.FeeRate
	projected := params.TPMult * snap.ATR * qty

	return projected >= fee*cfg.FeeMultiplier(snap.ADX)
}

func (e *SignalEvaluator) reject(d Decision, reason RejectReason) Decision {
	d.Reason = reason
	e.logger.Debug("Signal rejected",
		"pattern", string(d.Pattern),
		"rank", string(d.Rank),
		"strength", d.Strength,
		"reason", string(reason))
	return d
}
