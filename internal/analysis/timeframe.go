package analysis

import (
	"sync"

	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/market"
	"adaptive-trading-bot/internal/strategy"
)

// Timeframe represents different chart timeframes
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Seconds returns the bar length, or 0 for an unknown timeframe
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case TF1m:
		return 60
	case TF5m:
		return 300
	case TF15m:
		return 900
	case TF1h:
		return 3600
	case TF4h:
		return 14400
	case TF1d:
		return 86400
	default:
		return 0
	}
}

const (
	// DefaultHTFCapacity is the number of bars kept per timeframe
	DefaultHTFCapacity = 200
	// DefaultBiasPeriod is the EMA period of the bias filter
	DefaultBiasPeriod = 50
)

// series aggregates base candles into one higher timeframe. The bar as it
// was before the latest base candle is kept so a revised base candle
// replaces its own contribution instead of adding to it.
type series struct {
	seconds  int64
	bars     []market.Candle
	lastBase int64
	before   *market.Candle
}

func (s *series) propose(c market.Candle, capacity int) {
	if len(s.bars) > 0 {
		switch {
		case c.Time < s.lastBase:
			return
		case c.Time == s.lastBase:
			if s.before == nil {
				s.bars = s.bars[:len(s.bars)-1]
			} else {
				s.bars[len(s.bars)-1] = *s.before
			}
		}
	}

	slot := c.Time - c.Time%s.seconds
	s.lastBase = c.Time

	n := len(s.bars)
	if n == 0 || s.bars[n-1].Time != slot {
		s.before = nil
		s.bars = append(s.bars, market.Candle{
			Time:   slot,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
		if len(s.bars) > capacity {
			s.bars = s.bars[len(s.bars)-capacity:]
		}
		return
	}

	bar := &s.bars[n-1]
	prev := *bar
	s.before = &prev

	if c.High > bar.High {
		bar.High = c.High
	}
	if c.Low < bar.Low {
		bar.Low = c.Low
	}
	bar.Close = c.Close
	bar.Volume += c.Volume
}

// HigherTimeframe synthesizes 1h/4h bars from the base candle stream
type HigherTimeframe struct {
	mu       sync.RWMutex
	capacity int
	series   map[Timeframe]*series
}

// NewHigherTimeframe creates an aggregator for the given timeframes,
// defaulting to 1h and 4h
func NewHigherTimeframe(capacity int, timeframes ...Timeframe) *HigherTimeframe {
	if capacity <= 0 {
		capacity = DefaultHTFCapacity
	}
	if len(timeframes) == 0 {
		timeframes = []Timeframe{TF1h, TF4h}
	}

	h := &HigherTimeframe{
		capacity: capacity,
		series:   make(map[Timeframe]*series, len(timeframes)),
	}
	for _, tf := range timeframes {
		if sec := tf.Seconds(); sec > 0 {
			h.series[tf] = &series{seconds: sec}
		}
	}
	return h
}

// Update folds one base candle into every timeframe
func (h *HigherTimeframe) Update(c market.Candle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.series {
		s.propose(c, h.capacity)
	}
}

// Rebuild discards all bars and replays an ordered base history
func (h *HigherTimeframe) Rebuild(candles []market.Candle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tf, s := range h.series {
		fresh := &series{seconds: s.seconds}
		for _, c := range candles {
			fresh.propose(c, h.capacity)
		}
		h.series[tf] = fresh
	}
}

// Candles returns a copy of the bars of a timeframe
func (h *HigherTimeframe) Candles(tf Timeframe) []market.Candle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.series[tf]
	if !ok {
		return nil
	}
	out := make([]market.Candle, len(s.bars))
	copy(out, s.bars)
	return out
}

// Len returns the number of bars of a timeframe
func (h *HigherTimeframe) Len(tf Timeframe) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if s, ok := h.series[tf]; ok {
		return len(s.bars)
	}
	return 0
}

// Bias compares price with the EMA of a timeframe. It stays NEUTRAL until
// more than period bars exist.
func (h *HigherTimeframe) Bias(tf Timeframe, price float64, period int) string {
	bars := h.Candles(tf)
	if len(bars) <= period {
		return learning.BiasNeutral
	}

	ema := strategy.EMA(bars, period)
	if ema == nil {
		return learning.BiasNeutral
	}
	value := ema[len(ema)-1]

	switch {
	case price > value:
		return learning.BiasBullish
	case price < value:
		return learning.BiasBearish
	default:
		return learning.BiasNeutral
	}
}
