package patterns

import (
	"adaptive-trading-bot/internal/market"
)

// PatternType names a bullish setup the scanner can report
type PatternType string

const (
	BullishEngulfing PatternType = "BULLISH_ENGULFING"
	Hammer           PatternType = "HAMMER"
	Breakout         PatternType = "BREAKOUT"
	MorningStar      PatternType = "MORNING_STAR"
	ThreeSoldiers    PatternType = "3_SOLDIERS"
	PiercingLine     PatternType = "PIERCING"
	InsideBar        PatternType = "INSIDE_BAR"
	Pinbar           PatternType = "PINBAR"
	Marubozu         PatternType = "MARUBOZU"
	BullishHarami    PatternType = "HARAMI"
	TweezersBottom   PatternType = "TWEEZERS"
	DojiReversal     PatternType = "DOJI_REVERSAL"
	InvertedHammer   PatternType = "INVERTED_HAMMER"
	DragonflyDoji    PatternType = "DRAGONFLY_DOJI"
	GapUp            PatternType = "GAP_UP"
	LongLine         PatternType = "LONG_LINE"
	RisingThree      PatternType = "RISING_THREE"

	// TrendRide is synthesized by the signal evaluator, never by a detector
	TrendRide PatternType = "TREND_RIDE"
)

// DefaultBreakoutLookback is the number of prior bars a breakout must clear
const DefaultBreakoutLookback = 20

// Window is what a detector sees: the candle history and the current ATR
type Window struct {
	Candles []market.Candle
	ATR     float64
}

func (w Window) last(n int) (market.Candle, bool) {
	if len(w.Candles) < n {
		return market.Candle{}, false
	}
	return w.Candles[len(w.Candles)-n], true
}

// Detector is a pure predicate over the trailing candles
type Detector func(w Window) bool

type entry struct {
	name   PatternType
	detect Detector
}

// PatternDetector scans a fixed, ordered catalogue of bullish patterns
type PatternDetector struct {
	breakoutLookback int
	catalogue        []entry
	byName           map[PatternType]Detector
}

// NewPatternDetector creates a detector. Scan order is part of the contract:
// the first active pattern is the one a signal is attributed to.
func NewPatternDetector(breakoutLookback int) *PatternDetector {
	if breakoutLookback <= 0 {
		breakoutLookback = DefaultBreakoutLookback
	}

	pd := &PatternDetector{breakoutLookback: breakoutLookback}
	pd.catalogue = []entry{
		{BullishEngulfing, pairDetector(pd.isBullishEngulfing)},
		{Hammer, singleDetector(pd.isHammer)},
		{Breakout, pd.isBreakout},
		{MorningStar, pd.isMorningStar},
		{ThreeSoldiers, pd.isThreeWhiteSoldiers},
		{PiercingLine, pairDetector(pd.isPiercingLine)},
		{InsideBar, pd.isInsideBarBreakout},
		{Pinbar, singleDetector(pd.isPinbar)},
		{Marubozu, singleDetector(func(c market.Candle) bool { return pd.isMarubozu(c) && c.IsBullish() })},
		{BullishHarami, pairDetector(func(prev, cur market.Candle) bool { return pd.isHarami(prev, cur) && cur.IsBullish() })},
		{TweezersBottom, pairDetector(pd.isTweezersBottom)},
		{DojiReversal, pairDetector(func(prev, cur market.Candle) bool { return pd.isDoji(prev) && cur.IsBullish() })},
		{InvertedHammer, singleDetector(pd.isInvertedHammer)},
		{DragonflyDoji, singleDetector(pd.isDragonflyDoji)},
		{GapUp, pairDetector(pd.isGapUp)},
		{LongLine, pd.isLongLine},
		{RisingThree, pd.isRisingThreeMethods},
	}

	pd.byName = make(map[PatternType]Detector, len(pd.catalogue))
	for _, e := range pd.catalogue {
		pd.byName[e.name] = e.detect
	}
	return pd
}

// Scan returns every pattern active on the last candle, in catalogue order
func (pd *PatternDetector) Scan(candles []market.Candle, atr float64) []PatternType {
	if len(candles) < 2 {
		return nil
	}

	w := Window{Candles: candles, ATR: atr}
	var active []PatternType
	for _, e := range pd.catalogue {
		if e.detect(w) {
			active = append(active, e.name)
		}
	}
	return active
}

// Lookup returns the detector registered under name
func (pd *PatternDetector) Lookup(name PatternType) (Detector, bool) {
	d, ok := pd.byName[name]
	return d, ok
}

// Names lists the catalogue in scan order
func (pd *PatternDetector) Names() []PatternType {
	names := make([]PatternType, len(pd.catalogue))
	for i, e := range pd.catalogue {
		names[i] = e.name
	}
	return names
}

// IsHighConviction reports patterns that earn a strength bonus
func IsHighConviction(name PatternType) bool {
	switch name {
	case MorningStar, ThreeSoldiers, Marubozu:
		return true
	}
	return false
}

func singleDetector(fn func(c market.Candle) bool) Detector {
	return func(w Window) bool {
		c, ok := w.last(1)
		return ok && fn(c)
	}
}

func pairDetector(fn func(prev, cur market.Candle) bool) Detector {
	return func(w Window) bool {
		cur, ok := w.last(1)
		if !ok {
			return false
		}
		prev, ok := w.last(2)
		return ok && fn(prev, cur)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
