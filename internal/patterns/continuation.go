package patterns

import (
	"math"

	"adaptive-trading-bot/internal/market"
)

// isBreakout checks whether the close clears the highest high of the
// lookback bars before it
func (pd *PatternDetector) isBreakout(w Window) bool {
	n := len(w.Candles)
	if n < pd.breakoutLookback+1 {
		return false
	}

	current := w.Candles[n-1]
	maxHigh := 0.0
	for _, c := range w.Candles[n-1-pd.breakoutLookback : n-1] {
		maxHigh = math.Max(maxHigh, c.High)
	}
	return current.Close > maxHigh
}

// isMorningStar checks bearish, small, then a bullish close above the first midpoint
func (pd *PatternDetector) isMorningStar(w Window) bool {
	c1, ok := w.last(3)
	if !ok {
		return false
	}
	c2, _ := w.last(2)
	c3, _ := w.last(1)

	// C1: Bearish
	if !c1.IsBearish() {
		return false
	}

	// C2: Small body (indecision)
	if c2.Body() >= c1.Body()*0.4 {
		return false
	}

	// C3: Bullish, reclaiming C1 midpoint
	return c3.IsBullish() && c3.Close > c1.Midpoint()
}

// isThreeWhiteSoldiers checks three green candles with rising closes
func (pd *PatternDetector) isThreeWhiteSoldiers(w Window) bool {
	c1, ok := w.last(3)
	if !ok {
		return false
	}
	c2, _ := w.last(2)
	c3, _ := w.last(1)

	allGreen := c1.IsBullish() && c2.IsBullish() && c3.IsBullish()
	stairStep := c2.Close > c1.Close && c3.Close > c2.Close
	return allGreen && stairStep
}

// isInsideBarBreakout checks for an inside bar whose high the current candle closes above
func (pd *PatternDetector) isInsideBarBreakout(w Window) bool {
	mother, ok := w.last(3)
	if !ok {
		return false
	}
	inside, _ := w.last(2)
	current, _ := w.last(1)

	isInside := inside.High < mother.High && inside.Low > mother.Low
	return isInside && current.Close > inside.High
}

// isGapUp checks for a low above the previous high
func (pd *PatternDetector) isGapUp(prev, cur market.Candle) bool {
	return cur.Low > prev.High
}

// isLongLine checks for a body larger than 1.5 ATR
func (pd *PatternDetector) isLongLine(w Window) bool {
	c, ok := w.last(1)
	if !ok || w.ATR <= 0 {
		return false
	}
	return c.Body() > w.ATR*1.5
}

// isRisingThreeMethods checks a green bar, three bars held under its high,
// then a green bar closing above the first
func (pd *PatternDetector) isRisingThreeMethods(w Window) bool {
	c1, ok := w.last(5)
	if !ok {
		return false
	}
	c2, _ := w.last(4)
	c3, _ := w.last(3)
	c4, _ := w.last(2)
	c5, _ := w.last(1)

	first := c1.IsBullish()
	last := c5.IsBullish() && c5.Close > c1.Close
	contained := c2.High < c1.High && c3.High < c1.High && c4.High < c1.High
	return first && last && contained
}
