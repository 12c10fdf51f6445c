package patterns

import (
	"adaptive-trading-bot/internal/market"
)

// isBullishEngulfing checks for a green body swallowing a red one
func (pd *PatternDetector) isBullishEngulfing(c1, c2 market.Candle) bool {
	// C1: Bearish
	if !c1.IsBearish() {
		return false
	}

	// C2: Bullish
	if !c2.IsBullish() {
		return false
	}

	// C2 opens at or below C1 body and closes above it
	return c2.Open <= c1.BodyBottom() && c2.Close > c1.BodyTop()
}

// isHammer checks for a long lower wick with a small upper wick
func (pd *PatternDetector) isHammer(candle market.Candle) bool {
	body := candle.Body()
	return candle.LowerWick() > 1.8*body && candle.UpperWick() < 1.2*body
}

// isInvertedHammer checks for a long upper wick with almost no lower wick
func (pd *PatternDetector) isInvertedHammer(candle market.Candle) bool {
	body := candle.Body()
	return candle.UpperWick() > 2.0*body && candle.LowerWick() < body*0.5
}

// isPinbar is a stricter hammer: lower wick over 2.5x the body
func (pd *PatternDetector) isPinbar(candle market.Candle) bool {
	body := candle.Body()
	return candle.LowerWick() > 2.5*body && candle.UpperWick() < body
}

// isPiercingLine checks for a gap below the prior low that closes past its midpoint
func (pd *PatternDetector) isPiercingLine(c1, c2 market.Candle) bool {
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	return c2.Open < c1.Low && c2.Close > c1.Midpoint()
}

// isMarubozu checks for a body covering more than 85% of the range
func (pd *PatternDetector) isMarubozu(candle market.Candle) bool {
	return candle.Body() > candle.Range()*0.85
}

// isHarami checks for a small candle inside the previous range
func (pd *PatternDetector) isHarami(c1, c2 market.Candle) bool {
	inside := c2.High < c1.High && c2.Low > c1.Low
	small := c2.Body() < c1.Body()*0.5
	return inside && small
}

// isTweezersBottom checks for matching lows within 0.05% of price
func (pd *PatternDetector) isTweezersBottom(c1, c2 market.Candle) bool {
	diff := abs(c2.Low - c1.Low)
	support := (c2.Low + c1.Low) / 2
	return diff < support*0.0005
}

// isDoji checks for a body under 10% of the range
func (pd *PatternDetector) isDoji(candle market.Candle) bool {
	return candle.Body() < candle.Range()*0.1
}

// isSpinningTop checks for a small body with balanced wicks
func (pd *PatternDetector) isSpinningTop(candle market.Candle) bool {
	r := candle.Range()
	return candle.Body() < r*0.3 && abs(candle.UpperWick()-candle.LowerWick()) < r*0.2
}

// isDragonflyDoji checks for a doji whose range is almost all lower wick
func (pd *PatternDetector) isDragonflyDoji(candle market.Candle) bool {
	r := candle.Range()
	return candle.Body() < r*0.1 && candle.UpperWick() < r*0.1
}

// IsDoji exposes the doji predicate for callers outside the scanner
func (pd *PatternDetector) IsDoji(candle market.Candle) bool {
	return pd.isDoji(candle)
}

// IsSpinningTop exposes the spinning top predicate. It is an indecision
// marker, not an entry pattern, so it is not part of the scan catalogue.
func (pd *PatternDetector) IsSpinningTop(candle market.Candle) bool {
	return pd.isSpinningTop(candle)
}
