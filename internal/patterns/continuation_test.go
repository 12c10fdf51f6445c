package patterns

import (
	"testing"

	"adaptive-trading-bot/internal/market"
)

func window(candles ...market.Candle) Window {
	return Window{Candles: candles}
}

func TestBreakout(t *testing.T) {
	detector := NewPatternDetector(20)

	candles := make([]market.Candle, 21)
	for i := range candles[:20] {
		candles[i] = market.Candle{Open: 99, High: 100, Low: 98, Close: 99.5}
	}

	candles[20] = market.Candle{Open: 99.5, High: 101.5, Low: 99, Close: 101}
	if !detector.isBreakout(window(candles...)) {
		t.Error("Should detect close above the 20-bar high")
	}

	candles[20] = market.Candle{Open: 99, High: 100.5, Low: 98.5, Close: 99.8}
	if detector.isBreakout(window(candles...)) {
		t.Error("Should NOT detect close below the 20-bar high")
	}

	if detector.isBreakout(window(candles[:20]...)) {
		t.Error("Should need lookback+1 candles")
	}
}

func TestMorningStar(t *testing.T) {
	detector := NewPatternDetector(20)

	c1 := market.Candle{Open: 110, High: 111, Low: 99, Close: 100}
	c2 := market.Candle{Open: 99, High: 100, Low: 97, Close: 98.5}
	c3 := market.Candle{Open: 99, High: 108, Low: 98.5, Close: 107}

	if !detector.isMorningStar(window(c1, c2, c3)) {
		t.Error("Should detect valid Morning Star pattern")
	}

	weakC3 := market.Candle{Open: 99, High: 104, Low: 98.5, Close: 103}
	if detector.isMorningStar(window(c1, c2, weakC3)) {
		t.Error("Should NOT detect pattern when C3 stays below C1 midpoint")
	}
}

func TestThreeWhiteSoldiers(t *testing.T) {
	detector := NewPatternDetector(20)

	c1 := market.Candle{Open: 100, High: 102.5, Low: 99.5, Close: 102}
	c2 := market.Candle{Open: 101.5, High: 104.5, Low: 101, Close: 104}
	c3 := market.Candle{Open: 103.5, High: 106.5, Low: 103, Close: 106}

	if !detector.isThreeWhiteSoldiers(window(c1, c2, c3)) {
		t.Error("Should detect valid Three White Soldiers pattern")
	}

	lower := market.Candle{Open: 101, High: 103.8, Low: 100.5, Close: 103.5}
	if detector.isThreeWhiteSoldiers(window(c1, c2, lower)) {
		t.Error("Should NOT detect pattern without rising closes")
	}
}

func TestInsideBarBreakout(t *testing.T) {
	detector := NewPatternDetector(20)

	mother := market.Candle{Open: 100, High: 110, Low: 90, Close: 105}
	inside := market.Candle{Open: 102, High: 106, Low: 95, Close: 104}
	current := market.Candle{Open: 104, High: 108, Low: 103, Close: 107}

	if !detector.isInsideBarBreakout(window(mother, inside, current)) {
		t.Error("Should detect valid Inside Bar breakout")
	}

	noBreak := market.Candle{Open: 104, High: 106, Low: 103, Close: 105}
	if detector.isInsideBarBreakout(window(mother, inside, noBreak)) {
		t.Error("Should NOT detect pattern without a close above the inside bar")
	}
}

func TestGapUpAndLongLine(t *testing.T) {
	detector := NewPatternDetector(20)

	prev := market.Candle{Open: 99, High: 100, Low: 98, Close: 99.5}
	cur := market.Candle{Open: 101.5, High: 103, Low: 101, Close: 102}
	if !detector.isGapUp(prev, cur) {
		t.Error("Should detect gap up")
	}
	if detector.isGapUp(prev, market.Candle{Open: 100, High: 102, Low: 99.5, Close: 101}) {
		t.Error("Should NOT detect overlapping candles as a gap")
	}

	long := market.Candle{Open: 100, High: 104.5, Low: 99.5, Close: 104}
	if !detector.isLongLine(Window{Candles: []market.Candle{long}, ATR: 2}) {
		t.Error("Should detect body above 1.5 ATR")
	}
	if detector.isLongLine(Window{Candles: []market.Candle{long}, ATR: 3}) {
		t.Error("Should NOT detect body below 1.5 ATR")
	}
}

func TestRisingThreeMethods(t *testing.T) {
	detector := NewPatternDetector(20)

	c1 := market.Candle{Open: 100, High: 110.5, Low: 99.5, Close: 110}
	pullback := market.Candle{Open: 109, High: 109, Low: 105, Close: 106}
	c5 := market.Candle{Open: 106, High: 112.5, Low: 105.5, Close: 112}

	if !detector.isRisingThreeMethods(window(c1, pullback, pullback, pullback, c5)) {
		t.Error("Should detect valid Rising Three Methods pattern")
	}

	escape := market.Candle{Open: 109, High: 111, Low: 105, Close: 106}
	if detector.isRisingThreeMethods(window(c1, pullback, escape, pullback, c5)) {
		t.Error("Should NOT detect pattern when a middle bar breaks the first high")
	}
}
