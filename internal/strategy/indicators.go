package strategy

import (
	"math"

	"adaptive-trading-bot/internal/market"
)

// Indicator series are aligned to the END of the candle slice: the last
// element always corresponds to the last candle. A nil series means the
// window is still too short ("not ready").

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// EMA returns the exponential moving average series seeded with the first close
func EMA(candles []market.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return emaValues(closes, period)
}

func emaValues(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMA averages the last period values. It returns 0 when fewer are available.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI returns Wilder's RSI series. A window without losses saturates at 100.
func RSI(candles []market.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	out := make([]float64, 0, len(candles)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds the aligned MACD series
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes (EMAfast - EMAslow) and its signal line
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return nil
	}

	fast := EMA(candles, fastPeriod)
	slow := EMA(candles, slowPeriod)
	if fast == nil || slow == nil {
		return nil
	}

	line := make([]float64, len(candles))
	for i := range candles {
		line[i] = fast[i] - slow[i]
	}

	signal := emaValues(line, signalPeriod)
	if signal == nil {
		return nil
	}

	hist := make([]float64, len(candles))
	for i := range line {
		hist[i] = line[i] - signal[i]
	}

	return &MACDResult{MACD: line, Signal: signal, Histogram: hist}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

func trueRange(c, prev market.Candle) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// ATR returns the Wilder-smoothed average true range series
func ATR(candles []market.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	tr := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		tr = append(tr, trueRange(candles[i], candles[i-1]))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)

	out := make([]float64, 0, len(tr)-period+1)
	out = append(out, atr)
	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out = append(out, atr)
	}
	return out
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// ADX returns the Average Directional Index series
func ADX(candles []market.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period*2 {
		return nil
	}

	n := len(candles) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr[i-1] = trueRange(cur, prev)

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	// Wilder sums: first value is the raw sum over the period
	sTR, sPlus, sMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	p := float64(period)
	dx := make([]float64, 0, n-period+1)
	dx = append(dx, dxValue(sTR, sPlus, sMinus))
	for i := period; i < n; i++ {
		sTR = sTR - sTR/p + tr[i]
		sPlus = sPlus - sPlus/p + plusDM[i]
		sMinus = sMinus - sMinus/p + minusDM[i]
		dx = append(dx, dxValue(sTR, sPlus, sMinus))
	}

	if len(dx) < period {
		return nil
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= p

	out := make([]float64, 0, len(dx)-period+1)
	out = append(out, adx)
	for i := period; i < len(dx); i++ {
		adx = (adx*(p-1) + dx[i]) / p
		out = append(out, adx)
	}
	return out
}

// dxValue treats a flat window (no range or no directional movement) as DX 0
func dxValue(sTR, sPlus, sMinus float64) float64 {
	if sTR == 0 {
		return 0
	}
	pDI := sPlus / sTR * 100
	mDI := sMinus / sTR * 100
	if pDI+mDI == 0 {
		return 0
	}
	return math.Abs(pDI-mDI) / (pDI + mDI) * 100
}

// ============================================================================
// SNAPSHOT
// ============================================================================

// Periods configures the indicator set computed each tick
type Periods struct {
	EMA        int `json:"ema" yaml:"ema" default:"5" validate:"min=1"`
	RSI        int `json:"rsi" yaml:"rsi" default:"21" validate:"min=2"`
	ATR        int `json:"atr" yaml:"atr" default:"14" validate:"min=1"`
	ADX        int `json:"adx" yaml:"adx" default:"14" validate:"min=2"`
	MACDFast   int `json:"macd_fast" yaml:"macd_fast" default:"12" validate:"min=1"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow" default:"26" validate:"min=2"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal" default:"9" validate:"min=1"`
}

// DefaultPeriods returns the standard indicator periods
func DefaultPeriods() Periods {
	return Periods{EMA: 5, RSI: 21, ATR: 14, ADX: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
}

// Snapshot is the per-tick indicator reading. It is never persisted.
type Snapshot struct {
	Price         float64 `json:"price"`
	EMA           float64 `json:"ema"`
	RSI           float64 `json:"rsi"`
	ATR           float64 `json:"atr"`
	ADX           float64 `json:"adx"`
	MACDHistogram float64 `json:"macd_histogram"`
}

// Series keeps the full series behind a snapshot for consumers that need history
type Series struct {
	ATR []float64
	RSI []float64
}

// Compute evaluates every indicator over the window. ok is false until all
// of them are ready.
func Compute(candles []market.Candle, p Periods) (Snapshot, Series, bool) {
	ema := EMA(candles, p.EMA)
	rsi := RSI(candles, p.RSI)
	atr := ATR(candles, p.ATR)
	adx := ADX(candles, p.ADX)
	macd := MACD(candles, p.MACDFast, p.MACDSlow, p.MACDSignal)

	if ema == nil || rsi == nil || atr == nil || adx == nil || macd == nil {
		return Snapshot{}, Series{}, false
	}

	snap := Snapshot{
		Price:         candles[len(candles)-1].Close,
		EMA:           last(ema),
		RSI:           last(rsi),
		ATR:           last(atr),
		ADX:           last(adx),
		MACDHistogram: last(macd.Histogram),
	}
	return snap, Series{ATR: atr, RSI: rsi}, true
}

func last(values []float64) float64 {
	return values[len(values)-1]
}

// RollingRSIBaseline averages the sub-50 readings among the last 100 RSI
// values. It falls back to 45 when the history is shorter or never dips.
func RollingRSIBaseline(rsi []float64) float64 {
	const window = 100
	const fallback = 45.0

	if len(rsi) < window {
		return fallback
	}

	sum, count := 0.0, 0
	for _, r := range rsi[len(rsi)-window:] {
		if r < 50 {
			sum += r
			count++
		}
	}
	if count == 0 {
		return fallback
	}
	return sum / float64(count)
}
