package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Candle is one OHLC bar. Time is the bar open time in unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute body size
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// BodyTop returns the upper edge of the body
func (c Candle) BodyTop() float64 {
	if c.Close > c.Open {
		return c.Close
	}
	return c.Open
}

// BodyBottom returns the lower edge of the body
func (c Candle) BodyBottom() float64 {
	if c.Close < c.Open {
		return c.Close
	}
	return c.Open
}

// UpperWick returns the distance from the body top to the high
func (c Candle) UpperWick() float64 {
	return c.High - c.BodyTop()
}

// ErrInvalidCandle is returned for candles that cannot be traded on
var ErrInvalidCandle = errors.New("invalid candle")

// Validate checks prices are finite and positive and that high/low bound
// the body
func (c Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: non-positive or non-finite price at %d", ErrInvalidCandle, c.Time)
		}
	}
	if c.High < c.Low || c.High < c.BodyTop() || c.Low > c.BodyBottom() {
		return fmt.Errorf("%w: high/low do not bound the body at %d", ErrInvalidCandle, c.Time)
	}
	return nil
}

// LowerWick returns the distance from the body bottom to the low
func (c Candle) LowerWick() float64 {
	return c.BodyBottom() - c.Low
}

// Midpoint returns the middle of the body
func (c Candle) Midpoint() float64 {
	return (c.Open + c.Close) / 2
}

// UpdateKind describes how an incoming candle changed the buffer
type UpdateKind int

const (
	UpdateIgnored  UpdateKind = iota // older than the last candle
	UpdateReplaced                   // same timestamp, revised OHLC
	UpdateAppended                   // new bar
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateReplaced:
		return "replaced"
	case UpdateAppended:
		return "appended"
	default:
		return "ignored"
	}
}

// DefaultBufferCapacity bounds the retained candle window
const DefaultBufferCapacity = 2000

// Buffer holds the ordered candle window fed to the indicators
type Buffer struct {
	mu       sync.RWMutex
	candles  []Candle
	capacity int
}

// NewBuffer creates a buffer retaining at most capacity candles
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		candles:  make([]Candle, 0, capacity),
		capacity: capacity,
	}
}

// Push applies a live update: same timestamp replaces the last bar, a newer
// timestamp appends, anything older is ignored.
func (b *Buffer) Push(c Candle) UpdateKind {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.candles)
	if n > 0 {
		last := b.candles[n-1]
		switch {
		case c.Time == last.Time:
			b.candles[n-1] = c
			return UpdateReplaced
		case c.Time < last.Time:
			return UpdateIgnored
		}
	}

	b.candles = append(b.candles, c)
	b.trim()
	return UpdateAppended
}

// Merge loads a historical batch. Candles are sorted and de-duplicated by
// time; on collision the batch wins over what is already buffered.
func (b *Buffer) Merge(batch []Candle) int {
	if len(batch) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	byTime := make(map[int64]Candle, len(b.candles)+len(batch))
	for _, c := range b.candles {
		byTime[c.Time] = c
	}
	for _, c := range batch {
		byTime[c.Time] = c
	}

	merged := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })

	b.candles = merged
	b.trim()
	return len(b.candles)
}

func (b *Buffer) trim() {
	if over := len(b.candles) - b.capacity; over > 0 {
		b.candles = append(b.candles[:0:0], b.candles[over:]...)
	}
}

// Snapshot returns a copy of the buffered candles
func (b *Buffer) Snapshot() []Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Candle, len(b.candles))
	copy(out, b.candles)
	return out
}

// Last returns the most recent candle
func (b *Buffer) Last() (Candle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.candles) == 0 {
		return Candle{}, false
	}
	return b.candles[len(b.candles)-1], true
}

// Len returns the number of buffered candles
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}
