// Package learning keeps the engine's trade memory: win/loss counters per
// market context and per candlestick pattern.
package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/strategy"
)

// Result is the outcome of a closed trade
type Result string

const (
	Win  Result = "WIN"
	Loss Result = "LOSS"
)

// ResultFromPnL classifies a realized PnL. Breakeven counts as a loss.
func ResultFromPnL(pnl float64) Result {
	if pnl > 0 {
		return Win
	}
	return Loss
}

// HTF bias values
const (
	BiasBullish = "BULLISH"
	BiasBearish = "BEARISH"
	BiasNeutral = "NEUTRAL"
)

// RSI zones used in the market hash
const (
	ZoneOversold   = "OVERSOLD"
	ZoneNeutral    = "NEUTRAL"
	ZoneOverbought = "OVERBOUGHT"
)

// RSIZone buckets an RSI reading
func RSIZone(rsi float64) string {
	switch {
	case rsi < 30:
		return ZoneOversold
	case rsi > 70:
		return ZoneOverbought
	default:
		return ZoneNeutral
	}
}

// MarketHash builds the memory key for a market context. An empty bias
// leaves the HTF component out.
func MarketHash(regime strategy.Regime, rsi float64, htfBias string) string {
	hash := fmt.Sprintf("REGIME:%s_RSI:%s", regime, RSIZone(rsi))
	if htfBias != "" {
		hash += "_HTF:" + htfBias
	}
	return hash
}

// MemoryEntry counts outcomes for one market hash
type MemoryEntry struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Total returns the sample count
func (e MemoryEntry) Total() int {
	return e.Wins + e.Losses
}

// WinRate returns wins as a percentage of samples
func (e MemoryEntry) WinRate() float64 {
	if e.Total() == 0 {
		return 0
	}
	return float64(e.Wins) / float64(e.Total()) * 100
}

// Verdict is the answer to a brain consultation
type Verdict struct {
	Approved bool    `json:"approved"`
	WinRate  float64 `json:"win_rate"`
	Samples  int     `json:"samples"`
}

const (
	vetoMinSamples = 5
	vetoWinRate    = 45.0
)

// Brain vetoes market contexts with a demonstrated poor win rate
type Brain struct {
	mu      sync.RWMutex
	entries map[string]*MemoryEntry
	store   database.Store
	logger  *logging.Logger
}

// NewBrain creates an empty brain persisting to store
func NewBrain(store database.Store, logger *logging.Logger) *Brain {
	if logger == nil {
		logger = logging.Default()
	}
	return &Brain{
		entries: make(map[string]*MemoryEntry),
		store:   store,
		logger:  logger.WithComponent("brain"),
	}
}

// Load restores the table. A missing or corrupt record leaves it empty.
func (b *Brain) Load(ctx context.Context) error {
	entries := make(map[string]*MemoryEntry)
	_, err := database.LoadJSON(ctx, b.store, database.KeyBrain, &entries)
	if err != nil {
		b.logger.Warn("Brain memory unreadable, starting empty", "error", err)
		entries = make(map[string]*MemoryEntry)
	}
	if entries == nil {
		entries = make(map[string]*MemoryEntry)
	}
	for hash, e := range entries {
		if e == nil {
			b.logger.Warn("Dropping empty brain entry", "hash", hash)
			delete(entries, hash)
		}
	}

	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
	return err
}

// Consult checks the hash. More than 5 samples under 45% win rate is a veto.
func (b *Brain) Consult(hash string) Verdict {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[hash]
	if !ok {
		return Verdict{Approved: true}
	}

	v := Verdict{Approved: true, WinRate: e.WinRate(), Samples: e.Total()}
	if v.Samples > vetoMinSamples && v.WinRate < vetoWinRate {
		v.Approved = false
	}
	return v
}

// Learn records an outcome and persists the whole table
func (b *Brain) Learn(ctx context.Context, hash string, result Result) error {
	b.mu.Lock()
	e, ok := b.entries[hash]
	if !ok {
		e = &MemoryEntry{}
		b.entries[hash] = e
	}
	if result == Win {
		e.Wins++
	} else {
		e.Losses++
	}
	wins, losses := e.Wins, e.Losses
	snapshot := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Info("Learned from trade", "hash", hash, "result", string(result), "wins", wins, "losses", losses)

	if err := database.SaveJSON(ctx, b.store, database.KeyBrain, snapshot); err != nil {
		return fmt.Errorf("failed to persist brain: %w", err)
	}
	return nil
}

func (b *Brain) snapshotLocked() map[string]MemoryEntry {
	out := make(map[string]MemoryEntry, len(b.entries))
	for k, v := range b.entries {
		out[k] = *v
	}
	return out
}

// Snapshot returns a copy of the table
func (b *Brain) Snapshot() map[string]MemoryEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Hashes lists the known hashes in sorted order
func (b *Brain) Hashes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
